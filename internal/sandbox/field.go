// Package sandbox provides a small self-contained world for exercising the
// decision fleet: creatures implementing the agent capability interfaces on
// a noise-generated hazard field.
package sandbox

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// HazardThreshold is the severity above which a point damages creatures
// standing on it.
const HazardThreshold = 0.7

// HazardField is a continuous danger map over the plane. Severity varies
// smoothly, so hazardous regions form blobs creatures can walk around.
type HazardField struct {
	noise opensimplex.Noise
	freq  float64
}

// NewHazardField builds a deterministic field from a seed.
func NewHazardField(seed int64) *HazardField {
	return &HazardField{
		noise: opensimplex.NewNormalized(seed),
		freq:  0.01,
	}
}

// Severity samples the danger level at a point, in [0, 1].
// Two octaves keep large hazard blobs with some edge detail.
func (f *HazardField) Severity(x, y float64) float64 {
	base := f.noise.Eval2(x*f.freq, y*f.freq)
	detail := f.noise.Eval2(x*f.freq*2, y*f.freq*2)
	return base*0.7 + detail*0.3
}

// DamageAt returns the damage per step a creature takes at a point, zero
// outside hazardous regions.
func (f *HazardField) DamageAt(x, y float64) float64 {
	sev := f.Severity(x, y)
	if sev < HazardThreshold {
		return 0
	}
	// Scales from 0 at the threshold up to 15 at maximum severity.
	return (sev - HazardThreshold) / (1 - HazardThreshold) * 15
}
