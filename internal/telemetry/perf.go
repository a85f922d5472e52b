// Package telemetry collects per-tick timing for the fleet scheduler and
// aggregates it over a rolling window.
package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase names for one scheduler tick.
const (
	PhasePurge   = "purge"
	PhaseSelect  = "select"
	PhaseUpdate  = "update"
	PhaseGroups  = "groups"
	PhaseSpatial = "spatial"
)

// Sample holds timing data for a single tick.
type Sample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
	Updated      int // agents updated this tick
}

// Collector tracks tick timings over a rolling window. It is not safe for
// concurrent use; the scheduler owns it.
type Collector struct {
	windowSize  int
	samples     []Sample
	writeIndex  int
	sampleCount int

	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string

	now func() time.Time
}

// NewCollector creates a collector averaging over windowSize ticks.
func NewCollector(windowSize int) *Collector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &Collector{
		windowSize: windowSize,
		samples:    make([]Sample, windowSize),
		now:        time.Now,
	}
}

// StartTick begins timing a new scheduler tick.
func (c *Collector) StartTick() {
	c.tickStart = c.now()
	c.currentPhases = make(map[string]time.Duration)
	c.lastPhase = ""
}

// StartPhase closes the running phase, if any, and opens the named one.
func (c *Collector) StartPhase(phase string) {
	now := c.now()
	if c.lastPhase != "" {
		c.currentPhases[c.lastPhase] += now.Sub(c.phaseStart)
	}
	c.phaseStart = now
	c.lastPhase = phase
}

// EndTick finishes the current tick and records the sample.
func (c *Collector) EndTick(updated int) time.Duration {
	now := c.now()
	if c.lastPhase != "" {
		c.currentPhases[c.lastPhase] += now.Sub(c.phaseStart)
		c.lastPhase = ""
	}

	d := now.Sub(c.tickStart)
	c.samples[c.writeIndex] = Sample{
		TickDuration: d,
		Phases:       c.currentPhases,
		Updated:      updated,
	}
	c.writeIndex = (c.writeIndex + 1) % c.windowSize
	if c.sampleCount < c.windowSize {
		c.sampleCount++
	}
	return d
}

// Stats holds aggregated timing statistics over the window.
type Stats struct {
	AvgTickDuration time.Duration            `json:"avg_tick_us"`
	StdDevTick      time.Duration            `json:"stddev_tick_us"`
	P95TickDuration time.Duration            `json:"p95_tick_us"`
	MaxTickDuration time.Duration            `json:"max_tick_us"`
	PhaseAvg        map[string]time.Duration `json:"phase_avg_us"`
	TicksPerSecond  float64                  `json:"ticks_per_sec"`
	AvgUpdated      float64                  `json:"avg_updated"`
}

// Stats aggregates the current window.
func (c *Collector) Stats() Stats {
	if c.sampleCount == 0 {
		return Stats{PhaseAvg: make(map[string]time.Duration)}
	}

	ticks := make([]float64, 0, c.sampleCount)
	phaseSum := make(map[string]time.Duration)
	var maxTick time.Duration
	var updated float64
	for i := 0; i < c.sampleCount; i++ {
		s := c.samples[i]
		ticks = append(ticks, float64(s.TickDuration))
		if s.TickDuration > maxTick {
			maxTick = s.TickDuration
		}
		updated += float64(s.Updated)
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}
	sort.Float64s(ticks)

	mean, stddev := stat.MeanStdDev(ticks, nil)
	if c.sampleCount == 1 {
		stddev = 0
	}
	p95 := stat.Quantile(0.95, stat.Empirical, ticks, nil)

	phaseAvg := make(map[string]time.Duration, len(phaseSum))
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(c.sampleCount)
	}

	var ticksPerSec float64
	if mean > 0 {
		ticksPerSec = float64(time.Second) / mean
	}

	return Stats{
		AvgTickDuration: time.Duration(mean),
		StdDevTick:      time.Duration(stddev),
		P95TickDuration: time.Duration(p95),
		MaxTickDuration: maxTick,
		PhaseAvg:        phaseAvg,
		TicksPerSecond:  ticksPerSec,
		AvgUpdated:      updated / float64(c.sampleCount),
	}
}

// Log writes one summary line through the given logger.
func (s Stats) Log(log *slog.Logger) {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"p95_tick_us", s.P95TickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
		"avg_updated", int(s.AvgUpdated),
	}
	for phase, dur := range s.PhaseAvg {
		attrs = append(attrs, "phase_"+phase+"_us", dur.Microseconds())
	}
	log.Info("scheduler perf", attrs...)
}
