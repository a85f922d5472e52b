// Package config provides configuration loading for the NPC engine.
// All decision thresholds are tunables here, not hard-coded in the
// packages that consume them.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every engine parameter.
type Config struct {
	Fleet    FleetConfig    `yaml:"fleet"`
	Decision DecisionConfig `yaml:"decision"`
	Memory   MemoryConfig   `yaml:"memory"`
	Emotion  EmotionConfig  `yaml:"emotion"`
	API      APIConfig      `yaml:"api"`
}

// FleetConfig holds scheduler and spatial-index parameters.
type FleetConfig struct {
	MaxActiveEntities int     `yaml:"max_active_entities"` // candidate-set cap per tick
	CellSize          float64 `yaml:"cell_size"`           // spatial grid cell edge, world units

	// Per-agent cadence by update mode, seconds.
	FullInterval    float64 `yaml:"full_interval"`
	LightInterval   float64 `yaml:"light_interval"`
	MinimalInterval float64 `yaml:"minimal_interval"`

	// Distance cutoffs for update-mode classification, world units.
	FullRange  float64 `yaml:"full_range"`
	LightRange float64 `yaml:"light_range"`

	StatsLogInterval float64 `yaml:"stats_log_interval"` // seconds between perf log lines
}

// DecisionConfig holds assessment thresholds and fusion weights.
type DecisionConfig struct {
	// Priority cutoffs on threat/opportunity.
	CriticalThreat  float64 `yaml:"critical_threat"`
	HighThreat      float64 `yaml:"high_threat"`
	HighOpportunity float64 `yaml:"high_opportunity"`

	// Fusion split across the three influence sources. Normalized at load.
	TacticalWeight float64 `yaml:"tactical_weight"`
	EmotionWeight  float64 `yaml:"emotion_weight"`
	MemoryWeight   float64 `yaml:"memory_weight"`

	LowHealthFraction float64 `yaml:"low_health_fraction"` // heal below this health ratio
	AllyHelpFraction  float64 `yaml:"ally_help_fraction"`  // support allies below this
	NearbyRadius      float64 `yaml:"nearby_radius"`       // enemy/ally scan radius
}

// MemoryConfig holds generational-memory parameters.
type MemoryConfig struct {
	MaxPerType      int     `yaml:"max_per_type"`
	FusionThreshold float64 `yaml:"fusion_threshold"`
	RelevanceFloor  float64 `yaml:"relevance_floor"`
}

// EmotionConfig holds emotional-influence parameters.
type EmotionConfig struct {
	BaseDuration  float64 `yaml:"base_duration"`   // modifier life at intensity 1.0, seconds
	ResidualAtEnd float64 `yaml:"residual_at_end"` // strength fraction remaining at expiry
	MaxPerAgent   int     `yaml:"max_per_agent"`   // concurrent modifiers per agent
	TraumaGate    float64 `yaml:"trauma_gate"`     // fear intensity that accrues trauma
}

// APIConfig holds the HTTP/telemetry surface parameters.
type APIConfig struct {
	Port int `yaml:"port"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// Load reads path over the embedded defaults; absent keys keep their
// default values.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize rescales the fusion weights to sum to 1.
func (c *Config) normalize() {
	total := c.Decision.TacticalWeight + c.Decision.EmotionWeight + c.Decision.MemoryWeight
	if total <= 0 {
		c.Decision.TacticalWeight = 0.4
		c.Decision.EmotionWeight = 0.3
		c.Decision.MemoryWeight = 0.3
		return
	}
	c.Decision.TacticalWeight /= total
	c.Decision.EmotionWeight /= total
	c.Decision.MemoryWeight /= total
}
