// Package emotion tracks transient, decaying emotional modifiers per agent
// and converts them into a bias vector over candidate actions.
package emotion

import (
	"math"
	"time"
)

// Code identifies an emotion.
type Code string

const (
	Fear       Code = "fear"
	Rage       Code = "rage"
	Trust      Code = "trust"
	Curiosity  Code = "curiosity"
	Calmness   Code = "calmness"
	Excitement Code = "excitement"
	Sadness    Code = "sadness"
	Disgust    Code = "disgust"
	Joy        Code = "joy"
)

// InfluenceType classifies how an emotion bends behavior.
type InfluenceType string

const (
	CombatAggression     InfluenceType = "combat_aggression"
	DefensiveCaution     InfluenceType = "defensive_caution"
	ExplorationCuriosity InfluenceType = "exploration_curiosity"
	SocialTrust          InfluenceType = "social_trust"
	SurvivalFear         InfluenceType = "survival_fear"
	EvolutionaryDrive    InfluenceType = "evolutionary_drive"
	TacticalPatience     InfluenceType = "tactical_patience"
	CreativeAdaptation   InfluenceType = "creative_adaptation"
)

// allInfluences fixes the order dominant-influence selection walks in, so
// ties resolve the same way every run.
var allInfluences = []InfluenceType{
	CombatAggression, DefensiveCaution, ExplorationCuriosity, SocialTrust,
	SurvivalFear, EvolutionaryDrive, TacticalPatience, CreativeAdaptation,
}

// influenceMatrix maps each emotion to how strongly it pushes (positive)
// or suppresses (negative) every influence type.
var influenceMatrix = map[Code]map[InfluenceType]float64{
	Fear: {
		CombatAggression: -0.5, DefensiveCaution: 0.8, ExplorationCuriosity: -0.3,
		SocialTrust: -0.4, SurvivalFear: 0.9, EvolutionaryDrive: -0.2,
		TacticalPatience: 0.6, CreativeAdaptation: -0.1,
	},
	Rage: {
		CombatAggression: 0.9, DefensiveCaution: -0.6, ExplorationCuriosity: -0.2,
		SocialTrust: -0.8, SurvivalFear: -0.3, EvolutionaryDrive: 0.7,
		TacticalPatience: -0.5, CreativeAdaptation: 0.3,
	},
	Trust: {
		CombatAggression: -0.2, DefensiveCaution: -0.3, ExplorationCuriosity: 0.4,
		SocialTrust: 0.8, SurvivalFear: -0.1, EvolutionaryDrive: 0.2,
		TacticalPatience: 0.5, CreativeAdaptation: 0.6,
	},
	Curiosity: {
		CombatAggression: 0.1, DefensiveCaution: -0.2, ExplorationCuriosity: 0.9,
		SocialTrust: 0.3, SurvivalFear: -0.1, EvolutionaryDrive: 0.6,
		TacticalPatience: 0.4, CreativeAdaptation: 0.8,
	},
	Calmness: {
		CombatAggression: -0.3, DefensiveCaution: 0.4, ExplorationCuriosity: 0.2,
		SocialTrust: 0.5, SurvivalFear: -0.2, EvolutionaryDrive: 0.1,
		TacticalPatience: 0.8, CreativeAdaptation: 0.3,
	},
	Excitement: {
		CombatAggression: 0.6, DefensiveCaution: -0.4, ExplorationCuriosity: 0.7,
		SocialTrust: 0.2, SurvivalFear: -0.3, EvolutionaryDrive: 0.8,
		TacticalPatience: -0.2, CreativeAdaptation: 0.5,
	},
	Sadness: {
		CombatAggression: -0.4, DefensiveCaution: 0.5, ExplorationCuriosity: -0.5,
		SocialTrust: -0.2, SurvivalFear: 0.3, EvolutionaryDrive: -0.4,
		TacticalPatience: 0.3, CreativeAdaptation: -0.2,
	},
	Disgust: {
		CombatAggression: 0.3, DefensiveCaution: 0.4, ExplorationCuriosity: -0.4,
		SocialTrust: -0.9, SurvivalFear: 0.2, EvolutionaryDrive: -0.1,
		TacticalPatience: 0.2, CreativeAdaptation: -0.3,
	},
	Joy: {
		CombatAggression: 0.2, DefensiveCaution: -0.3, ExplorationCuriosity: 0.5,
		SocialTrust: 0.7, SurvivalFear: -0.4, EvolutionaryDrive: 0.5,
		TacticalPatience: 0.1, CreativeAdaptation: 0.6,
	},
}

// targetActions maps each influence type to the actions it bears on.
var targetActions = map[InfluenceType][]string{
	CombatAggression:     {"attack", "charge", "berserk", "intimidate"},
	DefensiveCaution:     {"defend", "retreat", "hide", "observe"},
	ExplorationCuriosity: {"explore", "investigate", "collect", "analyze"},
	SocialTrust:          {"interact", "trade", "ally", "communicate"},
	SurvivalFear:         {"flee", "hide", "defend", "use_consumable"},
	EvolutionaryDrive:    {"evolve", "mutate", "adapt", "learn"},
	TacticalPatience:     {"wait", "plan", "observe", "prepare"},
	CreativeAdaptation:   {"improvise", "combine", "experiment", "innovate"},
}

// Trigger describes an event that provokes an emotion.
type Trigger struct {
	Emotion        Code
	BaseIntensity  float64
	ContextFactors []string
}

// triggerTable maps event names to the emotion they provoke.
var triggerTable = map[string]Trigger{
	"near_death":           {Emotion: Fear, BaseIntensity: 0.8, ContextFactors: []string{"health_percent", "enemy_strength"}},
	"victory":              {Emotion: Excitement, BaseIntensity: 0.6, ContextFactors: []string{"enemy_difficulty", "battle_duration"}},
	"defeat":               {Emotion: Sadness, BaseIntensity: 0.7, ContextFactors: []string{"progress_lost", "time_invested"}},
	"discovery":            {Emotion: Curiosity, BaseIntensity: 0.5, ContextFactors: []string{"item_rarity", "location_danger"}},
	"betrayal":             {Emotion: Disgust, BaseIntensity: 0.9, ContextFactors: []string{"trust_level", "relationship_duration"}},
	"evolution":            {Emotion: Joy, BaseIntensity: 0.8, ContextFactors: []string{"evolution_stage", "genes_unlocked"}},
	"environmental_hazard": {Emotion: Fear, BaseIntensity: 0.6, ContextFactors: []string{"hazard_damage", "escape_difficulty"}},
	"social_success":       {Emotion: Trust, BaseIntensity: 0.5, ContextFactors: []string{"interaction_quality", "relationship_gain"}},
}

// Modifier is one active emotional influence on an agent's action weights.
// Created by a trigger, read every decision, discarded past expiry.
type Modifier struct {
	Emotion       Code          `json:"emotion"`
	Influence     InfluenceType `json:"influence"`
	Strength      float64       `json:"strength"`
	ExpiresAt     time.Time     `json:"expires_at"`
	CreatedAt     time.Time     `json:"created_at"`
	DecayRate     float64       `json:"decay_rate"` // per second, exponential
	TargetActions []string      `json:"target_actions"`
	Boost         float64       `json:"boost"`
	Penalty       float64       `json:"penalty"`
}

// Active reports whether the modifier still applies at now. Expiry is
// inclusive, so a modifier read exactly at its deadline still counts.
func (m *Modifier) Active(now time.Time) bool {
	return !now.After(m.ExpiresAt)
}

// CurrentStrength returns the exponentially decayed strength at now, or 0
// once expired.
func (m *Modifier) CurrentStrength(now time.Time) float64 {
	if !m.Active(now) {
		return 0
	}
	elapsed := now.Sub(m.CreatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return m.Strength * math.Exp(-m.DecayRate*elapsed)
}
