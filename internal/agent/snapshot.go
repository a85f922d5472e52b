package agent

import "time"

// Snapshot is a read-only view of a core for telemetry and the HTTP API.
type Snapshot struct {
	ID          uint64          `json:"id"`
	State       string          `json:"state"`
	Priority    string          `json:"priority"`
	Threat      float64         `json:"threat"`
	Opportunity float64         `json:"opportunity"`
	HealthRatio float64         `json:"health_ratio"`
	Emotions    Emotions        `json:"emotions"`
	Personality Personality     `json:"personality"`
	Plan        []PlannedAction `json:"plan"`
	LastAction  string          `json:"last_action"`
	LastUpdate  time.Time       `json:"last_update"`
}

// Snapshot returns a consistent copy of the core's observable state.
func (c *Core) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	plan := make([]PlannedAction, len(c.plan))
	copy(plan, c.plan)
	return Snapshot{
		ID:          c.id,
		State:       c.state.String(),
		Priority:    c.priority.String(),
		Threat:      c.assessment.Threat,
		Opportunity: c.assessment.Opportunity,
		HealthRatio: c.assessment.HealthRatio,
		Emotions:    c.emotions,
		Personality: c.personality,
		Plan:        plan,
		LastAction:  c.lastAction,
		LastUpdate:  c.lastUpdate,
	}
}
