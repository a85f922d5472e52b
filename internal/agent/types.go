// Package agent implements the per-NPC decision core: situation assessment,
// emotional state, action planning and weighted action selection.
package agent

import "time"

// State is what an agent is currently doing.
type State uint8

const (
	StateIdle State = iota
	StateExploring
	StatePatrolling
	StateChasing
	StateAttacking
	StateRetreating
	StateHealing
	StateSupporting
	StateFormation
)

var stateNames = [...]string{
	"idle", "exploring", "patrolling", "chasing", "attacking",
	"retreating", "healing", "supporting", "formation",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Priority orders agents for update scheduling. Lower values update first.
type Priority uint8

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

var priorityNames = [...]string{"critical", "high", "medium", "low"}

func (p Priority) String() string {
	if int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return "unknown"
}

// UpdateMode selects how much work a scheduled update does.
type UpdateMode uint8

const (
	// UpdateFull reassesses the situation, replans and acts.
	UpdateFull UpdateMode = iota
	// UpdateLight acts on the existing plan without replanning.
	UpdateLight
	// UpdateMinimal only decays transient state.
	UpdateMinimal
)

var updateModeNames = [...]string{"full", "light", "minimal"}

func (m UpdateMode) String() string {
	if int(m) < len(updateModeNames) {
		return updateModeNames[m]
	}
	return "unknown"
}

// Personality holds the stable behavioral traits of an agent, each in [0, 1].
type Personality struct {
	Aggression   float64 `json:"aggression"`
	Caution      float64 `json:"caution"`
	Intelligence float64 `json:"intelligence"`
	Leadership   float64 `json:"leadership"`
	Loyalty      float64 `json:"loyalty"`
	Curiosity    float64 `json:"curiosity"`
	Adaptability float64 `json:"adaptability"`
	Sociability  float64 `json:"sociability"`
}

// Emotions is the fast-moving affect recomputed every full update.
type Emotions struct {
	Confidence float64 `json:"confidence"`
	Fear       float64 `json:"fear"`
	Anger      float64 `json:"anger"`
	Excitement float64 `json:"excitement"`
	Stress     float64 `json:"stress"`
	Morale     float64 `json:"morale"`
}

// PlannedAction is one candidate action with its planner score.
type PlannedAction struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Outcome records one executed action for later reinforcement.
type Outcome struct {
	Action  string    `json:"action"`
	Success bool      `json:"success"`
	At      time.Time `json:"at"`
}

// Neighbor is a nearby entity as seen through the spatial query layer.
type Neighbor struct {
	ID        uint64
	X, Y      float64
	Faction   string
	Level     int
	Health    float64
	MaxHealth float64
}

// HealthRatio returns current over max health, 1 when max is unknown.
func (n Neighbor) HealthRatio() float64 {
	if n.MaxHealth <= 0 {
		return 1
	}
	return n.Health / n.MaxHealth
}

// Assessment is a snapshot of an agent's tactical situation.
type Assessment struct {
	Threat      float64    `json:"threat"`
	Opportunity float64    `json:"opportunity"`
	HealthRatio float64    `json:"health_ratio"`
	Enemies     []Neighbor `json:"-"`
	Allies      []Neighbor `json:"-"`
	At          time.Time  `json:"at"`
}

// NeighborFunc resolves live entities within radius of a point. The fleet
// manager supplies it from its spatial index.
type NeighborFunc func(x, y, radius float64) []Neighbor

// Advisor supplies tactical action weights. When present, its output
// replaces the planner scores as the tactical component of fusion.
type Advisor interface {
	Advise(a *Assessment, plan []PlannedAction) map[string]float64
}
