package agent

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/calder-games/npcmind/internal/config"
	"github.com/calder-games/npcmind/internal/emotion"
	"github.com/calder-games/npcmind/internal/memory"
)

// nearDeathFraction is the health ratio below which assessment fires a
// near_death emotional trigger.
const nearDeathFraction = 0.15

// Deps are the shared services a Core draws on. Emotions, Memories and
// Advisor may be nil; the corresponding fusion component then falls back
// to a uniform weighting.
type Deps struct {
	Config    config.DecisionConfig
	Log       *slog.Logger
	Rng       *rand.Rand
	Emotions  *emotion.Layer
	Memories  *memory.Store
	Advisor   Advisor
	Neighbors NeighborFunc
	Now       func() time.Time
}

func (d *Deps) fill() {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Rng == nil {
		d.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Core drives one entity. It assesses threats and opportunities, maintains
// emotions and personality, plans candidate actions and picks one by fusing
// tactical, emotional and remembered preferences.
type Core struct {
	mu     sync.Mutex
	id     uint64
	entity Entity
	deps   Deps

	personality Personality
	emotions    Emotions
	state       State
	priority    Priority
	plan        []PlannedAction
	assessment  Assessment

	targetID     uint64
	lastHealth   float64
	recentDamage float64
	patrolRoute  [][2]float64
	outcomes     []Outcome
	lastAction   string
	lastUpdate   time.Time
}

// NewCore wires a decision core to an entity. Personality is seeded from
// the entity's attributes when it exposes them, otherwise randomized
// around a neutral baseline.
func NewCore(id uint64, entity Entity, deps Deps) *Core {
	deps.fill()
	c := &Core{
		id:       id,
		entity:   entity,
		deps:     deps,
		state:    StateIdle,
		priority: PriorityMedium,
	}
	if v, ok := entity.(Vital); ok {
		c.lastHealth, _ = v.Health()
	}
	if a, ok := entity.(Attributed); ok {
		c.personality = personalityFrom(a.Attributes(), deps.Rng)
	} else {
		c.personality = randomPersonality(deps.Rng)
	}
	return c
}

// personalityFrom derives stable traits from raw attributes on the 0-20
// scale: strength drives aggression, dexterity suppresses caution,
// charisma drives leadership.
func personalityFrom(attrs Attributes, rng *rand.Rand) Personality {
	jitter := func() float64 { return 0.3 + rng.Float64()*0.4 }
	return Personality{
		Aggression:   clampTrait(attrs.Strength / 20),
		Caution:      clampTrait(1 - attrs.Dexterity/20),
		Intelligence: clampTrait(attrs.Intelligence / 20),
		Leadership:   clampTrait(attrs.Charisma / 20),
		Loyalty:      jitter(),
		Curiosity:    jitter(),
		Adaptability: jitter(),
		Sociability:  jitter(),
	}
}

func randomPersonality(rng *rand.Rand) Personality {
	jitter := func() float64 { return 0.3 + rng.Float64()*0.4 }
	return Personality{
		Aggression: jitter(), Caution: jitter(), Intelligence: jitter(),
		Leadership: jitter(), Loyalty: jitter(), Curiosity: jitter(),
		Adaptability: jitter(), Sociability: jitter(),
	}
}

func clampTrait(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 0.9 {
		return 0.9
	}
	return v
}

// ID returns the agent identifier.
func (c *Core) ID() uint64 { return c.id }

// Entity returns the driven entity.
func (c *Core) Entity() Entity { return c.entity }

// Priority returns the current scheduling priority.
func (c *Core) Priority() Priority {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priority
}

// SetPriority overrides the scheduling priority until the next full
// assessment recomputes it.
func (c *Core) SetPriority(p Priority) {
	c.mu.Lock()
	c.priority = p
	c.mu.Unlock()
}

// EnterFormation moves the agent into formation when it has nothing more
// pressing to do. Group coordination is the only caller; combat and
// recovery states are never interrupted.
func (c *Core) EnterFormation() {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateExploring, StatePatrolling:
		c.state = StateFormation
	}
	c.mu.Unlock()
}

// LastUpdate returns when this core last ran, zero if never.
func (c *Core) LastUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdate
}

// Personality returns a copy of the agent's traits.
func (c *Core) Personality() Personality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.personality
}

// Update runs one scheduled decision cycle in the given mode.
func (c *Core) Update(now time.Time, mode UpdateMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch mode {
	case UpdateFull:
		c.assessLocked(now)
		c.updateEmotionsLocked()
		c.planLocked()
		c.actLocked(now)
		c.learnLocked()
	case UpdateLight:
		c.assessThreatOnlyLocked(now)
		c.continueBehaviorLocked()
	case UpdateMinimal:
		if c.healthRatio() < c.deps.Config.LowHealthFraction {
			c.healSelfLocked()
		}
	}
	c.lastUpdate = now
}

func (c *Core) healthRatio() float64 {
	v, ok := c.entity.(Vital)
	if !ok {
		return 1
	}
	cur, max := v.Health()
	if max <= 0 {
		return 1
	}
	return cur / max
}

func (c *Core) position() (float64, float64, bool) {
	p, ok := c.entity.(Positioned)
	if !ok {
		return 0, 0, false
	}
	x, y := p.Position()
	return x, y, true
}

func (c *Core) faction() string {
	if f, ok := c.entity.(Factioned); ok {
		return f.Faction()
	}
	return ""
}

func (c *Core) nearby() (enemies, allies []Neighbor) {
	x, y, ok := c.position()
	if !ok || c.deps.Neighbors == nil {
		return nil, nil
	}
	faction := c.faction()
	for _, n := range c.deps.Neighbors(x, y, c.deps.Config.NearbyRadius) {
		if n.ID == c.id {
			continue
		}
		if faction != "" && n.Faction == faction {
			allies = append(allies, n)
		} else {
			enemies = append(enemies, n)
		}
	}
	return enemies, allies
}

func (c *Core) distanceTo(n Neighbor) float64 {
	x, y, ok := c.position()
	if !ok {
		return math.Inf(1)
	}
	return math.Hypot(n.X-x, n.Y-y)
}

// assessLocked recomputes threat, opportunity and scheduling priority,
// and fires emotional triggers for notable transitions.
func (c *Core) assessLocked(now time.Time) {
	hr := c.healthRatio()
	if v, ok := c.entity.(Vital); ok {
		cur, _ := v.Health()
		if cur < c.lastHealth {
			c.recentDamage = c.lastHealth - cur
		} else {
			c.recentDamage = 0
		}
		c.lastHealth = cur
	}

	enemies, allies := c.nearby()

	threat := (1 - hr) * 0.4
	for _, e := range enemies {
		threat += c.entityThreat(e)
	}
	if a, ok := c.entity.(Afflicted); ok {
		threat += float64(a.DebuffCount()) * 0.1
	}
	threat = math.Min(1, threat)

	opportunity := float64(len(allies)) * 0.1
	if s, ok := c.entity.(SkillUser); ok {
		opportunity += float64(len(s.UsableSkills())) * 0.05
	}
	if len(allies) > len(enemies) {
		opportunity += 0.2
	}
	opportunity = math.Min(1, opportunity)

	c.assessment = Assessment{
		Threat:      threat,
		Opportunity: opportunity,
		HealthRatio: hr,
		Enemies:     enemies,
		Allies:      allies,
		At:          now,
	}

	switch {
	case threat > c.deps.Config.CriticalThreat:
		c.priority = PriorityCritical
	case threat > c.deps.Config.HighThreat:
		c.priority = PriorityHigh
	case opportunity > c.deps.Config.HighOpportunity:
		c.priority = PriorityHigh
	default:
		c.priority = PriorityMedium
	}

	if hr < nearDeathFraction {
		if c.deps.Emotions != nil {
			strongest := 0
			for _, e := range enemies {
				if e.Level > strongest {
					strongest = e.Level
				}
			}
			c.deps.Emotions.ProcessTrigger(c.id, "near_death", map[string]float64{
				"health_percent": hr * 100,
				"enemy_strength": float64(strongest * 10),
			})
		}
		c.rememberLocked(memory.EmotionalTrauma, threat, memory.Content{
			memory.KeyNearDeath: memory.TrueValue,
			memory.KeyTrigger:   "near_death",
		})
	}
}

// entityThreat scores how dangerous one neighbor is.
func (c *Core) entityThreat(n Neighbor) float64 {
	threat := float64(n.Level)*0.1 + n.HealthRatio()*0.2
	switch d := c.distanceTo(n); {
	case d < 50:
		threat += 0.3
	case d < 100:
		threat += 0.1
	}
	return threat
}

func (c *Core) assessThreatOnlyLocked(now time.Time) {
	hr := c.healthRatio()
	enemies, _ := c.nearby()
	threat := (1 - hr) * 0.4
	for _, e := range enemies {
		threat += c.entityThreat(e)
	}
	c.assessment.Threat = math.Min(1, threat)
	c.assessment.HealthRatio = hr
	c.assessment.Enemies = enemies
	c.assessment.At = now
}

func (c *Core) updateEmotionsLocked() {
	hr := c.assessment.HealthRatio
	c.emotions.Confidence = clamp01(hr*0.8 + 0.2)
	c.emotions.Fear = math.Min(1, c.assessment.Threat*0.8)
	c.emotions.Anger = math.Min(1, c.personality.Aggression*math.Min(1, c.recentDamage/50))
	c.emotions.Excitement = math.Min(1, c.assessment.Opportunity*0.8)
	c.emotions.Stress = (c.emotions.Fear + c.emotions.Anger) * 0.5
	c.emotions.Morale = math.Max(0, 1-c.emotions.Stress)
}

// planLocked rebuilds the candidate action list from priority and
// assessment.
func (c *Core) planLocked() {
	c.plan = c.plan[:0]
	switch {
	case c.priority == PriorityCritical:
		if c.assessment.Threat > c.deps.Config.CriticalThreat {
			c.plan = append(c.plan, PlannedAction{Name: "retreat", Score: 1.0})
		} else if c.assessment.HealthRatio < c.deps.Config.LowHealthFraction {
			c.plan = append(c.plan, PlannedAction{Name: "heal", Score: 1.0})
		}
	case c.priority == PriorityHigh:
		if c.assessment.Threat > c.deps.Config.HighThreat {
			c.plan = append(c.plan,
				PlannedAction{Name: "attack", Score: 0.8},
				PlannedAction{Name: "defend", Score: 0.6})
		} else if c.assessment.Opportunity > c.deps.Config.HighOpportunity {
			c.plan = append(c.plan, PlannedAction{Name: "support", Score: 0.7})
		}
	default:
		// Only idle or already-wandering agents pick up routine movement;
		// anything mid-behavior keeps its state and an empty plan.
		switch c.state {
		case StateIdle:
			c.plan = append(c.plan, PlannedAction{Name: "explore", Score: 0.5})
		case StateExploring, StatePatrolling:
			c.plan = append(c.plan, PlannedAction{Name: "patrol", Score: 0.4})
		}
	}
}

// actLocked fuses the tactical, emotional and memory weightings over the
// current plan, executes the winner and records the outcome.
func (c *Core) actLocked(now time.Time) {
	if len(c.plan) == 0 {
		return
	}
	choice := c.chooseLocked()
	ok := c.executeLocked(choice)
	c.recordOutcomeLocked(Outcome{Action: choice, Success: ok, At: now})
}

// chooseLocked returns the plan action with the highest fused weight.
// Ties resolve in plan order.
func (c *Core) chooseLocked() string {
	names := make([]string, len(c.plan))
	for i, p := range c.plan {
		names[i] = p.Name
	}
	if len(names) == 1 {
		return names[0]
	}

	tactical := c.tacticalWeights()
	emotional := c.emotionalWeights(names)
	remembered := c.memoryWeights(names)

	cfg := c.deps.Config
	best := names[0]
	bestW := math.Inf(-1)
	for _, name := range names {
		w := cfg.TacticalWeight*tactical[name] +
			cfg.EmotionWeight*emotional[name] +
			cfg.MemoryWeight*remembered[name]
		if w > bestW {
			bestW = w
			best = name
		}
	}
	return best
}

func (c *Core) tacticalWeights() map[string]float64 {
	if c.deps.Advisor != nil {
		a := c.assessment
		if w := c.deps.Advisor.Advise(&a, c.plan); len(w) > 0 {
			memory.Normalize(w)
			return w
		}
	}
	w := make(map[string]float64, len(c.plan))
	for _, p := range c.plan {
		w[p.Name] = p.Score
	}
	memory.Normalize(w)
	return w
}

func (c *Core) emotionalWeights(names []string) map[string]float64 {
	if c.deps.Emotions == nil {
		return uniform(names)
	}
	return c.deps.Emotions.InfluencedActions(c.id, names)
}

func (c *Core) memoryWeights(names []string) map[string]float64 {
	if c.deps.Memories == nil {
		return uniform(names)
	}
	ctx := memory.Context{EmotionalState: c.emotions.Stress}
	if len(c.assessment.Enemies) > 0 {
		ctx.EnemyType = c.assessment.Enemies[0].Faction
	}
	return c.deps.Memories.InfluenceDecision(ctx, names)
}

func uniform(names []string) map[string]float64 {
	w := make(map[string]float64, len(names))
	for _, n := range names {
		w[n] = 1 / float64(len(names))
	}
	return w
}

// learnLocked reinforces traits from recent outcomes and adapts to the
// current condition.
func (c *Core) learnLocked() {
	recent := c.outcomes
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for _, o := range recent {
		delta := 0.05
		if !o.Success {
			delta = -0.05
		}
		switch o.Action {
		case "attack":
			c.personality.Aggression = clampTrait(c.personality.Aggression + delta)
		case "defend", "retreat":
			c.personality.Caution = clampTrait(c.personality.Caution + delta)
		}
	}
	if c.assessment.HealthRatio < c.deps.Config.LowHealthFraction {
		c.personality.Caution = clampTrait(c.personality.Caution + 0.1)
		c.personality.Aggression = clampTrait(c.personality.Aggression - 0.1)
	}
}

func (c *Core) recordOutcomeLocked(o Outcome) {
	c.lastAction = o.Action
	c.outcomes = append(c.outcomes, o)
	if len(c.outcomes) > 100 {
		c.outcomes = append(c.outcomes[:0], c.outcomes[len(c.outcomes)-50:]...)
	}
}

// rememberLocked stores a long-term memory record when a shared store is
// wired.
func (c *Core) rememberLocked(t memory.Type, impact float64, content memory.Content) {
	if c.deps.Memories == nil {
		return
	}
	c.deps.Memories.Add(t, content, math.Max(0.3, impact), impact)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
