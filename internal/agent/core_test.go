package agent

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/calder-games/npcmind/internal/config"
)

type testEntity struct {
	alive     bool
	x, y      float64
	health    float64
	maxHealth float64
	attrs     Attributes
	skills    []string
	debuffs   int
	level     int
	faction   string
	rank      Rank

	struck []uint64
	moved  [][2]float64
	heals  int
}

func (e *testEntity) Alive() bool                  { return e.alive }
func (e *testEntity) Position() (float64, float64) { return e.x, e.y }
func (e *testEntity) Health() (float64, float64)   { return e.health, e.maxHealth }
func (e *testEntity) Attributes() Attributes       { return e.attrs }
func (e *testEntity) UsableSkills() []string       { return e.skills }
func (e *testEntity) DebuffCount() int             { return e.debuffs }
func (e *testEntity) Level() int                   { return e.level }
func (e *testEntity) Strike(target uint64)         { e.struck = append(e.struck, target) }
func (e *testEntity) MoveTo(x, y float64)          { e.moved = append(e.moved, [2]float64{x, y}) }
func (e *testEntity) HealSelf()                    { e.heals++ }
func (e *testEntity) Faction() string              { return e.faction }
func (e *testEntity) Rank() Rank                   { return e.rank }

func newTestEntity() *testEntity {
	return &testEntity{
		alive:     true,
		health:    100,
		maxHealth: 100,
		level:     3,
		faction:   "wolves",
	}
}

func testDeps(neighbors NeighborFunc) Deps {
	cfg, err := config.Default()
	if err != nil {
		panic(err)
	}
	return Deps{
		Config:    cfg.Decision,
		Rng:       rand.New(rand.NewSource(42)),
		Neighbors: neighbors,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func fixedNeighbors(ns ...Neighbor) NeighborFunc {
	return func(x, y, radius float64) []Neighbor { return ns }
}

func TestAssessWoundedButAloneIsNotCritical(t *testing.T) {
	e := newTestEntity()
	e.health = 30
	c := NewCore(1, e, testDeps(fixedNeighbors()))

	c.Update(time.Now(), UpdateFull)

	snap := c.Snapshot()
	if snap.Priority == "critical" {
		t.Errorf("priority = %s for a wounded agent with no enemies, want below critical", snap.Priority)
	}
	want := 0.7 * 0.4
	if math.Abs(snap.Threat-want) > 1e-9 {
		t.Errorf("threat = %v, want %v from health alone", snap.Threat, want)
	}
}

func TestAssessOverwhelmingThreatTriggersRetreat(t *testing.T) {
	e := newTestEntity()
	enemy := Neighbor{ID: 2, X: 30, Y: 0, Faction: "bears", Level: 5, Health: 100, MaxHealth: 100}
	c := NewCore(1, e, testDeps(fixedNeighbors(enemy)))

	c.Update(time.Now(), UpdateFull)

	snap := c.Snapshot()
	if snap.Priority != "critical" {
		t.Fatalf("priority = %s, want critical (threat %v)", snap.Priority, snap.Threat)
	}
	if snap.State != "retreating" {
		t.Errorf("state = %s, want retreating", snap.State)
	}
	if len(e.moved) == 0 {
		t.Fatal("retreat issued no movement")
	}
	// Single enemy east of the agent, so the fallback goes due west.
	dest := e.moved[len(e.moved)-1]
	if math.Abs(dest[0]-(-100)) > 1e-9 || math.Abs(dest[1]) > 1e-9 {
		t.Errorf("retreat destination = %v, want (-100, 0)", dest)
	}
	if snap.LastAction != "retreat" {
		t.Errorf("last action = %q, want retreat", snap.LastAction)
	}
}

func TestPlanByPriority(t *testing.T) {
	cases := []struct {
		name        string
		priority    Priority
		threat      float64
		opportunity float64
		healthRatio float64
		state       State
		want        []string
	}{
		{"critical high threat", PriorityCritical, 0.9, 0, 0.5, StateIdle, []string{"retreat"}},
		{"critical low health", PriorityCritical, 0.4, 0, 0.2, StateIdle, []string{"heal"}},
		{"high threat fights", PriorityHigh, 0.6, 0, 0.8, StateIdle, []string{"attack", "defend"}},
		{"high opportunity supports", PriorityHigh, 0.2, 0.8, 0.9, StateIdle, []string{"support"}},
		{"idle explores", PriorityMedium, 0.1, 0.1, 1.0, StateIdle, []string{"explore"}},
		{"wandering patrols", PriorityMedium, 0.1, 0.1, 1.0, StateExploring, []string{"patrol"}},
		{"patrolling keeps patrolling", PriorityMedium, 0.1, 0.1, 1.0, StatePatrolling, []string{"patrol"}},
		{"retreating holds its state", PriorityMedium, 0.1, 0.1, 1.0, StateRetreating, nil},
		{"attacking holds its state", PriorityMedium, 0.1, 0.1, 1.0, StateAttacking, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCore(1, newTestEntity(), testDeps(nil))
			c.priority = tc.priority
			c.state = tc.state
			c.assessment = Assessment{
				Threat:      tc.threat,
				Opportunity: tc.opportunity,
				HealthRatio: tc.healthRatio,
			}
			c.planLocked()
			if len(c.plan) != len(tc.want) {
				t.Fatalf("plan = %v, want actions %v", c.plan, tc.want)
			}
			for i, name := range tc.want {
				if c.plan[i].Name != name {
					t.Errorf("plan[%d] = %s, want %s", i, c.plan[i].Name, name)
				}
			}
		})
	}
}

func TestDefendHoldsCurrentState(t *testing.T) {
	c := NewCore(1, newTestEntity(), testDeps(nil))
	c.state = StateAttacking
	if !c.defendLocked() {
		t.Fatal("defend should succeed")
	}
	if c.state != StateAttacking {
		t.Errorf("state = %s, want attacking preserved through defend", c.state)
	}
}

func TestChoosePrefersHigherFusedWeight(t *testing.T) {
	c := NewCore(1, newTestEntity(), testDeps(nil))
	c.plan = []PlannedAction{{Name: "attack", Score: 0.8}, {Name: "defend", Score: 0.6}}

	if got := c.chooseLocked(); got != "attack" {
		t.Errorf("chose %q, want attack from higher planner score", got)
	}

	weights := c.tacticalWeights()
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("tactical weights sum to %v, want 1", sum)
	}
}

type fixedAdvisor struct{ weights map[string]float64 }

func (a fixedAdvisor) Advise(_ *Assessment, _ []PlannedAction) map[string]float64 {
	return a.weights
}

func TestAdvisorOverridesPlannerScores(t *testing.T) {
	deps := testDeps(nil)
	deps.Advisor = fixedAdvisor{weights: map[string]float64{"attack": 0.1, "defend": 0.9}}
	c := NewCore(1, newTestEntity(), deps)
	c.plan = []PlannedAction{{Name: "attack", Score: 0.8}, {Name: "defend", Score: 0.6}}

	if got := c.chooseLocked(); got != "defend" {
		t.Errorf("chose %q, want defend from advisor weighting", got)
	}
}

func TestEmotionsTrackAssessment(t *testing.T) {
	c := NewCore(1, newTestEntity(), testDeps(nil))
	c.personality.Aggression = 0.8
	c.recentDamage = 25
	c.assessment = Assessment{Threat: 0.5, HealthRatio: 0.5}

	c.updateEmotionsLocked()

	if got, want := c.emotions.Confidence, 0.5*0.8+0.2; math.Abs(got-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", got, want)
	}
	if got, want := c.emotions.Fear, 0.4; math.Abs(got-want) > 1e-9 {
		t.Errorf("fear = %v, want %v", got, want)
	}
	if got, want := c.emotions.Anger, 0.8*0.5; math.Abs(got-want) > 1e-9 {
		t.Errorf("anger = %v, want %v", got, want)
	}
	if got, want := c.emotions.Morale, 1-(0.4+0.4)/2; math.Abs(got-want) > 1e-9 {
		t.Errorf("morale = %v, want %v", got, want)
	}
}

func TestPersonalityDerivesFromAttributes(t *testing.T) {
	e := newTestEntity()
	e.attrs = Attributes{Strength: 18, Dexterity: 16, Intelligence: 10, Charisma: 4}
	c := NewCore(1, e, testDeps(nil))

	p := c.Personality()
	if p.Aggression != 0.9 {
		t.Errorf("aggression = %v, want 0.9 from strength 18", p.Aggression)
	}
	if math.Abs(p.Caution-0.2) > 1e-9 {
		t.Errorf("caution = %v, want 0.2 from dexterity 16", p.Caution)
	}
	if p.Intelligence != 0.5 {
		t.Errorf("intelligence = %v, want 0.5", p.Intelligence)
	}
	if math.Abs(p.Leadership-0.2) > 1e-9 {
		t.Errorf("leadership = %v, want 0.2 from charisma 4", p.Leadership)
	}
}

func TestReinforcementStaysWithinTraitBounds(t *testing.T) {
	c := NewCore(1, newTestEntity(), testDeps(nil))
	c.personality.Aggression = 0.85
	c.assessment.HealthRatio = 1
	for i := 0; i < 10; i++ {
		c.outcomes = append(c.outcomes, Outcome{Action: "attack", Success: true})
	}

	c.learnLocked()
	if c.personality.Aggression > 0.9 {
		t.Errorf("aggression = %v, want capped at 0.9", c.personality.Aggression)
	}

	c.personality.Caution = 0.15
	c.outcomes = c.outcomes[:0]
	for i := 0; i < 10; i++ {
		c.outcomes = append(c.outcomes, Outcome{Action: "defend", Success: false})
	}
	c.learnLocked()
	if c.personality.Caution < 0.1 {
		t.Errorf("caution = %v, want floored at 0.1", c.personality.Caution)
	}
}

func TestMinimalUpdateOnlyEmergencyHeals(t *testing.T) {
	e := newTestEntity()
	e.health = 20
	c := NewCore(1, e, testDeps(fixedNeighbors()))

	c.Update(time.Now(), UpdateMinimal)
	if e.heals != 1 {
		t.Errorf("heals = %d, want 1 emergency heal", e.heals)
	}

	e.health = 90
	c.Update(time.Now(), UpdateMinimal)
	if e.heals != 1 {
		t.Errorf("heals = %d, healthy agent should not heal on minimal update", e.heals)
	}
}

func TestLightUpdateContinuesAttack(t *testing.T) {
	e := newTestEntity()
	enemy := Neighbor{ID: 7, X: 10, Y: 0, Faction: "bears", Level: 1, Health: 50, MaxHealth: 100}
	c := NewCore(1, e, testDeps(fixedNeighbors(enemy)))
	c.state = StateAttacking
	c.targetID = 7

	c.Update(time.Now(), UpdateLight)

	if len(e.struck) != 1 || e.struck[0] != 7 {
		t.Errorf("struck = %v, want one strike on target 7", e.struck)
	}
	snap := c.Snapshot()
	if snap.Plan != nil && len(snap.Plan) > 0 {
		t.Errorf("light update replanned: %v", snap.Plan)
	}
}

func TestOutcomeRingTrims(t *testing.T) {
	c := NewCore(1, newTestEntity(), testDeps(nil))
	for i := 0; i < 101; i++ {
		c.recordOutcomeLocked(Outcome{Action: "explore", Success: true})
	}
	if len(c.outcomes) != 50 {
		t.Errorf("outcome ring length = %d, want trimmed to 50", len(c.outcomes))
	}
}

func TestPatrolCyclesWaypoints(t *testing.T) {
	e := newTestEntity()
	c := NewCore(1, e, testDeps(nil))
	c.assessment.HealthRatio = 1

	if !c.patrolLocked() {
		t.Fatal("patrol should succeed for a positioned mover")
	}
	if len(c.patrolRoute) != 4 {
		t.Fatalf("route length = %d, want 4 waypoints", len(c.patrolRoute))
	}
	first := c.patrolRoute[0]
	if math.Abs(first[0]-50) > 1e-9 || math.Abs(first[1]) > 1e-9 {
		t.Errorf("first waypoint = %v, want (50, 0)", first)
	}

	// Arriving at the waypoint advances the route.
	e.x, e.y = 50, 0
	c.patrolLocked()
	if len(c.patrolRoute) != 3 {
		t.Errorf("route length after arrival = %d, want 3", len(c.patrolRoute))
	}
}
