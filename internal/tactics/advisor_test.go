package tactics

import (
	"testing"

	"github.com/calder-games/npcmind/internal/agent"
)

func TestAdviseLeansDefensiveWhenOutnumbered(t *testing.T) {
	adv := NewHeuristicAdvisor()
	a := &agent.Assessment{
		HealthRatio: 0.9,
		Enemies:     make([]agent.Neighbor, 3),
		Allies:      nil,
	}
	plan := []agent.PlannedAction{{Name: "attack", Score: 0.8}, {Name: "defend", Score: 0.6}}

	w := adv.Advise(a, plan)
	if w["defend"] <= w["attack"] {
		t.Errorf("outnumbered: defend = %v, attack = %v, want defend ahead", w["defend"], w["attack"])
	}
}

func TestAdviseLeansAggressiveOnOpportunity(t *testing.T) {
	adv := NewHeuristicAdvisor()
	a := &agent.Assessment{HealthRatio: 1, Threat: 0.2, Opportunity: 0.8}
	plan := []agent.PlannedAction{{Name: "attack", Score: 0.5}, {Name: "defend", Score: 0.5}}

	w := adv.Advise(a, plan)
	if w["attack"] <= w["defend"] {
		t.Errorf("opportunity: attack = %v, defend = %v, want attack ahead", w["attack"], w["defend"])
	}
}
