// Package tactics provides the default tactical advisor used as the
// tactical component of action fusion.
package tactics

import "github.com/calder-games/npcmind/internal/agent"

// HeuristicAdvisor weighs planned actions against the live assessment:
// outnumbered or wounded agents lean defensive, healthy ones with the
// numbers advantage lean aggressive.
type HeuristicAdvisor struct{}

// NewHeuristicAdvisor returns the stock advisor.
func NewHeuristicAdvisor() *HeuristicAdvisor { return &HeuristicAdvisor{} }

// Advise starts from the planner scores and bends them by situation.
func (h *HeuristicAdvisor) Advise(a *agent.Assessment, plan []agent.PlannedAction) map[string]float64 {
	weights := make(map[string]float64, len(plan))
	for _, p := range plan {
		weights[p.Name] = p.Score
	}

	outnumbered := len(a.Enemies) > len(a.Allies)+1
	wounded := a.HealthRatio < 0.5

	scale := func(action string, by float64) {
		if w, ok := weights[action]; ok {
			weights[action] = w * by
		}
	}
	if outnumbered || wounded {
		scale("defend", 1.4)
		scale("retreat", 1.3)
		scale("heal", 1.3)
		scale("attack", 0.7)
	} else if a.Opportunity > a.Threat {
		scale("attack", 1.3)
		scale("support", 1.2)
		scale("explore", 1.1)
	}
	return weights
}
