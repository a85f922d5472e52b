package memory

import (
	"math"
	"sort"
)

// Context describes the situation a relevance query is asked about.
type Context struct {
	EnemyType      string  // current opponent kind, "" when none
	EmotionalState float64 // caller's current emotional impact level, [0, 1]
	Trigger        string  // event name that prompted the query, "" when none
}

// RelevantMemories returns up to limit records relevant to ctx, filtered to
// types (nil means all), ordered by (relevance, intensity) descending.
// Records below the relevance floor are excluded. Returned records are
// copies; accessing them bumps their access metadata.
func (s *Store) RelevantMemories(ctx Context, types []Type, limit int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if types == nil {
		types = AllTypes
	}
	wanted := make(map[Type]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	type scored struct {
		rec       *Record
		relevance float64
	}
	var hits []scored
	now := s.now()
	for _, r := range s.records {
		if !wanted[r.Type] {
			continue
		}
		rel := s.relevance(r, ctx)
		if rel > s.relevanceFloor {
			hits = append(hits, scored{rec: r, relevance: rel})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].relevance != hits[j].relevance {
			return hits[i].relevance > hits[j].relevance
		}
		if hits[i].rec.Intensity != hits[j].rec.Intensity {
			return hits[i].rec.Intensity > hits[j].rec.Intensity
		}
		return hits[i].rec.ID < hits[j].rec.ID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]Record, len(hits))
	for i, h := range hits {
		h.rec.LastAccessed = now
		h.rec.AccessCount++
		out[i] = *h.rec
	}
	return out
}

// relevance = 0.3×recency decay + 0.4×content match + 0.3×emotional
// similarity, each term in [0, 1].
func (s *Store) relevance(r *Record, ctx Context) float64 {
	rel := 0.0

	elapsed := s.now().Sub(r.LastAccessed).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	rel += 0.3 / (1.0 + elapsed/3600)

	switch r.Type {
	case CombatExperience, EnemyPatterns:
		if ctx.EnemyType != "" && r.Content[KeyEnemyType] == ctx.EnemyType {
			rel += 0.4
		}
	default:
		if ctx.Trigger != "" && r.Content[KeyTrigger] == ctx.Trigger {
			rel += 0.4
		}
	}

	rel += (1.0 - math.Abs(ctx.EmotionalState-r.EmotionalImpact)) * 0.3

	return math.Min(1.0, rel)
}

// InfluenceDecision returns a weight map over available actions, nudged by
// relevant memories: actions a memory names successful or an effective
// counter gain weight, failed or dangerous ones lose it, proportional to
// intensity × survival value. Trauma memories additionally boost defensive
// play. The result sums to 1 whenever any action is available.
func (s *Store) InfluenceDecision(ctx Context, available []string) map[string]float64 {
	weights := make(map[string]float64, len(available))
	for _, a := range available {
		weights[a] = 1.0
	}
	if len(weights) == 0 {
		return weights
	}

	for _, rec := range s.RelevantMemories(ctx, nil, 10) {
		influence := rec.Intensity * rec.SurvivalValue
		switch rec.Type {
		case CombatExperience:
			bump(weights, rec.Content[KeySuccessfulAction], influence*0.5)
			bump(weights, rec.Content[KeyFailedAction], -influence*0.3)
		case EnemyPatterns:
			bump(weights, rec.Content[KeyEffectiveCounter], influence*0.6)
		case EmotionalTrauma:
			bump(weights, rec.Content[KeyDangerousAction], -influence*0.4)
			bump(weights, "defend", influence*0.3)
		}
	}

	Normalize(weights)
	return weights
}

func bump(weights map[string]float64, action string, delta float64) {
	if action == "" {
		return
	}
	if _, ok := weights[action]; ok {
		weights[action] += delta
	}
}

// Normalize rescales weights to sum to 1. Non-positive weights are floored
// at a small epsilon first so one strong penalty cannot produce a negative
// probability.
func Normalize(weights map[string]float64) {
	const floor = 1e-6
	total := 0.0
	for k, v := range weights {
		if v < floor {
			v = floor
			weights[k] = v
		}
		total += v
	}
	if total <= 0 {
		return
	}
	for k := range weights {
		weights[k] /= total
	}
}
