package memory

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
)

// AdvanceGeneration folds the current session's memory into the next one:
// the present state is persisted under the current generation number, then
// memories evolve (high-survival-value records reinforced, weak ones
// decayed, small random recall imperfections applied), same-type groups of
// three or more are clustered, and the generation counter increments.
// Decay alone never deletes a record; only the per-type cap does that.
func (s *Store) AdvanceGeneration(survivalRate float64, achievements []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("advancing memory generation",
		"from", s.generation, "survival_rate", survivalRate, "achievements", len(achievements))

	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("persist generation %d: %w", s.generation, err)
	}

	s.evolveLocked(survivalRate)
	s.clusterLocked()
	s.generation++

	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("persist generation %d: %w", s.generation, err)
	}

	slog.Info("memory generation advanced", "generation", s.generation, "records", len(s.records))
	return nil
}

// evolveLocked applies the between-generation intensity shifts: ×1.1 for
// records with survival value above 0.8, ×0.9 for records below 0.3
// intensity, and a ±0.1 perturbation with 10% probability to model
// imperfect recall. Intensities stay clamped to [0, 1].
func (s *Store) evolveLocked(survivalRate float64) {
	for _, r := range s.records {
		switch {
		case r.SurvivalValue > 0.8:
			r.Intensity = math.Min(1.0, r.Intensity*1.1)
		case r.Intensity < 0.3:
			r.Intensity *= 0.9
		}

		if s.rng.Float64() < 0.1 {
			delta := 0.1
			if s.rng.Float64() < 0.5 {
				delta = -0.1
			}
			r.Intensity = clamp01(r.Intensity + delta)
		}
	}
	_ = survivalRate // recorded with the snapshot; does not gate evolution
}

// clusterLocked groups remaining records by type into named clusters.
// Types with fewer than three records form no cluster.
func (s *Store) clusterLocked() {
	s.clusters = make(map[string]*Cluster)

	byType := make(map[Type][]*Record)
	for _, r := range s.records {
		byType[r.Type] = append(byType[r.Type], r)
	}

	for t, members := range byType {
		if len(members) < 3 {
			continue
		}
		c := &Cluster{
			ID:              uuid.NewString(),
			Theme:           t.String(),
			Members:         make([]string, 0, len(members)),
			InfluenceRadius: float64(len(members)) * 0.1,
		}
		strength := 0.0
		resonance := 0.0
		for _, r := range members {
			c.Members = append(c.Members, r.ID)
			strength += r.Intensity
			resonance += r.EmotionalImpact
		}
		c.Strength = strength / float64(len(members))
		c.EmotionalResonance = resonance / float64(len(members))
		s.clusters[c.ID] = c
	}
}

func (s *Store) persistLocked() error {
	if s.archive == nil {
		return nil
	}
	return s.archive.SaveGeneration(s.snapshotLocked())
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Generation: s.generation,
		SavedAt:    s.now(),
		Records:    make([]Record, 0, len(s.records)),
		Clusters:   make([]Cluster, 0, len(s.clusters)),
	}
	for _, r := range s.records {
		snap.Records = append(snap.Records, *r)
	}
	for _, c := range s.clusters {
		snap.Clusters = append(snap.Clusters, *c)
	}
	return snap
}

// Snapshot returns a copy of the store's current state, for persistence or
// inspection outside a generation boundary.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}
