package persistence

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/calder-games/npcmind/internal/memory"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "memories.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSnapshot(generation int) memory.Snapshot {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return memory.Snapshot{
		Generation: generation,
		SavedAt:    at,
		Records: []memory.Record{
			{
				ID:              "rec-1",
				Type:            memory.CombatExperience,
				Content:         memory.Content{memory.KeyVictory: memory.TrueValue},
				Intensity:       0.8,
				Generation:      generation,
				CreatedAt:       at,
				LastAccessed:    at,
				AccessCount:     2,
				EmotionalImpact: 0.6,
				SurvivalValue:   1.0,
			},
		},
		Clusters: []memory.Cluster{
			{
				ID:       "cl-1",
				Theme:    "combat_experience",
				Members:  []string{"rec-1"},
				Strength: 0.8,
			},
		},
	}
}

func TestSaveAndLoadLatestGeneration(t *testing.T) {
	db := openTestDB(t)

	for gen := 1; gen <= 3; gen++ {
		if err := db.SaveGeneration(sampleSnapshot(gen)); err != nil {
			t.Fatalf("save generation %d: %v", gen, err)
		}
	}

	snap, ok, err := db.LoadLatest()
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if !ok {
		t.Fatal("no snapshot found after saves")
	}
	if snap.Generation != 3 {
		t.Errorf("generation = %d, want 3", snap.Generation)
	}
	if len(snap.Records) != 1 || snap.Records[0].ID != "rec-1" {
		t.Errorf("records = %+v, want the saved record back", snap.Records)
	}
	if snap.Records[0].Content[memory.KeyVictory] != memory.TrueValue {
		t.Error("record content lost in round trip")
	}
	if len(snap.Clusters) != 1 || snap.Clusters[0].Members[0] != "rec-1" {
		t.Errorf("clusters = %+v, want the saved cluster back", snap.Clusters)
	}
}

func TestLoadLatestEmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.LoadLatest()
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if ok {
		t.Error("empty database reported a snapshot")
	}
}

func TestSaveGenerationUpserts(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveGeneration(sampleSnapshot(1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap := sampleSnapshot(1)
	snap.Records = nil
	if err := db.SaveGeneration(snap); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, ok, err := db.LoadLatest()
	if err != nil || !ok {
		t.Fatalf("load latest: ok=%v err=%v", ok, err)
	}
	if len(got.Records) != 0 {
		t.Errorf("records = %d, want 0 from the overwriting save", len(got.Records))
	}
	gens, err := db.Generations()
	if err != nil {
		t.Fatalf("generations: %v", err)
	}
	if len(gens) != 1 || gens[0] != 1 {
		t.Errorf("generations = %v, want [1]", gens)
	}
}

func TestSaveGenerationWritesIndex(t *testing.T) {
	db := openTestDB(t)

	for gen := 1; gen <= 2; gen++ {
		if err := db.SaveGeneration(sampleSnapshot(gen)); err != nil {
			t.Fatalf("save generation %d: %v", gen, err)
		}
	}

	if v, err := db.GetMeta(MetaCurrentGeneration); err != nil || v != "2" {
		t.Errorf("current generation meta = %q err=%v, want 2", v, err)
	}
	recs, err := db.GetMeta(MetaRecordIDs)
	if err != nil {
		t.Fatalf("record id index: %v", err)
	}
	var recordIDs []string
	if err := json.Unmarshal([]byte(recs), &recordIDs); err != nil {
		t.Fatalf("decode record id index %q: %v", recs, err)
	}
	if len(recordIDs) != 1 || recordIDs[0] != "rec-1" {
		t.Errorf("record id index = %v, want [rec-1]", recordIDs)
	}
	clus, err := db.GetMeta(MetaClusterIDs)
	if err != nil {
		t.Fatalf("cluster id index: %v", err)
	}
	var clusterIDs []string
	if err := json.Unmarshal([]byte(clus), &clusterIDs); err != nil {
		t.Fatalf("decode cluster id index %q: %v", clus, err)
	}
	if len(clusterIDs) != 1 || clusterIDs[0] != "cl-1" {
		t.Errorf("cluster id index = %v, want [cl-1]", clusterIDs)
	}
}

func TestPruneBefore(t *testing.T) {
	db := openTestDB(t)
	for gen := 1; gen <= 4; gen++ {
		if err := db.SaveGeneration(sampleSnapshot(gen)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := db.PruneBefore(3); err != nil {
		t.Fatalf("prune: %v", err)
	}
	gens, err := db.Generations()
	if err != nil {
		t.Fatalf("generations: %v", err)
	}
	if len(gens) != 2 || gens[0] != 3 || gens[1] != 4 {
		t.Errorf("generations after prune = %v, want [3 4]", gens)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if v, err := db.GetMeta("survival_rate"); err != nil || v != "" {
		t.Fatalf("unset meta = %q err=%v, want empty and nil", v, err)
	}
	if err := db.SaveMeta("survival_rate", "0.72"); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	if err := db.SaveMeta("survival_rate", "0.81"); err != nil {
		t.Fatalf("overwrite meta: %v", err)
	}
	v, err := db.GetMeta("survival_rate")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if v != "0.81" {
		t.Errorf("meta = %q, want 0.81", v)
	}
}
