// Package memory provides the generational memory store: timestamped,
// intensity-weighted experience records that persist across play sessions
// and bias action selection.
package memory

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies what kind of experience a record holds.
type Type uint8

const (
	CombatExperience Type = iota
	EnemyPatterns
	ItemUsage
	EnvironmentalHazard
	SocialInteraction
	EmotionalTrauma
	EvolutionarySuccess
	SurvivalStrategy
)

var typeNames = [...]string{
	"combat_experience",
	"enemy_patterns",
	"item_usage",
	"environmental_hazard",
	"social_interaction",
	"emotional_trauma",
	"evolutionary_success",
	"survival_strategy",
}

// AllTypes lists every memory type, for unfiltered relevance queries.
var AllTypes = []Type{
	CombatExperience, EnemyPatterns, ItemUsage, EnvironmentalHazard,
	SocialInteraction, EmotionalTrauma, EvolutionarySuccess, SurvivalStrategy,
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Content is the structured payload of a record. Well-known keys below are
// the ones survival-value and influence heuristics inspect; anything else
// is carried along opaquely.
type Content map[string]string

// Well-known content keys.
const (
	KeyVictory           = "victory"
	KeyCriticalSituation = "critical_situation"
	KeyEnemyType         = "enemy_type"
	KeyNearDeath         = "near_death"
	KeySuccessfulAction  = "successful_action"
	KeyFailedAction      = "failed_action"
	KeyEffectiveCounter  = "effective_counter"
	KeyDangerousAction   = "dangerous_action"
	KeyTrigger           = "trigger"
)

// TrueValue marks a boolean content key as set.
const TrueValue = "true"

// Record is one remembered experience.
type Record struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	Content         Content   `json:"content"`
	Intensity       float64   `json:"intensity"` // always in [0, 1]
	Generation      int       `json:"generation"`
	CreatedAt       time.Time `json:"created_at"`
	LastAccessed    time.Time `json:"last_accessed"`
	AccessCount     int       `json:"access_count"`
	EmotionalImpact float64   `json:"emotional_impact"`
	SurvivalValue   float64   `json:"survival_value"`
}

// Cluster groups same-type records formed at a generation boundary.
type Cluster struct {
	ID                 string   `json:"id"`
	Theme              string   `json:"theme"`
	Members            []string `json:"members"` // record IDs
	Strength           float64  `json:"strength"`
	InfluenceRadius    float64  `json:"influence_radius"`
	EmotionalResonance float64  `json:"emotional_resonance"`
}

// Snapshot is the persisted form of one generation's state.
type Snapshot struct {
	Generation int       `json:"generation"`
	SavedAt    time.Time `json:"saved_at"`
	Records    []Record  `json:"records"`
	Clusters   []Cluster `json:"clusters"`
}

// Archive is the durable keyed store a Store persists generations into.
// Implemented by the persistence package; nil disables persistence.
type Archive interface {
	SaveGeneration(snap Snapshot) error
	LoadLatest() (Snapshot, bool, error)
}

// Options tune a Store. Zero values take the documented defaults.
type Options struct {
	MaxPerType      int     // per-type record cap (default 100)
	FusionThreshold float64 // similarity above which records fuse (default 0.8)
	RelevanceFloor  float64 // minimum relevance returned (default 0.3)

	Now  func() time.Time // test clock; defaults to time.Now
	Rand *rand.Rand       // perturbation source; defaults to a time-seeded one
}

// Store holds the process-wide generational memory. Reads take the same
// lock as writes: pruning and fusion restructure shared maps, so a single
// mutex guards everything.
type Store struct {
	mu         sync.Mutex
	records    map[string]*Record
	clusters   map[string]*Cluster
	generation int

	maxPerType      int
	fusionThreshold float64
	relevanceFloor  float64

	archive Archive
	now     func() time.Time
	rng     *rand.Rand
}

// NewStore creates a Store, restoring the latest persisted generation from
// archive when one exists. Malformed persisted data is never fatal: the
// store falls back to a fresh empty state with a warning.
func NewStore(archive Archive, opts Options) *Store {
	if opts.MaxPerType <= 0 {
		opts.MaxPerType = 100
	}
	if opts.FusionThreshold <= 0 {
		opts.FusionThreshold = 0.8
	}
	if opts.RelevanceFloor <= 0 {
		opts.RelevanceFloor = 0.3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Store{
		records:         make(map[string]*Record),
		clusters:        make(map[string]*Cluster),
		generation:      1,
		maxPerType:      opts.MaxPerType,
		fusionThreshold: opts.FusionThreshold,
		relevanceFloor:  opts.RelevanceFloor,
		archive:         archive,
		now:             opts.Now,
		rng:             opts.Rand,
	}

	if archive != nil {
		snap, ok, err := archive.LoadLatest()
		switch {
		case err != nil:
			slog.Warn("generational memory unreadable, starting fresh", "error", err)
		case ok:
			s.restore(snap)
			slog.Info("generational memory restored",
				"generation", s.generation, "records", len(s.records), "clusters", len(s.clusters))
		}
	}
	return s
}

func (s *Store) restore(snap Snapshot) {
	s.generation = snap.Generation
	if s.generation < 1 {
		s.generation = 1
	}
	for i := range snap.Records {
		r := snap.Records[i]
		r.Intensity = clamp01(r.Intensity)
		s.records[r.ID] = &r
	}
	for i := range snap.Clusters {
		c := snap.Clusters[i]
		s.clusters[c.ID] = &c
	}
}

// Generation returns the current generation number.
func (s *Store) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Add stores a new experience and returns its id. The record's survival
// value is derived from type-specific heuristics, the per-type cap is
// enforced (weakest records evicted first), and the new record is fused
// with a sufficiently similar existing one when possible.
func (s *Store) Add(t Type, content Content, intensity, emotionalImpact float64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := &Record{
		ID:              uuid.NewString(),
		Type:            t,
		Content:         content,
		Intensity:       clamp01(intensity),
		Generation:      s.generation,
		CreatedAt:       now,
		LastAccessed:    now,
		AccessCount:     1,
		EmotionalImpact: emotionalImpact,
		SurvivalValue:   survivalValue(t, content),
	}
	s.records[rec.ID] = rec

	s.enforceCap(t)

	if fused := s.tryFuse(rec); fused != "" {
		return fused
	}
	return rec.ID
}

// survivalValue scores how useful a memory is for staying alive.
func survivalValue(t Type, content Content) float64 {
	value := 0.5
	switch t {
	case CombatExperience:
		value = 0.8
		if content[KeyVictory] == TrueValue {
			value += 0.2
		}
		if content[KeyCriticalSituation] == TrueValue {
			value += 0.1
		}
	case EnemyPatterns:
		value = 0.9
		if content[KeyEnemyType] == "boss" {
			value += 0.1
		}
	case EmotionalTrauma:
		value = 0.7
		if content[KeyNearDeath] == TrueValue {
			value += 0.3
		}
	}
	return math.Min(1.0, value)
}

// enforceCap evicts the lowest-intensity records of t beyond maxPerType.
func (s *Store) enforceCap(t Type) {
	var ofType []*Record
	for _, r := range s.records {
		if r.Type == t {
			ofType = append(ofType, r)
		}
	}
	if len(ofType) <= s.maxPerType {
		return
	}
	sort.Slice(ofType, func(i, j int) bool { return ofType[i].Intensity < ofType[j].Intensity })
	for _, r := range ofType[:len(ofType)-s.maxPerType] {
		delete(s.records, r.ID)
	}
}

// tryFuse merges rec with the first same-type record above the similarity
// threshold. Returns the fused record's id, or "" if nothing fused.
func (s *Store) tryFuse(rec *Record) string {
	for _, other := range s.records {
		if other.ID == rec.ID || other.Type != rec.Type {
			continue
		}
		if similarity(rec, other) > s.fusionThreshold {
			return s.fuse(rec, other)
		}
	}
	return ""
}

// similarity scores two records: 0.3 for type match, up to 0.4 for content
// key/value overlap, 0.3 for creation within an hour of each other.
func similarity(a, b *Record) float64 {
	sim := 0.0
	if a.Type == b.Type {
		sim += 0.3
	}

	common := 0
	matching := 0
	for k, va := range a.Content {
		vb, ok := b.Content[k]
		if !ok {
			continue
		}
		common++
		if va == vb {
			matching++
		}
	}
	if common > 0 {
		sim += float64(matching) / float64(common) * 0.4
	}

	if a.CreatedAt.Sub(b.CreatedAt).Abs() < time.Hour {
		sim += 0.3
	}
	return sim
}

// fuse replaces a and b with one reinforced record: merged content, max
// intensity scaled by 1.2 (capped at 1), averaged emotional impact, summed
// access counts.
func (s *Store) fuse(a, b *Record) string {
	content := make(Content, len(a.Content)+len(b.Content))
	for k, v := range b.Content {
		content[k] = v
	}
	for k, v := range a.Content {
		content[k] = v
	}

	now := s.now()
	fused := &Record{
		ID:              uuid.NewString(),
		Type:            a.Type,
		Content:         content,
		Intensity:       math.Min(1.0, math.Max(a.Intensity, b.Intensity)*1.2),
		Generation:      s.generation,
		CreatedAt:       now,
		LastAccessed:    now,
		AccessCount:     a.AccessCount + b.AccessCount,
		EmotionalImpact: (a.EmotionalImpact + b.EmotionalImpact) / 2,
		SurvivalValue:   math.Max(a.SurvivalValue, b.SurvivalValue),
	}
	delete(s.records, a.ID)
	delete(s.records, b.ID)
	s.records[fused.ID] = fused

	slog.Debug("memories fused", "type", fused.Type.String(), "intensity", fused.Intensity)
	return fused.ID
}

// Stats summarizes the store for telemetry consumers.
type Stats struct {
	TotalRecords     int            `json:"total_records"`
	Generation       int            `json:"generation"`
	PerType          map[string]int `json:"per_type"`
	TotalClusters    int            `json:"total_clusters"`
	AverageIntensity float64        `json:"average_intensity"`
}

// Statistics reports aggregate store state.
func (s *Store) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		TotalRecords:  len(s.records),
		Generation:    s.generation,
		PerType:       make(map[string]int, len(AllTypes)),
		TotalClusters: len(s.clusters),
	}
	for _, t := range AllTypes {
		st.PerType[t.String()] = 0
	}
	total := 0.0
	for _, r := range s.records {
		st.PerType[r.Type.String()]++
		total += r.Intensity
	}
	if len(s.records) > 0 {
		st.AverageIntensity = total / float64(len(s.records))
	}
	return st
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
