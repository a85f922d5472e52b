// Package fleet schedules decision updates across the registered agent
// population: candidate selection by priority and staleness, update-mode
// tiering by distance and rank, group coordination and spatial indexing.
package fleet

import (
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/calder-games/npcmind/internal/agent"
	"github.com/calder-games/npcmind/internal/config"
	"github.com/calder-games/npcmind/internal/emotion"
	"github.com/calder-games/npcmind/internal/memory"
	"github.com/calder-games/npcmind/internal/spatial"
	"github.com/calder-games/npcmind/internal/telemetry"
)

var (
	// ErrAlreadyRegistered reports a second Register for the same entity.
	ErrAlreadyRegistered = errors.New("fleet: entity already registered")
	// ErrUnknownAgent reports an operation on an id the manager does not hold.
	ErrUnknownAgent = errors.New("fleet: unknown agent")
)

// entry is one managed agent.
type entry struct {
	id     uint64
	core   *agent.Core
	entity agent.Entity
	active bool
	group  string
}

// Options wires a Manager to its shared services. Emotions, Memories and
// Advisor are optional and flow through to every created core.
type Options struct {
	Config   config.FleetConfig
	Decision config.DecisionConfig
	Log      *slog.Logger
	Rng      *rand.Rand
	Emotions *emotion.Layer
	Memories *memory.Store
	Advisor  agent.Advisor
	Now      func() time.Time
}

// Manager owns the agent registry and runs the scheduling tick.
type Manager struct {
	mu sync.RWMutex

	cfg      config.FleetConfig
	decision config.DecisionConfig
	log      *slog.Logger
	rng      *rand.Rand
	now      func() time.Time

	emotions *emotion.Layer
	memories *memory.Store
	advisor  agent.Advisor

	nextID   uint64
	agents   map[uint64]*entry
	byEntity map[agent.Entity]uint64
	groups   map[string]*Group
	grid     *spatial.Grid
	perfMu   sync.Mutex
	perf     *telemetry.Collector

	focusX, focusY float64
	hasFocus       bool
	lastStatsLog   time.Time
	lastTick       time.Duration
	lastUpdated    int
}

// NewManager builds an empty fleet manager.
func NewManager(opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Rng == nil {
		opts.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cell := opts.Config.CellSize
	if cell <= 0 {
		cell = spatial.DefaultCellSize
	}
	return &Manager{
		cfg:      opts.Config,
		decision: opts.Decision,
		log:      opts.Log,
		rng:      opts.Rng,
		now:      opts.Now,
		emotions: opts.Emotions,
		memories: opts.Memories,
		advisor:  opts.Advisor,
		agents:   make(map[uint64]*entry),
		byEntity: make(map[agent.Entity]uint64),
		groups:   make(map[string]*Group),
		grid:     spatial.NewGrid(cell),
		perf:     telemetry.NewCollector(64),
	}
}

// Register creates a decision core for the entity and returns its id.
// Registering the same entity twice fails with ErrAlreadyRegistered.
func (m *Manager) Register(e agent.Entity) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.byEntity[e]; dup {
		return 0, ErrAlreadyRegistered
	}
	m.nextID++
	id := m.nextID

	core := agent.NewCore(id, e, agent.Deps{
		Config:    m.decision,
		Log:       m.log,
		Rng:       rand.New(rand.NewSource(m.rng.Int63())),
		Emotions:  m.emotions,
		Memories:  m.memories,
		Advisor:   m.advisor,
		Neighbors: m.QueryNearby,
		Now:       m.now,
	})
	m.agents[id] = &entry{id: id, core: core, entity: e, active: true}
	m.byEntity[e] = id
	if p, ok := e.(agent.Positioned); ok {
		x, y := p.Position()
		m.grid.Insert(id, x, y)
	}
	m.log.Debug("agent registered", "agent", id, "total", len(m.agents))
	return id, nil
}

// Unregister removes an agent and all its state.
func (m *Manager) Unregister(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id)
}

func (m *Manager) removeLocked(id uint64) error {
	e, ok := m.agents[id]
	if !ok {
		return ErrUnknownAgent
	}
	delete(m.agents, id)
	delete(m.byEntity, e.entity)
	m.grid.Remove(id)
	if e.group != "" {
		if g, ok := m.groups[e.group]; ok {
			g.remove(id)
			if g.size() == 0 {
				delete(m.groups, e.group)
			}
		}
	}
	if m.emotions != nil {
		m.emotions.Forget(id)
	}
	return nil
}

// SetActive pauses or resumes scheduling for one agent.
func (m *Manager) SetActive(id uint64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.agents[id]
	if !ok {
		return ErrUnknownAgent
	}
	e.active = active
	return nil
}

// SetPriority overrides an agent's scheduling priority until its next full
// assessment.
func (m *Manager) SetPriority(id uint64, p agent.Priority) error {
	m.mu.RLock()
	e, ok := m.agents[id]
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownAgent
	}
	e.core.SetPriority(p)
	return nil
}

// SetFocus sets the reference point update-mode tiering measures distance
// from, typically the player or camera.
func (m *Manager) SetFocus(x, y float64) {
	m.mu.Lock()
	m.focusX, m.focusY = x, y
	m.hasFocus = true
	m.mu.Unlock()
}

// Core returns the decision core for an agent.
func (m *Manager) Core(id uint64) (*agent.Core, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.agents[id]
	if !ok {
		return nil, ErrUnknownAgent
	}
	return e.core, nil
}

// QueryNearby resolves live positioned agents within radius of a point.
// It backs the NeighborFunc handed to every core.
func (m *Manager) QueryNearby(x, y, radius float64) []agent.Neighbor {
	return m.QueryNearbyFaction(x, y, radius, "")
}

// QueryNearbyFaction restricts QueryNearby to a single faction. An empty
// faction matches everyone.
func (m *Manager) QueryNearbyFaction(x, y, radius float64, faction string) []agent.Neighbor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.grid.QueryRadius(x, y, radius)
	out := make([]agent.Neighbor, 0, len(ids))
	for id := range ids {
		e, ok := m.agents[id]
		if !ok || !e.entity.Alive() {
			continue
		}
		p, ok := e.entity.(agent.Positioned)
		if !ok {
			continue
		}
		nx, ny := p.Position()
		if math.Hypot(nx-x, ny-y) > radius {
			continue
		}
		n := agent.Neighbor{ID: id, X: nx, Y: ny}
		if f, ok := e.entity.(agent.Factioned); ok {
			n.Faction = f.Faction()
		}
		if faction != "" && n.Faction != faction {
			continue
		}
		if cb, ok := e.entity.(agent.Combatant); ok {
			n.Level = cb.Level()
		}
		if v, ok := e.entity.(agent.Vital); ok {
			n.Health, n.MaxHealth = v.Health()
		}
		out = append(out, n)
	}
	return out
}

// candidate is one agent eligible for update this tick.
type candidate struct {
	entry     *entry
	mode      agent.UpdateMode
	priority  agent.Priority
	staleness time.Duration
}

// Tick runs one scheduling pass: purge dead agents, select candidates,
// update them with per-agent fault isolation, update groups, then rebuild
// the spatial index.
func (m *Manager) Tick() {
	now := m.now()
	m.perfMu.Lock()
	defer m.perfMu.Unlock()
	m.perf.StartTick()

	m.perf.StartPhase(telemetry.PhasePurge)
	m.purgeDead()

	m.perf.StartPhase(telemetry.PhaseSelect)
	candidates := m.selectCandidates(now)

	m.perf.StartPhase(telemetry.PhaseUpdate)
	for _, c := range candidates {
		m.updateOne(c, now)
	}

	m.perf.StartPhase(telemetry.PhaseGroups)
	m.updateGroups(now)

	m.perf.StartPhase(telemetry.PhaseSpatial)
	m.rebuildGrid()

	m.mu.Lock()
	m.lastTick = m.perf.EndTick(len(candidates))
	m.lastUpdated = len(candidates)
	interval := time.Duration(m.cfg.StatsLogInterval * float64(time.Second))
	logStats := interval > 0 && now.Sub(m.lastStatsLog) >= interval
	if logStats {
		m.lastStatsLog = now
	}
	m.mu.Unlock()

	if logStats {
		m.perf.Stats().Log(m.log)
	}
}

func (m *Manager) purgeDead() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.agents {
		if !e.entity.Alive() {
			m.removeLocked(id)
			m.log.Debug("agent purged", "agent", id)
		}
	}
}

// selectCandidates picks the agents due for an update, ordered by priority
// then staleness, capped at the configured active-set size.
func (m *Manager) selectCandidates(now time.Time) []candidate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]candidate, 0, len(m.agents))
	for _, e := range m.agents {
		if !e.active || !e.entity.Alive() {
			continue
		}
		mode := m.modeForLocked(e)
		last := e.core.LastUpdate()
		staleness := now.Sub(last)
		if last.IsZero() {
			staleness = time.Duration(math.MaxInt64)
		}
		if staleness < m.intervalFor(mode) {
			continue
		}
		candidates = append(candidates, candidate{
			entry:     e,
			mode:      mode,
			priority:  e.core.Priority(),
			staleness: staleness,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		if candidates[i].staleness != candidates[j].staleness {
			return candidates[i].staleness > candidates[j].staleness
		}
		return candidates[i].entry.id < candidates[j].entry.id
	})

	if limit := m.cfg.MaxActiveEntities; limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// modeForLocked classifies the update mode by rank and distance to focus.
// Bosses always run full; with no focus set everyone runs full.
func (m *Manager) modeForLocked(e *entry) agent.UpdateMode {
	rank := agent.RankNormal
	if c, ok := e.entity.(agent.Classified); ok {
		rank = c.Rank()
	}
	if rank == agent.RankBoss {
		return agent.UpdateFull
	}
	if !m.hasFocus {
		return agent.UpdateFull
	}

	d := math.Inf(1)
	if p, ok := e.entity.(agent.Positioned); ok {
		x, y := p.Position()
		d = math.Hypot(x-m.focusX, y-m.focusY)
	}
	if rank == agent.RankElite {
		if d < m.cfg.FullRange*2 {
			return agent.UpdateFull
		}
		return agent.UpdateLight
	}
	switch {
	case d < m.cfg.FullRange:
		return agent.UpdateFull
	case d < m.cfg.LightRange:
		return agent.UpdateLight
	default:
		return agent.UpdateMinimal
	}
}

func (m *Manager) intervalFor(mode agent.UpdateMode) time.Duration {
	var secs float64
	switch mode {
	case agent.UpdateFull:
		secs = m.cfg.FullInterval
	case agent.UpdateLight:
		secs = m.cfg.LightInterval
	default:
		secs = m.cfg.MinimalInterval
	}
	return time.Duration(secs * float64(time.Second))
}

// updateOne runs a single core update. A panic in one agent is contained
// and logged; the rest of the tick proceeds.
func (m *Manager) updateOne(c candidate, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("agent update failed",
				"agent", c.entry.id, "mode", c.mode.String(),
				"panic", r, "stack", string(debug.Stack()))
		}
	}()
	c.entry.core.Update(now, c.mode)
}

func (m *Manager) updateGroups(now time.Time) {
	m.mu.RLock()
	groups := make([]*Group, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, g)
	}
	m.mu.RUnlock()

	for _, g := range groups {
		g.update(now)
	}
}

func (m *Manager) rebuildGrid() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grid.Clear()
	for id, e := range m.agents {
		if p, ok := e.entity.(agent.Positioned); ok {
			x, y := p.Position()
			m.grid.Insert(id, x, y)
		}
	}
}

// PerformanceStats summarizes the manager for logging and the API.
type PerformanceStats struct {
	TotalAgents  int           `json:"total_agents"`
	ActiveAgents int           `json:"active_agents"`
	Groups       int           `json:"groups"`
	LastTick     time.Duration `json:"last_tick"`
	LastUpdated  int           `json:"last_updated"`
}

// Stats returns current registry counts and last-tick timing.
func (m *Manager) Stats() PerformanceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	active := 0
	for _, e := range m.agents {
		if e.active {
			active++
		}
	}
	return PerformanceStats{
		TotalAgents:  len(m.agents),
		ActiveAgents: active,
		Groups:       len(m.groups),
		LastTick:     m.lastTick,
		LastUpdated:  m.lastUpdated,
	}
}

// PerfStats exposes the rolling timing window for the API layer.
func (m *Manager) PerfStats() telemetry.Stats {
	m.perfMu.Lock()
	defer m.perfMu.Unlock()
	return m.perf.Stats()
}

// Snapshots returns the observable state of every agent, ordered by id.
func (m *Manager) Snapshots() []agent.Snapshot {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.agents))
	for _, e := range m.agents {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	out := make([]agent.Snapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.core.Snapshot())
	}
	return out
}
