package fleet

import (
	"sync"
	"time"

	"github.com/calder-games/npcmind/internal/agent"
)

// messageTTL is how long a group message stays visible.
const messageTTL = 5 * time.Second

// Message is one broadcast within a group.
type Message struct {
	From  uint64    `json:"from"`
	Topic string    `json:"topic"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}

// Group coordinates a set of agents: the member with the strongest
// leadership trait leads, and the group's goals mirror the leader's plan.
type Group struct {
	mu      sync.Mutex
	name    string
	members map[uint64]*agent.Core
	leader  uint64
	goals   []agent.PlannedAction
	msgs    []Message
}

func newGroup(name string) *Group {
	return &Group{name: name, members: make(map[uint64]*agent.Core)}
}

// RegisterInGroup registers an entity and joins it to a group in one step.
// An empty group name is plain registration.
func (m *Manager) RegisterInGroup(e agent.Entity, group string) (uint64, error) {
	id, err := m.Register(e)
	if err != nil {
		return 0, err
	}
	if group != "" {
		if err := m.JoinGroup(id, group); err != nil {
			return id, err
		}
	}
	return id, nil
}

// JoinGroup adds an agent to the named group, creating it on first use.
// An agent belongs to at most one group; joining another moves it.
func (m *Manager) JoinGroup(id uint64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.agents[id]
	if !ok {
		return ErrUnknownAgent
	}
	if e.group == name {
		return nil
	}
	if e.group != "" {
		if old, ok := m.groups[e.group]; ok {
			old.remove(id)
			if old.size() == 0 {
				delete(m.groups, e.group)
			}
		}
	}
	g, ok := m.groups[name]
	if !ok {
		g = newGroup(name)
		m.groups[name] = g
	}
	g.add(id, e.core)
	e.group = name
	return nil
}

// LeaveGroup removes an agent from its group, if any.
func (m *Manager) LeaveGroup(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.agents[id]
	if !ok {
		return ErrUnknownAgent
	}
	if e.group == "" {
		return nil
	}
	if g, ok := m.groups[e.group]; ok {
		g.remove(id)
		if g.size() == 0 {
			delete(m.groups, e.group)
		}
	}
	e.group = ""
	return nil
}

// Group returns the named group, nil when absent.
func (m *Manager) Group(name string) *Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groups[name]
}

func (g *Group) add(id uint64, core *agent.Core) {
	g.mu.Lock()
	g.members[id] = core
	g.mu.Unlock()
}

func (g *Group) remove(id uint64) {
	g.mu.Lock()
	delete(g.members, id)
	if g.leader == id {
		g.leader = 0
	}
	g.mu.Unlock()
}

func (g *Group) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Leader returns the current leader id, 0 before the first update.
func (g *Group) Leader() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leader
}

// Goals returns the group's current objectives.
func (g *Group) Goals() []agent.PlannedAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]agent.PlannedAction, len(g.goals))
	copy(out, g.goals)
	return out
}

// Broadcast posts a message visible to the group until it expires.
func (g *Group) Broadcast(from uint64, topic, body string, now time.Time) {
	g.mu.Lock()
	g.msgs = append(g.msgs, Message{From: from, Topic: topic, Body: body, At: now})
	g.mu.Unlock()
}

// Messages returns the messages still live at now.
func (g *Group) Messages(now time.Time) []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked(now)
	out := make([]Message, len(g.msgs))
	copy(out, g.msgs)
	return out
}

func (g *Group) expireLocked(now time.Time) {
	live := g.msgs[:0]
	for _, msg := range g.msgs {
		if now.Sub(msg.At) < messageTTL {
			live = append(live, msg)
		}
	}
	g.msgs = live
}

// update re-elects the leader, mirrors its plan as the group goals and
// pulls followers onto the leader's priority.
func (g *Group) update(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireLocked(now)
	if len(g.members) == 0 {
		return
	}

	best := -1.0
	leader := uint64(0)
	for id, core := range g.members {
		l := core.Personality().Leadership
		if l > best || (l == best && id < leader) {
			best = l
			leader = id
		}
	}
	g.leader = leader

	lead := g.members[leader]
	snap := lead.Snapshot()
	g.goals = append(g.goals[:0], snap.Plan...)

	priority := lead.Priority()
	for id, core := range g.members {
		if id == leader {
			continue
		}
		core.SetPriority(priority)
		if len(g.goals) > 0 {
			core.EnterFormation()
		}
	}
}
