package sandbox

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/calder-games/npcmind/internal/agent"
	"github.com/calder-games/npcmind/internal/emotion"
	"github.com/calder-games/npcmind/internal/fleet"
	"github.com/calder-games/npcmind/internal/memory"
)

// World owns the sandbox creatures and applies environment effects between
// fleet ticks. It registers every spawned creature with the fleet manager so
// the scheduler drives their decisions.
type World struct {
	mu        sync.Mutex
	field     *HazardField
	rng       *rand.Rand
	log       *slog.Logger
	mgr       *fleet.Manager
	emotions  *emotion.Layer
	memories  *memory.Store
	creatures map[uint64]*Creature
	extent    float64
}

// Options configures a sandbox world.
type Options struct {
	Seed     int64
	Extent   float64 // half-width of the square play area
	Log      *slog.Logger
	Fleet    *fleet.Manager
	Emotions *emotion.Layer
	Memories *memory.Store
}

func NewWorld(opts Options) *World {
	if opts.Extent <= 0 {
		opts.Extent = 500
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &World{
		field:     NewHazardField(opts.Seed),
		rng:       rand.New(rand.NewSource(opts.Seed)),
		log:       opts.Log,
		mgr:       opts.Fleet,
		emotions:  opts.Emotions,
		memories:  opts.Memories,
		creatures: make(map[uint64]*Creature),
		extent:    opts.Extent,
	}
}

// Spawn creates a creature at a random safe position and registers it with
// the fleet. Bosses and elites get proportionally more health.
func (w *World) Spawn(name, faction string, rank agent.Rank, level int) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	x, y := w.safeSpot()
	maxHealth := 80 + float64(level)*20
	switch rank {
	case agent.RankElite:
		maxHealth *= 1.5
	case agent.RankBoss:
		maxHealth *= 3
	}

	c := &Creature{
		name:    name,
		faction: faction,
		rank:    rank,
		level:   level,
		attrs: agent.Attributes{
			Strength:     4 + w.rng.Float64()*12,
			Dexterity:    4 + w.rng.Float64()*12,
			Intelligence: 4 + w.rng.Float64()*12,
			Charisma:     4 + w.rng.Float64()*12,
			Vitality:     4 + w.rng.Float64()*12,
		},
		skills:    []string{"bite", "dodge"},
		x:         x,
		y:         y,
		health:    maxHealth,
		maxHealth: maxHealth,
		world:     w,
	}

	id, err := w.mgr.RegisterInGroup(c, faction)
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", name, err)
	}
	w.creatures[id] = c
	w.log.Debug("spawned creature", "id", id, "name", name,
		"faction", faction, "rank", rank.String(), "x", x, "y", y)
	return id, nil
}

// safeSpot finds a random position outside hazardous regions, falling back
// to the last candidate after a bounded number of tries.
func (w *World) safeSpot() (float64, float64) {
	var x, y float64
	for i := 0; i < 20; i++ {
		x = (w.rng.Float64()*2 - 1) * w.extent
		y = (w.rng.Float64()*2 - 1) * w.extent
		if w.field.Severity(x, y) < HazardThreshold {
			return x, y
		}
	}
	return x, y
}

// Step advances creature movement and applies hazard damage. Call it once
// per simulation frame, before the fleet tick.
func (w *World) Step() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, c := range w.creatures {
		if !c.Alive() {
			delete(w.creatures, id)
			continue
		}
		c.step()

		x, y := c.Position()
		dmg := w.field.DamageAt(x, y)
		if dmg <= 0 {
			continue
		}
		c.damage(dmg)
		sev := w.field.Severity(x, y)
		if w.emotions != nil {
			w.emotions.ProcessTrigger(id, "environmental_hazard", map[string]float64{
				"hazard_damage":     dmg * 5,
				"escape_difficulty": sev * 100,
			})
		}
		if w.memories != nil {
			w.memories.Add(memory.EnvironmentalHazard, memory.Content{
				memory.KeyTrigger:         "environmental_hazard",
				memory.KeyDangerousAction: "explore",
			}, sev, dmg/15)
		}
		if !c.Alive() {
			w.log.Info("creature died to hazard", "id", id, "name", c.Name())
		}
	}
}

// resolveStrike applies attack damage from one creature to another and
// records the combat outcome.
func (w *World) resolveStrike(attacker *Creature, targetID uint64) {
	w.mu.Lock()
	target, ok := w.creatures[targetID]
	w.mu.Unlock()
	if !ok || !target.Alive() {
		return
	}

	dmg := float64(attacker.level)*strikeBaseDamage + attacker.attrs.Strength/4
	target.damage(dmg)

	if !target.Alive() && w.memories != nil {
		w.memories.Add(memory.CombatExperience, memory.Content{
			memory.KeyVictory:   memory.TrueValue,
			memory.KeyEnemyType: target.faction,
		}, 0.6, 0.4)
	}
}

// Alive returns the number of living creatures.
func (w *World) Alive() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.creatures {
		if c.Alive() {
			n++
		}
	}
	return n
}

// Creature returns the creature registered under an agent id.
func (w *World) Creature(id uint64) (*Creature, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.creatures[id]
	return c, ok
}
