package sandbox

import (
	"math"
	"sync"

	"github.com/calder-games/npcmind/internal/agent"
)

const (
	creatureMaxSpeed = 20  // units per step toward a move target
	strikeBaseDamage = 4.0 // damage per attacker level
	healAmount       = 15.0
)

// Creature is a sandbox entity implementing the full set of agent
// capabilities. The fleet drives its decisions; the world applies
// hazards and resolves strikes between creatures.
type Creature struct {
	mu sync.Mutex

	name    string
	faction string
	rank    agent.Rank
	level   int
	attrs   agent.Attributes
	skills  []string

	x, y      float64
	destX     float64
	destY     float64
	moving    bool
	health    float64
	maxHealth float64
	debuffs   int

	world *World
}

func (c *Creature) Name() string { return c.name }

func (c *Creature) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health > 0
}

func (c *Creature) Position() (x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x, c.y
}

func (c *Creature) Health() (current, max float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health, c.maxHealth
}

func (c *Creature) Attributes() agent.Attributes { return c.attrs }

func (c *Creature) UsableSkills() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.skills...)
}

func (c *Creature) DebuffCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debuffs
}

func (c *Creature) Level() int { return c.level }

func (c *Creature) Faction() string { return c.faction }

func (c *Creature) Rank() agent.Rank { return c.rank }

// MoveTo sets the creature's destination; movement toward it is applied
// by the world step, capped at creatureMaxSpeed per step.
func (c *Creature) MoveTo(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destX, c.destY = x, y
	c.moving = true
}

// Strike asks the world to resolve an attack on the target agent.
func (c *Creature) Strike(target uint64) {
	if c.world != nil {
		c.world.resolveStrike(c, target)
	}
}

func (c *Creature) HealSelf() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.health = math.Min(c.maxHealth, c.health+healAmount)
}

func (c *Creature) damage(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.health = math.Max(0, c.health-amount)
}

// step advances movement toward the destination.
func (c *Creature) step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.moving || c.health <= 0 {
		return
	}
	dx, dy := c.destX-c.x, c.destY-c.y
	dist := math.Hypot(dx, dy)
	if dist <= creatureMaxSpeed {
		c.x, c.y = c.destX, c.destY
		c.moving = false
		return
	}
	c.x += dx / dist * creatureMaxSpeed
	c.y += dy / dist * creatureMaxSpeed
}
