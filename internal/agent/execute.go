package agent

import "math"

const (
	attackRange     = 50.0
	retreatDistance = 100.0
	patrolRadius    = 50.0
	patrolWaypointR = 10.0
	wanderRadius    = 50.0
)

// executeLocked carries out one chosen action. It returns false when the
// entity lacks a capability the action needs or no valid target exists;
// the attempt is still recorded so reinforcement can weaken the behavior.
func (c *Core) executeLocked(action string) bool {
	switch action {
	case "attack":
		return c.attackLocked()
	case "defend":
		return c.defendLocked()
	case "heal":
		return c.healSelfLocked()
	case "retreat":
		return c.retreatLocked()
	case "explore":
		return c.exploreLocked()
	case "support":
		return c.supportLocked()
	case "patrol":
		return c.patrolLocked()
	default:
		c.deps.Log.Debug("unknown planned action", "agent", c.id, "action", action)
		return false
	}
}

func (c *Core) attackLocked() bool {
	target, ok := c.bestTargetLocked()
	if !ok {
		c.targetID = 0
		return false
	}
	c.targetID = target.ID

	if c.distanceTo(target) <= attackRange {
		cb, ok := c.entity.(Combatant)
		if !ok {
			c.deps.Log.Debug("entity cannot attack", "agent", c.id)
			return false
		}
		cb.Strike(target.ID)
		c.state = StateAttacking
		return true
	}

	m, ok := c.entity.(Mover)
	if !ok {
		c.deps.Log.Debug("entity cannot move to target", "agent", c.id)
		return false
	}
	m.MoveTo(target.X, target.Y)
	c.state = StateChasing
	return true
}

// bestTargetLocked scores every nearby enemy by closeness, weakness and
// danger, and returns the highest.
func (c *Core) bestTargetLocked() (Neighbor, bool) {
	var best Neighbor
	bestScore := math.Inf(-1)
	for _, e := range c.assessment.Enemies {
		d := c.distanceTo(e)
		score := math.Max(0, 100-d)/100 +
			(1-e.HealthRatio())*0.5 +
			c.entityThreat(e)*0.3
		if score > bestScore {
			bestScore = score
			best = e
		}
	}
	return best, bestScore > math.Inf(-1)
}

// defendLocked holds the current state; defending is a stance, not a
// state transition.
func (c *Core) defendLocked() bool {
	// Fall back toward safety while holding a defensive stance.
	if x, y, ok := c.safePositionLocked(); ok {
		if m, mok := c.entity.(Mover); mok {
			m.MoveTo(x, y)
		}
	}
	return true
}

func (c *Core) healSelfLocked() bool {
	h, ok := c.entity.(Healer)
	if !ok {
		c.deps.Log.Debug("entity cannot heal", "agent", c.id)
		return false
	}
	h.HealSelf()
	c.state = StateHealing
	return true
}

func (c *Core) retreatLocked() bool {
	x, y, ok := c.safePositionLocked()
	if !ok {
		return false
	}
	m, ok := c.entity.(Mover)
	if !ok {
		c.deps.Log.Debug("entity cannot retreat", "agent", c.id)
		return false
	}
	m.MoveTo(x, y)
	c.state = StateRetreating
	return true
}

// safePositionLocked projects a point away from the enemy centroid.
func (c *Core) safePositionLocked() (float64, float64, bool) {
	if len(c.assessment.Enemies) == 0 {
		return 0, 0, false
	}
	px, py, ok := c.position()
	if !ok {
		return 0, 0, false
	}
	var cx, cy float64
	for _, e := range c.assessment.Enemies {
		cx += e.X
		cy += e.Y
	}
	n := float64(len(c.assessment.Enemies))
	cx /= n
	cy /= n

	dx, dy := px-cx, py-cy
	length := math.Hypot(dx, dy)
	if length == 0 {
		// Surrounded at the centroid; pick a random bearing.
		angle := c.deps.Rng.Float64() * 2 * math.Pi
		dx, dy, length = math.Cos(angle), math.Sin(angle), 1
	}
	return px + dx/length*retreatDistance, py + dy/length*retreatDistance, true
}

func (c *Core) exploreLocked() bool {
	c.state = StateExploring
	if c.deps.Rng.Float64() < 0.1 {
		c.wanderLocked()
	}
	return true
}

func (c *Core) wanderLocked() {
	px, py, ok := c.position()
	if !ok {
		return
	}
	m, ok := c.entity.(Mover)
	if !ok {
		return
	}
	angle := c.deps.Rng.Float64() * 2 * math.Pi
	dist := c.deps.Rng.Float64() * wanderRadius
	m.MoveTo(px+dist*math.Cos(angle), py+dist*math.Sin(angle))
}

func (c *Core) supportLocked() bool {
	var needy *Neighbor
	for i := range c.assessment.Allies {
		if c.assessment.Allies[i].HealthRatio() < c.deps.Config.AllyHelpFraction {
			needy = &c.assessment.Allies[i]
			break
		}
	}
	if needy == nil {
		return false
	}
	if m, ok := c.entity.(Mover); ok {
		m.MoveTo(needy.X, needy.Y)
	}
	c.state = StateSupporting
	return true
}

func (c *Core) patrolLocked() bool {
	px, py, ok := c.position()
	if !ok {
		return false
	}
	if len(c.patrolRoute) == 0 {
		c.patrolRoute = patrolRouteAround(px, py)
	}
	target := c.patrolRoute[0]
	if math.Hypot(target[0]-px, target[1]-py) < patrolWaypointR {
		c.patrolRoute = c.patrolRoute[1:]
		if len(c.patrolRoute) == 0 {
			c.patrolRoute = patrolRouteAround(px, py)
		}
		target = c.patrolRoute[0]
	}
	m, ok := c.entity.(Mover)
	if !ok {
		c.deps.Log.Debug("entity cannot patrol", "agent", c.id)
		return false
	}
	m.MoveTo(target[0], target[1])
	c.state = StatePatrolling
	return true
}

// patrolRouteAround lays four waypoints on the cardinal directions.
func patrolRouteAround(x, y float64) [][2]float64 {
	points := make([][2]float64, 0, 4)
	for i := 0; i < 4; i++ {
		angle := float64(i) * math.Pi / 2
		points = append(points, [2]float64{
			x + patrolRadius*math.Cos(angle),
			y + patrolRadius*math.Sin(angle),
		})
	}
	return points
}

// continueBehaviorLocked is the light-update path: keep doing the current
// thing without replanning.
func (c *Core) continueBehaviorLocked() {
	switch c.state {
	case StateIdle, StateExploring:
		if c.deps.Rng.Float64() < 0.05 {
			c.wanderLocked()
		}
	case StateAttacking:
		if c.targetID == 0 {
			return
		}
		for _, e := range c.assessment.Enemies {
			if e.ID == c.targetID && c.distanceTo(e) <= attackRange {
				if cb, ok := c.entity.(Combatant); ok {
					cb.Strike(e.ID)
				}
				return
			}
		}
	}
}
