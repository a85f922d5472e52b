package agent

// Attributes are the raw stats personality traits derive from, on a
// 0 to 20 scale.
type Attributes struct {
	Strength     float64 `json:"strength"`
	Dexterity    float64 `json:"dexterity"`
	Intelligence float64 `json:"intelligence"`
	Charisma     float64 `json:"charisma"`
	Vitality     float64 `json:"vitality"`
}

// Rank tiers entities for update scheduling. Bosses always get full
// updates; elites degrade more slowly with distance than normals.
type Rank uint8

const (
	RankNormal Rank = iota
	RankElite
	RankBoss
)

var rankNames = [...]string{"normal", "elite", "boss"}

func (r Rank) String() string {
	if int(r) < len(rankNames) {
		return rankNames[r]
	}
	return "unknown"
}

// Entity is the minimal contract for anything a Core can drive. Everything
// beyond liveness is an optional capability: the core probes for the
// narrower interfaces below and skips behaviors the entity cannot perform.
type Entity interface {
	Alive() bool
}

// Positioned entities occupy a point in the world.
type Positioned interface {
	Position() (x, y float64)
}

// Vital entities have health the core can reason about.
type Vital interface {
	Health() (current, max float64)
}

// Attributed entities expose stats that seed personality.
type Attributed interface {
	Attributes() Attributes
}

// SkillUser entities expose the skills currently off cooldown.
type SkillUser interface {
	UsableSkills() []string
}

// Afflicted entities report how many debuffs they carry.
type Afflicted interface {
	DebuffCount() int
}

// Combatant entities can strike a target.
type Combatant interface {
	Level() int
	Strike(target uint64)
}

// Mover entities can be steered toward a point.
type Mover interface {
	MoveTo(x, y float64)
}

// Healer entities can restore their own health.
type Healer interface {
	HealSelf()
}

// Factioned entities belong to a side; same faction means ally.
type Factioned interface {
	Faction() string
}

// Classified entities carry a scheduling rank.
type Classified interface {
	Rank() Rank
}
