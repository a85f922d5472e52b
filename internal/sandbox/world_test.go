package sandbox

import (
	"testing"

	"github.com/calder-games/npcmind/internal/agent"
	"github.com/calder-games/npcmind/internal/config"
	"github.com/calder-games/npcmind/internal/fleet"
	"github.com/calder-games/npcmind/internal/memory"
)

func newTestWorld(t *testing.T) (*World, *fleet.Manager, *memory.Store) {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	store := memory.NewStore(nil, memory.Options{})
	mgr := fleet.NewManager(fleet.Options{
		Config:   cfg.Fleet,
		Decision: cfg.Decision,
		Memories: store,
	})
	w := NewWorld(Options{Seed: 42, Fleet: mgr, Memories: store})
	return w, mgr, store
}

func TestHazardFieldDeterministic(t *testing.T) {
	a := NewHazardField(7)
	b := NewHazardField(7)
	for _, p := range [][2]float64{{0, 0}, {120, -340}, {-999, 512}} {
		sa, sb := a.Severity(p[0], p[1]), b.Severity(p[0], p[1])
		if sa != sb {
			t.Errorf("Severity(%v) differs across identically seeded fields: %v vs %v", p, sa, sb)
		}
		if sa < 0 || sa > 1 {
			t.Errorf("Severity(%v) = %v, want [0, 1]", p, sa)
		}
	}
}

func TestDamageTracksSeverityThreshold(t *testing.T) {
	f := NewHazardField(42)
	sawSafe, sawHazard := false, false
	for x := -5000.0; x <= 5000; x += 50 {
		for y := -5000.0; y <= 5000; y += 50 {
			sev := f.Severity(x, y)
			dmg := f.DamageAt(x, y)
			if sev < HazardThreshold {
				sawSafe = true
				if dmg != 0 {
					t.Fatalf("DamageAt(%v, %v) = %v below threshold, want 0", x, y, dmg)
				}
			} else {
				sawHazard = true
				if dmg <= 0 || dmg > 15 {
					t.Fatalf("DamageAt(%v, %v) = %v, want (0, 15]", x, y, dmg)
				}
			}
		}
	}
	if !sawSafe || !sawHazard {
		t.Fatalf("field sweep missed a region: safe=%v hazard=%v", sawSafe, sawHazard)
	}
}

func TestSpawnRegistersWithFleet(t *testing.T) {
	w, mgr, _ := newTestWorld(t)

	id, err := w.Spawn("wolf-1", "wolves", agent.RankNormal, 3)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if w.Alive() != 1 {
		t.Errorf("Alive = %d, want 1", w.Alive())
	}
	if _, ok := w.Creature(id); !ok {
		t.Error("Creature(id) not found after spawn")
	}
	if got := mgr.Stats().TotalAgents; got != 1 {
		t.Errorf("fleet TotalAgents = %d, want 1", got)
	}
}

func TestMovementIsSpeedCapped(t *testing.T) {
	w, _, _ := newTestWorld(t)
	id, err := w.Spawn("runner", "wolves", agent.RankNormal, 1)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	c, _ := w.Creature(id)
	x0, y0 := c.Position()

	c.MoveTo(x0+1000, y0)
	c.step()
	x1, y1 := c.Position()
	if x1-x0 != creatureMaxSpeed || y1 != y0 {
		t.Errorf("stepped to (%v, %v) from (%v, %v), want one max-speed step along x", x1, y1, x0, y0)
	}

	c.MoveTo(x1+5, y1)
	c.step()
	if x2, _ := c.Position(); x2 != x1+5 {
		t.Errorf("short move landed at %v, want exact destination %v", x2, x1+5)
	}
}

func TestStrikeKillRecordsVictory(t *testing.T) {
	w, _, store := newTestWorld(t)
	atkID, err := w.Spawn("hunter", "wolves", agent.RankNormal, 5)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	tgtID, err := w.Spawn("prey", "deer", agent.RankNormal, 1)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	attacker, _ := w.Creature(atkID)
	target, _ := w.Creature(tgtID)

	for i := 0; i < 50 && target.Alive(); i++ {
		attacker.Strike(tgtID)
	}
	if target.Alive() {
		t.Fatal("target still alive after 50 strikes")
	}
	if store.Statistics().TotalRecords == 0 {
		t.Error("kill did not record a combat memory")
	}
}

func TestStepDamagesCreatureInHazard(t *testing.T) {
	w, _, store := newTestWorld(t)
	id, err := w.Spawn("wanderer", "wolves", agent.RankNormal, 2)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	c, _ := w.Creature(id)

	// Drop the creature onto a hazardous point.
	hx, hy, found := findHazardPoint(w.field)
	if !found {
		t.Fatal("no hazardous point in sweep")
	}
	c.mu.Lock()
	c.x, c.y = hx, hy
	c.moving = false
	c.mu.Unlock()

	before := store.Statistics().TotalRecords
	w.Step()

	if cur, max := c.Health(); cur >= max {
		t.Errorf("health %v unchanged in hazard", cur)
	}
	if store.Statistics().TotalRecords <= before {
		t.Error("hazard damage did not record a memory")
	}
}

func findHazardPoint(f *HazardField) (x, y float64, ok bool) {
	for x := -5000.0; x <= 5000; x += 50 {
		for y := -5000.0; y <= 5000; y += 50 {
			if f.Severity(x, y) >= HazardThreshold {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}
