package fleet

import (
	"errors"
	"testing"
	"time"

	"github.com/calder-games/npcmind/internal/agent"
)

func TestGroupElectsStrongestLeader(t *testing.T) {
	clock := &simClock{now: time.Unix(1000, 0)}
	m := newTestManager(t, clock, nil)

	follower := newSimEntity(0, 0)
	follower.attrs = agent.Attributes{Charisma: 4} // leadership 0.2
	leader := newSimEntity(10, 0)
	leader.attrs = agent.Attributes{Charisma: 16} // leadership 0.8

	fID, _ := m.Register(follower)
	lID, _ := m.Register(leader)
	if err := m.JoinGroup(fID, "pack"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := m.JoinGroup(lID, "pack"); err != nil {
		t.Fatalf("join: %v", err)
	}

	g := m.Group("pack")
	if g == nil {
		t.Fatal("group not created")
	}
	g.update(clock.now)

	if got := g.Leader(); got != lID {
		t.Errorf("leader = %d, want %d (higher leadership)", got, lID)
	}
}

func TestGroupPropagatesLeaderPriority(t *testing.T) {
	clock := &simClock{now: time.Unix(1000, 0)}
	m := newTestManager(t, clock, nil)

	follower := newSimEntity(0, 0)
	follower.attrs = agent.Attributes{Charisma: 4}
	leader := newSimEntity(10, 0)
	leader.attrs = agent.Attributes{Charisma: 16}

	fID, _ := m.Register(follower)
	lID, _ := m.Register(leader)
	m.JoinGroup(fID, "pack")
	m.JoinGroup(lID, "pack")

	if err := m.SetPriority(lID, agent.PriorityCritical); err != nil {
		t.Fatalf("set priority: %v", err)
	}
	m.Group("pack").update(clock.now)

	fCore, _ := m.Core(fID)
	if got := fCore.Priority(); got != agent.PriorityCritical {
		t.Errorf("follower priority = %s, want critical from leader", got)
	}
}

func TestGroupMovesIdleFollowersIntoFormation(t *testing.T) {
	clock := &simClock{now: time.Unix(1000, 0)}
	m := newTestManager(t, clock, nil)

	follower := newSimEntity(0, 0)
	follower.attrs = agent.Attributes{Charisma: 4}
	leader := newSimEntity(10, 0)
	leader.attrs = agent.Attributes{Charisma: 16}

	fID, _ := m.Register(follower)
	lID, _ := m.Register(leader)

	// One tick so both cores have planned; peaceful agents end up
	// exploring or patrolling.
	m.Tick()

	m.JoinGroup(fID, "pack")
	m.JoinGroup(lID, "pack")
	m.Group("pack").update(clock.now)

	fCore, _ := m.Core(fID)
	if got := fCore.Snapshot().State; got != "formation" {
		t.Errorf("follower state = %s, want formation", got)
	}
	lCore, _ := m.Core(lID)
	if got := lCore.Snapshot().State; got == "formation" {
		t.Error("leader must not be pulled into formation")
	}
}

func TestGroupMessagesExpire(t *testing.T) {
	g := newGroup("pack")
	t0 := time.Unix(1000, 0)
	g.Broadcast(1, "rally", "regroup at the bridge", t0)

	if got := g.Messages(t0.Add(4 * time.Second)); len(got) != 1 {
		t.Fatalf("messages at +4s = %d, want 1", len(got))
	}
	if got := g.Messages(t0.Add(6 * time.Second)); len(got) != 0 {
		t.Errorf("messages at +6s = %d, want 0 after expiry", len(got))
	}
}

func TestLeaveGroupDissolvesEmptyGroup(t *testing.T) {
	clock := &simClock{now: time.Unix(1000, 0)}
	m := newTestManager(t, clock, nil)

	id, _ := m.Register(newSimEntity(0, 0))
	m.JoinGroup(id, "pack")
	if err := m.LeaveGroup(id); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if m.Group("pack") != nil {
		t.Error("empty group not dissolved")
	}
	if err := m.JoinGroup(404, "pack"); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("join unknown agent err = %v, want ErrUnknownAgent", err)
	}
}
