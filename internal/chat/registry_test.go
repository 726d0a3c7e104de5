package chat

import (
	"reflect"
	"testing"
	"time"
)

type fakeSink struct {
	frames chan any
	fail   bool
	closed bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{frames: make(chan any, 64)}
}

func (f *fakeSink) Send(frame any) error {
	if f.fail {
		return ErrPeerUnreachable
	}
	select {
	case f.frames <- frame:
		return nil
	default:
		return ErrPeerUnreachable
	}
}

func (f *fakeSink) CloseSend() { f.closed = true }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(128, nil)
	go r.Run()
	t.Cleanup(func() {
		r.Stop()
		r.Wait()
	})
	return r
}

func TestRegistry_RegisterRejectsDuplicateNick(t *testing.T) {
	r := newTestRegistry(t)

	if !r.Register("math", "alice", newFakeSink()) {
		t.Fatal("first register should succeed")
	}
	if r.Register("math", "alice", newFakeSink()) {
		t.Fatal("duplicate nick in the same room should be rejected")
	}
	// Same nick in a different room is fine; uniqueness is per room.
	if !r.Register("physics", "alice", newFakeSink()) {
		t.Fatal("same nick in another room should succeed")
	}
}

func TestRegistry_ListReflectsJoinAndLeave(t *testing.T) {
	r := newTestRegistry(t)

	r.Register("math", "alice", newFakeSink())
	r.Register("math", "bob", newFakeSink())

	if got := r.List("math"); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("unexpected occupants: %v", got)
	}

	r.Unregister("math", "bob")
	if got := r.List("math"); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("unexpected occupants after leave: %v", got)
	}

	if got := r.List("no-such-room"); len(got) != 0 {
		t.Fatalf("unknown room should list empty, got %v", got)
	}
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	sink := newFakeSink()
	r.Register("math", "alice", sink)
	r.Unregister("math", "alice")
	r.Unregister("math", "alice")
	r.Unregister("empty", "nobody")

	// List serializes behind the unregisters, so by now they are applied.
	if got := r.List("math"); len(got) != 0 {
		t.Fatalf("expected empty room, got %v", got)
	}
	if !sink.closed {
		t.Fatal("unregister should close the occupant's send side")
	}
}

func TestRegistry_RenameConflictKeepsOldNick(t *testing.T) {
	r := newTestRegistry(t)

	r.Register("math", "alice", newFakeSink())
	r.Register("math", "bob", newFakeSink())

	if err := r.Rename("math", "alice", "bob"); err != ErrNameTaken {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if got := r.List("math"); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("failed rename must not remove the old nick: %v", got)
	}

	if err := r.Rename("math", "ghost", "casper"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := r.Rename("math", "alice", "alicia"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if got := r.List("math"); !reflect.DeepEqual(got, []string{"alicia", "bob"}) {
		t.Fatalf("unexpected occupants after rename: %v", got)
	}
}

func TestRegistry_MoveTransfersOccupant(t *testing.T) {
	r := newTestRegistry(t)

	r.Register("math", "alice", newFakeSink())
	if err := r.Move("math", "physics", "alice"); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	// The occupant appears in exactly one room.
	if got := r.List("math"); len(got) != 0 {
		t.Fatalf("old room should be empty, got %v", got)
	}
	if got := r.List("physics"); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("new room should hold the occupant, got %v", got)
	}
}

func TestRegistry_MoveConflictLeavesOccupantInOldRoom(t *testing.T) {
	r := newTestRegistry(t)

	r.Register("math", "alice", newFakeSink())
	r.Register("physics", "alice", newFakeSink())

	if err := r.Move("math", "physics", "alice"); err != ErrNameTaken {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if got := r.List("math"); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("failed move must leave occupant in old room: %v", got)
	}
	if got := r.List("physics"); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("failed move must not duplicate occupant: %v", got)
	}

	if err := r.Move("math", "physics", "ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_BroadcastExcludesNamedOccupant(t *testing.T) {
	r := newTestRegistry(t)

	alice := newFakeSink()
	bob := newFakeSink()
	carol := newFakeSink()
	r.Register("math", "alice", alice)
	r.Register("math", "bob", bob)
	r.Register("math", "carol", carol)

	frame := ChatEvent{Action: ActionChatMessage, Message: "2+2", User: "alice"}
	r.Broadcast("math", frame, "alice")

	waitForFrame(t, bob.frames)
	waitForFrame(t, carol.frames)

	// The broadcast event has fully run by now; the sender got nothing.
	select {
	case got := <-alice.frames:
		t.Fatalf("excluded occupant received %v", got)
	default:
	}
}

func TestRegistry_BroadcastSurvivesDeadPeer(t *testing.T) {
	r := newTestRegistry(t)

	alice := newFakeSink()
	bob := newFakeSink()
	carol := newFakeSink()
	bob.fail = true
	r.Register("math", "alice", alice)
	r.Register("math", "bob", bob)
	r.Register("math", "carol", carol)

	r.Broadcast("math", RoomEvent{Action: ActionJoined, Room: "math", User: "dave"}, "")

	// bob's delivery fails; alice and carol still receive.
	waitForFrame(t, alice.frames)
	waitForFrame(t, carol.frames)
}

func TestRegistry_StopDrainsOccupants(t *testing.T) {
	r := NewRegistry(128, nil)
	go r.Run()

	alice := newFakeSink()
	bob := newFakeSink()
	r.Register("math", "alice", alice)
	r.Register("other", "bob", bob)

	r.Stop()
	r.Wait()

	if !alice.closed || !bob.closed {
		t.Fatal("shutdown should close every occupant's send side")
	}
	if r.Register("math", "late", newFakeSink()) {
		t.Fatal("register after stop should fail")
	}
}

func waitForFrame(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case frame := <-ch:
		return frame
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for frame")
		return nil
	}
}
