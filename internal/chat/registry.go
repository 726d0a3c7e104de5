package chat

import (
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Registry owns the room -> (nick -> Sink) map. All mutation happens in the
// Run goroutine; the exported methods post events and wait for the answer, so
// each operation is atomic with respect to every other and a concurrent List
// never observes a half-applied move.
type Registry struct {
	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
	logger *slog.Logger
}

func NewRegistry(buffer int, logger *slog.Logger) *Registry {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		events: make(chan Event, buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
}

// Stop signals the Run loop to exit.
func (r *Registry) Stop() {
	close(r.stopCh)
}

// Wait blocks until the Run loop has completely finished.
func (r *Registry) Wait() {
	<-r.doneCh
}

// Register inserts the occupant unless the nickname is already present in the
// room. Length constraints are the caller's job; only uniqueness is checked
// here.
func (r *Registry) Register(room, nick string, sink Sink) bool {
	reply := make(chan error, 1)
	if !r.post(Event{Type: EventRegister, Room: room, Nick: nick, Sink: sink, ReplyCh: reply}) {
		return false
	}
	return r.await(reply) == nil
}

// Unregister removes the occupant if present and closes its send side.
// Removing an absent occupant is a no-op, not an error.
func (r *Registry) Unregister(room, nick string) {
	r.post(Event{Type: EventUnregister, Room: room, Nick: nick})
}

// Rename atomically replaces oldNick with newNick in the same room. A failed
// rename leaves oldNick in place.
func (r *Registry) Rename(room, oldNick, newNick string) error {
	reply := make(chan error, 1)
	if !r.post(Event{Type: EventRename, Room: room, Nick: oldNick, NewNick: newNick, ReplyCh: reply}) {
		return ErrRegistryClosed
	}
	return r.await(reply)
}

// Move atomically transfers the occupant from oldRoom to newRoom under the
// same nickname. A failed move leaves the occupant in oldRoom, untouched.
func (r *Registry) Move(oldRoom, newRoom, nick string) error {
	reply := make(chan error, 1)
	if !r.post(Event{Type: EventMove, Room: oldRoom, NewRoom: newRoom, Nick: nick, ReplyCh: reply}) {
		return ErrRegistryClosed
	}
	return r.await(reply)
}

// List returns a sorted snapshot of the room's occupants. Unknown or empty
// rooms yield an empty slice, never an error.
func (r *Registry) List(room string) []string {
	reply := make(chan []string, 1)
	if !r.post(Event{Type: EventList, Room: room, ListCh: reply}) {
		return nil
	}
	select {
	case users := <-reply:
		return users
	case <-r.doneCh:
		return nil
	}
}

// Broadcast delivers frame to every occupant of room except exclude. Delivery
// is best effort: an unreachable peer is logged and skipped, and never blocks
// or fails the rest of the fan-out.
func (r *Registry) Broadcast(room string, frame any, exclude string) {
	r.post(Event{Type: EventBroadcast, Room: room, Frame: frame, Exclude: exclude})
}

func (r *Registry) post(ev Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.stopCh:
		return false
	}
}

func (r *Registry) await(reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-r.doneCh:
		return ErrRegistryClosed
	}
}

func (r *Registry) Run() {
	defer close(r.doneCh)
	// Single-writer ownership: this map is only accessed in this goroutine.
	rooms := make(map[string]map[string]Sink)

	for {
		select {
		case ev := <-r.events:
			start := time.Now()
			eventType := ""

			switch ev.Type {
			case EventRegister:
				eventType = "register"
				r.handleRegister(rooms, ev)
				ConnectedClients.Set(occupantTotal(rooms))
			case EventUnregister:
				eventType = "unregister"
				r.handleUnregister(rooms, ev)
				ConnectedClients.Set(occupantTotal(rooms))
			case EventRename:
				eventType = "rename"
				r.handleRename(rooms, ev)
			case EventMove:
				eventType = "move"
				r.handleMove(rooms, ev)
			case EventList:
				eventType = "list"
				r.handleList(rooms, ev)
			case EventBroadcast:
				eventType = "broadcast"
				r.handleBroadcast(rooms, ev)
			}

			EventsTotal.WithLabelValues(eventType).Inc()
			EventProcessingDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		case <-r.stopCh:
			r.drain(rooms)
			return
		}
	}
}

func (r *Registry) handleRegister(rooms map[string]map[string]Sink, ev Event) {
	defer func() {
		if ev.ReplyCh != nil {
			close(ev.ReplyCh)
		}
	}()

	occupants := rooms[ev.Room]
	if occupants == nil {
		occupants = make(map[string]Sink)
		rooms[ev.Room] = occupants
	}
	if _, exists := occupants[ev.Nick]; exists {
		if ev.ReplyCh != nil {
			ev.ReplyCh <- ErrNameTaken
		}
		return
	}
	occupants[ev.Nick] = ev.Sink

	r.logger.Info("occupant registered", "room", ev.Room, "nick", ev.Nick)

	if ev.ReplyCh != nil {
		ev.ReplyCh <- nil
	}
}

func (r *Registry) handleUnregister(rooms map[string]map[string]Sink, ev Event) {
	occupants, ok := rooms[ev.Room]
	if !ok {
		return
	}
	sink, ok := occupants[ev.Nick]
	if !ok {
		return
	}
	delete(occupants, ev.Nick)
	if len(occupants) == 0 {
		delete(rooms, ev.Room)
	}

	r.logger.Info("occupant removed", "room", ev.Room, "nick", ev.Nick)

	// Closing the send side stops the connection's writer gracefully.
	sink.CloseSend()
}

func (r *Registry) handleRename(rooms map[string]map[string]Sink, ev Event) {
	defer func() {
		if ev.ReplyCh != nil {
			close(ev.ReplyCh)
		}
	}()

	occupants, ok := rooms[ev.Room]
	if !ok {
		ev.ReplyCh <- ErrNotFound
		return
	}
	sink, ok := occupants[ev.Nick]
	if !ok {
		ev.ReplyCh <- ErrNotFound
		return
	}
	if _, taken := occupants[ev.NewNick]; taken {
		ev.ReplyCh <- ErrNameTaken
		return
	}
	delete(occupants, ev.Nick)
	occupants[ev.NewNick] = sink

	r.logger.Info("occupant renamed", "room", ev.Room, "from", ev.Nick, "to", ev.NewNick)

	ev.ReplyCh <- nil
}

func (r *Registry) handleMove(rooms map[string]map[string]Sink, ev Event) {
	defer func() {
		if ev.ReplyCh != nil {
			close(ev.ReplyCh)
		}
	}()

	oldOccupants, ok := rooms[ev.Room]
	if !ok {
		ev.ReplyCh <- ErrNotFound
		return
	}
	sink, ok := oldOccupants[ev.Nick]
	if !ok {
		ev.ReplyCh <- ErrNotFound
		return
	}
	// Joining the current room again also lands here: the nick already
	// occupies the target, so the move is refused.
	if _, taken := rooms[ev.NewRoom][ev.Nick]; taken {
		ev.ReplyCh <- ErrNameTaken
		return
	}
	newOccupants := rooms[ev.NewRoom]
	if newOccupants == nil {
		newOccupants = make(map[string]Sink)
		rooms[ev.NewRoom] = newOccupants
	}
	delete(oldOccupants, ev.Nick)
	if len(oldOccupants) == 0 {
		delete(rooms, ev.Room)
	}
	newOccupants[ev.Nick] = sink

	r.logger.Info("occupant moved", "from_room", ev.Room, "to_room", ev.NewRoom, "nick", ev.Nick)

	ev.ReplyCh <- nil
}

func (r *Registry) handleList(rooms map[string]map[string]Sink, ev Event) {
	names := lo.Keys(rooms[ev.Room])
	sort.Strings(names)
	ev.ListCh <- names
}

func (r *Registry) handleBroadcast(rooms map[string]map[string]Sink, ev Event) {
	for nick, sink := range rooms[ev.Room] {
		if nick == ev.Exclude {
			continue
		}
		if err := sink.Send(ev.Frame); err != nil {
			// Best effort: a dead or saturated peer never interrupts
			// delivery to the rest of the room.
			DroppedDeliveries.Inc()
			r.logger.Warn("dropped delivery", "room", ev.Room, "nick", nick, "error", err)
		}
	}
}

// drain closes every occupant's send side and clears the map on shutdown.
func (r *Registry) drain(rooms map[string]map[string]Sink) {
	for room, occupants := range rooms {
		for _, sink := range occupants {
			sink.CloseSend()
		}
		delete(rooms, room)
	}
	r.logger.Info("registry drained")
}

func occupantTotal(rooms map[string]map[string]Sink) float64 {
	total := 0
	for _, occupants := range rooms {
		total += len(occupants)
	}
	return float64(total)
}
