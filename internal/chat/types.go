package chat

// Sink is the outbound half of one connection. The registry and sessions only
// ever enqueue frames; the transport owns the actual writes.
type Sink interface {
	// Send enqueues a frame for delivery. It must not block: a peer whose
	// queue is full or already closed reports ErrPeerUnreachable.
	Send(frame any) error
	// CloseSend stops delivery after the queue drains. Idempotent.
	CloseSend()
}

type EventType int

const (
	EventRegister EventType = iota
	EventUnregister
	EventRename
	EventMove
	EventList
	EventBroadcast
)

type Event struct {
	Type    EventType
	Room    string
	NewRoom string
	Nick    string
	NewNick string
	Sink    Sink
	Frame   any
	Exclude string
	ReplyCh chan error    // acks register/rename/move
	ListCh  chan []string // carries the list snapshot
}

var (
	ErrNameTaken       = errorString("name_taken")
	ErrNotFound        = errorString("not_found")
	ErrPeerUnreachable = errorString("peer_unreachable")
	ErrRegistryClosed  = errorString("registry_closed")
)

type errorString string

func (e errorString) Error() string { return string(e) }

// ValidationError rejects a malformed or out-of-bounds field before any
// registry mutation is attempted. The Reason is sent back to the peer as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
