package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/gorilla/websocket"
)

// Session holds one connection's identity: its current nickname and room.
// Every state change goes through the registry, which arbitrates between all
// sessions; the fields here are only ever touched by the session's own loop.
type Session struct {
	reg    *Registry
	sink   Sink
	logger *slog.Logger

	nick string
	room string
}

func NewSession(reg *Registry, sink Sink, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		reg:    reg,
		sink:   sink,
		logger: logger,
		nick:   fmt.Sprintf("User%d", rand.Intn(1000000)),
		room:   DefaultRoom,
	}
}

// HandleSession runs one connection's lifecycle to completion: register under
// a generated nick in the default room, dispatch inbound actions, clean up on
// disconnect.
func HandleSession(conn *Conn, reg *Registry, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s := NewSession(reg, conn, logger.With("conn_id", conn.id))

	go conn.writePump()
	conn.configureRead()

	if !s.connect() {
		// Refuse rather than retry; the client may reconnect for a fresh
		// generated nick.
		conn.closeWith(websocket.CloseTryAgainLater, "Nickname already in use")
		conn.CloseSend()
		return
	}

	for {
		data, err := conn.readFrame()
		if err != nil {
			s.close()
			return
		}
		in, err := DecodeInbound(data)
		if err != nil {
			// A frame we cannot decode is a per-message failure, not a
			// reason to drop the connection.
			_ = s.sink.Send(Reply{Action: "error", Success: false, Message: "Malformed message."})
			continue
		}
		s.handle(in)
	}
}

// connect registers the generated identity and announces the arrival. A
// collision on the random nick is rare but possible; it refuses the
// connection instead of silently retrying.
func (s *Session) connect() bool {
	_ = s.sink.Send(RoomEvent{Action: ActionConnecting, Room: s.room, User: s.nick})

	if !s.reg.Register(s.room, s.nick, s.sink) {
		s.logger.Warn("generated nick already in use, refusing connection", "nick", s.nick)
		return false
	}
	s.logger.Info("session connected", "room", s.room, "nick", s.nick)
	s.reg.Broadcast(s.room, RoomEvent{Action: ActionJoined, Room: s.room, User: s.nick}, "")
	return true
}

// handle dispatches one decoded frame while the session is active. Every
// failure is reported to the sender only; the session stays active.
func (s *Session) handle(in *Inbound) {
	switch in.Action {
	case ActionSetNick, ActionJoinRoom, ActionUserList, ActionChatMessage:
	default:
		_ = s.sink.Send(Reply{Action: in.Action, Success: false, Message: "Not allowed."})
		return
	}

	// Reject out-of-bounds names before any registry mutation is attempted.
	if err := in.Validate(); err != nil {
		var ve *ValidationError
		msg := "Invalid request."
		if errors.As(err, &ve) {
			msg = ve.Reason
		}
		_ = s.sink.Send(Reply{Action: in.Action, Success: false, Message: msg})
		return
	}

	switch in.Action {
	case ActionSetNick:
		s.setNick(in.Nick)
	case ActionJoinRoom:
		s.joinRoom(in.Room)
	case ActionUserList:
		s.userList(in.Room)
	case ActionChatMessage:
		s.chat(in.Message)
	}
}

func (s *Session) setNick(nick string) {
	if err := s.reg.Rename(s.room, s.nick, nick); err != nil {
		msg := "Unable to change nickname."
		if errors.Is(err, ErrNameTaken) {
			msg = "Nickname is already in use."
		}
		if errors.Is(err, ErrNotFound) {
			// Losing track of our own entry is a defect, not a user error.
			s.logger.Error("rename failed: occupant missing from registry", "room", s.room, "nick", s.nick)
		}
		_ = s.sink.Send(Reply{Action: ActionSetNick, Success: false, Message: msg})
		return
	}
	from := s.nick
	s.nick = nick
	_ = s.sink.Send(Reply{Action: ActionSetNick, Success: true, Message: ""})
	// The sender already got the direct confirmation above.
	s.reg.Broadcast(s.room, NickEvent{Action: ActionNickChanged, Room: s.room, FromUser: from, ToUser: nick}, nick)
}

func (s *Session) joinRoom(room string) {
	if err := s.reg.Move(s.room, room, s.nick); err != nil {
		msg := "Unable to join room."
		if errors.Is(err, ErrNameTaken) {
			msg = "Name already in use in this room."
		}
		if errors.Is(err, ErrNotFound) {
			s.logger.Error("move failed: occupant missing from registry", "room", s.room, "nick", s.nick)
		}
		_ = s.sink.Send(Reply{Action: ActionJoinRoom, Success: false, Message: msg})
		return
	}
	oldRoom := s.room
	s.room = room
	_ = s.sink.Send(Reply{Action: ActionJoinRoom, Success: true, Message: ""})
	s.reg.Broadcast(oldRoom, RoomEvent{Action: ActionLeft, Room: oldRoom, User: s.nick}, s.nick)
	s.reg.Broadcast(room, RoomEvent{Action: ActionJoined, Room: room, User: s.nick}, s.nick)
}

// userList answers for the room named in the request, which need not be the
// session's current room. Never broadcasts.
func (s *Session) userList(room string) {
	users := s.reg.List(room)
	_ = s.sink.Send(UserListReply{Action: ActionUserList, Success: true, Room: room, Users: users})
}

func (s *Session) chat(message string) {
	_ = s.sink.Send(Reply{Action: ActionChatMessage, Success: true, Message: message})
	s.reg.Broadcast(s.room, ChatEvent{Action: ActionChatMessage, Message: message, User: s.nick}, s.nick)
}

// close runs the Closing path: deregister, then announce the departure. This
// runs on every termination, clean or not; delivery to the departed
// connection itself is fire-and-forget.
func (s *Session) close() {
	s.reg.Unregister(s.room, s.nick)
	s.reg.Broadcast(s.room, RoomEvent{Action: ActionLeft, Room: s.room, User: s.nick}, s.nick)
	s.logger.Info("session closed", "room", s.room, "nick", s.nick)
}
