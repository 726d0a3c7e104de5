package chat

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Actions understood by the relay. The same names appear on inbound requests
// and on the frames broadcast to a room.
const (
	ActionSetNick     = "set_nick"
	ActionJoinRoom    = "join_room"
	ActionUserList    = "user_list"
	ActionChatMessage = "chat_message"
	ActionConnecting  = "connecting"
	ActionJoined      = "joined"
	ActionLeft        = "left"
	ActionNickChanged = "nick_changed"
)

// DefaultRoom is the system-assigned room every connection starts in. It is
// exempt from the user-input name bound below.
const DefaultRoom = "Default"

// nameBounds constrains user-supplied nick and room names.
const nameBounds = "min=3,max=20"

var validate = validator.New()

// Inbound is the request envelope. Which field is required depends on Action.
type Inbound struct {
	Action  string `json:"action"`
	Nick    string `json:"nick,omitempty"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message,omitempty"`
}

func DecodeInbound(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &in, nil
}

// Validate checks the required field for the frame's action. Unknown actions
// pass; the dispatcher rejects them separately.
func (in *Inbound) Validate() error {
	switch in.Action {
	case ActionSetNick:
		if err := validate.Var(in.Nick, nameBounds); err != nil {
			return &ValidationError{Reason: "Nick must be between 3 and 20 characters."}
		}
	case ActionJoinRoom:
		if err := validate.Var(in.Room, nameBounds); err != nil {
			return &ValidationError{Reason: "Room must be between 3 and 20 characters."}
		}
	case ActionUserList:
		if in.Room == "" {
			return &ValidationError{Reason: "Room is required."}
		}
	case ActionChatMessage:
		if in.Message == "" {
			return &ValidationError{Reason: "Message is required."}
		}
	}
	return nil
}

// Reply is the direct response to the connection that issued an action.
type Reply struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UserListReply carries a room occupancy snapshot back to the requester.
type UserListReply struct {
	Action  string   `json:"action"`
	Success bool     `json:"success"`
	Room    string   `json:"room"`
	Users   []string `json:"users"`
}

// RoomEvent announces connecting, joined and left.
type RoomEvent struct {
	Action string `json:"action"`
	Room   string `json:"room"`
	User   string `json:"user"`
}

// NickEvent announces a nickname change to the room.
type NickEvent struct {
	Action   string `json:"action"`
	Room     string `json:"room"`
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
}

// ChatEvent relays one chat message to the rest of the room.
type ChatEvent struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	User    string `json:"user"`
}
