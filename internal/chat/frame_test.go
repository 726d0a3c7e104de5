package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	req := require.New(t)

	in, err := DecodeInbound([]byte(`{"action": "set_nick", "nick": "Al"}`))
	req.NoError(err)
	req.Equal(ActionSetNick, in.Action)
	req.Equal("Al", in.Nick)

	_, err = DecodeInbound([]byte(`{"action": `))
	req.Error(err)
}

func TestInboundValidate(t *testing.T) {
	cases := []struct {
		name   string
		in     Inbound
		reason string
	}{
		{"nick ok", Inbound{Action: ActionSetNick, Nick: "Ali"}, ""},
		{"nick too short", Inbound{Action: ActionSetNick, Nick: "Al"}, "Nick must be between 3 and 20 characters."},
		{"nick too long", Inbound{Action: ActionSetNick, Nick: strings.Repeat("a", 21)}, "Nick must be between 3 and 20 characters."},
		{"room ok", Inbound{Action: ActionJoinRoom, Room: "math"}, ""},
		{"room too short", Inbound{Action: ActionJoinRoom, Room: "ab"}, "Room must be between 3 and 20 characters."},
		{"room too long", Inbound{Action: ActionJoinRoom, Room: strings.Repeat("r", 21)}, "Room must be between 3 and 20 characters."},
		{"user_list needs room", Inbound{Action: ActionUserList}, "Room is required."},
		{"user_list default room exempt from bound", Inbound{Action: ActionUserList, Room: DefaultRoom}, ""},
		{"chat needs message", Inbound{Action: ActionChatMessage}, "Message is required."},
		{"chat ok", Inbound{Action: ActionChatMessage, Message: "hi"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			err := tc.in.Validate()
			if tc.reason == "" {
				req.NoError(err)
				return
			}
			var ve *ValidationError
			req.True(errors.As(err, &ve), "expected ValidationError, got %v", err)
			req.Equal(tc.reason, ve.Reason)
		})
	}
}
