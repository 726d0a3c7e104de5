package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"

	"github.com/andy6609/websocket-chat-server/internal/chat"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/chat", "chat server url")
	flag.Parse()

	ws, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *url, err)
		os.Exit(1)
	}
	defer ws.Close()

	done := make(chan struct{})
	go readLoop(ws, done)

	color.Gray.Println("commands: /nick <name>, /room <name>, /users [room], /exit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var frame chat.Inbound
		switch {
		case line == "/exit":
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-done
			return
		case strings.HasPrefix(line, "/nick "):
			frame = chat.Inbound{Action: chat.ActionSetNick, Nick: strings.TrimSpace(strings.TrimPrefix(line, "/nick "))}
		case strings.HasPrefix(line, "/room "):
			frame = chat.Inbound{Action: chat.ActionJoinRoom, Room: strings.TrimSpace(strings.TrimPrefix(line, "/room "))}
		case strings.HasPrefix(line, "/users"):
			room := strings.TrimSpace(strings.TrimPrefix(line, "/users"))
			if room == "" {
				room = chat.DefaultRoom
			}
			frame = chat.Inbound{Action: chat.ActionUserList, Room: room}
		default:
			frame = chat.Inbound{Action: chat.ActionChatMessage, Message: line}
		}

		if err := ws.WriteJSON(frame); err != nil {
			color.Red.Println("connection lost:", err)
			<-done
			return
		}
	}
	<-done
}

func readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var frame map[string]any
		if err := ws.ReadJSON(&frame); err != nil {
			color.Red.Println("disconnected:", err)
			return
		}
		printFrame(frame)
	}
}

func printFrame(frame map[string]any) {
	action, _ := frame["action"].(string)
	switch action {
	case chat.ActionChatMessage:
		if user, ok := frame["user"].(string); ok {
			color.Green.Printf("%s: %v\n", user, frame["message"])
			return
		}
		// Our own send confirmation; only surface failures.
		if success, ok := frame["success"].(bool); ok && !success {
			color.Red.Printf("message rejected: %v\n", frame["message"])
		}
	case chat.ActionConnecting:
		color.Cyan.Printf("connected to %v as %v\n", frame["room"], frame["user"])
	case chat.ActionJoined:
		color.Yellow.Printf("* %v joined %v\n", frame["user"], frame["room"])
	case chat.ActionLeft:
		color.Yellow.Printf("* %v left %v\n", frame["user"], frame["room"])
	case chat.ActionNickChanged:
		color.Yellow.Printf("* %v is now %v\n", frame["from_user"], frame["to_user"])
	case chat.ActionUserList:
		color.Cyan.Printf("users in %v: %v\n", frame["room"], frame["users"])
	default:
		if success, ok := frame["success"].(bool); ok {
			if success {
				color.Gray.Printf("%s ok\n", action)
			} else {
				color.Red.Printf("%s failed: %v\n", action, frame["message"])
			}
		}
	}
}
