// Command ws_smoke is a manual smoke client: it registers into a room,
// sends one chat message, and prints everything the server emits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8000/chat", "WebSocket address")
	user := flag.String("user", "tester", "display name to register with")
	room := flag.String("room", "smoke", "room id to join")
	title := flag.String("title", "smoke test room", "room title (used if the room is new)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	register := fmt.Sprintf(
		`{"type":"userRecord","username":%q,"data":{"roomId":%q,"title":%q,"isPublic":true}}`,
		*user, *room, *title,
	)
	if err := conn.Write(ctx, websocket.MessageText, []byte(register)); err != nil {
		return fmt.Errorf("send register: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(*text)); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("<- %s\n", data)
	}
}
