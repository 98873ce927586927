package ws

import (
	"fmt"
	"log"
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"gorm.io/gorm"
)

// Server is the global Socket.IO server instance
var Server *socketio.Server

// InitServer initializes the Socket.IO server. Connections authenticate
// during the handshake and are placed in their cluster's room; the only
// traffic they ever receive is the advisory "re-poll" signal.
func InitServer(database *gorm.DB) error {
	db = database

	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		member, err := memberFromHandshake(s)
		if err != nil {
			log.Printf("[WebSocket] Rejected connection %s: %v", s.ID(), err)
			return err
		}

		s.Join(clusterRoom(member.ClusterID))
		s.Emit("connected", map[string]interface{}{"ok": true})
		log.Printf("[WebSocket] Member %d connected: %s", member.ID, s.ID())
		return nil
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("[WebSocket] Client disconnected: %s, reason: %s", s.ID(), reason)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Printf("[WebSocket] Error on %s: %v", s.ID(), e)
	})

	Server = server

	go func() {
		if err := server.Serve(); err != nil {
			log.Printf("[WebSocket] Serve error: %v", err)
		}
	}()

	log.Println("✓ WebSocket server initialized")
	return nil
}

// Close shuts the Socket.IO server down.
func Close() error {
	if Server != nil {
		return Server.Close()
	}
	return nil
}

func clusterRoom(clusterID uint) string {
	return fmt.Sprintf("cluster:%d", clusterID)
}
