package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"inmopresence/config"
	"inmopresence/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// command is what a connected client may send: track itself (payload
// fields are cosmetic; identity always comes from the verified token) or
// untrack without disconnecting, e.g. when the tab is hidden.
type command struct {
	Type      string `json:"type"` // "track" | "untrack"
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	Whatsapp  string `json:"whatsapp"`
	TS        int64  `json:"ts"`
}

// ServeAgentsChannel upgrades the connection onto the agents-online
// channel. A token is optional: anonymous subscribers receive sync
// frames but cannot track.
func ServeAgentsChannel(cfg *config.JWTConfig, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &Client{Send: make(chan []byte, 256)}
		if token := c.Query("token"); token != "" {
			claims, err := auth.ParseAccessToken(cfg, token)
			if err != nil {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
				return
			}
			client.UserID = claims.UserID
			client.Role = claims.Role
			client.Email = claims.Email
		}

		hub.Register(client)
		defer client.Close()

		go writePump(client, conn)
		readPump(client, hub, conn)
	}
}

func readPump(client *Client, hub *Hub, conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			// abrupt disconnect; Close unregisters and untracks
			return
		}
		var cmd command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		switch cmd.Type {
		case "track":
			ts := cmd.TS
			if ts == 0 {
				ts = time.Now().UnixMilli()
			}
			hub.Track(client, TrackedAgent{
				UserID:    client.UserID,
				Role:      client.Role,
				Email:     client.Email,
				FullName:  cmd.FullName,
				AvatarURL: cmd.AvatarURL,
				Whatsapp:  cmd.Whatsapp,
				TrackedAt: ts,
			})
		case "untrack":
			hub.Untrack(client)
		}
	}
}

// writePump copies messages from client.Send to the connection and keeps
// the connection alive with periodic pings.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
