// internal/listener/websocket.go
package listener

import (
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	statusInterval = 250 * time.Millisecond
	writeWait      = 10 * time.Second
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// local tool, the front end runs on the same machine
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWS streams the session status to the front end. The feed is
// write-only; each connection gets its own push goroutine.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}
	s.logger.Info("Status feed client connected", "remote", conn.RemoteAddr().String())

	go s.pushStatus(conn)
}

func (s *Server) pushStatus(conn *ws.Conn) {
	defer conn.Close()

	// drain control frames so pings and the client's close are handled
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for range ticker.C {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(s.coord.Status()); err != nil {
			s.logger.Debug("Status feed client gone", "error", err)
			return
		}
	}
}
