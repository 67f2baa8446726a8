package apitest

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"learnlab-client/internal/domain"
)

// WSURL is the notification endpoint without a token.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// RejectWS makes /ws refuse upgrades while on is true.
func (s *Server) RejectWS(on bool) {
	s.mu.Lock()
	s.wsReject = on
	s.mu.Unlock()
}

func (s *Server) serveWS(c *gin.Context) {
	s.mu.Lock()
	reject := s.wsReject
	s.mu.Unlock()
	if reject {
		detail(c, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}
	userID, err := s.verify(c.Query("token"))
	if err != nil {
		detail(c, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns[conn] = userID
	s.connMu[conn] = &sync.Mutex{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.connMu, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg domain.Notification
		if json.Unmarshal(data, &msg) == nil && msg.Type == domain.MessagePing {
			s.mu.Lock()
			s.pings++
			s.mu.Unlock()
		}
	}
}

// Connections returns the number of open notification sockets.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Pings returns how many ping messages the server received.
func (s *Server) Pings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

// Push sends a notification to every open socket.
func (s *Server) Push(n domain.Notification) {
	n.Type = domain.MessageNotification
	s.each(func(conn *websocket.Conn) {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = conn.WriteJSON(n)
	})
}

// SendRaw writes data verbatim to every open socket.
func (s *Server) SendRaw(data string) {
	s.each(func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(data))
	})
}

// DropConnections cuts every socket without a close frame.
func (s *Server) DropConnections() {
	s.each(func(conn *websocket.Conn) {
		_ = conn.UnderlyingConn().Close()
	})
}

// CloseConnections ends every socket with a close frame carrying code.
func (s *Server) CloseConnections(code int) {
	s.each(func(conn *websocket.Conn) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, "server closing"), time.Now().Add(time.Second))
	})
}

func (s *Server) each(fn func(*websocket.Conn)) {
	s.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(s.conns))
	for conn := range s.conns {
		conns[conn] = s.connMu[conn]
	}
	s.mu.Unlock()
	for conn, mu := range conns {
		mu.Lock()
		fn(conn)
		mu.Unlock()
	}
}
