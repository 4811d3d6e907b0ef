package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/callctl/internal/bridge"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/notify"
)

// Constants for WebSocket connections
const (
	// Time allowed to write a message to the client
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client
	pongWait = 60 * time.Second

	// Send pings to client with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from client
	maxMessageSize = 512
)

// handleEvents upgrades to a WebSocket and streams every hub notification as
// one JSON text frame, in publish order. The stream is closed with a policy
// violation when the client falls behind the hub.
func (s *Server) handleEvents(c echo.Context) error {
	if !s.trackStream() {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: &bridge.Rejection{
			Code:    bridge.CodeInternal,
			Message: "server shutting down",
		}})
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", c.RealIP())
		return nil
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sub, err := s.hub.Subscribe(ctx)
	if err != nil {
		closeWith(conn, websocket.CloseGoingAway, "notification hub closed")
		_ = conn.Close()
		return nil
	}
	defer sub.Close()

	s.logger.Debug("event stream opened", "subscriber", sub.ID(), "remote", c.RealIP())

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readPump(conn)
	}()
	defer func() {
		_ = conn.Close()
		<-readDone
		s.logger.Debug("event stream closed", "subscriber", sub.ID())
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				s.closeStream(conn, sub)
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("event stream write failed", "subscriber", sub.ID(), "error", err)
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-readDone:
			return nil
		}
	}
}

// closeStream tells the client why its subscription ended.
func (s *Server) closeStream(conn *websocket.Conn, sub *notify.Subscription) {
	if errors.Is(sub.Err(), notify.ErrSlowSubscriber) {
		s.logger.Warn("event stream dropped slow client", "subscriber", sub.ID())
		closeWith(conn, websocket.ClosePolicyViolation, "subscriber fell behind")
		return
	}
	closeWith(conn, websocket.CloseGoingAway, "server shutting down")
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readPump consumes client frames so control messages are processed.
// Clients are read-only; data frames are ignored.
func (s *Server) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}
