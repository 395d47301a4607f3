package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// liveMessage is the envelope for everything sent on /ws/live.
type liveMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// handleLive pushes newly ingested events to the client. On connect it sends
// the latest stored event, then forwards the live channel. A {"type":"ping"}
// text message is answered with {"type":"pong"}.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if !s.trackLive() {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	defer s.liveConns.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.metrics.LiveClients.Inc()
	defer s.metrics.LiveClients.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var events <-chan []byte
	if s.backends.Live != nil {
		events, err = s.backends.Live.Subscribe(ctx)
		if err != nil {
			s.logger.Warn("live subscribe failed", "error", err)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "live feed unavailable"),
				time.Now().Add(writeWait))
			return
		}
	}

	if err := s.sendLatest(ctx, conn); err != nil {
		return
	}

	// Only this goroutine reads; only the loop below writes.
	pings := make(chan struct{}, 1)
	go s.readPump(conn, cancel, pings)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.liveShutdown:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			if err := writeLive(conn, liveMessage{Type: "event", Data: payload}); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-pings:
			if err := writeLive(conn, liveMessage{Type: "pong"}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendLatest(ctx context.Context, conn *websocket.Conn) error {
	if s.backends.Latest == nil {
		return nil
	}
	event, ok, err := s.backends.Latest.LatestEvent(ctx)
	if err != nil {
		s.logger.Warn("latest event lookup failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return writeLive(conn, liveMessage{Type: "latest_event", Data: data})
}

// readPump detects disconnects and client pings. It cancels the connection
// context when the client goes away.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc, pings chan<- struct{}) {
	defer cancel()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg liveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				continue
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if msg.Type == "ping" {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func writeLive(conn *websocket.Conn, msg liveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
