package jobs

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// pingInterval matches spec.md §4.7's 30-second keep-alive.
const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// streamConn wraps one client's WebSocket connection: a mutex-guarded
// writer side plus a dedicated send goroutine draining a buffered channel,
// the same shape the coordinator in the retrieved pack uses for its
// client-side connection management, adapted here for a server accepting
// inbound job-progress subscribers instead of dialing out.
type streamConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	sendCh chan wireMessage
	closed bool
}

func newStreamConn(conn *websocket.Conn) *streamConn {
	return &streamConn{conn: conn, sendCh: make(chan wireMessage, 32)}
}

func (s *streamConn) send(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.sendCh <- wireMessage{Type: msgType, Payload: raw}:
		return nil
	default:
		slog.Default().Warn("jobs: stream send buffer full, dropping message", "type", msgType)
		return nil
	}
}

func (s *streamConn) close(code int, reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.sendCh)
	s.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = s.conn.Close()
}

func (s *streamConn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.sendCh:
			if !ok {
				return
			}
			raw, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// ServeStream upgrades an HTTP request to a WebSocket, authenticates the
// job token, and runs the connection's read/write loops until it closes.
// The initial job_started message is sent immediately on a successful
// upgrade, per spec.md §4.7.
func (m *Manager) ServeStream(w http.ResponseWriter, r *http.Request, jobID, token string) {
	validatedJobID, err := m.tokens.Validate(token)
	if err != nil || validatedJobID != jobID {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	if _, ok := m.get(jobID); !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sc := newStreamConn(conn)
	m.bindStream(jobID, sc)

	go sc.writeLoop()

	if err := sc.send("job_started", map[string]string{"jobId": jobID}); err != nil {
		slog.Default().Warn("jobs: job_started send failed", "job", jobID, "err", err)
	}

	conn.SetPongHandler(func(string) error { return nil })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.onDisconnect(jobID)
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ready":
			m.onReady(jobID)
		case "cancel":
			m.onCancel(jobID)
		case "ping":
			_ = sc.send("pong", nil)
		}
	}
}

// onDisconnect unblocks any in-progress WaitForReady so the worker isn't
// stuck waiting on a client that vanished without saying ready.
func (m *Manager) onDisconnect(jobID string) {
	h, ok := m.get(jobID)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.readyClosed {
		h.readyClosed = true
		close(h.readyCh)
	}
}
