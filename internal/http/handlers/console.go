package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voxhealth/ivr-platform/internal/callflow"
	"github.com/voxhealth/ivr-platform/pkg/logging"
)

// ConsoleHandler streams call events (authorize URLs, transcript lines) to
// supervising operators over a websocket. This is the only surface where a
// capability URL is ever shown.
type ConsoleHandler struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	writeMu sync.Mutex // gorilla allows one concurrent writer per conn
	conns   map[*websocket.Conn]struct{}
}

// NewConsoleHandler creates the handler.
func NewConsoleHandler(logger *logging.Logger) *ConsoleHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConsoleHandler{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The console is a privileged testing surface behind the
			// deployment's own access controls.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Stream upgrades the connection and keeps it registered until the client
// goes away.
// Route: GET /console/ws
func (h *ConsoleHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("console upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("console client connected", "remote", conn.RemoteAddr().String())

	// Drain reads so pings and close frames are processed; drop the
	// connection on the first read error.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish fans an event out to every connected console client. Safe to call
// from any goroutine; a failed write drops that client.
func (h *ConsoleHandler) Publish(ev callflow.ConsoleEvent) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, c := range conns {
		if err := c.WriteJSON(ev); err != nil {
			h.logger.Warn("console write failed, dropping client", "error", err)
			h.drop(c)
		}
	}
}

func (h *ConsoleHandler) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}
