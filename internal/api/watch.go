package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxWatchConns  = 16
	watchWriteWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// CORS for the handshake is handled by corsMiddleware; the feed itself
	// is read-only observation data.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// watchHub fans tick summaries out to connected websocket clients. Slow
// clients are dropped rather than allowed to stall the broadcast.
type watchHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan map[string]any
}

func newWatchHub() *watchHub {
	return &watchHub{conns: make(map[*websocket.Conn]chan map[string]any)}
}

func (h *watchHub) add(conn *websocket.Conn) (chan map[string]any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) >= maxWatchConns {
		return nil, false
	}
	ch := make(chan map[string]any, 8)
	h.conns[conn] = ch
	return ch, true
}

func (h *watchHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.conns[conn]; ok {
		close(ch)
		delete(h.conns, conn)
	}
}

func (h *watchHub) broadcast(summary map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.conns {
		select {
		case ch <- summary:
		default:
			// Buffer full: the client is not keeping up.
			close(ch)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// handleWatch upgrades the connection and streams one JSON summary per
// scheduler tick until the client disconnects.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	ch, ok := s.watch.add(conn)
	if !ok {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many watchers"),
			time.Now().Add(watchWriteWait))
		conn.Close()
		return
	}
	slog.Debug("watcher connected", "remote", r.RemoteAddr)

	// Reader goroutine: we ignore client messages but must drain the
	// connection to notice disconnects.
	go func() {
		defer s.watch.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for summary := range ch {
			conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteJSON(summary); err != nil {
				s.watch.remove(conn)
				return
			}
		}
	}()
}
