package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local status UI, no cross-origin concerns
	},
}

// Web serves the hub's status API: device records over REST and the live
// event feed over a websocket.
type Web struct {
	registry *Registry
	feed     *Feed
	server   *http.Server
}

func NewWeb(addr string, registry *Registry, feed *Feed) *Web {
	w := &Web{registry: registry, feed: feed}

	r := chi.NewRouter()
	r.Get("/healthz", w.handleHealth)
	r.Get("/devices", w.handleDevices)
	r.Get("/devices/{id}", w.handleDeviceDetail)
	r.Get("/ws", w.handleWebSocket)

	w.server = &http.Server{Addr: addr, Handler: r}
	return w
}

// Start blocks serving until Shutdown.
func (s *Web) Start() error {
	slog.Info("starting status API", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Web) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Web) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Web) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.registry.List())
}

func (s *Web) handleDeviceDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.registry.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, rec)
}

func (s *Web) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	id, events := s.feed.Subscribe()
	slog.Info("feed client connected", "id", id, "addr", r.RemoteAddr)

	// Reader goroutine only to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.feed.Unsubscribe(id)
		conn.Close()
		slog.Info("feed client disconnected", "id", id)
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}
