package server

import (
	"context"
	"log"

	"github.com/courseshelf/shelf/internal/store"
	shelfsync "github.com/courseshelf/shelf/internal/sync"
)

// Handler turns store change events and sync status transitions into
// websocket messages.
type Handler struct {
	server *Server
	store  *store.Store
	logger *log.Logger
}

// NewHandler creates a handler that broadcasts through server.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = server.logger
	}
	return &Handler{server: server, store: server.store, logger: logger}
}

// Attach subscribes the handler to the server's store and engine. The
// returned function removes both subscriptions.
func (h *Handler) Attach() (detach func()) {
	var stops []func()
	if h.store != nil {
		stops = append(stops, h.store.Subscribe(h.OnStoreChange))
	}
	if h.server.engine != nil {
		stops = append(stops, h.server.engine.Subscribe(h.OnSyncStatus))
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// OnStoreChange broadcasts a committed store write. Changes to progress
// and notes also refresh stats; content changes wait for the sync to
// settle so a large import sends one stats message.
func (h *Handler) OnStoreChange(ev store.ChangeEvent) {
	h.send(MessageTypeStoreChange, ev)

	if ev.Table == store.TableProgress || ev.Table == store.TableNotes {
		h.broadcastStats()
	}
}

// OnSyncStatus broadcasts a sync status transition.
func (h *Handler) OnSyncStatus(status shelfsync.Status) {
	if status.State == shelfsync.StateSettled && status.Report != nil {
		h.logger.Printf("Sync settled: %s", status.Report)
	}

	h.send(MessageTypeSyncStatus, status)

	if status.State == shelfsync.StateSettled {
		h.broadcastStats()
	}
}

// broadcastStats sends current row counts to all clients.
func (h *Handler) broadcastStats() {
	if h.store == nil {
		return
	}
	stats, err := h.store.Stats(context.Background())
	if err != nil {
		h.logger.Printf("Failed to load stats: %v", err)
		return
	}
	h.send(MessageTypeStats, stats)
}

func (h *Handler) send(typ MessageType, data any) {
	msg, err := newMessage(typ, data)
	if err != nil {
		h.logger.Printf("%v", err)
		return
	}
	h.server.Broadcast(msg)
}
