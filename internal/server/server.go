// Package server exposes the course store over HTTP and streams store and
// sync events to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/courseshelf/shelf/internal/catalog"
	"github.com/courseshelf/shelf/internal/store"
	shelfsync "github.com/courseshelf/shelf/internal/sync"
)

// MessageType defines the type of websocket message.
type MessageType string

const (
	// MessageTypeSyncStatus carries a sync.Status on every transition.
	MessageTypeSyncStatus MessageType = "sync_status"

	// MessageTypeStoreChange carries a store.ChangeEvent after a commit.
	MessageTypeStoreChange MessageType = "store_change"

	// MessageTypeStats carries store.Stats row counts.
	MessageTypeStats MessageType = "stats"
)

// Message represents a websocket broadcast message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default ":8080"). Use "127.0.0.1:0" for a random port.
	Addr string

	// RequestTimeout bounds API requests (default 60s). Websocket
	// connections are not affected.
	RequestTimeout time.Duration

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		RequestTimeout: 60 * time.Second,
		Logger:         log.New(os.Stderr, "[server] ", log.LstdFlags),
	}
}

// Deps are the components the server reads from and drives.
type Deps struct {
	Store   *store.Store
	Engine  shelfsync.Syncer
	Catalog catalog.Reader
}

// Server serves the REST API and the /ws live feed.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	router   chi.Router
	timeout  time.Duration

	store   *store.Store
	engine  shelfsync.Syncer
	catalog catalog.Reader

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a server. The broadcast loop starts immediately so
// Handler works with httptest without calling Start.
func NewServer(config *Config, deps Deps) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:      config.Addr,
		timeout:   config.RequestTimeout,
		store:     deps.Store,
		engine:    deps.Engine,
		catalog:   deps.Catalog,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
	s.router = s.routes()

	s.wg.Add(1)
	go s.broadcastLoop()

	return s
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// routes builds the router. The timeout middleware applies to /api only so
// websocket connections stay open.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Get("/courses/available", s.handleAvailableCourses)
		r.Get("/sync/status", s.handleSyncStatus)
		r.Post("/sync", s.handleSync)

		r.Get("/courses", s.handleListCourses)
		r.Route("/courses/{courseID}", func(r chi.Router) {
			r.Get("/", s.handleGetCourse)
			r.Delete("/", s.handleRemoveCourse)
			r.Get("/chapters/{chapterID}", s.handleGetChapter)
			r.Get("/progress", s.handleListProgress)
			r.Get("/notes", s.handleListNotes)
		})

		r.Put("/progress", s.handleMarkProgress)

		r.Post("/notes", s.handleCreateNote)
		r.Put("/notes/{noteID}", s.handleUpdateNote)
		r.Delete("/notes/{noteID}", s.handleDeleteNote)
	})

	return r
}

// Start begins listening and serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop closes websocket clients, shuts the HTTP server down and waits for
// background goroutines.
func (s *Server) Stop() error {
	s.logger.Println("Stopping server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("Server stopped")
	return nil
}

// Broadcast queues a message for all connected clients. Messages are
// dropped when the queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now().UTC()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Written outside the lock so a slow client does not block
			// connects and disconnects.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades the connection and sends the current sync
// status as the first message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	welcome, err := s.statusMessage()
	if err == nil {
		data, _ := json.Marshal(welcome)
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		err = conn.Write(ctx, websocket.MessageText, data)
		cancel()
	}
	if err != nil {
		s.logger.Printf("Failed to send welcome message: %v", err)
		_ = conn.Close(websocket.StatusInternalError, "welcome failed")
		return
	}

	// Registered after the welcome so it is always the first message.
	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and notices client disconnects.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) statusMessage() (Message, error) {
	var status shelfsync.Status
	if s.engine != nil {
		status = s.engine.Status()
	}
	return newMessage(MessageTypeSyncStatus, status)
}

// newMessage marshals data into a Message of type typ.
func newMessage(typ MessageType, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s message: %w", typ, err)
	}
	return Message{Type: typ, Timestamp: time.Now().UTC(), Data: raw}, nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
