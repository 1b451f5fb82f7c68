package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/waggleboard/waggle/pkg/board"
)

// changeFrame is the payload browsers receive when durable state changed.
// Presence events are forwarded as-is (their envelope already carries a
// type field); change notifications get this small wrapper.
type changeFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Options configures the gateway server.
type Options struct {
	// Listen is the bind address, e.g. ":8090".
	Listen string

	// AllowedOrigins restricts which origins may connect. Empty means all.
	AllowedOrigins []string
}

// Server exposes one workspace's real-time traffic over websockets.
type Server struct {
	client   *board.Client
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer creates a gateway server for the given workspace client.
func NewServer(client *board.Client, opts Options) *Server {
	if opts.Listen == "" {
		opts.Listen = ":8090"
	}

	return &Server{
		client: client,
		hub:    NewHub(),
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(opts.AllowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range opts.AllowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

// Run starts the hub, the Redis bridges, and the HTTP server, and blocks
// until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	presenceSub, err := s.client.SubscribePresence(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to presence events: %w", err)
	}
	defer presenceSub.Close()

	changeSub, err := s.client.SubscribeChanges(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change events: %w", err)
	}
	defer changeSub.Close()

	go s.hub.Run(ctx)
	go s.bridge(ctx, presenceSub, changeSub)

	router := mux.NewRouter()
	router.HandleFunc("/ws", s.handleWebSocket)
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOriginsOrAll(),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.server = &http.Server{
		Addr:         s.opts.Listen,
		Handler:      c.Handler(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websockets hold the connection open
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Printf("[Gateway] listening on %s for workspace '%s'", s.opts.Listen, s.client.Workspace())

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) allowedOriginsOrAll() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// bridge forwards workspace events to the hub: presence events go out
// excluding their originating session, change notifications go to everyone.
func (s *Server) bridge(ctx context.Context, presence *board.PresenceSubscription, changes *board.ChangeSubscription) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-presence.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("[Gateway] failed to marshal presence event: %v", err)
				continue
			}
			s.hub.Broadcast(payload, ev.SessionID)

		case err, ok := <-presence.Errors():
			if !ok {
				return
			}
			log.Printf("[Gateway] presence subscription error: %v", err)

		case kind, ok := <-changes.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(changeFrame{Type: "changed", Data: kind})
			if err != nil {
				log.Printf("[Gateway] failed to marshal change frame: %v", err)
				continue
			}
			s.hub.Broadcast(payload, "")
		}
	}
}

// handleWebSocket upgrades a browser connection and registers it with the
// hub. The browser may supply its own session identifier; otherwise one is
// assigned.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] upgrade failed: %v", err)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	client := &Client{
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, 64),
		sessionID: sessionID,
		republish: s.client.PublishPresence,
	}

	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// handleHealth handles GET /healthz requests.
// Returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := healthResponse{Status: "healthy", Redis: "connected"}
	code := http.StatusOK

	if err := s.client.Ping(ctx); err != nil {
		response = healthResponse{Status: "unhealthy", Redis: "disconnected", Error: err.Error()}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// healthResponse is the JSON response structure for health checks.
type healthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}
