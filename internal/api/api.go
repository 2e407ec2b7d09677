package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/arijanluiken/quantcore/internal/script"
	"github.com/arijanluiken/quantcore/pkg/config"
	"github.com/arijanluiken/quantcore/pkg/database"
)

// Messages for API actor communication
type (
	StartServerMsg struct{}
	StopServerMsg  struct{}
	StatusMsg      struct{}

	SetWatchlistActorMsg struct {
		WatchlistPID *actor.PID
	}
	SetPriceCheckActorMsg struct {
		PriceCheckPID *actor.PID
	}
	SetSettingsActorMsg struct {
		SettingsPID *actor.PID
	}
	SetMarketActorMsg struct {
		Provider  string
		MarketPID *actor.PID
	}

	// BroadcastSnapshotMsg pushes a fresh analysis snapshot to all
	// connected WebSocket clients.
	BroadcastSnapshotMsg struct {
		Snapshot *database.Snapshot
	}
)

// APIActor provides REST API and WebSocket endpoints
type APIActor struct {
	config        *config.Config
	db            *database.DB
	logger        zerolog.Logger
	server        *http.Server
	router        chi.Router
	wsUpgrader    websocket.Upgrader
	scriptEngine  *script.Engine
	supervisorPID *actor.PID
	watchlistPID  *actor.PID
	pricecheckPID *actor.PID
	settingsPID   *actor.PID
	marketPIDs    map[string]*actor.PID // provider name -> market PID

	wsMu      sync.Mutex
	wsClients map[*websocket.Conn]bool
}

// New creates a new API actor
func New(cfg *config.Config, db *database.DB, logger zerolog.Logger) *APIActor {
	return &APIActor{
		config:       cfg,
		db:           db,
		logger:       logger,
		scriptEngine: script.NewEngine(logger),
		marketPIDs:   make(map[string]*actor.PID),
		wsClients:    make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				return true
			},
		},
	}
}

// SetSupervisorPID sets the supervisor actor PID for communication
func (a *APIActor) SetSupervisorPID(pid *actor.PID) {
	a.supervisorPID = pid
}

// Receive handles incoming messages
func (a *APIActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		a.onStarted(ctx)
	case actor.Stopped:
		a.onStopped(ctx)
	case StartServerMsg:
		a.onStartServer(ctx)
	case StopServerMsg:
		a.onStopServer(ctx)
	case StatusMsg:
		a.onStatus(ctx)
	case SetWatchlistActorMsg:
		a.watchlistPID = msg.WatchlistPID
		a.logger.Info().Msg("Watchlist actor reference set")
	case SetPriceCheckActorMsg:
		a.pricecheckPID = msg.PriceCheckPID
		a.logger.Info().Msg("Price check actor reference set")
	case SetSettingsActorMsg:
		a.settingsPID = msg.SettingsPID
		a.logger.Info().Msg("Settings actor reference set")
	case SetMarketActorMsg:
		a.marketPIDs[msg.Provider] = msg.MarketPID
		a.logger.Info().Str("provider", msg.Provider).Msg("Market actor reference set")
	case BroadcastSnapshotMsg:
		a.broadcastSnapshot(msg.Snapshot)
	default:
		a.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received message")
	}
}

func (a *APIActor) onStarted(ctx *actor.Context) {
	a.logger.Info().Msg("API actor started")

	// Get supervisor PID from parent
	if ctx.Parent() != nil {
		a.supervisorPID = ctx.Parent()
	}

	// Auto-start the server
	ctx.Send(ctx.PID(), StartServerMsg{})
}

func (a *APIActor) onStopped(ctx *actor.Context) {
	a.logger.Info().Msg("API actor stopped")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.server.Shutdown(shutdownCtx)
	}
}

func (a *APIActor) onStartServer(ctx *actor.Context) {
	a.logger.Info().Int("port", a.config.API.Port).Msg("Starting API server")

	a.setupRouter(ctx)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.API.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.API.Timeout,
		WriteTimeout: a.config.API.Timeout,
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error().Err(err).Msg("API server error")
		}
	}()

	a.logger.Info().Msg("API server started successfully")
}

func (a *APIActor) onStopServer(ctx *actor.Context) {
	if a.server == nil {
		return
	}

	a.logger.Info().Msg("Stopping API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("Error stopping API server")
	} else {
		a.logger.Info().Msg("API server stopped successfully")
	}
}

func (a *APIActor) onStatus(ctx *actor.Context) {
	a.wsMu.Lock()
	clients := len(a.wsClients)
	a.wsMu.Unlock()

	status := map[string]interface{}{
		"server_running": a.server != nil,
		"port":           a.config.API.Port,
		"market_actors":  len(a.marketPIDs),
		"ws_clients":     clients,
		"timestamp":      time.Now(),
	}

	ctx.Respond(status)
}

func (a *APIActor) setupRouter(ctx *actor.Context) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(a.config.API.Timeout))

	// CORS for development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

			if r.Method == "OPTIONS" {
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", a.handleHealth)

		// OpenAPI spec
		r.Get("/openapi.json", a.handleOpenAPISpec)

		// Ticker normalization
		r.Get("/normalize", a.handleNormalize)

		// On-demand indicator calculation
		r.Post("/indicators", a.handleIndicators)

		// Watchlist routes
		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", a.handleGetWatchlist(ctx))
			r.Post("/", a.handleAddWatchlist(ctx))
			r.Delete("/{symbol}", a.handleRemoveWatchlist(ctx))
		})

		// Symbol routes
		r.Route("/symbols/{symbol}", func(r chi.Router) {
			r.Get("/quote", a.handleGetQuote(ctx))
			r.Get("/closes", a.handleGetCloses(ctx))
			r.Get("/snapshot", a.handleGetSnapshot)
			r.Get("/snapshots", a.handleGetSnapshots)
			r.Post("/validate", a.handleValidatePrice(ctx))
		})

		// Runtime settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", a.handleGetSettings(ctx))
			r.Get("/{key}", a.handleGetSetting(ctx))
			r.Put("/{key}", a.handleSetSetting(ctx))
		})

		// Starlark analysis scripts
		r.Post("/scripts/{name}/run", a.handleRunScript)

		// Provider status and refresh
		r.Get("/providers", a.handleGetProviders(ctx))
		r.Post("/providers/{provider}/refresh", a.handleRefreshProvider(ctx))
	})

	// WebSocket endpoint
	r.HandleFunc("/ws", a.handleWebSocket(ctx))

	a.router = r
}

// Response helpers
func (a *APIActor) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (a *APIActor) writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (a *APIActor) broadcastSnapshot(snapshot *database.Snapshot) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":     "snapshot",
		"snapshot": snapshot,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to marshal snapshot broadcast")
		return
	}

	a.wsMu.Lock()
	defer a.wsMu.Unlock()
	for conn := range a.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			a.logger.Debug().Err(err).Msg("WebSocket broadcast failed, dropping client")
			conn.Close()
			delete(a.wsClients, conn)
		}
	}
}

func (a *APIActor) handleWebSocket(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := a.wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			a.logger.Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		a.wsMu.Lock()
		a.wsClients[conn] = true
		a.wsMu.Unlock()

		a.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket connection established")

		// Drain inbound messages; the connection is push-only.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		a.wsMu.Lock()
		delete(a.wsClients, conn)
		a.wsMu.Unlock()
		conn.Close()

		a.logger.Info().Str("remote", r.RemoteAddr).Msg("WebSocket connection closed")
	}
}
