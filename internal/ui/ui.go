package ui

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/arijanluiken/quantcore/pkg/config"
)

//go:embed assets/*
var assets embed.FS

// Messages for UI actor communication
type (
	StartServerMsg struct{}
	StopServerMsg  struct{}
	StatusMsg      struct{}
)

// UIActor provides the web interface
type UIActor struct {
	config *config.Config
	logger zerolog.Logger
	server *http.Server
	router chi.Router
}

// New creates a new UI actor
func New(cfg *config.Config, logger zerolog.Logger) *UIActor {
	return &UIActor{
		config: cfg,
		logger: logger,
	}
}

// Receive handles incoming messages
func (u *UIActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		u.onStarted(ctx)
	case actor.Stopped:
		u.onStopped(ctx)
	case StartServerMsg:
		u.onStartServer(ctx)
	case StopServerMsg:
		u.onStopServer(ctx)
	case StatusMsg:
		u.onStatus(ctx)
	default:
		u.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received message")
	}
}

func (u *UIActor) onStarted(ctx *actor.Context) {
	u.logger.Info().Msg("UI actor started")

	// Auto-start the server
	ctx.Send(ctx.PID(), StartServerMsg{})
}

func (u *UIActor) onStopped(ctx *actor.Context) {
	u.logger.Info().Msg("UI actor stopped")

	if u.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		u.server.Shutdown(shutdownCtx)
	}
}

func (u *UIActor) onStartServer(ctx *actor.Context) {
	u.logger.Info().Int("port", u.config.UI.Port).Msg("Starting UI server")

	u.setupRouter()

	u.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", u.config.UI.Port),
		Handler: u.router,
	}

	go func() {
		if err := u.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			u.logger.Error().Err(err).Msg("UI server error")
		}
	}()

	u.logger.Info().Msg("UI server started successfully")
}

func (u *UIActor) onStopServer(ctx *actor.Context) {
	if u.server == nil {
		return
	}

	u.logger.Info().Msg("Stopping UI server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := u.server.Shutdown(shutdownCtx); err != nil {
		u.logger.Error().Err(err).Msg("Error stopping UI server")
	} else {
		u.logger.Info().Msg("UI server stopped successfully")
	}
}

func (u *UIActor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"server_running": u.server != nil,
		"port":           u.config.UI.Port,
		"timestamp":      time.Now(),
	}

	ctx.Respond(status)
}

func (u *UIActor) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Serve embedded static assets
	r.Handle("/assets/*", http.FileServer(http.FS(assets)))

	// Routes
	r.Get("/", u.handleIndex)
	r.Get("/dashboard", u.handleDashboard)

	u.router = r
}

func (u *UIActor) handleIndex(w http.ResponseWriter, r *http.Request) {
	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Quantcore Market Analysis</title>
    <link rel="stylesheet" href="https://unpkg.com/purecss@3.0.0/build/pure-min.css">
    <link rel="stylesheet" href="/assets/style.css">
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Quantcore</h1>
            <ul class="nav">
                <li><a href="/">Home</a></li>
                <li><a href="/dashboard">Dashboard</a></li>
            </ul>
        </div>

        <div class="card">
            <h2>Market Analysis Service</h2>
            <p>Ticker normalization, technical indicators and multi-source price validation.</p>
        </div>

        <div class="card">
            <h3>Quick Status</h3>
            <p>Service: <span class="status running">Running</span></p>
            <p>Watched Symbols: <span id="symbol-count">Loading...</span></p>
        </div>
    </div>

    <script>
        fetch('http://localhost:%d/api/v1/watchlist')
            .then(response => response.json())
            .then(data => {
                document.getElementById('symbol-count').textContent =
                    (data.watchlist || []).length;
            })
            .catch(error => {
                console.error('API Error:', error);
            });
    </script>
</body>
</html>`, u.config.API.Port)

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

func (u *UIActor) handleDashboard(w http.ResponseWriter, r *http.Request) {
	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Dashboard - Quantcore</title>
    <link rel="stylesheet" href="https://unpkg.com/purecss@3.0.0/build/pure-min.css">
    <link rel="stylesheet" href="/assets/style.css">
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Dashboard</h1>
            <ul class="nav">
                <li><a href="/">Home</a></li>
                <li><a href="/dashboard">Dashboard</a></li>
            </ul>
        </div>

        <div class="card">
            <h3>Latest Snapshots</h3>
            <table class="pure-table" id="snapshot-table">
                <thead>
                    <tr><th>Symbol</th><th>Price</th><th>RSI</th><th>MACD</th><th>Signal</th></tr>
                </thead>
                <tbody id="snapshot-body">
                    <tr><td colspan="5">Loading...</td></tr>
                </tbody>
            </table>
        </div>
    </div>

    <script>
        const apiBase = 'http://localhost:%d/api/v1';

        async function loadSnapshots() {
            const body = document.getElementById('snapshot-body');
            try {
                const list = await fetch(apiBase + '/watchlist').then(r => r.json());
                const entries = list.watchlist || [];
                if (entries.length === 0) {
                    body.innerHTML = '<tr><td colspan="5">Watchlist is empty</td></tr>';
                    return;
                }
                const rows = await Promise.all(entries.map(async entry => {
                    try {
                        const snap = await fetch(apiBase + '/symbols/' +
                            encodeURIComponent(entry.symbol) + '/snapshot').then(r => r.json());
                        return '<tr><td>' + entry.symbol + '</td><td>' +
                            (snap.current_price ?? '-') + '</td><td>' +
                            (snap.rsi?.toFixed ? snap.rsi.toFixed(2) : '-') + '</td><td>' +
                            (snap.macd?.toFixed ? snap.macd.toFixed(4) : '-') + '</td><td>' +
                            (snap.signal ?? '-') + '</td></tr>';
                    } catch (e) {
                        return '<tr><td>' + entry.symbol + '</td><td colspan="4">no data</td></tr>';
                    }
                }));
                body.innerHTML = rows.join('');
            } catch (e) {
                body.innerHTML = '<tr><td colspan="5">API unavailable</td></tr>';
            }
        }

        loadSnapshots();
        setInterval(loadSnapshots, 30000);
    </script>
</body>
</html>`, u.config.API.Port)

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}
