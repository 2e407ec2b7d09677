package market

import (
	"context"
	"fmt"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/rs/zerolog"

	"github.com/arijanluiken/quantcore/internal/analysis"
	"github.com/arijanluiken/quantcore/pkg/config"
	"github.com/arijanluiken/quantcore/pkg/database"
	"github.com/arijanluiken/quantcore/pkg/providers"
)

// Messages for market actor communication
type (
	ConnectMsg    struct{}
	DisconnectMsg struct{}

	WatchSymbolMsg   struct{ Symbol string }
	UnwatchSymbolMsg struct{ Symbol string }

	GetQuoteMsg  struct{ Symbol string }
	GetClosesMsg struct {
		Symbol string
		Limit  int
	}
	RefreshAllMsg struct{}
	StatusMsg     struct{}

	QuoteResponse struct {
		Quote *providers.Quote
		Err   error
	}
	ClosesResponse struct {
		Symbol string
		Closes []float64
		Err    error
	}
)

// MarketActor owns a single provider connection and one analysis child
// per watched symbol.
type MarketActor struct {
	providerName string
	config       *config.Config
	db           *database.DB
	logger       zerolog.Logger
	factory      *providers.Factory
	provider     providers.Provider

	analysisActors map[string]*actor.PID
	connected      bool
}

// New creates a new market actor for a provider
func New(providerName string, cfg *config.Config, db *database.DB, logger zerolog.Logger) *MarketActor {
	return &MarketActor{
		providerName:   providerName,
		config:         cfg,
		db:             db,
		logger:         logger,
		factory:        providers.NewFactory(logger),
		analysisActors: make(map[string]*actor.PID),
	}
}

// Receive handles incoming messages
func (m *MarketActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		m.onStarted(ctx)
	case actor.Stopped:
		m.onStopped(ctx)
	case ConnectMsg:
		m.onConnect(ctx)
	case DisconnectMsg:
		m.onDisconnect(ctx)
	case WatchSymbolMsg:
		m.onWatchSymbol(ctx, msg)
	case UnwatchSymbolMsg:
		m.onUnwatchSymbol(ctx, msg)
	case GetQuoteMsg:
		m.onGetQuote(ctx, msg)
	case GetClosesMsg:
		m.onGetCloses(ctx, msg)
	case RefreshAllMsg:
		m.onRefreshAll(ctx)
	case analysis.SnapshotSavedEvent:
		// Bubble snapshots up to the supervisor
		if parent := ctx.Parent(); parent != nil {
			ctx.Send(parent, msg)
		}
	case StatusMsg:
		m.onStatus(ctx)
	default:
		m.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received unknown message")
	}
}

func (m *MarketActor) onStarted(ctx *actor.Context) {
	m.logger.Info().Str("provider", m.providerName).Msg("Market actor started")

	// Auto-connect, then pick up symbols already on the watchlist
	ctx.Send(ctx.PID(), ConnectMsg{})
}

func (m *MarketActor) onStopped(ctx *actor.Context) {
	m.logger.Info().Str("provider", m.providerName).Msg("Market actor stopped")

	if m.provider != nil && m.connected {
		m.provider.Disconnect()
	}
}

func (m *MarketActor) onConnect(ctx *actor.Context) {
	if m.connected {
		m.logger.Warn().Msg("Already connected to provider")
		return
	}

	provider, err := m.factory.CreateProvider(m.providerName, m.providerConfig())
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to create provider instance")
		return
	}
	m.provider = provider

	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.provider.Connect(connectCtx); err != nil {
		m.logger.Error().Err(err).Msg("Failed to connect to provider")
		return
	}

	m.connected = true
	m.logger.Info().Str("provider", m.providerName).Msg("Connected to provider")

	m.watchPersisted(ctx)
}

func (m *MarketActor) onDisconnect(ctx *actor.Context) {
	if !m.connected {
		m.logger.Warn().Msg("Not connected to provider")
		return
	}

	if err := m.provider.Disconnect(); err != nil {
		m.logger.Error().Err(err).Msg("Error disconnecting from provider")
	}

	m.connected = false
	m.logger.Info().Msg("Disconnected from provider")
}

// watchPersisted spawns analysis children for watchlist entries
// assigned to this provider.
func (m *MarketActor) watchPersisted(ctx *actor.Context) {
	entries, err := m.db.GetWatchlist()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to load watchlist")
		return
	}
	for _, entry := range entries {
		if entry.Provider == m.providerName {
			m.startAnalysis(ctx, entry.Symbol)
		}
	}
}

func (m *MarketActor) onWatchSymbol(ctx *actor.Context, msg WatchSymbolMsg) {
	if !m.connected {
		m.logger.Error().Str("symbol", msg.Symbol).Msg("Cannot watch symbol: not connected")
		return
	}
	m.startAnalysis(ctx, msg.Symbol)
}

func (m *MarketActor) startAnalysis(ctx *actor.Context, symbol string) {
	if _, exists := m.analysisActors[symbol]; exists {
		m.logger.Debug().Str("symbol", symbol).Msg("Symbol already watched")
		return
	}

	pid := ctx.SpawnChild(func() actor.Receiver {
		return analysis.New(symbol, m.provider, m.config, m.db,
			m.logger.With().Str("actor", "analysis").Str("symbol", symbol).Logger())
	}, "analysis/"+symbol)
	m.analysisActors[symbol] = pid

	m.logger.Info().Str("symbol", symbol).Msg("Watching symbol")
}

func (m *MarketActor) onUnwatchSymbol(ctx *actor.Context, msg UnwatchSymbolMsg) {
	pid, exists := m.analysisActors[msg.Symbol]
	if !exists {
		return
	}

	ctx.Engine().Stop(pid)
	delete(m.analysisActors, msg.Symbol)
	m.logger.Info().Str("symbol", msg.Symbol).Msg("Stopped watching symbol")
}

func (m *MarketActor) onGetQuote(ctx *actor.Context, msg GetQuoteMsg) {
	if !m.connected {
		ctx.Respond(QuoteResponse{Err: fmt.Errorf("not connected")})
		return
	}

	quoteCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	quote, err := m.provider.GetQuote(quoteCtx, msg.Symbol)
	if err != nil {
		m.logger.Error().Err(err).Str("symbol", msg.Symbol).Msg("Failed to get quote")
		ctx.Respond(QuoteResponse{Err: err})
		return
	}
	ctx.Respond(QuoteResponse{Quote: quote})
}

func (m *MarketActor) onGetCloses(ctx *actor.Context, msg GetClosesMsg) {
	if !m.connected {
		ctx.Respond(ClosesResponse{Symbol: msg.Symbol, Err: fmt.Errorf("not connected")})
		return
	}

	limit := msg.Limit
	if limit <= 0 {
		limit = 250
	}

	closesCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	closes, err := m.provider.GetDailyCloses(closesCtx, msg.Symbol, limit)
	if err != nil {
		m.logger.Error().Err(err).Str("symbol", msg.Symbol).Msg("Failed to get closes")
		ctx.Respond(ClosesResponse{Symbol: msg.Symbol, Err: err})
		return
	}
	ctx.Respond(ClosesResponse{Symbol: msg.Symbol, Closes: closes})
}

func (m *MarketActor) onRefreshAll(ctx *actor.Context) {
	for symbol, pid := range m.analysisActors {
		m.logger.Debug().Str("symbol", symbol).Msg("Triggering analysis refresh")
		ctx.Send(pid, analysis.AnalyzeMsg{})
	}
}

func (m *MarketActor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"provider":  m.providerName,
		"connected": m.connected,
		"symbols":   len(m.analysisActors),
		"timestamp": time.Now(),
	}
	ctx.Respond(status)
}

// providerConfig assembles factory credentials from the loaded config
func (m *MarketActor) providerConfig() map[string]interface{} {
	providerConfig := map[string]interface{}{}

	switch m.providerName {
	case "trading212":
		providerConfig["api_key"] = m.config.Trading212APIKey
	case "bybit":
		providerConfig["api_key"] = m.config.BybitAPIKey
		providerConfig["secret"] = m.config.BybitSecret
		providerConfig["testnet"] = m.config.BybitTestnet
	case "bitvavo":
		providerConfig["api_key"] = m.config.BitvavoAPIKey
		providerConfig["secret"] = m.config.BitvavoSecret
	}

	return providerConfig
}
