package watchlist

import (
	"fmt"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/rs/zerolog"

	"github.com/arijanluiken/quantcore/pkg/config"
	"github.com/arijanluiken/quantcore/pkg/database"
	"github.com/arijanluiken/quantcore/pkg/ticker"
)

// Messages for watchlist actor communication
type (
	AddSymbolMsg struct {
		RawTicker string
		Provider  string
	}
	RemoveSymbolMsg struct {
		Symbol string
	}
	ListSymbolsMsg struct{}
	StatusMsg      struct{}

	AddSymbolResponse struct {
		Entry *database.WatchlistEntry
		Err   error
	}
	RemoveSymbolResponse struct {
		Symbol string
		Err    error
	}
	ListSymbolsResponse struct {
		Entries []*database.WatchlistEntry
		Err     error
	}

	// SymbolAddedEvent is broadcast to the parent after a successful add
	// so market actors can start analysing the new symbol.
	SymbolAddedEvent struct {
		Entry *database.WatchlistEntry
	}
	// SymbolRemovedEvent mirrors SymbolAddedEvent for removals.
	SymbolRemovedEvent struct {
		Symbol string
	}
)

// WatchlistActor manages the set of watched symbols
type WatchlistActor struct {
	config *config.Config
	db     *database.DB
	logger zerolog.Logger
}

// New creates a new watchlist actor
func New(cfg *config.Config, db *database.DB, logger zerolog.Logger) *WatchlistActor {
	return &WatchlistActor{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

// Receive handles incoming messages
func (w *WatchlistActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		w.onStarted(ctx)
	case actor.Stopped:
		w.logger.Info().Msg("Watchlist actor stopped")
	case AddSymbolMsg:
		w.onAddSymbol(ctx, msg)
	case RemoveSymbolMsg:
		w.onRemoveSymbol(ctx, msg)
	case ListSymbolsMsg:
		w.onListSymbols(ctx)
	case StatusMsg:
		w.onStatus(ctx)
	default:
		w.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received unknown message")
	}
}

func (w *WatchlistActor) onStarted(ctx *actor.Context) {
	entries, err := w.db.GetWatchlist()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to load watchlist")
		return
	}
	w.logger.Info().Int("symbols", len(entries)).Msg("Watchlist actor started")
}

func (w *WatchlistActor) onAddSymbol(ctx *actor.Context, msg AddSymbolMsg) {
	entry, err := w.addEntry(msg.RawTicker, msg.Provider)
	if err != nil {
		w.logger.Error().Err(err).Str("raw", msg.RawTicker).Msg("Failed to add watchlist entry")
		ctx.Respond(AddSymbolResponse{Err: err})
		return
	}

	w.logger.Info().
		Str("raw", msg.RawTicker).
		Str("symbol", entry.Symbol).
		Str("provider", entry.Provider).
		Msg("Symbol added to watchlist")

	ctx.Respond(AddSymbolResponse{Entry: entry})

	if parent := ctx.Parent(); parent != nil {
		ctx.Send(parent, SymbolAddedEvent{Entry: entry})
	}
}

// addEntry normalizes the raw ticker, fills in the default provider
// and persists the entry.
func (w *WatchlistActor) addEntry(rawTicker, provider string) (*database.WatchlistEntry, error) {
	if rawTicker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	symbol := ticker.Normalize(rawTicker)
	if provider == "" {
		provider = w.defaultProvider()
	}

	entry := &database.WatchlistEntry{
		Symbol:    symbol,
		RawSymbol: rawTicker,
		Provider:  provider,
	}
	if err := w.db.AddWatchlistEntry(entry); err != nil {
		return nil, fmt.Errorf("add %s: %w", symbol, err)
	}
	return entry, nil
}

func (w *WatchlistActor) onRemoveSymbol(ctx *actor.Context, msg RemoveSymbolMsg) {
	symbol := ticker.Normalize(msg.Symbol)
	if err := w.db.RemoveWatchlistEntry(symbol); err != nil {
		w.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to remove watchlist entry")
		ctx.Respond(RemoveSymbolResponse{Symbol: symbol, Err: err})
		return
	}

	w.logger.Info().Str("symbol", symbol).Msg("Symbol removed from watchlist")
	ctx.Respond(RemoveSymbolResponse{Symbol: symbol})

	if parent := ctx.Parent(); parent != nil {
		ctx.Send(parent, SymbolRemovedEvent{Symbol: symbol})
	}
}

func (w *WatchlistActor) onListSymbols(ctx *actor.Context) {
	entries, err := w.db.GetWatchlist()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list watchlist")
		ctx.Respond(ListSymbolsResponse{Err: err})
		return
	}
	ctx.Respond(ListSymbolsResponse{Entries: entries})
}

func (w *WatchlistActor) onStatus(ctx *actor.Context) {
	entries, _ := w.db.GetWatchlist()
	status := map[string]interface{}{
		"symbols":   len(entries),
		"timestamp": time.Now(),
	}
	ctx.Respond(status)
}

func (w *WatchlistActor) defaultProvider() string {
	if len(w.config.Providers.Enabled) > 0 {
		return w.config.Providers.Enabled[0]
	}
	return "yahoo"
}
