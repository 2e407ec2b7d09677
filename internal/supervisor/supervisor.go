package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arijanluiken/quantcore/internal/analysis"
	"github.com/arijanluiken/quantcore/internal/api"
	"github.com/arijanluiken/quantcore/internal/market"
	"github.com/arijanluiken/quantcore/internal/pricecheck"
	"github.com/arijanluiken/quantcore/internal/settings"
	"github.com/arijanluiken/quantcore/internal/ui"
	"github.com/arijanluiken/quantcore/internal/watchlist"
	"github.com/arijanluiken/quantcore/pkg/config"
	"github.com/arijanluiken/quantcore/pkg/database"
	"github.com/arijanluiken/quantcore/pkg/providers"
)

// Messages for supervisor actor communication
type (
	StartMessage  struct{}
	StopMessage   struct{}
	StatusMessage struct{}
	ErrorMessage  struct{ Error error }

	RegisterProvider struct {
		Name string
	}
)

// Supervisor manages all other actors in the system
type Supervisor struct {
	config        *config.Config
	logger        zerolog.Logger
	marketActors  map[string]*actor.PID
	apiActor      *actor.PID
	uiActor       *actor.PID
	watchlistPID  *actor.PID
	pricecheckPID *actor.PID
	settingsPID   *actor.PID
	db            *database.DB
}

// New creates a new supervisor actor
func New() *Supervisor {
	return &Supervisor{
		logger:       log.With().Str("actor", "supervisor").Logger(),
		marketActors: make(map[string]*actor.PID),
	}
}

// Start initializes and starts the supervisor actor system
func (s *Supervisor) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting supervisor actor system")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	s.config = cfg

	// Initialize database
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	// Create actor engine
	engineConfig := actor.NewEngineConfig()
	engine, err := actor.NewEngine(engineConfig)
	if err != nil {
		return fmt.Errorf("failed to create actor engine: %w", err)
	}

	// Spawn supervisor actor
	supervisorPID := engine.Spawn(func() actor.Receiver {
		return s
	}, "supervisor")

	// Send start message to supervisor
	engine.Send(supervisorPID, StartMessage{})

	s.logger.Info().Msg("Supervisor actor system started successfully")
	return nil
}

// Receive handles incoming messages
func (s *Supervisor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		s.onStarted(ctx)
	case actor.Stopped:
		s.onStopped(ctx)
	case actor.Initialized:
		s.onInitialized(ctx)
	case StartMessage:
		s.onStart(ctx)
	case StopMessage:
		s.onStop(ctx)
	case StatusMessage:
		s.onStatus(ctx)
	case ErrorMessage:
		s.onError(ctx, msg)
	case RegisterProvider:
		s.startMarketActor(ctx, msg.Name)
	case watchlist.SymbolAddedEvent:
		s.onSymbolAdded(ctx, msg)
	case watchlist.SymbolRemovedEvent:
		s.onSymbolRemoved(ctx, msg)
	case analysis.SnapshotSavedEvent:
		s.onSnapshotSaved(ctx, msg)
	default:
		s.logger.Warn().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received unknown message")
	}
}

func (s *Supervisor) onStarted(ctx *actor.Context) {
	s.logger.Info().Msg("Supervisor actor started")
}

func (s *Supervisor) onStopped(ctx *actor.Context) {
	s.logger.Info().Msg("Supervisor actor stopped")
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Supervisor) onInitialized(ctx *actor.Context) {
	s.logger.Debug().Msg("Supervisor actor initialized")
}

func (s *Supervisor) onStart(ctx *actor.Context) {
	s.logger.Info().Msg("Starting child actors")

	// Start API actor
	apiActorPID := ctx.SpawnChild(func() actor.Receiver {
		return api.New(s.config, s.db, s.logger.With().Str("actor", "api").Logger())
	}, "api")
	s.apiActor = apiActorPID

	// Start UI actor
	uiActorPID := ctx.SpawnChild(func() actor.Receiver {
		return ui.New(s.config, s.logger.With().Str("actor", "ui").Logger())
	}, "ui")
	s.uiActor = uiActorPID

	// Start watchlist actor
	s.watchlistPID = ctx.SpawnChild(func() actor.Receiver {
		return watchlist.New(s.config, s.db, s.logger.With().Str("actor", "watchlist").Logger())
	}, "watchlist")

	// Start global settings actor
	s.settingsPID = ctx.SpawnChild(func() actor.Receiver {
		return settings.New("", s.config, s.db, s.logger.With().Str("actor", "settings").Logger())
	}, "settings")

	// Start price check actor over all enabled providers
	s.pricecheckPID = ctx.SpawnChild(func() actor.Receiver {
		return pricecheck.New(s.buildProviders(), s.config, s.db,
			s.logger.With().Str("actor", "pricecheck").Logger())
	}, "pricecheck")

	// Wire actor references into the API
	ctx.Send(s.apiActor, api.SetWatchlistActorMsg{WatchlistPID: s.watchlistPID})
	ctx.Send(s.apiActor, api.SetPriceCheckActorMsg{PriceCheckPID: s.pricecheckPID})
	ctx.Send(s.apiActor, api.SetSettingsActorMsg{SettingsPID: s.settingsPID})

	// Start one market actor per enabled provider
	for _, providerName := range s.config.Providers.Enabled {
		if !s.hasCredentials(providerName) {
			s.logger.Warn().Str("provider", providerName).Msg("Provider enabled but missing API credentials")
			continue
		}
		s.startMarketActor(ctx, providerName)
	}
}

func (s *Supervisor) onStop(ctx *actor.Context) {
	s.logger.Info().Msg("Stopping child actors")

	for name, pid := range s.marketActors {
		s.logger.Info().Str("provider", name).Msg("Stopping market actor")
		ctx.Send(pid, market.DisconnectMsg{})
		ctx.Engine().Stop(pid)
	}

	for _, pid := range []*actor.PID{s.apiActor, s.uiActor, s.watchlistPID, s.pricecheckPID, s.settingsPID} {
		if pid != nil {
			ctx.Engine().Stop(pid)
		}
	}
}

func (s *Supervisor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"timestamp":       time.Now(),
		"market_actors":   len(s.marketActors),
		"api_actor_alive": s.apiActor != nil,
		"ui_actor_alive":  s.uiActor != nil,
	}

	s.logger.Info().Interface("status", status).Msg("Supervisor status")
	ctx.Respond(status)
}

func (s *Supervisor) onError(ctx *actor.Context, msg ErrorMessage) {
	s.logger.Error().Err(msg.Error).Msg("Received error from child actor")
}

func (s *Supervisor) startMarketActor(ctx *actor.Context, providerName string) {
	if _, exists := s.marketActors[providerName]; exists {
		s.logger.Warn().Str("provider", providerName).Msg("Market actor already running")
		return
	}

	s.logger.Info().Str("provider", providerName).Msg("Starting market actor")

	marketActorPID := ctx.SpawnChild(func() actor.Receiver {
		return market.New(
			providerName,
			s.config,
			s.db,
			s.logger.With().Str("actor", "market").Str("provider", providerName).Logger(),
		)
	}, "market_"+providerName)

	s.marketActors[providerName] = marketActorPID
	ctx.Send(s.apiActor, api.SetMarketActorMsg{Provider: providerName, MarketPID: marketActorPID})
}

func (s *Supervisor) onSymbolAdded(ctx *actor.Context, msg watchlist.SymbolAddedEvent) {
	pid, exists := s.marketActors[msg.Entry.Provider]
	if !exists {
		s.logger.Warn().
			Str("symbol", msg.Entry.Symbol).
			Str("provider", msg.Entry.Provider).
			Msg("No market actor for provider, symbol not watched")
		return
	}
	ctx.Send(pid, market.WatchSymbolMsg{Symbol: msg.Entry.Symbol})
}

func (s *Supervisor) onSymbolRemoved(ctx *actor.Context, msg watchlist.SymbolRemovedEvent) {
	for _, pid := range s.marketActors {
		ctx.Send(pid, market.UnwatchSymbolMsg{Symbol: msg.Symbol})
	}
}

func (s *Supervisor) onSnapshotSaved(ctx *actor.Context, msg analysis.SnapshotSavedEvent) {
	if s.apiActor != nil {
		ctx.Send(s.apiActor, api.BroadcastSnapshotMsg{Snapshot: msg.Snapshot})
	}
}

// hasCredentials reports whether the provider can be constructed from
// the loaded configuration. Yahoo needs no credentials.
func (s *Supervisor) hasCredentials(providerName string) bool {
	switch providerName {
	case "yahoo":
		return true
	case "trading212":
		return s.config.Trading212APIKey != ""
	case "bybit":
		return s.config.BybitAPIKey != "" && s.config.BybitSecret != ""
	case "bitvavo":
		return s.config.BitvavoAPIKey != "" && s.config.BitvavoSecret != ""
	default:
		return false
	}
}

// buildProviders constructs one provider instance per enabled provider
// for multi-source price validation.
func (s *Supervisor) buildProviders() map[string]providers.Provider {
	factory := providers.NewFactory(s.logger.With().Str("component", "provider_factory").Logger())

	built := make(map[string]providers.Provider)
	for _, name := range s.config.Providers.Enabled {
		if !s.hasCredentials(name) {
			continue
		}

		providerConfig := map[string]interface{}{}
		switch name {
		case "trading212":
			providerConfig["api_key"] = s.config.Trading212APIKey
		case "bybit":
			providerConfig["api_key"] = s.config.BybitAPIKey
			providerConfig["secret"] = s.config.BybitSecret
			providerConfig["testnet"] = s.config.BybitTestnet
		case "bitvavo":
			providerConfig["api_key"] = s.config.BitvavoAPIKey
			providerConfig["secret"] = s.config.BitvavoSecret
		}

		provider, err := factory.CreateProvider(name, providerConfig)
		if err != nil {
			s.logger.Error().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		built[name] = provider
	}
	return built
}
