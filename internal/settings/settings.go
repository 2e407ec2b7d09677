package settings

import (
	"fmt"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/rs/zerolog"

	"github.com/arijanluiken/quantcore/pkg/config"
	"github.com/arijanluiken/quantcore/pkg/database"
)

// Messages for settings actor communication
type (
	GetSettingMsg     struct{ Key string }
	SetSettingMsg     struct{ Key, Value string }
	GetAllSettingsMsg struct{}
	StatusMsg         struct{}

	// Response message for get operations
	SettingResponse struct {
		Key   string
		Value string
		Found bool
	}

	AllSettingsResponse struct {
		Settings map[string]string
		Err      error
	}
)

// SettingsActor manages persistent runtime settings, keyed per provider
type SettingsActor struct {
	providerName string
	config       *config.Config
	db           *database.DB
	logger       zerolog.Logger
}

// New creates a new settings actor
func New(providerName string, cfg *config.Config, db *database.DB, logger zerolog.Logger) *SettingsActor {
	return &SettingsActor{
		providerName: providerName,
		config:       cfg,
		db:           db,
		logger:       logger,
	}
}

// Receive handles incoming messages
func (s *SettingsActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		s.onStarted(ctx)
	case actor.Stopped:
		s.onStopped(ctx)
	case GetSettingMsg:
		s.onGetSetting(ctx, msg)
	case SetSettingMsg:
		s.onSetSetting(ctx, msg)
	case GetAllSettingsMsg:
		s.onGetAllSettings(ctx)
	case StatusMsg:
		s.onStatus(ctx)
	default:
		s.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received message")
	}
}

func (s *SettingsActor) onStarted(ctx *actor.Context) {
	s.logger.Info().
		Str("provider", s.providerName).
		Msg("Settings actor started")
}

func (s *SettingsActor) onStopped(ctx *actor.Context) {
	s.logger.Info().
		Str("provider", s.providerName).
		Msg("Settings actor stopped")
}

func (s *SettingsActor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"provider":  s.providerName,
		"timestamp": time.Now(),
	}

	ctx.Respond(status)
}

func (s *SettingsActor) onGetSetting(ctx *actor.Context, msg GetSettingMsg) {
	value, err := s.db.GetSetting(msg.Key, s.providerName, "")
	if err != nil {
		s.logger.Error().Err(err).Str("key", msg.Key).Msg("Error querying setting")
		ctx.Respond(SettingResponse{Key: msg.Key, Found: false})
		return
	}

	// Missing keys resolve to the empty default.
	ctx.Respond(SettingResponse{
		Key:   msg.Key,
		Value: value,
		Found: value != "",
	})
}

func (s *SettingsActor) onSetSetting(ctx *actor.Context, msg SetSettingMsg) {
	if err := s.db.SetSetting(msg.Key, msg.Value, s.providerName); err != nil {
		s.logger.Error().Err(err).
			Str("key", msg.Key).
			Str("value", msg.Value).
			Msg("Failed to store setting")
		ctx.Respond(fmt.Errorf("failed to store setting: %w", err))
		return
	}

	s.logger.Info().
		Str("key", msg.Key).
		Str("value", msg.Value).
		Msg("Setting stored successfully")

	ctx.Respond("OK")
}

func (s *SettingsActor) onGetAllSettings(ctx *actor.Context) {
	settings, err := s.db.GetAllSettings(s.providerName)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load settings")
		ctx.Respond(AllSettingsResponse{Err: err})
		return
	}
	ctx.Respond(AllSettingsResponse{Settings: settings})
}
