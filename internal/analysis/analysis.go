package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/rs/zerolog"

	"github.com/arijanluiken/quantcore/pkg/config"
	"github.com/arijanluiken/quantcore/pkg/database"
	"github.com/arijanluiken/quantcore/pkg/providers"
)

// Messages for analysis actor communication
type (
	AnalyzeMsg struct{}
	StatusMsg  struct{}

	AnalysisResponse struct {
		Symbol   string
		Result   *Result
		Snapshot *database.Snapshot
		Err      error
	}

	// SnapshotSavedEvent bubbles up the actor tree after each persisted
	// snapshot so interested parties can push it to clients.
	SnapshotSavedEvent struct {
		Snapshot *database.Snapshot
	}
)

// AnalysisActor computes and persists indicator snapshots for one symbol
type AnalysisActor struct {
	symbol       string
	providerName string
	provider     providers.Provider
	config       *config.Config
	db           *database.DB
	logger       zerolog.Logger

	lastRun  time.Time
	runCount int
}

// New creates a new analysis actor for a symbol
func New(symbol string, provider providers.Provider, cfg *config.Config, db *database.DB, logger zerolog.Logger) *AnalysisActor {
	return &AnalysisActor{
		symbol:       symbol,
		providerName: provider.GetName(),
		provider:     provider,
		config:       cfg,
		db:           db,
		logger:       logger,
	}
}

// Receive handles incoming messages
func (a *AnalysisActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		a.onStarted(ctx)
	case actor.Stopped:
		a.onStopped(ctx)
	case AnalyzeMsg:
		a.onAnalyze(ctx)
	case StatusMsg:
		a.onStatus(ctx)
	default:
		a.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received unknown message")
	}
}

func (a *AnalysisActor) onStarted(ctx *actor.Context) {
	a.logger.Info().
		Str("symbol", a.symbol).
		Str("provider", a.providerName).
		Msg("Analysis actor started")

	// Run once immediately, then re-analyse every 5 minutes
	ctx.Send(ctx.PID(), AnalyzeMsg{})
	ctx.SendRepeat(ctx.PID(), AnalyzeMsg{}, 5*time.Minute)
}

func (a *AnalysisActor) onStopped(ctx *actor.Context) {
	a.logger.Info().Str("symbol", a.symbol).Msg("Analysis actor stopped")
}

func (a *AnalysisActor) onAnalyze(ctx *actor.Context) {
	fetchCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	candles, err := a.provider.GetOHLCV(fetchCtx, a.symbol, "1d", 250)
	if err != nil {
		a.logger.Error().Err(err).Str("symbol", a.symbol).Msg("Failed to fetch candles")
		ctx.Respond(AnalysisResponse{Symbol: a.symbol, Err: err})
		return
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	result, err := Compute(closes, volumes)
	if err != nil {
		a.logger.Error().Err(err).Str("symbol", a.symbol).Msg("Analysis failed")
		ctx.Respond(AnalysisResponse{Symbol: a.symbol, Err: err})
		return
	}

	snapshot := a.toSnapshot(result)
	if err := a.db.SaveSnapshot(snapshot); err != nil {
		a.logger.Error().Err(err).Str("symbol", a.symbol).Msg("Failed to persist snapshot")
		ctx.Respond(AnalysisResponse{Symbol: a.symbol, Result: result, Err: err})
		return
	}

	a.lastRun = time.Now()
	a.runCount++

	a.logger.Info().
		Str("symbol", a.symbol).
		Float64("price", result.CurrentPrice).
		Float64("rsi", result.Indicators.RSI).
		Str("signal", result.Signals.Overall).
		Int("data_points", result.DataPoints).
		Msg("Analysis snapshot saved")

	ctx.Respond(AnalysisResponse{Symbol: a.symbol, Result: result, Snapshot: snapshot})

	if parent := ctx.Parent(); parent != nil {
		ctx.Send(parent, SnapshotSavedEvent{Snapshot: snapshot})
	}
}

func (a *AnalysisActor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"symbol":    a.symbol,
		"provider":  a.providerName,
		"run_count": a.runCount,
		"last_run":  a.lastRun,
		"timestamp": time.Now(),
	}
	ctx.Respond(status)
}

func (a *AnalysisActor) toSnapshot(result *Result) *database.Snapshot {
	return &database.Snapshot{
		Symbol:       a.symbol,
		RSI:          result.Indicators.RSI,
		MACD:         result.Indicators.MACD,
		MACDSignal:   result.Indicators.MACDSignal,
		MACDHist:     result.Indicators.MACDHist,
		BBUpper:      result.Indicators.BBUpper,
		BBMiddle:     result.Indicators.BBMiddle,
		BBLower:      result.Indicators.BBLower,
		EMA50:        result.Indicators.EMA50,
		EMA200:       result.Indicators.EMA200,
		VolumeSMA:    result.Indicators.VolumeSMA,
		CurrentPrice: result.CurrentPrice,
		Signal:       result.Signals.Overall,
	}
}
