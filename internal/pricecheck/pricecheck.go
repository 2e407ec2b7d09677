package pricecheck

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/rs/zerolog"

	"github.com/arijanluiken/quantcore/pkg/config"
	"github.com/arijanluiken/quantcore/pkg/database"
	"github.com/arijanluiken/quantcore/pkg/providers"
)

// Messages for price check actor communication
type (
	ValidatePriceMsg struct {
		Symbol        string
		IntendedPrice float64
		HasIntended   bool
	}
	StatusMsg struct{}

	ValidationResponse struct {
		Symbol     string
		Validation *Validation
		Err        error
	}
)

// PriceCheckActor validates prices across all enabled providers
type PriceCheckActor struct {
	providers map[string]providers.Provider
	config    *config.Config
	db        *database.DB
	logger    zerolog.Logger

	checkCount int
}

// New creates a new price check actor
func New(provs map[string]providers.Provider, cfg *config.Config, db *database.DB, logger zerolog.Logger) *PriceCheckActor {
	return &PriceCheckActor{
		providers: provs,
		config:    cfg,
		db:        db,
		logger:    logger,
	}
}

// Receive handles incoming messages
func (p *PriceCheckActor) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		p.logger.Info().Int("providers", len(p.providers)).Msg("Price check actor started")
	case actor.Stopped:
		p.logger.Info().Msg("Price check actor stopped")
	case ValidatePriceMsg:
		p.onValidate(ctx, msg)
	case StatusMsg:
		p.onStatus(ctx)
	default:
		p.logger.Debug().
			Str("message_type", fmt.Sprintf("%T", msg)).
			Msg("Received unknown message")
	}
}

func (p *PriceCheckActor) onValidate(ctx *actor.Context, msg ValidatePriceMsg) {
	prices := p.fetchPrices(msg.Symbol)

	report, err := CalculateVariance(prices)
	if err != nil {
		p.logger.Error().Err(err).Str("symbol", msg.Symbol).Msg("Price validation failed")
		ctx.Respond(ValidationResponse{
			Symbol: msg.Symbol,
			Validation: &Validation{
				Action:  "block",
				Message: "Unable to validate price, no data sources available",
			},
			Err: err,
		})
		return
	}

	validation := Classify(report, msg.IntendedPrice, msg.HasIntended, p.threshold())
	p.checkCount++

	p.logger.Info().
		Str("symbol", msg.Symbol).
		Str("action", validation.Action).
		Float64("variance", validation.Variance).
		Float64("consensus", validation.RecommendedPrice).
		Int("sources", len(prices)).
		Msg("Price validated")

	ctx.Respond(ValidationResponse{Symbol: msg.Symbol, Validation: validation})
}

func (p *PriceCheckActor) fetchPrices(symbol string) map[string]float64 {
	prices := make(map[string]float64)
	for name, provider := range p.providers {
		quoteCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		quote, err := provider.GetQuote(quoteCtx, symbol)
		cancel()
		if err != nil {
			p.logger.Warn().Err(err).
				Str("symbol", symbol).
				Str("provider", name).
				Msg("Price fetch failed")
			continue
		}
		prices[name] = quote.Price
	}
	return prices
}

// threshold reads the configured variance threshold, falling back to
// the default when the setting is missing or malformed.
func (p *PriceCheckActor) threshold() float64 {
	raw, err := p.db.GetSetting("variance_threshold", "", "")
	if err != nil || raw == "" {
		return DefaultVarianceThreshold
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		p.logger.Warn().Str("value", raw).Msg("Invalid variance_threshold setting")
		return DefaultVarianceThreshold
	}
	return value
}

func (p *PriceCheckActor) onStatus(ctx *actor.Context) {
	status := map[string]interface{}{
		"providers":   len(p.providers),
		"check_count": p.checkCount,
		"timestamp":   time.Now(),
	}
	ctx.Respond(status)
}
