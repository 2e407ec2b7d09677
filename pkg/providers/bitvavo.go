package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bitvavo/go-bitvavo-api"
	"github.com/rs/zerolog"
)

// BitvavoProvider implements the Provider interface for Bitvavo markets
type BitvavoProvider struct {
	client    *bitvavo.Bitvavo
	logger    zerolog.Logger
	name      string
	connected bool
}

// NewBitvavo creates a new Bitvavo provider instance
func NewBitvavo(apiKey, secret string, logger zerolog.Logger) *BitvavoProvider {
	client := &bitvavo.Bitvavo{
		ApiKey:    apiKey,
		ApiSecret: secret,
	}

	return &BitvavoProvider{
		client: client,
		logger: logger.With().Str("provider", "bitvavo").Logger(),
		name:   "bitvavo",
	}
}

// GetName returns the provider name
func (b *BitvavoProvider) GetName() string {
	return b.name
}

// Connect marks the provider as ready
func (b *BitvavoProvider) Connect(ctx context.Context) error {
	b.logger.Info().Msg("Connecting to Bitvavo")
	b.connected = true
	return nil
}

// Disconnect releases the provider
func (b *BitvavoProvider) Disconnect() error {
	b.logger.Info().Msg("Disconnecting from Bitvavo")
	b.connected = false
	return nil
}

// IsConnected checks if the provider is ready
func (b *BitvavoProvider) IsConnected() bool {
	return b.connected && b.client != nil
}

// GetQuote retrieves the latest price for a market (BTC-EUR style symbols)
func (b *BitvavoProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	tickers, err := b.client.TickerPrice(map[string]string{"market": symbol})
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker for %s: %w", symbol, err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no ticker data for %s", symbol)
	}

	price, err := strconv.ParseFloat(tickers[0].Price, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
	}

	return &Quote{
		Symbol: symbol,
		Price:  price,
	}, nil
}

// GetDailyCloses retrieves up to limit daily closing prices, oldest first
func (b *BitvavoProvider) GetDailyCloses(ctx context.Context, symbol string, limit int) ([]float64, error) {
	candles, err := b.GetOHLCV(ctx, symbol, "1d", limit)
	if err != nil {
		return nil, err
	}

	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		closes = append(closes, c.Close)
	}
	return closes, nil
}

// GetOHLCV retrieves historical candle data, oldest first
func (b *BitvavoProvider) GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]*Candle, error) {
	options := map[string]string{}
	if limit > 0 {
		options["limit"] = strconv.Itoa(limit)
	}

	raw, err := b.client.Candles(symbol, interval, options)
	if err != nil {
		return nil, fmt.Errorf("failed to get candles for %s: %w", symbol, err)
	}

	// Bitvavo returns newest first
	candles := make([]*Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		item := raw[i]
		open, _ := strconv.ParseFloat(item.Open, 64)
		high, _ := strconv.ParseFloat(item.High, 64)
		low, _ := strconv.ParseFloat(item.Low, 64)
		closePrice, _ := strconv.ParseFloat(item.Close, 64)
		volume, _ := strconv.ParseFloat(item.Volume, 64)

		candles = append(candles, &Candle{
			Symbol:    symbol,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			Timestamp: time.Unix(int64(item.Timestamp)/1000, 0),
			Interval:  interval,
		})
	}

	return candles, nil
}
