package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/rs/zerolog"
)

// BybitProvider implements the Provider interface for Bybit spot markets
type BybitProvider struct {
	client    *bybit.Client
	logger    zerolog.Logger
	name      string
	testnet   bool
	connected bool
}

// NewBybit creates a new Bybit provider instance
func NewBybit(apiKey, secret string, testnet bool, logger zerolog.Logger) *BybitProvider {
	var client *bybit.Client
	if testnet {
		client = bybit.NewClient().WithAuth(apiKey, secret).WithBaseURL("https://api-testnet.bybit.com")
	} else {
		client = bybit.NewClient().WithAuth(apiKey, secret)
	}

	return &BybitProvider{
		client:  client,
		logger:  logger.With().Str("provider", "bybit").Logger(),
		name:    "bybit",
		testnet: testnet,
	}
}

// GetName returns the provider name
func (b *BybitProvider) GetName() string {
	return b.name
}

// Connect marks the provider as ready
func (b *BybitProvider) Connect(ctx context.Context) error {
	b.logger.Info().Bool("testnet", b.testnet).Msg("Connecting to Bybit")
	b.connected = true
	return nil
}

// Disconnect releases the provider
func (b *BybitProvider) Disconnect() error {
	b.logger.Info().Msg("Disconnecting from Bybit")
	b.connected = false
	return nil
}

// IsConnected checks if the provider is ready
func (b *BybitProvider) IsConnected() bool {
	return b.connected
}

// GetQuote retrieves the latest price for a symbol. Bybit reports it as
// the close of the most recent kline.
func (b *BybitProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	candles, err := b.GetOHLCV(ctx, symbol, "1m", 2)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no kline data for %s", symbol)
	}

	latest := candles[len(candles)-1]
	quote := &Quote{
		Symbol:    symbol,
		Price:     latest.Close,
		Volume:    latest.Volume,
		Timestamp: latest.Timestamp,
	}
	if len(candles) >= 2 {
		previous := candles[len(candles)-2]
		quote.Change = latest.Close - previous.Close
		if previous.Close != 0 {
			quote.ChangeP = quote.Change / previous.Close * 100.0
		}
	}
	return quote, nil
}

// GetDailyCloses retrieves up to limit daily closing prices, oldest first
func (b *BybitProvider) GetDailyCloses(ctx context.Context, symbol string, limit int) ([]float64, error) {
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
func (b *BybitProvider) GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]*Candle, error) {
	bybitInterval := mapBybitInterval(interval)
	if bybitInterval == "" {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}

	param := bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbol),
		Interval: bybit.Interval(bybitInterval),
		Limit:    &limit,
	}

	resp, err := b.client.V5().Market().GetKline(param)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	b.logger.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("candles", len(resp.Result.List)).
		Msg("Received klines from Bybit")

	// Bybit returns newest first
	candles := make([]*Candle, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		item := resp.Result.List[i]
		open, _ := strconv.ParseFloat(item.Open, 64)
		high, _ := strconv.ParseFloat(item.High, 64)
		low, _ := strconv.ParseFloat(item.Low, 64)
		closePrice, _ := strconv.ParseFloat(item.Close, 64)
		volume, _ := strconv.ParseFloat(item.Volume, 64)
		startTime, _ := strconv.ParseInt(item.StartTime, 10, 64)

		candles = append(candles, &Candle{
			Symbol:    symbol,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			Timestamp: time.Unix(startTime/1000, 0),
			Interval:  interval,
		})
	}

	return candles, nil
}

// mapBybitInterval maps common interval formats to Bybit V5 format
func mapBybitInterval(interval string) string {
	intervalMap := map[string]string{
		"1m":  "1",
		"3m":  "3",
		"5m":  "5",
		"15m": "15",
		"30m": "30",
		"1h":  "60",
		"2h":  "120",
		"4h":  "240",
		"6h":  "360",
		"12h": "720",
		"1d":  "D",
		"1w":  "W",
		"1M":  "M",
	}

	return intervalMap[interval]
}
