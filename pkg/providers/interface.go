package providers

import (
	"context"
	"time"
)

// Quote represents the latest price for a symbol
type Quote struct {
	Symbol    string
	Price     float64
	Volume    float64
	Change    float64 // 24h price change
	ChangeP   float64 // 24h price change percentage
	Timestamp time.Time
}

// Candle represents a single OHLCV data point
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Interval  string
}

// Instrument represents a tradeable symbol as the provider reports it.
// Ticker is the provider's raw spelling, not the canonical form.
type Instrument struct {
	Ticker   string
	Name     string
	Currency string
	Exchange string
}

// Provider interface defines the methods that all market data source
// implementations must implement
type Provider interface {
	// Basic connectivity
	GetName() string
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// Market data
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetDailyCloses(ctx context.Context, symbol string, limit int) ([]float64, error)
	GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]*Candle, error)
}
