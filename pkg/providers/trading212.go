package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const trading212BaseURL = "https://live.trading212.com/api/v0"

// Trading212Provider implements the Provider interface against the
// Trading 212 public REST API. Symbols in its responses come back in
// vendor spelling (VOD_EQ, AAPL_US_EQ) and need normalizing before use.
type Trading212Provider struct {
	httpClient *http.Client
	logger     zerolog.Logger
	name       string
	baseURL    string
	apiKey     string
	connected  bool
}

type trading212Instrument struct {
	Ticker       string `json:"ticker"`
	Name         string `json:"name"`
	CurrencyCode string `json:"currencyCode"`
	Exchange     string `json:"exchange"`
	Type         string `json:"type"`
}

// NewTrading212 creates a new Trading 212 provider instance
func NewTrading212(apiKey string, logger zerolog.Logger) *Trading212Provider {
	return &Trading212Provider{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("provider", "trading212").Logger(),
		name:       "trading212",
		baseURL:    trading212BaseURL,
		apiKey:     apiKey,
	}
}

// GetName returns the provider name
func (t *Trading212Provider) GetName() string {
	return t.name
}

// Connect verifies the API key by fetching account metadata
func (t *Trading212Provider) Connect(ctx context.Context) error {
	t.logger.Info().Msg("Connecting to Trading 212")

	body, err := t.get(ctx, "/equity/account/info")
	if err != nil {
		return fmt.Errorf("failed to connect to Trading 212: %w", err)
	}

	var info struct {
		CurrencyCode string `json:"currencyCode"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("failed to parse account info: %w", err)
	}

	t.connected = true
	t.logger.Info().Str("currency", info.CurrencyCode).Msg("Connected to Trading 212")
	return nil
}

// Disconnect releases the provider
func (t *Trading212Provider) Disconnect() error {
	t.logger.Info().Msg("Disconnecting from Trading 212")
	t.connected = false
	return nil
}

// IsConnected checks if the provider is ready
func (t *Trading212Provider) IsConnected() bool {
	return t.connected
}

// GetInstruments lists the tradeable instruments with their raw vendor
// tickers
func (t *Trading212Provider) GetInstruments(ctx context.Context) ([]*Instrument, error) {
	body, err := t.get(ctx, "/equity/metadata/instruments")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instruments: %w", err)
	}

	instruments, err := parseTrading212Instruments(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse instruments: %w", err)
	}

	t.logger.Debug().Int("instruments", len(instruments)).Msg("Fetched instrument list")
	return instruments, nil
}

// GetQuote retrieves the latest price for a raw vendor ticker
func (t *Trading212Provider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := t.get(ctx, "/equity/portfolio/"+symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	var position struct {
		Ticker       string  `json:"ticker"`
		CurrentPrice float64 `json:"currentPrice"`
	}
	if err := json.Unmarshal(body, &position); err != nil {
		return nil, fmt.Errorf("failed to parse quote for %s: %w", symbol, err)
	}

	return &Quote{
		Symbol:    position.Ticker,
		Price:     position.CurrentPrice,
		Timestamp: time.Now(),
	}, nil
}

// GetDailyCloses is not served by the Trading 212 API; historical series
// come from the other providers.
func (t *Trading212Provider) GetDailyCloses(ctx context.Context, symbol string, limit int) ([]float64, error) {
	return nil, fmt.Errorf("historical closes not available from Trading 212")
}

// GetOHLCV is not served by the Trading 212 API
func (t *Trading212Provider) GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]*Candle, error) {
	return nil, fmt.Errorf("historical candles not available from Trading 212")
}

func (t *Trading212Provider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s returned status %d", path, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// parseTrading212Instruments converts the instrument metadata payload
func parseTrading212Instruments(body []byte) ([]*Instrument, error) {
	var raw []trading212Instrument
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	instruments := make([]*Instrument, 0, len(raw))
	for _, item := range raw {
		instruments = append(instruments, &Instrument{
			Ticker:   item.Ticker,
			Name:     item.Name,
			Currency: item.CurrencyCode,
			Exchange: item.Exchange,
		})
	}
	return instruments, nil
}
