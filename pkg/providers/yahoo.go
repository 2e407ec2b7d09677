package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooProvider implements the Provider interface against the public
// Yahoo Finance chart API. Symbols are expected in canonical form, so
// London listings carry their .L suffix.
type YahooProvider struct {
	httpClient *http.Client
	logger     zerolog.Logger
	name       string
	baseURL    string
	connected  bool
}

// yahooChartResponse mirrors the subset of the chart API payload we read
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// NewYahoo creates a new Yahoo Finance provider instance
func NewYahoo(logger zerolog.Logger) *YahooProvider {
	return &YahooProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("provider", "yahoo").Logger(),
		name:       "yahoo",
		baseURL:    yahooBaseURL,
	}
}

// GetName returns the provider name
func (y *YahooProvider) GetName() string {
	return y.name
}

// Connect marks the provider as ready. The chart API is unauthenticated
// so there is no session to establish.
func (y *YahooProvider) Connect(ctx context.Context) error {
	y.logger.Info().Msg("Connecting to Yahoo Finance")
	y.connected = true
	return nil
}

// Disconnect releases the provider
func (y *YahooProvider) Disconnect() error {
	y.logger.Info().Msg("Disconnecting from Yahoo Finance")
	y.connected = false
	return nil
}

// IsConnected checks if the provider is ready
func (y *YahooProvider) IsConnected() bool {
	return y.connected
}

// GetQuote retrieves the latest price for a symbol
func (y *YahooProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := y.fetchChart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}

	chart, err := parseYahooChart(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote for %s: %w", symbol, err)
	}

	meta := chart.Chart.Result[0].Meta
	change := meta.RegularMarketPrice - meta.PreviousClose
	changeP := 0.0
	if meta.PreviousClose != 0 {
		changeP = change / meta.PreviousClose * 100.0
	}

	var volume float64
	quotes := chart.Chart.Result[0].Indicators.Quote
	if len(quotes) > 0 && len(quotes[0].Volume) > 0 {
		volume = quotes[0].Volume[len(quotes[0].Volume)-1]
	}

	return &Quote{
		Symbol:    symbol,
		Price:     meta.RegularMarketPrice,
		Volume:    volume,
		Change:    change,
		ChangeP:   changeP,
		Timestamp: time.Now(),
	}, nil
}

// GetDailyCloses retrieves up to limit daily closing prices, oldest first
func (y *YahooProvider) GetDailyCloses(ctx context.Context, symbol string, limit int) ([]float64, error) {
	candles, err := y.GetOHLCV(ctx, symbol, "1d", limit)
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
func (y *YahooProvider) GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]*Candle, error) {
	yahooInterval, yahooRange := mapYahooInterval(interval, limit)
	if yahooInterval == "" {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}

	body, err := y.fetchChart(ctx, symbol, yahooInterval, yahooRange)
	if err != nil {
		return nil, err
	}

	candles, err := parseYahooCandles(body, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to parse candles for %s: %w", symbol, err)
	}

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	y.logger.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("candles", len(candles)).
		Msg("Received candles from Yahoo Finance")

	return candles, nil
}

func (y *YahooProvider) fetchChart(ctx context.Context, symbol, interval, dataRange string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s?interval=%s&range=%s",
		y.baseURL, url.PathEscape(symbol), interval, dataRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart request: %w", err)
	}
	req.Header.Set("User-Agent", "quantcore/1.0")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart request for %s returned status %d", symbol, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// parseYahooChart unmarshals a chart payload and validates it carries a result
func parseYahooChart(body []byte) (*yahooChartResponse, error) {
	var chart yahooChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart API returned no result")
	}
	return &chart, nil
}

// parseYahooCandles converts a chart payload into candles, oldest first
func parseYahooCandles(body []byte, symbol, interval string) ([]*Candle, error) {
	chart, err := parseYahooChart(body)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart API returned no quote series")
	}
	quote := result.Indicators.Quote[0]

	candles := make([]*Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		candles = append(candles, &Candle{
			Symbol:    symbol,
			Timestamp: time.Unix(ts, 0),
			Open:      valueAt(quote.Open, i),
			High:      valueAt(quote.High, i),
			Low:       valueAt(quote.Low, i),
			Close:     quote.Close[i],
			Volume:    valueAt(quote.Volume, i),
			Interval:  interval,
		})
	}

	return candles, nil
}

func valueAt(series []float64, i int) float64 {
	if i < len(series) {
		return series[i]
	}
	return 0
}

// mapYahooInterval maps common interval formats to a chart API
// interval/range pair sized to cover the requested number of points
func mapYahooInterval(interval string, limit int) (string, string) {
	switch interval {
	case "1m":
		return "1m", "1d"
	case "5m":
		return "5m", "5d"
	case "15m":
		return "15m", "5d"
	case "1h":
		return "1h", "1mo"
	case "1d":
		if limit > 250 {
			return "1d", "2y"
		}
		return "1d", "1y"
	case "1w":
		return "1wk", "5y"
	default:
		return "", ""
	}
}
