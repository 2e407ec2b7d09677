package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

const yahooChartFixture = `{
	"chart": {
		"result": [{
			"meta": {
				"symbol": "VOD.L",
				"regularMarketPrice": 76.2,
				"previousClose": 75.5
			},
			"timestamp": [1700000000, 1700086400, 1700172800],
			"indicators": {
				"quote": [{
					"open": [75.0, 75.8, 76.0],
					"high": [75.9, 76.3, 76.5],
					"low": [74.8, 75.4, 75.9],
					"close": [75.5, 76.0, 76.2],
					"volume": [1200000, 980000, 1100000]
				}]
			}
		}],
		"error": null
	}
}`

const yahooErrorFixture = `{
	"chart": {
		"result": null,
		"error": {
			"code": "Not Found",
			"description": "No data found, symbol may be delisted"
		}
	}
}`

func newYahooTestServer(t *testing.T, body string) (*httptest.Server, *YahooProvider) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	provider := NewYahoo(zerolog.New(nil))
	provider.baseURL = server.URL
	return server, provider
}

func TestYahooGetOHLCV(t *testing.T) {
	_, provider := newYahooTestServer(t, yahooChartFixture)

	candles, err := provider.GetOHLCV(context.Background(), "VOD.L", "1d", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}

	// Oldest first
	if candles[0].Close != 75.5 {
		t.Errorf("expected first close 75.5, got %f", candles[0].Close)
	}
	if candles[2].Close != 76.2 {
		t.Errorf("expected last close 76.2, got %f", candles[2].Close)
	}
	if candles[1].Volume != 980000 {
		t.Errorf("expected middle volume 980000, got %f", candles[1].Volume)
	}
	if candles[0].Interval != "1d" {
		t.Errorf("expected interval 1d, got %s", candles[0].Interval)
	}
}

func TestYahooGetOHLCVLimit(t *testing.T) {
	_, provider := newYahooTestServer(t, yahooChartFixture)

	candles, err := provider.GetOHLCV(context.Background(), "VOD.L", "1d", 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("expected 2 candles after limit, got %d", len(candles))
	}
	// Limit keeps the most recent candles
	if candles[0].Close != 76.0 {
		t.Errorf("expected first close 76.0, got %f", candles[0].Close)
	}
}

func TestYahooGetDailyCloses(t *testing.T) {
	_, provider := newYahooTestServer(t, yahooChartFixture)

	closes, err := provider.GetDailyCloses(context.Background(), "VOD.L", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []float64{75.5, 76.0, 76.2}
	if len(closes) != len(expected) {
		t.Fatalf("expected %d closes, got %d", len(expected), len(closes))
	}
	for i := range expected {
		if closes[i] != expected[i] {
			t.Errorf("expected close[%d] = %f, got %f", i, expected[i], closes[i])
		}
	}
}

func TestYahooGetQuote(t *testing.T) {
	_, provider := newYahooTestServer(t, yahooChartFixture)

	quote, err := provider.GetQuote(context.Background(), "VOD.L")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if quote.Symbol != "VOD.L" {
		t.Errorf("expected symbol VOD.L, got %s", quote.Symbol)
	}
	if quote.Price != 76.2 {
		t.Errorf("expected price 76.2, got %f", quote.Price)
	}
	// Change vs previous close 75.5
	if quote.Change < 0.69 || quote.Change > 0.71 {
		t.Errorf("expected change ~0.7, got %f", quote.Change)
	}
	if quote.Volume != 1100000 {
		t.Errorf("expected volume 1100000, got %f", quote.Volume)
	}
}

func TestYahooChartError(t *testing.T) {
	_, provider := newYahooTestServer(t, yahooErrorFixture)

	_, err := provider.GetQuote(context.Background(), "NOPE.L")
	if err == nil {
		t.Error("expected error for chart API error payload, got nil")
	}
}

func TestYahooHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewYahoo(zerolog.New(nil))
	provider.baseURL = server.URL

	_, err := provider.GetOHLCV(context.Background(), "VOD.L", "1d", 10)
	if err == nil {
		t.Error("expected error for non-200 response, got nil")
	}
}

func TestYahooUnsupportedInterval(t *testing.T) {
	provider := NewYahoo(zerolog.New(nil))

	_, err := provider.GetOHLCV(context.Background(), "VOD.L", "7m", 10)
	if err == nil {
		t.Error("expected error for unsupported interval, got nil")
	}
}

func TestYahooConnectDisconnect(t *testing.T) {
	provider := NewYahoo(zerolog.New(nil))

	if provider.IsConnected() {
		t.Error("expected new provider to start disconnected")
	}

	if err := provider.Connect(context.Background()); err != nil {
		t.Fatalf("expected no error connecting, got %v", err)
	}
	if !provider.IsConnected() {
		t.Error("expected IsConnected true after Connect")
	}

	if err := provider.Disconnect(); err != nil {
		t.Fatalf("expected no error disconnecting, got %v", err)
	}
	if provider.IsConnected() {
		t.Error("expected IsConnected false after Disconnect")
	}
}
