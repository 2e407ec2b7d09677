package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

const trading212InstrumentsFixture = `[
	{"ticker": "VOD_EQ", "name": "Vodafone Group", "currencyCode": "GBX", "exchange": "LSE", "type": "STOCK"},
	{"ticker": "AAPL_US_EQ", "name": "Apple", "currencyCode": "USD", "exchange": "NASDAQ", "type": "STOCK"},
	{"ticker": "3UKL_EQ", "name": "WisdomTree FTSE 100 3x Daily", "currencyCode": "GBX", "exchange": "LSE", "type": "ETF"}
]`

func newTrading212TestServer(t *testing.T, handler http.HandlerFunc) *Trading212Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewTrading212("test_key", zerolog.New(nil))
	provider.baseURL = server.URL
	return provider
}

func TestTrading212GetInstruments(t *testing.T) {
	provider := newTrading212TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/equity/metadata/instruments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "test_key" {
			t.Errorf("expected Authorization header with api key, got '%s'", r.Header.Get("Authorization"))
		}
		w.Write([]byte(trading212InstrumentsFixture))
	})

	instruments, err := provider.GetInstruments(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(instruments) != 3 {
		t.Fatalf("expected 3 instruments, got %d", len(instruments))
	}
	if instruments[0].Ticker != "VOD_EQ" {
		t.Errorf("expected raw ticker VOD_EQ, got %s", instruments[0].Ticker)
	}
	if instruments[1].Currency != "USD" {
		t.Errorf("expected currency USD, got %s", instruments[1].Currency)
	}
	if instruments[2].Exchange != "LSE" {
		t.Errorf("expected exchange LSE, got %s", instruments[2].Exchange)
	}
}

func TestTrading212Connect(t *testing.T) {
	provider := newTrading212TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/equity/account/info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"currencyCode": "GBP", "id": 12345}`))
	})

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

func TestTrading212ConnectUnauthorized(t *testing.T) {
	provider := newTrading212TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	if err := provider.Connect(context.Background()); err == nil {
		t.Error("expected error for unauthorized response, got nil")
	}
	if provider.IsConnected() {
		t.Error("expected IsConnected false after failed Connect")
	}
}

func TestTrading212GetQuote(t *testing.T) {
	provider := newTrading212TestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/equity/portfolio/VOD_EQ" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"ticker": "VOD_EQ", "currentPrice": 74.88}`))
	})

	quote, err := provider.GetQuote(context.Background(), "VOD_EQ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if quote.Symbol != "VOD_EQ" {
		t.Errorf("expected raw symbol VOD_EQ, got %s", quote.Symbol)
	}
	if quote.Price != 74.88 {
		t.Errorf("expected price 74.88, got %f", quote.Price)
	}
}

func TestTrading212NoHistoricalData(t *testing.T) {
	provider := NewTrading212("test_key", zerolog.New(nil))

	if _, err := provider.GetDailyCloses(context.Background(), "VOD_EQ", 10); err == nil {
		t.Error("expected error for daily closes, got nil")
	}
	if _, err := provider.GetOHLCV(context.Background(), "VOD_EQ", "1d", 10); err == nil {
		t.Error("expected error for OHLCV, got nil")
	}
}

func TestParseTrading212Instruments(t *testing.T) {
	t.Run("parses valid payload", func(t *testing.T) {
		instruments, err := parseTrading212Instruments([]byte(trading212InstrumentsFixture))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(instruments) != 3 {
			t.Errorf("expected 3 instruments, got %d", len(instruments))
		}
	})

	t.Run("fails on malformed payload", func(t *testing.T) {
		_, err := parseTrading212Instruments([]byte(`{"not": "a list"}`))
		if err == nil {
			t.Error("expected error for malformed payload, got nil")
		}
	})
}
