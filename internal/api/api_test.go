package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/arijanluiken/quantcore/pkg/config"
	"github.com/arijanluiken/quantcore/pkg/database"
)

func setupTestAPI(t *testing.T) *APIActor {
	tmpDir := t.TempDir()
	dbPath := tmpDir + "/test.db"

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		API: config.APIConfig{
			Port:    8080,
			Timeout: 30 * time.Second,
		},
	}
	logger := zerolog.New(nil)

	return New(cfg, db, logger)
}

func TestWriteJSON(t *testing.T) {
	api := setupTestAPI(t)

	testData := map[string]interface{}{
		"message": "test response",
		"status":  "success",
		"count":   42,
	}

	w := httptest.NewRecorder()
	api.writeJSON(w, testData)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	expectedContentType := "application/json"
	if w.Header().Get("Content-Type") != expectedContentType {
		t.Errorf("expected content type %s, got %s", expectedContentType, w.Header().Get("Content-Type"))
	}

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	if err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if response["message"] != "test response" {
		t.Errorf("expected message 'test response', got '%v'", response["message"])
	}

	// JSON numbers are parsed as float64
	if response["count"].(float64) != 42 {
		t.Errorf("expected count 42, got %v", response["count"])
	}
}

func TestWriteError(t *testing.T) {
	api := setupTestAPI(t)

	w := httptest.NewRecorder()
	api.writeError(w, "test error message", http.StatusBadRequest)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	if err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}

	if response["error"] != "test error message" {
		t.Errorf("expected error 'test error message', got '%s'", response["error"])
	}
}

func TestHandleHealth(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	api.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	if err != nil {
		t.Fatalf("failed to unmarshal health response: %v", err)
	}

	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%v'", response["status"])
	}
	if response["version"] != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%v'", response["version"])
	}

	timestampStr, ok := response["timestamp"].(string)
	if !ok {
		t.Fatal("expected timestamp to be a string")
	}
	if _, err := time.Parse(time.RFC3339, timestampStr); err != nil {
		t.Errorf("expected timestamp in RFC3339 format, got parse error: %v", err)
	}
}

func TestHandleNormalize(t *testing.T) {
	api := setupTestAPI(t)

	t.Run("normalizes raw ticker", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/normalize?ticker=VOD_EQ", nil)
		w := httptest.NewRecorder()

		api.handleNormalize(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if response["raw"] != "VOD_EQ" {
			t.Errorf("expected raw 'VOD_EQ', got '%s'", response["raw"])
		}
		if response["symbol"] != "VOD.L" {
			t.Errorf("expected symbol 'VOD.L', got '%s'", response["symbol"])
		}
	})

	t.Run("missing ticker is a bad request", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/normalize", nil)
		w := httptest.NewRecorder()

		api.handleNormalize(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func postIndicators(t *testing.T, api *APIActor, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest("POST", "/indicators", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	api.handleIndicators(w, req)
	return w
}

func TestHandleIndicators(t *testing.T) {
	api := setupTestAPI(t)

	t.Run("sma with explicit period", func(t *testing.T) {
		w := postIndicators(t, api, map[string]interface{}{
			"kind":   "sma",
			"prices": []float64{1, 2, 3, 4, 5},
			"period": 2,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}

		var response struct {
			Kind   string    `json:"kind"`
			Period int       `json:"period"`
			Values []float64 `json:"values"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if response.Period != 2 {
			t.Errorf("expected period 2, got %d", response.Period)
		}
		if len(response.Values) != 5 {
			t.Fatalf("expected 5 values, got %d", len(response.Values))
		}
		if response.Values[4] != 4.5 {
			t.Errorf("expected final sma 4.5, got %f", response.Values[4])
		}
	})

	t.Run("rsi defaults its period", func(t *testing.T) {
		prices := make([]float64, 30)
		for i := range prices {
			prices[i] = float64(i + 1)
		}
		w := postIndicators(t, api, map[string]interface{}{
			"kind":   "rsi",
			"prices": prices,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			Period int       `json:"period"`
			Values []float64 `json:"values"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if response.Period != 14 {
			t.Errorf("expected default period 14, got %d", response.Period)
		}
		if response.Values[len(response.Values)-1] != 100.0 {
			t.Errorf("expected RSI 100 for uninterrupted gains, got %f",
				response.Values[len(response.Values)-1])
		}
	})

	t.Run("macd returns three series", func(t *testing.T) {
		prices := make([]float64, 60)
		for i := range prices {
			prices[i] = 100.0 + float64(i%7)
		}
		w := postIndicators(t, api, map[string]interface{}{
			"kind":   "macd",
			"prices": prices,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			MACD      []float64 `json:"macd"`
			Signal    []float64 `json:"signal"`
			Histogram []float64 `json:"histogram"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if len(response.MACD) != 60 || len(response.Signal) != 60 || len(response.Histogram) != 60 {
			t.Errorf("expected all series of length 60, got %d/%d/%d",
				len(response.MACD), len(response.Signal), len(response.Histogram))
		}
	})

	t.Run("invalid period is a bad request", func(t *testing.T) {
		w := postIndicators(t, api, map[string]interface{}{
			"kind":   "sma",
			"prices": []float64{1, 2, 3},
			"period": -1,
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("unknown kind is a bad request", func(t *testing.T) {
		w := postIndicators(t, api, map[string]interface{}{
			"kind":   "vwap",
			"prices": []float64{1, 2, 3},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/indicators", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		api.handleIndicators(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestHandleGetSnapshot(t *testing.T) {
	api := setupTestAPI(t)

	router := chi.NewRouter()
	router.Get("/symbols/{symbol}/snapshot", api.handleGetSnapshot)
	router.Get("/symbols/{symbol}/snapshots", api.handleGetSnapshots)

	snapshot := &database.Snapshot{
		Symbol:       "VOD.L",
		RSI:          55.5,
		CurrentPrice: 74.88,
		Signal:       "hold",
	}
	if err := api.db.SaveSnapshot(snapshot); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	t.Run("returns latest snapshot", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/symbols/VOD.L/snapshot", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response database.Snapshot
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if response.Symbol != "VOD.L" {
			t.Errorf("expected symbol VOD.L, got %s", response.Symbol)
		}
		if response.RSI != 55.5 {
			t.Errorf("expected RSI 55.5, got %f", response.RSI)
		}
	})

	t.Run("normalizes the path symbol", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/symbols/VOD_EQ/snapshot", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("unknown symbol is not found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/symbols/UNKNOWN.X/snapshot", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("snapshot history with bad limit", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/symbols/VOD.L/snapshots?limit=abc", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestHandleRunScript(t *testing.T) {
	api := setupTestAPI(t)

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatalf("failed to create scripts dir: %v", err)
	}
	src := `
def analyze():
    if rsi(close)[-1] > 70:
        return {"action": "sell", "score": 1.0, "reason": "overbought"}
    return {"action": "hold", "score": 0.0, "reason": "no edge"}
`
	if err := os.WriteFile(filepath.Join(dir, "scripts", "trend.star"), []byte(src), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWD) })

	router := chi.NewRouter()
	router.Post("/scripts/{name}/run", api.handleRunScript)

	runScript := func(t *testing.T, name string, body map[string]interface{}) *httptest.ResponseRecorder {
		t.Helper()
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		req := httptest.NewRequest("POST", "/scripts/"+name+"/run", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	ascending := make([]float64, 40)
	for i := range ascending {
		ascending[i] = float64(i + 1)
	}

	t.Run("runs script and returns verdict", func(t *testing.T) {
		w := runScript(t, "trend", map[string]interface{}{
			"symbol": "VOD_EQ",
			"prices": ascending,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if response["symbol"] != "VOD.L" {
			t.Errorf("expected normalized symbol VOD.L, got %v", response["symbol"])
		}
		if response["action"] != "sell" {
			t.Errorf("expected action sell, got %v", response["action"])
		}
		if response["reason"] != "overbought" {
			t.Errorf("expected reason overbought, got %v", response["reason"])
		}
	})

	t.Run("unknown script is not found", func(t *testing.T) {
		w := runScript(t, "missing", map[string]interface{}{
			"symbol": "VOD.L",
			"prices": ascending,
		})
		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("missing prices is a bad request", func(t *testing.T) {
		w := runScript(t, "trend", map[string]interface{}{"symbol": "VOD.L"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestResolveMarketPID(t *testing.T) {
	api := setupTestAPI(t)
	api.config.Providers.Enabled = []string{"yahoo", "trading212"}

	t212 := &actor.PID{}
	api.marketPIDs["trading212"] = t212

	t.Run("explicit provider wins", func(t *testing.T) {
		pid, name, ok := api.resolveMarketPID("trading212")
		if !ok || pid != t212 || name != "trading212" {
			t.Errorf("expected trading212 pid, got (%v, %s, %t)", pid, name, ok)
		}
	})

	t.Run("explicit provider without actor misses", func(t *testing.T) {
		if _, _, ok := api.resolveMarketPID("bybit"); ok {
			t.Error("expected no pid for unstarted provider")
		}
	})

	t.Run("falls back to first enabled running provider", func(t *testing.T) {
		pid, name, ok := api.resolveMarketPID("")
		if !ok || pid != t212 || name != "trading212" {
			t.Errorf("expected trading212 fallback, got (%v, %s, %t)", pid, name, ok)
		}
	})

	t.Run("no running providers", func(t *testing.T) {
		delete(api.marketPIDs, "trading212")
		if _, _, ok := api.resolveMarketPID(""); ok {
			t.Error("expected no pid with empty market map")
		}
	})
}

func TestHandleMarketRoutes(t *testing.T) {
	api := setupTestAPI(t)

	router := chi.NewRouter()
	router.Get("/symbols/{symbol}/quote", api.handleGetQuote(nil))
	router.Get("/symbols/{symbol}/closes", api.handleGetCloses(nil))
	router.Post("/providers/{provider}/refresh", api.handleRefreshProvider(nil))

	t.Run("quote without providers is unavailable", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/symbols/VOD.L/quote", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
	})

	t.Run("closes with bad limit is a bad request", func(t *testing.T) {
		api.config.Providers.Enabled = []string{"yahoo"}
		api.marketPIDs["yahoo"] = &actor.PID{}
		defer delete(api.marketPIDs, "yahoo")

		req := httptest.NewRequest("GET", "/symbols/VOD.L/closes?limit=abc", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("refresh of unknown provider is not found", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/providers/bybit/refresh", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestHandleSettingsRoutes(t *testing.T) {
	api := setupTestAPI(t)

	router := chi.NewRouter()
	router.Get("/settings", api.handleGetSettings(nil))
	router.Put("/settings/{key}", api.handleSetSetting(nil))
	router.Get("/settings/{key}", api.handleGetSetting(nil))

	t.Run("settings unavailable before wiring", func(t *testing.T) {
		for _, target := range []string{"/settings", "/settings/variance_threshold"} {
			req := httptest.NewRequest("GET", target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("GET %s: expected status %d, got %d", target, http.StatusServiceUnavailable, w.Code)
			}
		}
	})

	t.Run("set with malformed body is a bad request", func(t *testing.T) {
		api.settingsPID = &actor.PID{}
		defer func() { api.settingsPID = nil }()

		req := httptest.NewRequest("PUT", "/settings/variance_threshold", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("set with empty value is a bad request", func(t *testing.T) {
		api.settingsPID = &actor.PID{}
		defer func() { api.settingsPID = nil }()

		req := httptest.NewRequest("PUT", "/settings/variance_threshold", bytes.NewReader([]byte(`{"value": ""}`)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestHandleOpenAPISpec(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest("GET", "/openapi.json", nil)
	w := httptest.NewRecorder()

	api.handleOpenAPISpec(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	if err != nil {
		t.Fatalf("failed to unmarshal OpenAPI spec response: %v", err)
	}

	if response["openapi"] != "3.0.0" {
		t.Errorf("expected openapi '3.0.0', got '%v'", response["openapi"])
	}

	info, ok := response["info"].(map[string]interface{})
	if !ok {
		t.Fatal("expected info to be a map")
	}
	if info["title"] != "Quantcore Market Analysis API" {
		t.Errorf("expected title 'Quantcore Market Analysis API', got '%v'", info["title"])
	}

	if _, ok := response["servers"]; !ok {
		t.Error("expected servers section to be present")
	}
}

func TestNew(t *testing.T) {
	cfg := &config.Config{
		API: config.APIConfig{
			Port:    8080,
			Timeout: 30 * time.Second,
		},
	}
	logger := zerolog.New(nil)

	api := New(cfg, nil, logger)

	if api == nil {
		t.Fatal("expected non-nil API actor")
	}
	if api.config == nil {
		t.Error("expected config to be set")
	}
	if api.config.API.Port != 8080 {
		t.Errorf("expected API port 8080, got %d", api.config.API.Port)
	}
	if api.marketPIDs == nil {
		t.Error("expected market PID map to be initialized")
	}
	if api.wsClients == nil {
		t.Error("expected WebSocket client map to be initialized")
	}
}
