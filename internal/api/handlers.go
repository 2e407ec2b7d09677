package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthdm/hollywood/actor"
	"github.com/go-chi/chi/v5"

	"github.com/arijanluiken/quantcore/internal/market"
	"github.com/arijanluiken/quantcore/internal/pricecheck"
	"github.com/arijanluiken/quantcore/internal/script"
	"github.com/arijanluiken/quantcore/internal/settings"
	"github.com/arijanluiken/quantcore/internal/watchlist"
	"github.com/arijanluiken/quantcore/pkg/quant"
	"github.com/arijanluiken/quantcore/pkg/ticker"
)

func (a *APIActor) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

// Ticker normalization

func (a *APIActor) handleNormalize(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ticker")
	if raw == "" {
		a.writeError(w, "ticker query parameter is required", http.StatusBadRequest)
		return
	}

	a.writeJSON(w, map[string]string{
		"raw":    raw,
		"symbol": ticker.Normalize(raw),
	})
}

// On-demand indicator calculation

type indicatorsRequest struct {
	Kind   string    `json:"kind"`
	Prices []float64 `json:"prices"`
	Period int       `json:"period,omitempty"`
	Fast   int       `json:"fast,omitempty"`
	Slow   int       `json:"slow,omitempty"`
	Signal int       `json:"signal,omitempty"`
	StdDev float64   `json:"std_dev,omitempty"`
}

func (a *APIActor) handleIndicators(w http.ResponseWriter, r *http.Request) {
	var req indicatorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	result, err := computeIndicator(req)
	if err != nil {
		if errors.Is(err, quant.ErrInvalidPeriod) {
			a.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.writeJSON(w, result)
}

func computeIndicator(req indicatorsRequest) (map[string]interface{}, error) {
	switch req.Kind {
	case "sma":
		period := req.Period
		if period == 0 {
			period = quant.DefaultSMAPeriod
		}
		values, err := quant.SMA(req.Prices, period)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"kind": "sma", "period": period, "values": values}, nil

	case "ema":
		period := req.Period
		if period == 0 {
			period = quant.DefaultEMAPeriod
		}
		values, err := quant.EMA(req.Prices, period)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"kind": "ema", "period": period, "values": values}, nil

	case "rsi":
		period := req.Period
		if period == 0 {
			period = quant.DefaultRSIPeriod
		}
		values, err := quant.RSI(req.Prices, period)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"kind": "rsi", "period": period, "values": values}, nil

	case "macd":
		fast, slow, signal := req.Fast, req.Slow, req.Signal
		if fast == 0 {
			fast = quant.DefaultMACDFast
		}
		if slow == 0 {
			slow = quant.DefaultMACDSlow
		}
		if signal == 0 {
			signal = quant.DefaultMACDSignal
		}
		macdLine, signalLine, histogram, err := quant.MACD(req.Prices, fast, slow, signal)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"kind": "macd", "fast": fast, "slow": slow, "signal_period": signal,
			"macd": macdLine, "signal": signalLine, "histogram": histogram,
		}, nil

	case "bbands":
		period := req.Period
		if period == 0 {
			period = quant.DefaultBBandsPeriod
		}
		stdDev := req.StdDev
		if stdDev == 0 {
			stdDev = quant.DefaultBBandsStdDev
		}
		upper, middle, lower, err := quant.BollingerBands(req.Prices, period, stdDev)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"kind": "bbands", "period": period, "std_dev": stdDev,
			"upper": upper, "middle": middle, "lower": lower,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported indicator kind: %s", req.Kind)
	}
}

// Starlark analysis scripts

type runScriptRequest struct {
	Symbol   string                 `json:"symbol"`
	Provider string                 `json:"provider,omitempty"`
	Prices   []float64              `json:"prices"`
	Volumes  []float64              `json:"volumes,omitempty"`
	Config   map[string]interface{} `json:"config,omitempty"`
}

func (a *APIActor) handleRunScript(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		a.writeError(w, "invalid script name", http.StatusBadRequest)
		return
	}

	var req runScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(req.Prices) == 0 {
		a.writeError(w, "prices are required", http.StatusBadRequest)
		return
	}

	scriptCtx := &script.Context{
		Symbol:   ticker.Normalize(req.Symbol),
		Provider: req.Provider,
		Closes:   req.Prices,
		Volumes:  req.Volumes,
		Config:   req.Config,
	}

	verdict, err := a.scriptEngine.Execute(name, scriptCtx)
	if err != nil {
		if errors.Is(err, script.ErrScriptNotFound) {
			a.writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		a.logger.Error().Err(err).Str("script", name).Msg("Script execution failed")
		a.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.writeJSON(w, map[string]interface{}{
		"script": name,
		"symbol": scriptCtx.Symbol,
		"action": verdict.Action,
		"score":  verdict.Score,
		"reason": verdict.Reason,
	})
}

// Watchlist handlers

func (a *APIActor) handleGetWatchlist(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.watchlistPID == nil {
			a.writeError(w, "watchlist not available", http.StatusServiceUnavailable)
			return
		}

		response, err := ctx.Request(a.watchlistPID, watchlist.ListSymbolsMsg{}, 5*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to list watchlist")
			a.writeError(w, "failed to list watchlist", http.StatusInternalServerError)
			return
		}

		list, ok := response.(watchlist.ListSymbolsResponse)
		if !ok {
			a.writeError(w, "unexpected watchlist response", http.StatusInternalServerError)
			return
		}
		if list.Err != nil {
			a.writeError(w, list.Err.Error(), http.StatusInternalServerError)
			return
		}

		a.writeJSON(w, map[string]interface{}{"watchlist": list.Entries})
	}
}

func (a *APIActor) handleAddWatchlist(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.watchlistPID == nil {
			a.writeError(w, "watchlist not available", http.StatusServiceUnavailable)
			return
		}

		var req struct {
			Ticker   string `json:"ticker"`
			Provider string `json:"provider,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Ticker == "" {
			a.writeError(w, "ticker is required", http.StatusBadRequest)
			return
		}

		msg := watchlist.AddSymbolMsg{RawTicker: req.Ticker, Provider: req.Provider}
		response, err := ctx.Request(a.watchlistPID, msg, 5*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to add symbol")
			a.writeError(w, "failed to add symbol", http.StatusInternalServerError)
			return
		}

		added, ok := response.(watchlist.AddSymbolResponse)
		if !ok {
			a.writeError(w, "unexpected watchlist response", http.StatusInternalServerError)
			return
		}
		if added.Err != nil {
			a.writeError(w, added.Err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(added.Entry)
	}
}

func (a *APIActor) handleRemoveWatchlist(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.watchlistPID == nil {
			a.writeError(w, "watchlist not available", http.StatusServiceUnavailable)
			return
		}

		symbol := chi.URLParam(r, "symbol")
		msg := watchlist.RemoveSymbolMsg{Symbol: symbol}
		response, err := ctx.Request(a.watchlistPID, msg, 5*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to remove symbol")
			a.writeError(w, "failed to remove symbol", http.StatusInternalServerError)
			return
		}

		removed, ok := response.(watchlist.RemoveSymbolResponse)
		if !ok {
			a.writeError(w, "unexpected watchlist response", http.StatusInternalServerError)
			return
		}
		if removed.Err != nil {
			a.writeError(w, removed.Err.Error(), http.StatusInternalServerError)
			return
		}

		a.writeJSON(w, map[string]string{"symbol": removed.Symbol, "status": "removed"})
	}
}

// Market data handlers

// resolveMarketPID picks the market actor for a request. An explicit
// provider wins; otherwise the first enabled provider with a running
// actor is used.
func (a *APIActor) resolveMarketPID(provider string) (*actor.PID, string, bool) {
	if provider != "" {
		pid, ok := a.marketPIDs[provider]
		return pid, provider, ok
	}
	for _, name := range a.config.Providers.Enabled {
		if pid, ok := a.marketPIDs[name]; ok {
			return pid, name, true
		}
	}
	return nil, "", false
}

func (a *APIActor) handleGetQuote(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid, providerName, ok := a.resolveMarketPID(r.URL.Query().Get("provider"))
		if !ok {
			a.writeError(w, "no market provider available", http.StatusServiceUnavailable)
			return
		}

		symbol := ticker.Normalize(chi.URLParam(r, "symbol"))
		response, err := ctx.Request(pid, market.GetQuoteMsg{Symbol: symbol}, 15*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Str("symbol", symbol).Msg("Quote request failed")
			a.writeError(w, "quote request failed", http.StatusInternalServerError)
			return
		}

		quote, ok := response.(market.QuoteResponse)
		if !ok {
			a.writeError(w, "unexpected market response", http.StatusInternalServerError)
			return
		}
		if quote.Err != nil {
			a.writeError(w, quote.Err.Error(), http.StatusBadGateway)
			return
		}

		a.writeJSON(w, map[string]interface{}{"provider": providerName, "quote": quote.Quote})
	}
}

func (a *APIActor) handleGetCloses(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid, providerName, ok := a.resolveMarketPID(r.URL.Query().Get("provider"))
		if !ok {
			a.writeError(w, "no market provider available", http.StatusServiceUnavailable)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				a.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		symbol := ticker.Normalize(chi.URLParam(r, "symbol"))
		response, err := ctx.Request(pid, market.GetClosesMsg{Symbol: symbol, Limit: limit}, 30*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Str("symbol", symbol).Msg("Closes request failed")
			a.writeError(w, "closes request failed", http.StatusInternalServerError)
			return
		}

		closes, ok := response.(market.ClosesResponse)
		if !ok {
			a.writeError(w, "unexpected market response", http.StatusInternalServerError)
			return
		}
		if closes.Err != nil {
			a.writeError(w, closes.Err.Error(), http.StatusBadGateway)
			return
		}

		a.writeJSON(w, map[string]interface{}{
			"provider": providerName,
			"symbol":   closes.Symbol,
			"closes":   closes.Closes,
		})
	}
}

func (a *APIActor) handleRefreshProvider(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")
		pid, ok := a.marketPIDs[name]
		if !ok {
			a.writeError(w, fmt.Sprintf("unknown provider: %s", name), http.StatusNotFound)
			return
		}

		ctx.Send(pid, market.RefreshAllMsg{})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"provider": name, "status": "refresh scheduled"})
	}
}

// Settings handlers

func (a *APIActor) handleGetSettings(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.settingsPID == nil {
			a.writeError(w, "settings not available", http.StatusServiceUnavailable)
			return
		}

		response, err := ctx.Request(a.settingsPID, settings.GetAllSettingsMsg{}, 5*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to load settings")
			a.writeError(w, "failed to load settings", http.StatusInternalServerError)
			return
		}

		all, ok := response.(settings.AllSettingsResponse)
		if !ok {
			a.writeError(w, "unexpected settings response", http.StatusInternalServerError)
			return
		}
		if all.Err != nil {
			a.writeError(w, all.Err.Error(), http.StatusInternalServerError)
			return
		}

		a.writeJSON(w, map[string]interface{}{"settings": all.Settings})
	}
}

func (a *APIActor) handleGetSetting(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.settingsPID == nil {
			a.writeError(w, "settings not available", http.StatusServiceUnavailable)
			return
		}

		key := chi.URLParam(r, "key")
		response, err := ctx.Request(a.settingsPID, settings.GetSettingMsg{Key: key}, 5*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Str("key", key).Msg("Failed to load setting")
			a.writeError(w, "failed to load setting", http.StatusInternalServerError)
			return
		}

		setting, ok := response.(settings.SettingResponse)
		if !ok {
			a.writeError(w, "unexpected settings response", http.StatusInternalServerError)
			return
		}
		if !setting.Found {
			a.writeError(w, fmt.Sprintf("setting not found: %s", key), http.StatusNotFound)
			return
		}

		a.writeJSON(w, map[string]string{"key": setting.Key, "value": setting.Value})
	}
}

func (a *APIActor) handleSetSetting(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.settingsPID == nil {
			a.writeError(w, "settings not available", http.StatusServiceUnavailable)
			return
		}

		key := chi.URLParam(r, "key")
		var req struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Value == "" {
			a.writeError(w, "value is required", http.StatusBadRequest)
			return
		}

		response, err := ctx.Request(a.settingsPID, settings.SetSettingMsg{Key: key, Value: req.Value}, 5*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Str("key", key).Msg("Failed to store setting")
			a.writeError(w, "failed to store setting", http.StatusInternalServerError)
			return
		}
		if respErr, ok := response.(error); ok {
			a.writeError(w, respErr.Error(), http.StatusInternalServerError)
			return
		}

		a.writeJSON(w, map[string]string{"key": key, "value": req.Value, "status": "stored"})
	}
}

// Snapshot handlers

func (a *APIActor) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := ticker.Normalize(chi.URLParam(r, "symbol"))

	snapshot, err := a.db.GetLatestSnapshot(symbol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			a.writeError(w, fmt.Sprintf("no snapshot for %s", symbol), http.StatusNotFound)
			return
		}
		a.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to load snapshot")
		a.writeError(w, "failed to load snapshot", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, snapshot)
}

func (a *APIActor) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	symbol := ticker.Normalize(chi.URLParam(r, "symbol"))

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			a.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	snapshots, err := a.db.GetSnapshots(symbol, limit)
	if err != nil {
		a.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to load snapshots")
		a.writeError(w, "failed to load snapshots", http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, map[string]interface{}{"symbol": symbol, "snapshots": snapshots})
}

// Price validation

func (a *APIActor) handleValidatePrice(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.pricecheckPID == nil {
			a.writeError(w, "price validation not available", http.StatusServiceUnavailable)
			return
		}

		symbol := ticker.Normalize(chi.URLParam(r, "symbol"))

		var req struct {
			IntendedPrice *float64 `json:"intended_price,omitempty"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				a.writeError(w, "invalid JSON body", http.StatusBadRequest)
				return
			}
		}

		msg := pricecheck.ValidatePriceMsg{Symbol: symbol}
		if req.IntendedPrice != nil {
			msg.IntendedPrice = *req.IntendedPrice
			msg.HasIntended = true
		}

		response, err := ctx.Request(a.pricecheckPID, msg, 30*time.Second).Result()
		if err != nil {
			a.logger.Error().Err(err).Str("symbol", symbol).Msg("Price validation request failed")
			a.writeError(w, "price validation failed", http.StatusInternalServerError)
			return
		}

		validation, ok := response.(pricecheck.ValidationResponse)
		if !ok {
			a.writeError(w, "unexpected validation response", http.StatusInternalServerError)
			return
		}
		if validation.Err != nil {
			a.writeError(w, validation.Validation.Message, http.StatusServiceUnavailable)
			return
		}

		a.writeJSON(w, validation.Validation)
	}
}

// Provider status

func (a *APIActor) handleGetProviders(ctx *actor.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := make(map[string]interface{})
		for name, pid := range a.marketPIDs {
			response, err := ctx.Request(pid, market.StatusMsg{}, 5*time.Second).Result()
			if err != nil {
				providers[name] = map[string]interface{}{"error": err.Error()}
				continue
			}
			providers[name] = response
		}

		a.writeJSON(w, map[string]interface{}{"providers": providers})
	}
}

func (a *APIActor) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Quantcore Market Analysis API",
			"version":     "1.0.0",
			"description": "API for ticker normalization, technical indicators and price validation",
		},
		"servers": []map[string]interface{}{
			{
				"url":         fmt.Sprintf("http://localhost:%d/api/v1", a.config.API.Port),
				"description": "Local server",
			},
		},
		"paths": map[string]interface{}{
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Server is healthy"},
					},
				},
			},
			"/normalize": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Normalize a raw vendor ticker",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Canonical symbol"},
					},
				},
			},
			"/indicators": map[string]interface{}{
				"post": map[string]interface{}{
					"summary": "Compute an indicator series over supplied prices",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Indicator series"},
					},
				},
			},
			"/watchlist": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List watched symbols",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Watchlist entries"},
					},
				},
			},
		},
	}

	a.writeJSON(w, spec)
}
