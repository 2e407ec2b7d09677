package analysis

import (
	"fmt"

	"github.com/arijanluiken/quantcore/pkg/quant"
)

// Indicators holds the latest value of each computed indicator.
// EMA50 and EMA200 are only meaningful once enough history exists,
// signalled by the Has flags.
type Indicators struct {
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
	EMA50      float64 `json:"ema_50"`
	EMA200     float64 `json:"ema_200"`
	HasEMA50   bool    `json:"has_ema_50"`
	HasEMA200  bool    `json:"has_ema_200"`
	VolumeSMA  float64 `json:"volume_sma"`
}

// Signals classifies the indicator state into trading signals
type Signals struct {
	Trend      string `json:"trend"`      // "bullish", "bearish", "neutral"
	Momentum   string `json:"momentum"`   // "overbought", "oversold", "neutral"
	Volatility string `json:"volatility"` // "high", "low", "neutral"
	Overall    string `json:"overall"`    // "buy", "sell", "hold"
}

// Result is a full analysis snapshot for one symbol
type Result struct {
	Indicators   Indicators `json:"indicators"`
	Signals      Signals    `json:"signals"`
	CurrentPrice float64    `json:"current_price"`
	DataPoints   int        `json:"data_points"`
}

// Compute calculates the indicator snapshot and derived signals from
// closing prices and volumes. Volumes may be shorter than closes or nil.
func Compute(closes, volumes []float64) (*Result, error) {
	if len(closes) == 0 {
		return nil, fmt.Errorf("no price data provided")
	}

	ind := Indicators{}

	rsiVals, err := quant.RSI(closes, quant.DefaultRSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("rsi calculation failed: %w", err)
	}
	ind.RSI = rsiVals[len(rsiVals)-1]

	macdLine, signalLine, histogram, err := quant.MACD(closes,
		quant.DefaultMACDFast, quant.DefaultMACDSlow, quant.DefaultMACDSignal)
	if err != nil {
		return nil, fmt.Errorf("macd calculation failed: %w", err)
	}
	ind.MACD = macdLine[len(macdLine)-1]
	ind.MACDSignal = signalLine[len(signalLine)-1]
	ind.MACDHist = histogram[len(histogram)-1]

	upper, middle, lower, err := quant.BollingerBands(closes,
		quant.DefaultBBandsPeriod, quant.DefaultBBandsStdDev)
	if err != nil {
		return nil, fmt.Errorf("bollinger calculation failed: %w", err)
	}
	ind.BBUpper = upper[len(upper)-1]
	ind.BBMiddle = middle[len(middle)-1]
	ind.BBLower = lower[len(lower)-1]

	ema50, err := quant.EMA(closes, 50)
	if err != nil {
		return nil, fmt.Errorf("ema calculation failed: %w", err)
	}
	if len(ema50) >= 50 {
		ind.EMA50 = ema50[len(ema50)-1]
		ind.HasEMA50 = true
	}

	ema200, err := quant.EMA(closes, 200)
	if err != nil {
		return nil, fmt.Errorf("ema calculation failed: %w", err)
	}
	if len(ema200) >= 200 {
		ind.EMA200 = ema200[len(ema200)-1]
		ind.HasEMA200 = true
	}

	if len(volumes) > 0 {
		volSMA, err := quant.SMA(volumes, quant.DefaultSMAPeriod)
		if err != nil {
			return nil, fmt.Errorf("volume sma calculation failed: %w", err)
		}
		ind.VolumeSMA = volSMA[len(volSMA)-1]
	}

	currentPrice := closes[len(closes)-1]

	return &Result{
		Indicators:   ind,
		Signals:      generateSignals(ind, currentPrice),
		CurrentPrice: currentPrice,
		DataPoints:   len(closes),
	}, nil
}

// generateSignals classifies the indicator state. Trend compares the
// price chain against both long EMAs, momentum uses the RSI 70/30
// bands, volatility flags closes outside the Bollinger envelope, and
// the overall signal only fires when trend and momentum agree.
func generateSignals(ind Indicators, currentPrice float64) Signals {
	signals := Signals{
		Trend:      "neutral",
		Momentum:   "neutral",
		Volatility: "neutral",
		Overall:    "hold",
	}

	if ind.HasEMA50 && ind.HasEMA200 {
		if currentPrice > ind.EMA50 && ind.EMA50 > ind.EMA200 {
			signals.Trend = "bullish"
		} else if currentPrice < ind.EMA50 && ind.EMA50 < ind.EMA200 {
			signals.Trend = "bearish"
		}
	}

	if ind.RSI > 70 {
		signals.Momentum = "overbought"
	} else if ind.RSI < 30 {
		signals.Momentum = "oversold"
	}

	if ind.BBUpper != 0 || ind.BBLower != 0 {
		if currentPrice > ind.BBUpper {
			signals.Volatility = "high"
		} else if currentPrice < ind.BBLower {
			signals.Volatility = "low"
		}
	}

	if signals.Trend == "bullish" && signals.Momentum == "oversold" {
		signals.Overall = "buy"
	} else if signals.Trend == "bearish" && signals.Momentum == "overbought" {
		signals.Overall = "sell"
	}

	return signals
}
