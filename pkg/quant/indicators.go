// Package quant implements the technical-indicator engine: pure functions
// over ordered price series. Every function returns a series of the same
// length as its input, with indices before the warm-up threshold holding a
// padding value (0.0, or 50.0 for RSI) so callers can stay index-aligned
// with their source data.
package quant

import (
	"errors"
	"math"
)

// ErrInvalidPeriod is returned when a lookback period is zero or negative.
var ErrInvalidPeriod = errors.New("quant: period must be positive")

// Default lookback periods, matching the common charting conventions used
// throughout the service.
const (
	DefaultRSIPeriod    = 14
	DefaultSMAPeriod    = 20
	DefaultEMAPeriod    = 14
	DefaultMACDFast     = 12
	DefaultMACDSlow     = 26
	DefaultMACDSignal   = 9
	DefaultBBandsPeriod = 20
	DefaultBBandsStdDev = 2.0
)

// SMA computes the simple moving average with a running window sum.
// Indices before period-1 are padded with 0.0.
func SMA(data []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}

	result := make([]float64, 0, len(data))
	sum := 0.0

	for i := 0; i < len(data); i++ {
		sum += data[i]
		switch {
		case i >= period:
			sum -= data[i-period]
			result = append(result, sum/float64(period))
		case i == period-1:
			result = append(result, sum/float64(period))
		default:
			result = append(result, 0.0)
		}
	}

	return result, nil
}

// EMA computes the exponential moving average with smoothing factor
// k = 2/(period+1). The first valid value is seeded with the arithmetic
// mean of everything up to and including the seed index; when the series
// is shorter than the period the seed collapses to the first element.
func EMA(data []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(data) == 0 {
		return []float64{}, nil
	}

	k := 2.0 / (float64(period) + 1.0)

	start := 0
	if len(data) >= period {
		start = period - 1
	}

	result := make([]float64, 0, len(data))
	for i := 0; i < start; i++ {
		result = append(result, 0.0)
	}

	seed := 0.0
	for i := 0; i <= start; i++ {
		seed += data[i]
	}
	current := seed / float64(start+1)
	result = append(result, current)

	for i := start + 1; i < len(data); i++ {
		current = data[i]*k + current*(1.0-k)
		result = append(result, current)
	}

	return result, nil
}

// RSI computes Wilder's relative strength index. Series shorter than the
// period return the neutral value 50.0 throughout; otherwise the first
// `period` indices are padded with 50.0 and the first smoothed value (at
// index == period) is the plain warm-up average, with Wilder's recurrence
// applied only from the next index on.
func RSI(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}

	if len(prices) < period {
		result := make([]float64, len(prices))
		for i := range result {
			result[i] = 50.0
		}
		return result, nil
	}

	diffs := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		diffs[i] = prices[i] - prices[i-1]
	}

	result := make([]float64, 0, len(prices))
	for i := 0; i < period; i++ {
		result = append(result, 50.0)
	}

	warmupEnd := period
	if len(diffs)-1 < warmupEnd {
		warmupEnd = len(diffs) - 1
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= warmupEnd; i++ {
		if change := diffs[i]; change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	denominator := float64(warmupEnd)
	if warmupEnd <= 0 {
		denominator = 1.0
	}
	avgGain /= denominator
	avgLoss /= denominator

	for i := period; i < len(prices); i++ {
		gain, loss := 0.0, 0.0
		if change := diffs[i]; change > 0 {
			gain = change
		} else {
			loss = -change
		}

		// The warm-up average itself is the first smoothed value; the
		// recurrence only takes over afterwards.
		if i != period {
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}

		if avgLoss == 0 {
			result = append(result, 100.0)
			continue
		}

		rs := avgGain / avgLoss
		result = append(result, 100.0-(100.0/(1.0+rs)))
	}

	return result, nil
}

// MACD computes the moving average convergence divergence from two
// independently seeded EMAs. The MACD line is the raw difference at every
// index, including the padded region where subtracting two zero paddings
// yields 0; the signal line is an EMA of that full line.
func MACD(data []float64, fast, slow, signal int) (macdLine, signalLine, histogram []float64, err error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, nil, nil, ErrInvalidPeriod
	}

	emaFast, err := EMA(data, fast)
	if err != nil {
		return nil, nil, nil, err
	}
	emaSlow, err := EMA(data, slow)
	if err != nil {
		return nil, nil, nil, err
	}

	macdLine = make([]float64, len(data))
	for i := range data {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}

	signalLine, err = EMA(macdLine, signal)
	if err != nil {
		return nil, nil, nil, err
	}

	histogram = make([]float64, len(data))
	for i := range data {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return macdLine, signalLine, histogram, nil
}

// BollingerBands computes the rolling mean band with upper and lower bands
// at stdDev population standard deviations. Divisor is the full window
// size, not window-1.
func BollingerBands(data []float64, period int, stdDev float64) (upper, middle, lower []float64, err error) {
	if period <= 0 {
		return nil, nil, nil, ErrInvalidPeriod
	}

	upper = make([]float64, 0, len(data))
	middle = make([]float64, 0, len(data))
	lower = make([]float64, 0, len(data))

	for i := 0; i < len(data); i++ {
		if i < period-1 {
			upper = append(upper, 0.0)
			middle = append(middle, 0.0)
			lower = append(lower, 0.0)
			continue
		}

		window := data[i+1-period : i+1]
		sum := 0.0
		for _, x := range window {
			sum += x
		}
		mean := sum / float64(period)

		variance := 0.0
		for _, x := range window {
			variance += (x - mean) * (x - mean)
		}
		variance /= float64(period)
		std := math.Sqrt(variance)

		middle = append(middle, mean)
		upper = append(upper, mean+stdDev*std)
		lower = append(lower, mean-stdDev*std)
	}

	return upper, middle, lower, nil
}
