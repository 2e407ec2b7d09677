package pricecheck

import (
	"fmt"
	"math"
	"sort"
)

// Variance thresholds in percent
const (
	DefaultVarianceThreshold  = 0.5 // proceed below this
	WarningVarianceThreshold  = 1.0 // warn above default, strong warn above this
	CriticalVarianceThreshold = 3.0 // block above this

	outlierThreshold = 2.0 // sources further than this from the mean
)

// VarianceReport summarises price agreement across sources
type VarianceReport struct {
	MaxVariance    float64            `json:"max_variance"`
	MeanPrice      float64            `json:"mean_price"`
	MinPrice       float64            `json:"min_price"`
	MaxPrice       float64            `json:"max_price"`
	Outliers       []string           `json:"outliers"`
	ConsensusPrice float64            `json:"consensus_price"`
	SingleSource   string             `json:"single_source,omitempty"`
	Sources        map[string]float64 `json:"sources"`
}

// Validation is the outcome of a multi-source price check
type Validation struct {
	Valid            bool            `json:"valid"`
	Action           string          `json:"action"` // "proceed", "warn", "block"
	Variance         float64         `json:"variance"`
	RecommendedPrice float64         `json:"recommended_price"`
	Message          string          `json:"message"`
	Report           *VarianceReport `json:"details,omitempty"`
}

// CalculateVariance computes agreement statistics over per-source prices.
// Returns an error when no source produced a price.
func CalculateVariance(prices map[string]float64) (*VarianceReport, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("no valid prices available")
	}

	if len(prices) == 1 {
		for source, price := range prices {
			return &VarianceReport{
				MeanPrice:      round2(price),
				MinPrice:       round2(price),
				MaxPrice:       round2(price),
				Outliers:       []string{},
				ConsensusPrice: round2(price),
				SingleSource:   source,
				Sources:        prices,
			}, nil
		}
	}

	var sum, minPrice, maxPrice float64
	first := true
	for _, price := range prices {
		sum += price
		if first {
			minPrice, maxPrice = price, price
			first = false
			continue
		}
		if price < minPrice {
			minPrice = price
		}
		if price > maxPrice {
			maxPrice = price
		}
	}
	mean := sum / float64(len(prices))

	var maxVariance float64
	outliers := []string{}
	for source, price := range prices {
		variance := math.Abs(price-mean) / mean * 100
		if variance > maxVariance {
			maxVariance = variance
		}
		if variance > outlierThreshold {
			outliers = append(outliers, source)
		}
	}
	sort.Strings(outliers)

	return &VarianceReport{
		MaxVariance:    round2(maxVariance),
		MeanPrice:      round2(mean),
		MinPrice:       round2(minPrice),
		MaxPrice:       round2(maxPrice),
		Outliers:       outliers,
		ConsensusPrice: round2(mean),
		Sources:        prices,
	}, nil
}

// Classify turns a variance report into an action. An intended price
// (hasIntended) is additionally checked against the threshold and can
// escalate a proceed to a warn, but never soften a block.
func Classify(report *VarianceReport, intendedPrice float64, hasIntended bool, threshold float64) *Validation {
	if threshold <= 0 {
		threshold = DefaultVarianceThreshold
	}

	maxVariance := report.MaxVariance
	consensus := report.ConsensusPrice

	var action, message string
	switch {
	case maxVariance <= DefaultVarianceThreshold:
		action = "proceed"
		message = fmt.Sprintf("Price validated. Variance %.2f%% within acceptable range.", maxVariance)
	case maxVariance <= WarningVarianceThreshold:
		action = "warn"
		message = fmt.Sprintf("Price variance %.2f%% detected. Recommend review before proceeding.", maxVariance)
	case maxVariance <= CriticalVarianceThreshold:
		action = "warn"
		message = fmt.Sprintf("High price variance %.2f%%. Strongly recommend manual review.", maxVariance)
	default:
		action = "block"
		message = fmt.Sprintf("Critical price variance %.2f%%. Validation blocked.", maxVariance)
	}

	if hasIntended && consensus != 0 {
		intendedVariance := math.Abs(intendedPrice-consensus) / consensus * 100
		if intendedVariance > threshold {
			if action == "proceed" {
				action = "warn"
			}
			message += fmt.Sprintf(" Intended price %.2f differs %.2f%% from market consensus.",
				intendedPrice, intendedVariance)
		}
	}

	return &Validation{
		Valid:            action == "proceed",
		Action:           action,
		Variance:         maxVariance,
		RecommendedPrice: consensus,
		Message:          message,
		Report:           report,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
