package pricecheck

import (
	"math"
	"strings"
	"testing"
)

func TestCalculateVarianceNoSources(t *testing.T) {
	if _, err := CalculateVariance(map[string]float64{}); err == nil {
		t.Fatal("expected error for empty price map")
	}
}

func TestCalculateVarianceSingleSource(t *testing.T) {
	report, err := CalculateVariance(map[string]float64{"yahoo": 150.256})
	if err != nil {
		t.Fatalf("CalculateVariance failed: %v", err)
	}

	if report.MaxVariance != 0.0 {
		t.Errorf("single source should have zero variance, got %f", report.MaxVariance)
	}
	if report.ConsensusPrice != 150.26 {
		t.Errorf("expected rounded consensus 150.26, got %f", report.ConsensusPrice)
	}
	if report.SingleSource != "yahoo" {
		t.Errorf("expected single_source yahoo, got %q", report.SingleSource)
	}
	if len(report.Outliers) != 0 {
		t.Errorf("expected no outliers, got %v", report.Outliers)
	}
}

func TestCalculateVarianceAgreement(t *testing.T) {
	prices := map[string]float64{
		"yahoo":      100.0,
		"trading212": 100.2,
		"bybit":      99.8,
	}
	report, err := CalculateVariance(prices)
	if err != nil {
		t.Fatalf("CalculateVariance failed: %v", err)
	}

	if report.MeanPrice != 100.0 {
		t.Errorf("expected mean 100.0, got %f", report.MeanPrice)
	}
	if report.MinPrice != 99.8 || report.MaxPrice != 100.2 {
		t.Errorf("expected range [99.8, 100.2], got [%f, %f]", report.MinPrice, report.MaxPrice)
	}
	if report.MaxVariance != 0.2 {
		t.Errorf("expected max variance 0.2, got %f", report.MaxVariance)
	}
	if len(report.Outliers) != 0 {
		t.Errorf("expected no outliers, got %v", report.Outliers)
	}
}

func TestCalculateVarianceOutliers(t *testing.T) {
	// mean = 102.5, trading212 sits 7.32% away
	prices := map[string]float64{
		"yahoo":      100.0,
		"bybit":      97.5,
		"trading212": 110.0,
	}
	report, err := CalculateVariance(prices)
	if err != nil {
		t.Fatalf("CalculateVariance failed: %v", err)
	}

	if len(report.Outliers) != 2 {
		t.Fatalf("expected 2 outliers, got %v", report.Outliers)
	}
	if report.Outliers[0] != "bybit" || report.Outliers[1] != "trading212" {
		t.Errorf("expected sorted outliers [bybit trading212], got %v", report.Outliers)
	}
	expected := math.Round(math.Abs(110.0-102.5)/102.5*100*100) / 100
	if report.MaxVariance != expected {
		t.Errorf("expected max variance %f, got %f", expected, report.MaxVariance)
	}
}

func TestClassifyActions(t *testing.T) {
	tests := []struct {
		name        string
		maxVariance float64
		action      string
		valid       bool
	}{
		{"tight agreement proceeds", 0.3, "proceed", true},
		{"boundary at default threshold proceeds", 0.5, "proceed", true},
		{"moderate variance warns", 0.8, "warn", false},
		{"high variance warns", 2.5, "warn", false},
		{"critical variance blocks", 3.5, "block", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &VarianceReport{MaxVariance: tt.maxVariance, ConsensusPrice: 100.0}
			v := Classify(report, 0, false, DefaultVarianceThreshold)
			if v.Action != tt.action {
				t.Errorf("expected action %s, got %s", tt.action, v.Action)
			}
			if v.Valid != tt.valid {
				t.Errorf("expected valid=%v, got %v", tt.valid, v.Valid)
			}
			if v.RecommendedPrice != 100.0 {
				t.Errorf("expected recommended price 100.0, got %f", v.RecommendedPrice)
			}
		})
	}
}

func TestClassifyIntendedPrice(t *testing.T) {
	report := &VarianceReport{MaxVariance: 0.2, ConsensusPrice: 100.0}

	t.Run("close intended price keeps proceed", func(t *testing.T) {
		v := Classify(report, 100.3, true, DefaultVarianceThreshold)
		if v.Action != "proceed" {
			t.Errorf("expected proceed, got %s", v.Action)
		}
	})

	t.Run("distant intended price escalates to warn", func(t *testing.T) {
		v := Classify(report, 105.0, true, DefaultVarianceThreshold)
		if v.Action != "warn" {
			t.Errorf("expected warn, got %s", v.Action)
		}
		if !strings.Contains(v.Message, "differs") {
			t.Errorf("message should mention intended price divergence: %q", v.Message)
		}
	})

	t.Run("intended price never softens a block", func(t *testing.T) {
		blocked := &VarianceReport{MaxVariance: 5.0, ConsensusPrice: 100.0}
		v := Classify(blocked, 110.0, true, DefaultVarianceThreshold)
		if v.Action != "block" {
			t.Errorf("expected block, got %s", v.Action)
		}
	})

	t.Run("zero threshold falls back to default", func(t *testing.T) {
		v := Classify(report, 100.3, true, 0)
		if v.Action != "proceed" {
			t.Errorf("expected proceed with default threshold, got %s", v.Action)
		}
	})
}
