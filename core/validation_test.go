package core

import (
	"math"
	"testing"
)

func TestResidualQuantiles(t *testing.T) {
	data := make([]float64, 100)
	pred := make([]float64, 100)
	for i := range data {
		// Residuals are exactly 0..99.
		data[i] = float64(i)
		pred[i] = 0
	}

	stats, err := ResidualQuantiles(data, pred, DefaultQuantiles)
	if err != nil {
		t.Fatalf("ResidualQuantiles: %v", err)
	}
	if len(stats) != len(DefaultQuantiles) {
		t.Fatalf("got %d stats, want %d", len(stats), len(DefaultQuantiles))
	}
	for _, s := range stats {
		want := float64(s.Quantile)
		if math.Abs(s.Value-want) > 1 {
			t.Fatalf("q%d = %v, want ~%v", s.Quantile, s.Value, want)
		}
	}
}

func TestResidualQuantilesErrors(t *testing.T) {
	if _, err := ResidualQuantiles([]float64{1}, []float64{1, 2}, DefaultQuantiles); err == nil {
		t.Fatal("expected error for length mismatch")
	}
	if _, err := ResidualQuantiles(nil, nil, DefaultQuantiles); err == nil {
		t.Fatal("expected error for empty series")
	}
}

func TestValidationViols(t *testing.T) {
	stats := map[string][]QuantileStat{
		"1DPAMZT": {
			{Quantile: 1, Value: -6.2}, // magnitude over limit
			{Quantile: 50, Value: 0.3},
			{Quantile: 99, Value: 4.0},
		},
		"PITCH": {
			{Quantile: 99, Value: 10.0}, // no limits configured
		},
	}
	limits := map[string][]ValidationLimit{
		"1DPAMZT": {
			{Quantile: 1, Limit: 5.5},
			{Quantile: 50, Limit: 1.0},
			{Quantile: 99, Limit: 5.5},
			{Quantile: 84, Limit: 2.0}, // no matching stat
		},
	}

	viols := ValidationViols(stats, limits)
	if len(viols) != 1 {
		t.Fatalf("got %d violations, want 1: %+v", len(viols), viols)
	}
	v := viols[0]
	if v.Quantity != "1DPAMZT" || v.Quantile != 1 {
		t.Fatalf("violation = %+v", v)
	}
	if v.Value != -6.2 {
		t.Fatalf("value = %v, want signed -6.2", v.Value)
	}
}

func TestValidationViolsSorted(t *testing.T) {
	stats := map[string][]QuantileStat{
		"B": {{Quantile: 99, Value: 9}},
		"A": {{Quantile: 99, Value: 9}, {Quantile: 1, Value: -9}},
	}
	limits := map[string][]ValidationLimit{
		"A": {{Quantile: 1, Limit: 1}, {Quantile: 99, Limit: 1}},
		"B": {{Quantile: 99, Limit: 1}},
	}

	viols := ValidationViols(stats, limits)
	if len(viols) != 3 {
		t.Fatalf("got %d violations, want 3", len(viols))
	}
	if viols[0].Quantity != "A" || viols[0].Quantile != 1 ||
		viols[1].Quantity != "A" || viols[1].Quantile != 99 ||
		viols[2].Quantity != "B" {
		t.Fatalf("order = %+v", viols)
	}
}
