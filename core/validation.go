package core

import (
	"fmt"
	"sort"
)

// DefaultQuantiles are the residual percentiles examined during validation.
var DefaultQuantiles = []int{1, 5, 16, 50, 84, 95, 99}

// QuantileStat is one residual percentile of data minus model.
type QuantileStat struct {
	Quantile int
	Value    float64
}

// ValidationLimit bounds the magnitude of one residual quantile.
type ValidationLimit struct {
	Quantile int     `yaml:"quantile"`
	Limit    float64 `yaml:"limit"`
}

// ValidationViolation flags a residual quantile outside its allowed range.
type ValidationViolation struct {
	Quantity string
	Quantile int
	Value    float64
	Limit    float64
}

// ResidualQuantiles computes the requested percentiles of data - pred.
// Both series must be aligned on the same time grid.
func ResidualQuantiles(data, pred []float64, quantiles []int) ([]QuantileStat, error) {
	if len(data) != len(pred) {
		return nil, fmt.Errorf("residuals: series length mismatch %d vs %d", len(data), len(pred))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("residuals: empty series")
	}

	diff := make([]float64, len(data))
	for i := range data {
		diff[i] = data[i] - pred[i]
	}
	sort.Float64s(diff)

	stats := make([]QuantileStat, 0, len(quantiles))
	for _, q := range quantiles {
		idx := len(diff) * q / 100
		if idx >= len(diff) {
			idx = len(diff) - 1
		}
		stats = append(stats, QuantileStat{Quantile: q, Value: diff[idx]})
	}
	return stats, nil
}

// ValidationViols checks each quantity's residual quantiles against its
// configured limits. Quantities without limits are skipped; a quantile value
// whose magnitude exceeds the limit is flagged.
func ValidationViols(stats map[string][]QuantileStat, limits map[string][]ValidationLimit) []ValidationViolation {
	var viols []ValidationViolation
	for quantity, qstats := range stats {
		lims, ok := limits[quantity]
		if !ok {
			continue
		}
		byQuantile := make(map[int]float64, len(qstats))
		for _, s := range qstats {
			byQuantile[s.Quantile] = s.Value
		}
		for _, lim := range lims {
			value, ok := byQuantile[lim.Quantile]
			if !ok {
				continue
			}
			if value < 0 {
				value = -value
			}
			if value > lim.Limit {
				viols = append(viols, ValidationViolation{
					Quantity: quantity,
					Quantile: lim.Quantile,
					Value:    byQuantile[lim.Quantile],
					Limit:    lim.Limit,
				})
			}
		}
	}
	sort.Slice(viols, func(i, j int) bool {
		if viols[i].Quantity != viols[j].Quantity {
			return viols[i].Quantity < viols[j].Quantity
		}
		return viols[i].Quantile < viols[j].Quantile
	})
	return viols
}
