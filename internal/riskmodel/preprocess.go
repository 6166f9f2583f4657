package riskmodel

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// standardScaler centers numeric features to zero mean and unit variance,
// with statistics fit on the training data.
type standardScaler struct {
	Means []float64
	Stds  []float64
}

func fitScaler(rows [][]float64) *standardScaler {
	if len(rows) == 0 {
		return &standardScaler{}
	}

	cols := len(rows[0])
	scaler := &standardScaler{
		Means: make([]float64, cols),
		Stds:  make([]float64, cols),
	}

	column := make([]float64, len(rows))
	for c := 0; c < cols; c++ {
		for r := range rows {
			column[r] = rows[r][c]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 {
			std = 1
		}
		scaler.Means[c] = mean
		scaler.Stds[c] = std
	}

	return scaler
}

func (s *standardScaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - s.Means[i]) / s.Stds[i]
	}
	return out
}

// oneHotEncoder encodes the categorical refund method. Categories unseen
// during fitting map to the all-zero vector instead of failing.
type oneHotEncoder struct {
	Categories []string
}

func fitEncoder(values []string) *oneHotEncoder {
	seen := make(map[string]struct{})
	for _, v := range values {
		seen[v] = struct{}{}
	}

	categories := make([]string, 0, len(seen))
	for v := range seen {
		categories = append(categories, v)
	}
	sort.Strings(categories)

	return &oneHotEncoder{Categories: categories}
}

func (e *oneHotEncoder) transform(value string) []float64 {
	out := make([]float64, len(e.Categories))
	for i, c := range e.Categories {
		if c == value {
			out[i] = 1
			break
		}
	}
	return out
}
