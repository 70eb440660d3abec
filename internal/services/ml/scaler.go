package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrNotFitted is returned when a transform or prediction is requested
// before Fit.
var ErrNotFitted = errors.New("model is not fitted")

// StandardScaler centers columns to zero mean and unit variance. Statistics
// come only from the rows passed to Fit.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// Fit computes per-column mean and population standard deviation.
// Zero-variance columns get scale 1.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("scaler: no rows")
	}
	nf := len(X[0])
	for i, row := range X {
		if len(row) != nf {
			return fmt.Errorf("scaler: row %d has %d columns, want %d", i, len(row), nf)
		}
	}
	mean := make([]float64, nf)
	scale := make([]float64, nf)
	col := make([]float64, len(X))
	for j := range nf {
		for i, row := range X {
			col[i] = row[j]
		}
		m, std := stat.PopMeanStdDev(col, nil)
		if std < 1e-12 || math.IsNaN(std) {
			std = 1
		}
		mean[j], scale[j] = m, std
	}
	s.mean, s.scale = mean, scale
	return nil
}

// Transform returns a scaled copy of X.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if s.mean == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.mean) {
			return nil, fmt.Errorf("scaler: row %d has %d columns, want %d", i, len(row), len(s.mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.mean[j]) / s.scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// Mean returns a copy of the fitted column means.
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.mean...) }

// Scale returns a copy of the fitted column scales.
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale...) }
