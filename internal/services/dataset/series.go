package dataset

import (
	"errors"
	"math"
	"sort"

	"PriceCast/internal/domain/models"
)

var (
	// ErrEmptySeries is returned when no usable observation is left.
	ErrEmptySeries = errors.New("series is empty")
	// ErrEmptySegment is returned when a split leaves train or test empty.
	ErrEmptySegment = errors.New("split produced an empty segment")
	// ErrUnordered is returned when dates are not strictly increasing.
	ErrUnordered = errors.New("series dates are not strictly increasing")
)

// Normalize sorts points by date, keeps the last observation per date and
// drops missing (NaN/Inf) values. The input slice is not modified.
func Normalize(points []models.PricePoint) ([]models.PricePoint, error) {
	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Date.IsZero() {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrEmptySeries
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	// dedupe in place; later duplicates overwrite earlier ones
	n := 0
	for i := range out {
		if n > 0 && out[n-1].Date.Equal(out[i].Date) {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n], nil
}

// IsOrdered reports whether dates are strictly increasing.
func IsOrdered(points []models.PricePoint) bool {
	for i := 1; i < len(points); i++ {
		if !points[i-1].Date.Before(points[i].Date) {
			return false
		}
	}
	return true
}
