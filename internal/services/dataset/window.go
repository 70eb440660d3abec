package dataset

import (
	"fmt"
	"sort"
	"time"

	"PriceCast/internal/domain/models"
)

// Window returns the suffix of points covering the last `years` calendar
// years, inclusive of the cutoff date. Points must be strictly increasing.
func Window(points []models.PricePoint, years int) ([]models.PricePoint, error) {
	if years <= 0 {
		return nil, fmt.Errorf("lookback years must be positive, got %d", years)
	}
	if len(points) == 0 {
		return nil, ErrEmptySeries
	}
	if !IsOrdered(points) {
		return nil, ErrUnordered
	}
	cutoff := yearsBefore(points[len(points)-1].Date, years)
	start := sort.Search(len(points), func(i int) bool { return !points[i].Date.Before(cutoff) })
	return points[start:], nil
}

// yearsBefore moves t back by years, clamping the day to the target month's
// length so Feb 29 maps to Feb 28 instead of Mar 1.
func yearsBefore(t time.Time, years int) time.Time {
	y := t.Year() - years
	lastDay := time.Date(y, t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return time.Date(y, t.Month(), min(t.Day(), lastDay), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Split partitions window chronologically at floor(trainFraction*len).
func Split(window []models.PricePoint, trainFraction float64) (models.SplitSegments, error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return models.SplitSegments{}, fmt.Errorf("train fraction must be in (0,1), got %v", trainFraction)
	}
	n := int(float64(len(window)) * trainFraction)
	if n == 0 || n == len(window) {
		return models.SplitSegments{}, fmt.Errorf("split %d rows at %.2f: %w", len(window), trainFraction, ErrEmptySegment)
	}
	return models.SplitSegments{Train: window[:n], Test: window[n:]}, nil
}
