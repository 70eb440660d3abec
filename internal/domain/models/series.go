package models

import "time"

// PricePoint is a single daily observation of a price series.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Series is a named, date-ordered price series.
type Series struct {
	Code   string       `json:"code"`
	Target string       `json:"target"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Points) }

// Prices returns the price column.
func Prices(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// Dates returns the date column.
func Dates(points []PricePoint) []time.Time {
	out := make([]time.Time, len(points))
	for i, p := range points {
		out[i] = p.Date
	}
	return out
}

// SplitSegments is a chronological train/test partition of a window.
type SplitSegments struct {
	Train []PricePoint
	Test  []PricePoint
}
