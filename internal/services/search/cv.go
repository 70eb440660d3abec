package search

import "fmt"

// Fold is a pair of half-open row ranges: train [0, TrainEnd) and
// validation [TestStart, TestEnd).
type Fold struct {
	TrainEnd  int
	TestStart int
	TestEnd   int
}

// TimeSeriesSplit yields expanding-window folds where validation rows always
// come after the training rows.
type TimeSeriesSplit struct {
	Folds int
}

// Split returns the folds for n rows. The validation size is n/(Folds+1) and
// the last fold ends at n.
func (s TimeSeriesSplit) Split(n int) ([]Fold, error) {
	if s.Folds < 2 {
		return nil, fmt.Errorf("cv folds must be >= 2, got %d", s.Folds)
	}
	if n < s.Folds+1 {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", s.Folds, n)
	}
	test := n / (s.Folds + 1)
	out := make([]Fold, s.Folds)
	for k := range out {
		start := n - (s.Folds-k)*test
		out[k] = Fold{TrainEnd: start, TestStart: start, TestEnd: start + test}
	}
	return out, nil
}
