package ml

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// ForestParams configures a random forest regressor.
type ForestParams struct {
	NEstimators int
	Tree        TreeParams
	Bootstrap   bool
	Seed        int64
}

// Validate checks the forest parameters.
func (p ForestParams) Validate() error {
	if p.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be >= 1, got %d", p.NEstimators)
	}
	return p.Tree.Validate()
}

// RandomForest averages randomized regression trees.
type RandomForest struct {
	params    ForestParams
	trees     []*RegressionTree
	nFeatures int
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(p ForestParams) *RandomForest {
	return &RandomForest{params: p}
}

// Fit trains every tree. Tree t draws from its own source seeded with
// Seed+t, so the result does not depend on how fits are scheduled.
func (f *RandomForest) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if err := f.params.Validate(); err != nil {
		return err
	}
	if len(X) == 0 {
		return errors.New("forest: no rows")
	}
	if len(X) != len(y) {
		return fmt.Errorf("forest: %d rows vs %d targets", len(X), len(y))
	}
	n := len(X)
	trees := make([]*RegressionTree, f.params.NEstimators)
	for t := range trees {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng := rand.New(rand.NewSource(f.params.Seed + int64(t)))
		idx := make([]int, n)
		if f.params.Bootstrap {
			for i := range idx {
				idx[i] = rng.Intn(n)
			}
		} else {
			for i := range idx {
				idx[i] = i
			}
		}
		tree := NewRegressionTree(f.params.Tree)
		if err := tree.Fit(X, y, idx, rng); err != nil {
			return fmt.Errorf("fit tree %d: %w", t, err)
		}
		trees[t] = tree
	}
	f.trees = trees
	f.nFeatures = len(X[0])
	return nil
}

// Predict returns the mean tree prediction for each row.
func (f *RandomForest) Predict(X [][]float64) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != f.nFeatures {
			return nil, fmt.Errorf("forest: row %d has %d columns, want %d", i, len(x), f.nFeatures)
		}
		sum := 0.0
		for _, t := range f.trees {
			sum += t.Predict(x)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out, nil
}

// FeatureImportances averages the per-tree normalized importances over trees
// that split at least once and renormalizes to sum to 1. If no tree split the
// weights are uniform.
func (f *RandomForest) FeatureImportances() []float64 {
	out := make([]float64, f.nFeatures)
	if f.nFeatures == 0 {
		return out
	}
	used := 0
	for _, t := range f.trees {
		if t.NodeCount() <= 1 {
			continue
		}
		for j, v := range t.FeatureImportances() {
			out[j] += v
		}
		used++
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if used == 0 || total <= 0 {
		for j := range out {
			out[j] = 1 / float64(f.nFeatures)
		}
		return out
	}
	for j := range out {
		out[j] /= total
	}
	return out
}
