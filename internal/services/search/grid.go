package search

import (
	"errors"
	"fmt"

	"PriceCast/internal/domain/models"
)

// ErrEmptyGrid is returned when a grid has no axes or an axis has no values.
var ErrEmptyGrid = errors.New("empty hyperparameter grid")

// Grid is the random forest search space. Candidates are enumerated in
// field order with Bootstrap varying fastest.
type Grid struct {
	NEstimators     []int    `yaml:"n_estimators" json:"n_estimators"`
	MaxDepth        []int    `yaml:"max_depth" json:"max_depth"`
	MinSamplesSplit []int    `yaml:"min_samples_split" json:"min_samples_split"`
	MaxFeatures     []string `yaml:"max_features" json:"max_features"`
	Bootstrap       []bool   `yaml:"bootstrap" json:"bootstrap"`
}

// DefaultGrid returns the reference search space of 32 candidates.
func DefaultGrid() Grid {
	return Grid{
		NEstimators:     []int{100, 200},
		MaxDepth:        []int{10, 20},
		MinSamplesSplit: []int{2, 5},
		MaxFeatures:     []string{"auto", "sqrt"},
		Bootstrap:       []bool{true, false},
	}
}

// Size returns the number of candidates.
func (g Grid) Size() int {
	return len(g.NEstimators) * len(g.MaxDepth) * len(g.MinSamplesSplit) * len(g.MaxFeatures) * len(g.Bootstrap)
}

// Validate rejects empty axes.
func (g Grid) Validate() error {
	axes := []struct {
		name string
		n    int
	}{
		{"n_estimators", len(g.NEstimators)},
		{"max_depth", len(g.MaxDepth)},
		{"min_samples_split", len(g.MinSamplesSplit)},
		{"max_features", len(g.MaxFeatures)},
		{"bootstrap", len(g.Bootstrap)},
	}
	for _, a := range axes {
		if a.n == 0 {
			return fmt.Errorf("axis %s: %w", a.name, ErrEmptyGrid)
		}
	}
	return nil
}

// Candidates expands the grid into its Cartesian product.
func (g Grid) Candidates() ([]models.HyperParams, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	out := make([]models.HyperParams, 0, g.Size())
	for _, ne := range g.NEstimators {
		for _, md := range g.MaxDepth {
			for _, mss := range g.MinSamplesSplit {
				for _, mf := range g.MaxFeatures {
					for _, bs := range g.Bootstrap {
						out = append(out, models.HyperParams{
							NEstimators:     ne,
							MaxDepth:        md,
							MinSamplesSplit: mss,
							MaxFeatures:     mf,
							Bootstrap:       bs,
						})
					}
				}
			}
		}
	}
	return out, nil
}
