package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
)

func TestGrid_CandidatesLastAxisFastest(t *testing.T) {
	g := Grid{
		NEstimators:     []int{10, 20},
		MaxDepth:        []int{3},
		MinSamplesSplit: []int{2},
		MaxFeatures:     []string{"auto"},
		Bootstrap:       []bool{true, false},
	}
	c, err := g.Candidates()
	require.NoError(t, err)
	require.Len(t, c, 4)
	assert.Equal(t, 10, c[0].NEstimators)
	assert.True(t, c[0].Bootstrap)
	assert.False(t, c[1].Bootstrap)
	assert.Equal(t, 20, c[2].NEstimators)
	assert.Equal(t, 32, DefaultGrid().Size())
}

func TestGrid_EmptyAxis(t *testing.T) {
	g := DefaultGrid()
	g.MaxFeatures = nil
	_, err := g.Candidates()
	assert.ErrorIs(t, err, ErrEmptyGrid)
}

func TestTimeSeriesSplit(t *testing.T) {
	folds, err := TimeSeriesSplit{Folds: 3}.Split(10)
	require.NoError(t, err)
	assert.Equal(t, []Fold{
		{TrainEnd: 4, TestStart: 4, TestEnd: 6},
		{TrainEnd: 6, TestStart: 6, TestEnd: 8},
		{TrainEnd: 8, TestStart: 8, TestEnd: 10},
	}, folds)

	_, err = TimeSeriesSplit{Folds: 3}.Split(3)
	assert.Error(t, err)
	_, err = TimeSeriesSplit{Folds: 1}.Split(10)
	assert.Error(t, err)
}

func TestHalving_Schedule(t *testing.T) {
	h := NewHalving[int](HalvingConfig{Factor: 3, MinResources: 6, MaxResources: 5832}, nil)
	s, err := h.Schedule(32)
	require.NoError(t, err)
	assert.Equal(t, []int{216, 648, 1944, 5832}, s)

	small := NewHalving[int](HalvingConfig{Factor: 3, MinResources: 6, MaxResources: 20}, nil)
	s, err = small.Schedule(32)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 18}, s, "few rows cap the number of rounds")

	one := NewHalving[int](HalvingConfig{Factor: 3, MinResources: 6, MaxResources: 90}, nil)
	s, err = one.Schedule(2)
	require.NoError(t, err)
	assert.Equal(t, []int{90}, s)
}

func TestHalving_RunKeepsTopThird(t *testing.T) {
	cands := make([]int, 9)
	for i := range cands {
		cands[i] = i
	}
	var mu sync.Mutex
	seen := map[int][]int{}
	obj := func(_ context.Context, c, r int) (float64, error) {
		mu.Lock()
		seen[r] = append(seen[r], c)
		mu.Unlock()
		return float64(c), nil
	}
	h := NewHalving[int](HalvingConfig{Factor: 3, MinResources: 1, MaxResources: 9, Workers: 4}, nil)
	res, err := h.Run(context.Background(), cands, obj)
	require.NoError(t, err)

	require.Len(t, res.Rounds, 3)
	assert.Len(t, seen[1], 9, "every candidate runs in the first round")
	assert.ElementsMatch(t, []int{6, 7, 8}, seen[3])
	assert.Equal(t, []int{8}, seen[9])
	assert.Equal(t, 8, res.Best.Candidate)
	assert.Equal(t, 8.0, res.Best.Score)
}

func TestHalving_SurvivorsRoundUp(t *testing.T) {
	cands := make([]int, 32)
	for i := range cands {
		cands[i] = i
	}
	var mu sync.Mutex
	seen := map[int]int{}
	obj := func(_ context.Context, c, r int) (float64, error) {
		mu.Lock()
		seen[r]++
		mu.Unlock()
		return float64(c), nil
	}
	h := NewHalving[int](HalvingConfig{Factor: 3, MinResources: 1, MaxResources: 27, Workers: 4}, nil)
	res, err := h.Run(context.Background(), cands, obj)
	require.NoError(t, err)

	require.Len(t, res.Rounds, 4)
	assert.Equal(t, map[int]int{1: 32, 3: 11, 9: 4, 27: 2}, seen)
	for i, want := range []int{32, 11, 4, 2} {
		assert.Len(t, res.Rounds[i].Scores, want, "round %d", i)
	}
	assert.Equal(t, 31, res.Best.Candidate)
}

func TestHalving_FailedCandidatesExcluded(t *testing.T) {
	obj := func(_ context.Context, c, _ int) (float64, error) {
		if c == 2 {
			return 0, errors.New("boom")
		}
		return float64(c), nil
	}
	h := NewHalving[int](HalvingConfig{Factor: 3, MinResources: 1, MaxResources: 3}, nil)
	res, err := h.Run(context.Background(), []int{0, 1, 2}, obj)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Best.Candidate)
	assert.Equal(t, 1, res.Rounds[0].Failed())
}

func TestHalving_AllFail(t *testing.T) {
	obj := func(context.Context, int, int) (float64, error) { return 0, errors.New("boom") }
	h := NewHalving[int](HalvingConfig{Factor: 3, MinResources: 1, MaxResources: 3}, nil)
	_, err := h.Run(context.Background(), []int{0, 1}, obj)
	assert.ErrorIs(t, err, ErrNoViableCandidate)
}

func TestHalving_TiesKeepFirst(t *testing.T) {
	obj := func(context.Context, int, int) (float64, error) { return 1, nil }
	h := NewHalving[int](HalvingConfig{Factor: 3, MinResources: 1, MaxResources: 3, Workers: 3}, nil)
	res, err := h.Run(context.Background(), []int{5, 6, 7}, obj)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Best.Candidate)
}

func linear(n int) []models.PricePoint {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, n)
	for i := range out {
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Price: 100 + float64(i)}
	}
	return out
}

func TestHalvingGridSearch_Fit(t *testing.T) {
	cfg := Config{
		Features: features.Config{Target: "Price", Lags: 3, Window: 5},
		Grid: Grid{
			NEstimators:     []int{5, 10},
			MaxDepth:        []int{4, 10},
			MinSamplesSplit: []int{2},
			MaxFeatures:     []string{"auto"},
			Bootstrap:       []bool{false},
		},
		Folds:  3,
		Factor: 3,
		Seed:   42,
	}
	train := linear(90)
	res, err := NewHalvingGridSearch(cfg, WithWorkers(2)).Fit(context.Background(), train)
	require.NoError(t, err)
	require.NotNil(t, res.Best)
	assert.LessOrEqual(t, res.BestScore, 0.0)
	assert.NotEmpty(t, res.Rounds)
	assert.Equal(t, 4, res.Rounds[0].Candidates)
	assert.Equal(t, res.BestParams, res.Best.Params())

	again, err := NewHalvingGridSearch(cfg, WithWorkers(1)).Fit(context.Background(), train)
	require.NoError(t, err)
	assert.Equal(t, res.BestParams, again.BestParams)
	assert.Equal(t, res.BestScore, again.BestScore)
}

func TestHalvingGridSearch_ConfigErrors(t *testing.T) {
	base := Config{
		Features: features.Config{Target: "Price", Lags: 3, Window: 5},
		Grid:     DefaultGrid(),
		Folds:    3,
		Factor:   3,
	}

	empty := base
	empty.Grid.Bootstrap = nil
	_, err := NewHalvingGridSearch(empty).Fit(context.Background(), linear(50))
	assert.Equal(t, models.ErrKindConfig, models.KindOf(err))

	_, err = NewHalvingGridSearch(base).Fit(context.Background(), linear(3))
	assert.Equal(t, models.ErrKindConfig, models.KindOf(err))
}

func TestHalvingGridSearch_BadMaxFeaturesIsFitError(t *testing.T) {
	cfg := Config{
		Features: features.Config{Target: "Price", Lags: 3, Window: 5},
		Grid: Grid{
			NEstimators:     []int{3},
			MaxDepth:        []int{3},
			MinSamplesSplit: []int{2},
			MaxFeatures:     []string{"bogus"},
			Bootstrap:       []bool{false},
		},
		Folds:  3,
		Factor: 3,
	}
	_, err := NewHalvingGridSearch(cfg).Fit(context.Background(), linear(40))
	assert.ErrorIs(t, err, ErrNoViableCandidate)
	assert.Equal(t, models.ErrKindFit, models.KindOf(err))
}
