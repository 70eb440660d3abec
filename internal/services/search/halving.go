package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"PriceCast/pkg/logger"
)

// ErrNoViableCandidate is returned when every candidate of a round failed.
var ErrNoViableCandidate = errors.New("no viable candidate")

// Objective scores one candidate using the given amount of resources.
// Higher is better.
type Objective[T any] func(ctx context.Context, cand T, resources int) (float64, error)

// HalvingConfig configures the successive-halving scheduler.
type HalvingConfig struct {
	Factor       int
	MinResources int
	MaxResources int
	Workers      int
}

// Validate checks the scheduler configuration.
func (c HalvingConfig) Validate() error {
	if c.Factor < 2 {
		return fmt.Errorf("halving factor must be >= 2, got %d", c.Factor)
	}
	if c.MinResources < 1 {
		return fmt.Errorf("min resources must be >= 1, got %d", c.MinResources)
	}
	if c.MaxResources < c.MinResources {
		return fmt.Errorf("max resources %d below min resources %d", c.MaxResources, c.MinResources)
	}
	return nil
}

// Halving runs successive halving over a fixed candidate list: every
// candidate is scored on a small budget, the best 1/Factor advance and the
// budget grows by Factor until the last round.
type Halving[T any] struct {
	cfg HalvingConfig
	log *logger.Logger
}

// NewHalving returns a scheduler. A nil logger discards output.
func NewHalving[T any](cfg HalvingConfig, log *logger.Logger) *Halving[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Halving[T]{cfg: cfg, log: log}
}

// Scored is a candidate with its score from the latest round it took part in.
type Scored[T any] struct {
	Index     int // position in the original candidate list
	Candidate T
	Score     float64
	Err       error
}

// RoundResult is the outcome of one round.
type RoundResult[T any] struct {
	Iteration int
	Resources int
	Scores    []Scored[T]
}

// Best returns the highest scoring successful candidate of the round.
func (r RoundResult[T]) Best() (Scored[T], bool) {
	ranked := rank(r.Scores)
	if len(ranked) == 0 {
		return Scored[T]{}, false
	}
	return ranked[0], true
}

// Failed counts candidates whose evaluation returned an error.
func (r RoundResult[T]) Failed() int {
	n := 0
	for _, s := range r.Scores {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// HalvingResult is the winner of the final round plus the round history.
type HalvingResult[T any] struct {
	Best   Scored[T]
	Rounds []RoundResult[T]
}

// Schedule returns the resources for each round given n candidates.
func (h *Halving[T]) Schedule(n int) ([]int, error) {
	if err := h.cfg.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, ErrEmptyGrid
	}
	f := h.cfg.Factor
	required := 1 + floorLog(n, f)
	minRes := max(h.cfg.MinResources, h.cfg.MaxResources/intPow(f, required-1))
	possible := 1 + floorLog(h.cfg.MaxResources/minRes, f)
	rounds := min(required, possible)

	out := make([]int, rounds)
	for r := range out {
		out[r] = min(minRes*intPow(f, r), h.cfg.MaxResources)
	}
	return out, nil
}

// Run evaluates candidates round by round and returns the best one of the
// last round.
func (h *Halving[T]) Run(ctx context.Context, candidates []T, objective Objective[T]) (*HalvingResult[T], error) {
	schedule, err := h.Schedule(len(candidates))
	if err != nil {
		return nil, err
	}

	alive := make([]Scored[T], len(candidates))
	for i, c := range candidates {
		alive[i] = Scored[T]{Index: i, Candidate: c}
	}

	res := &HalvingResult[T]{Rounds: make([]RoundResult[T], 0, len(schedule))}
	for iter, resources := range schedule {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores := h.evaluate(ctx, alive, resources, objective)
		round := RoundResult[T]{Iteration: iter, Resources: resources, Scores: scores}
		res.Rounds = append(res.Rounds, round)

		ranked := rank(scores)
		if len(ranked) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("round %d with %d resources: %w", iter, resources, ErrNoViableCandidate)
		}
		h.log.Debug("halving round done",
			logger.Int("iteration", iter),
			logger.Int("resources", resources),
			logger.Int("candidates", len(scores)),
			logger.Int("failed", round.Failed()),
			logger.Float64("best_score", ranked[0].Score),
		)

		if iter == len(schedule)-1 {
			res.Best = ranked[0]
			break
		}
		keep := (len(alive) + h.cfg.Factor - 1) / h.cfg.Factor
		alive = ranked[:min(keep, len(ranked))]
	}
	return res, nil
}

// evaluate scores every candidate on a bounded pool of workers. The result
// keeps the input order. Candidate errors are recorded, never returned.
func (h *Halving[T]) evaluate(ctx context.Context, cands []Scored[T], resources int, objective Objective[T]) []Scored[T] {
	out := make([]Scored[T], len(cands))
	var g errgroup.Group
	g.SetLimit(max(h.cfg.Workers, 1))

	for i, c := range cands {
		g.Go(func() error {
			score, err := objective(ctx, c.Candidate, resources)
			if err == nil && (math.IsNaN(score) || math.IsInf(score, 0)) {
				err = fmt.Errorf("non-finite score %v", score)
			}
			if err != nil {
				h.log.Debug("candidate failed",
					logger.Int("candidate", c.Index),
					logger.Int("resources", resources),
					logger.Error(err),
				)
				score = math.Inf(-1)
			}
			out[i] = Scored[T]{Index: c.Index, Candidate: c.Candidate, Score: score, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// rank drops failed candidates and sorts the rest by descending score.
// Ties keep the earlier candidate first.
func rank[T any](scores []Scored[T]) []Scored[T] {
	out := make([]Scored[T], 0, len(scores))
	for _, s := range scores {
		if s.Err == nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

func floorLog(n, base int) int {
	k := 0
	for p := base; p <= n; p *= base {
		k++
	}
	return k
}

func intPow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
