package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// TreeParams configures a single regression tree.
type TreeParams struct {
	MaxDepth        int    // 0 means unlimited
	MinSamplesSplit int    // >= 2
	MaxFeatures     string // "auto", "sqrt", "log2", an int count or a fraction
}

// Validate checks the tree parameters that do not depend on the data.
func (p TreeParams) Validate() error {
	if p.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be >= 2, got %d", p.MinSamplesSplit)
	}
	_, err := ResolveMaxFeatures(p.MaxFeatures, 1)
	return err
}

// ResolveMaxFeatures turns a max_features setting into a feature count.
func ResolveMaxFeatures(value string, nFeatures int) (int, error) {
	s := strings.ToLower(strings.TrimSpace(value))
	switch s {
	case "", "auto", "all", "none", "1.0":
		return nFeatures, nil
	case "sqrt":
		return max(1, int(math.Sqrt(float64(nFeatures)))), nil
	case "log2":
		return max(1, int(math.Log2(float64(nFeatures)))), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("max_features must be >= 1, got %d", n)
		}
		return min(n, nFeatures), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f <= 0 || f > 1 {
			return 0, fmt.Errorf("max_features fraction must be in (0,1], got %v", f)
		}
		return max(1, int(f*float64(nFeatures))), nil
	}
	return 0, fmt.Errorf("invalid max_features %q", value)
}

type treeNode struct {
	feature   int // -1 marks a leaf
	threshold float64
	left      int
	right     int
	value     float64
	samples   int
}

// RegressionTree is a CART regressor with squared-error impurity.
type RegressionTree struct {
	params      TreeParams
	nodes       []treeNode
	nFeatures   int
	importances []float64
}

// NewRegressionTree returns an unfitted tree.
func NewRegressionTree(p TreeParams) *RegressionTree {
	return &RegressionTree{params: p}
}

type splitter struct {
	X    [][]float64
	y    []float64
	k    int
	rng  *rand.Rand
	tree *RegressionTree
	buf  []int
}

// Fit grows the tree on the rows listed in idx. Duplicate indices act as
// sample weights, which is how bootstrap draws are passed in.
func (t *RegressionTree) Fit(X [][]float64, y []float64, idx []int, rng *rand.Rand) error {
	if err := t.params.Validate(); err != nil {
		return err
	}
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("tree: %d rows vs %d targets", len(X), len(y))
	}
	if len(idx) == 0 {
		return errors.New("tree: no samples")
	}
	nf := len(X[0])
	k, err := ResolveMaxFeatures(t.params.MaxFeatures, nf)
	if err != nil {
		return err
	}
	t.nFeatures = nf
	t.nodes = t.nodes[:0]
	t.importances = make([]float64, nf)

	s := &splitter{X: X, y: y, k: k, rng: rng, tree: t, buf: make([]int, len(idx))}
	work := append([]int(nil), idx...)
	s.grow(work, 0)
	return nil
}

func (s *splitter) grow(idx []int, depth int) int {
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		v := s.y[i]
		sum += v
		sumSq += v * v
	}
	n := float64(len(idx))
	mean := sum / n
	impurity := sumSq/n - mean*mean

	id := len(s.tree.nodes)
	s.tree.nodes = append(s.tree.nodes, treeNode{feature: -1, value: mean, samples: len(idx)})

	p := s.tree.params
	if len(idx) < p.MinSamplesSplit || (p.MaxDepth > 0 && depth >= p.MaxDepth) || impurity <= 1e-12 {
		return id
	}

	feature, threshold, pos, ok := s.bestSplit(idx, sum)
	if !ok {
		return id
	}

	// partition idx so that [0,pos) goes left
	sort.Slice(idx, func(a, b int) bool { return s.X[idx[a]][feature] < s.X[idx[b]][feature] })
	left, right := idx[:pos], idx[pos:]

	childImp := func(part []int) float64 {
		ps, pss := 0.0, 0.0
		for _, i := range part {
			ps += s.y[i]
			pss += s.y[i] * s.y[i]
		}
		pn := float64(len(part))
		pm := ps / pn
		return pn * (pss/pn - pm*pm)
	}
	s.tree.importances[feature] += n*impurity - childImp(left) - childImp(right)

	l := s.grow(left, depth+1)
	r := s.grow(right, depth+1)
	s.tree.nodes[id].feature = feature
	s.tree.nodes[id].threshold = threshold
	s.tree.nodes[id].left = l
	s.tree.nodes[id].right = r
	return id
}

// candidateFeatures draws features in random order until k non-constant ones
// are found, then returns them sorted so equal-quality splits resolve to the
// lowest column.
func (s *splitter) candidateFeatures(idx []int) []int {
	perm := s.rng.Perm(s.tree.nFeatures)
	chosen := make([]int, 0, s.k)
	for _, f := range perm {
		if len(chosen) == s.k {
			break
		}
		lo, hi := s.X[idx[0]][f], s.X[idx[0]][f]
		for _, i := range idx[1:] {
			v := s.X[i][f]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi > lo {
			chosen = append(chosen, f)
		}
	}
	sort.Ints(chosen)
	return chosen
}

func (s *splitter) bestSplit(idx []int, total float64) (feature int, threshold float64, pos int, ok bool) {
	n := len(idx)
	best := math.Inf(-1)
	sorted := s.buf[:n]
	for _, f := range s.candidateFeatures(idx) {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return s.X[sorted[a]][f] < s.X[sorted[b]][f] })

		leftSum := 0.0
		for p := 1; p < n; p++ {
			leftSum += s.y[sorted[p-1]]
			lo, hi := s.X[sorted[p-1]][f], s.X[sorted[p]][f]
			if hi <= lo {
				continue
			}
			nl, nr := float64(p), float64(n-p)
			rightSum := total - leftSum
			proxy := leftSum*leftSum/nl + rightSum*rightSum/nr
			if proxy > best {
				best = proxy
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold == hi {
					threshold = lo
				}
				pos = p
				ok = true
			}
		}
	}
	return feature, threshold, pos, ok
}

// Predict returns the leaf mean reached by x.
func (t *RegressionTree) Predict(x []float64) float64 {
	if len(t.nodes) == 0 {
		return math.NaN()
	}
	id := 0
	for t.nodes[id].feature >= 0 {
		nd := t.nodes[id]
		if x[nd.feature] <= nd.threshold {
			id = nd.left
		} else {
			id = nd.right
		}
	}
	return t.nodes[id].value
}

// NodeCount returns the number of nodes, 1 for a stump that never split.
func (t *RegressionTree) NodeCount() int { return len(t.nodes) }

// Depth returns the depth of the deepest leaf.
func (t *RegressionTree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	var walk func(id int) int
	walk = func(id int) int {
		nd := t.nodes[id]
		if nd.feature < 0 {
			return 0
		}
		return 1 + max(walk(nd.left), walk(nd.right))
	}
	return walk(0)
}

// FeatureImportances returns impurity decrease per feature normalized to sum
// to 1, or all zeros if the tree never split.
func (t *RegressionTree) FeatureImportances() []float64 {
	out := make([]float64, len(t.importances))
	total := 0.0
	for _, v := range t.importances {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range t.importances {
		out[i] = v / total
	}
	return out
}
