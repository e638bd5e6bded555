// Package forest implements a random forest regressor and the categorical
// encoder that prepares its input.
package forest

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

// Node is one node of a fitted regression tree. Leaves have Feature == -1.
// Nodes are stored flat so a fitted tree gob-encodes without recursion.
type Node struct {
	Feature   int
	Threshold float64 // x[Feature] <= Threshold goes left
	Left      int
	Right     int
	Value     float64 // mean target of the samples that reached the node
	Samples   int
}

// Tree is a CART regression tree using the squared-error criterion.
type Tree struct {
	Nodes []Node
}

// Predict walks x down to a leaf and returns its value.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// treeParams are the stopping and sampling rules of a single tree.
type treeParams struct {
	maxDepth        int // 0 => unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // candidate features per split
}

// grower builds one tree. It is not safe for concurrent use; each tree gets
// its own grower and random source.
type grower struct {
	X           [][]float64
	y           []float64
	params      treeParams
	rnd         *rand.Rand
	tree        *Tree
	importances []float64
	features    []int
}

// minImpurityDecrease guards against splitting on floating-point noise.
const minImpurityDecrease = 1e-12

func growTree(X [][]float64, y []float64, idx []int, params treeParams, rnd *rand.Rand) (*Tree, []float64) {
	p := len(X[0])
	g := &grower{
		X:           X,
		y:           y,
		params:      params,
		rnd:         rnd,
		tree:        &Tree{},
		importances: make([]float64, p),
		features:    make([]int, p),
	}
	for j := range g.features {
		g.features[j] = j
	}
	g.build(idx, 0)
	return g.tree, g.importances
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (g *grower) build(idx []int, depth int) int {
	n := len(idx)
	var sum, sumSq float64
	for _, i := range idx {
		sum += g.y[i]
		sumSq += g.y[i] * g.y[i]
	}
	mean := sum / float64(n)
	sse := sumSq - sum*sum/float64(n)

	self := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, Node{Feature: -1, Value: mean, Samples: n})

	if n < g.params.minSamplesSplit || n < 2*g.params.minSamplesLeaf ||
		(g.params.maxDepth > 0 && depth >= g.params.maxDepth) || sse <= minImpurityDecrease {
		return self
	}

	best, ok := g.bestSplit(idx, sum)
	if !ok {
		return self
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range idx {
		if g.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	g.importances[best.feature] += best.gain

	l := g.build(left, depth+1)
	r := g.build(right, depth+1)
	node := &g.tree.Nodes[self]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = l
	node.Right = r
	return self
}

// bestSplit searches a random subset of features for the split with the
// largest reduction in squared error.
func (g *grower) bestSplit(idx []int, sum float64) (split, bool) {
	p := len(g.features)
	k := g.params.maxFeatures
	if k <= 0 || k > p {
		k = p
	}
	// Partial Fisher-Yates: the first k entries become the candidates.
	for i := 0; i < k; i++ {
		j := i + g.rnd.IntN(p-i)
		g.features[i], g.features[j] = g.features[j], g.features[i]
	}

	n := len(idx)
	sorted := make([]int, n)
	best := split{feature: -1}
	minLeaf := max(g.params.minSamplesLeaf, 1)

	for _, f := range g.features[:k] {
		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, b int) int {
			if c := cmp.Compare(g.X[a][f], g.X[b][f]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})

		var leftSum float64
		for s := 1; s < n; s++ {
			leftSum += g.y[sorted[s-1]]

			lo, hi := g.X[sorted[s-1]][f], g.X[sorted[s]][f]
			if lo == hi || s < minLeaf || n-s < minLeaf {
				continue
			}

			nl, nr := float64(s), float64(n-s)
			rightSum := sum - leftSum
			// sse(left)+sse(right) = sumSq - leftSum²/nl - rightSum²/nr
			gain := leftSum*leftSum/nl + rightSum*rightSum/nr - sum*sum/float64(n)
			if gain > best.gain {
				thr := (lo + hi) / 2
				if thr >= hi {
					thr = lo
				}
				best = split{feature: f, threshold: thr, gain: gain}
			}
		}
	}

	if best.feature < 0 || best.gain <= minImpurityDecrease {
		return best, false
	}
	return best, true
}
