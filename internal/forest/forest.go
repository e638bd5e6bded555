package forest

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the forest hyperparameters.
type Config struct {
	NEstimators     int   `yaml:"n_estimators"`
	MaxDepth        int   `yaml:"max_depth"` // 0 => unlimited
	MinSamplesSplit int   `yaml:"min_samples_split"`
	MinSamplesLeaf  int   `yaml:"min_samples_leaf"`
	MaxFeatures     int   `yaml:"max_features"` // 0 => ceil(p/3)
	Bootstrap       bool  `yaml:"bootstrap"`
	Seed            int64 `yaml:"seed"`
	Workers         int   `yaml:"workers"` // 0 => GOMAXPROCS
}

// DefaultConfig returns the hyperparameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
	}
}

// Forest is a random forest regressor: an ordered set of trees, each fit on a
// bootstrap resample with a random feature subset per split. Its prediction
// is the mean of the trees' predictions.
//
// A fitted Forest is read-only and safe for concurrent Predict calls.
type Forest struct {
	Config      Config
	NFeatures   int
	Trees       []Tree
	Importances []float64
}

// New returns an unfitted forest. Zero-valued fields of cfg fall back to
// DefaultConfig, except Bootstrap which is taken as given.
func New(cfg Config) *Forest {
	def := DefaultConfig()
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = def.NEstimators
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = def.MinSamplesSplit
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = def.MinSamplesLeaf
	}
	return &Forest{Config: cfg}
}

// maxFeatures resolves the number of candidate features per split.
func (f *Forest) maxFeatures(p int) int {
	k := f.Config.MaxFeatures
	if k <= 0 {
		k = int(math.Ceil(float64(p) / 3))
	}
	return min(max(k, 1), p)
}

// Fit trains the forest from scratch on X (n x p) and y. Given the same data
// and Config.Seed, the fitted trees are identical regardless of Workers.
func (f *Forest) Fit(ctx context.Context, X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 {
		return eris.New("forest: empty X")
	}
	if len(y) != n {
		return eris.Errorf("forest: X has %d rows, y has %d", n, len(y))
	}
	p := len(X[0])
	if p == 0 {
		return eris.New("forest: X has no features")
	}
	for i, row := range X {
		if len(row) != p {
			return eris.Errorf("forest: row %d has %d features, want %d", i, len(row), p)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return eris.Errorf("forest: row %d feature %d is not finite", i, j)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return eris.Errorf("forest: target %d is not finite", i)
		}
	}

	params := treeParams{
		maxDepth:        f.Config.MaxDepth,
		minSamplesSplit: f.Config.MinSamplesSplit,
		minSamplesLeaf:  f.Config.MinSamplesLeaf,
		maxFeatures:     f.maxFeatures(p),
	}
	workers := f.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]Tree, f.Config.NEstimators)
	treeImp := make([][]float64, f.Config.NEstimators)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "forest: fit cancelled")
			}
			// Each tree owns its random stream, so the result does not
			// depend on goroutine scheduling.
			rnd := rand.New(rand.NewPCG(uint64(f.Config.Seed), uint64(t)))
			idx := make([]int, n)
			for i := range idx {
				if f.Config.Bootstrap {
					idx[i] = rnd.IntN(n)
				} else {
					idx[i] = i
				}
			}
			tree, imp := growTree(X, y, idx, params, rnd)
			trees[t] = *tree
			treeImp[t] = imp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.NFeatures = p
	f.Trees = trees
	f.Importances = averageImportances(treeImp, p)

	zap.L().Debug("forest: fit complete",
		zap.Int("trees", len(trees)),
		zap.Int("rows", n),
		zap.Int("features", p),
		zap.Int("max_features", params.maxFeatures),
	)
	return nil
}

// averageImportances normalises each tree's impurity decreases to sum to one
// and averages them across trees.
func averageImportances(perTree [][]float64, p int) []float64 {
	out := make([]float64, p)
	counted := 0
	for _, imp := range perTree {
		var total float64
		for _, v := range imp {
			total += v
		}
		if total <= 0 {
			continue
		}
		for j, v := range imp {
			out[j] += v / total
		}
		counted++
	}
	if counted > 0 {
		for j := range out {
			out[j] /= float64(counted)
		}
	}
	return out
}

// Predict returns the mean tree prediction for one encoded row.
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, eris.New("forest: not fitted")
	}
	if len(x) != f.NFeatures {
		return 0, eris.Errorf("forest: got %d features, want %d", len(x), f.NFeatures)
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictAll predicts every row of X.
func (f *Forest) PredictAll(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		v, err := f.Predict(row)
		if err != nil {
			return nil, eris.Wrapf(err, "forest: row %d", i)
		}
		out[i] = v
	}
	return out, nil
}
