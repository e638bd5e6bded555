package forest

import (
	"math"
	"math/rand/v2"
)

// Metrics summarises regression quality on a held-out set.
type Metrics struct {
	R2   float64 `json:"r2" yaml:"r2"`
	MAE  float64 `json:"mae" yaml:"mae"`
	RMSE float64 `json:"rmse" yaml:"rmse"`
	N    int     `json:"n" yaml:"n"`
}

// Evaluate computes R², MAE and RMSE of yPred against yTrue.
func Evaluate(yTrue, yPred []float64) Metrics {
	return Metrics{
		R2:   R2(yTrue, yPred),
		MAE:  MAE(yTrue, yPred),
		RMSE: math.Sqrt(MSE(yTrue, yPred)),
		N:    len(yTrue),
	}
}

// MSE is the mean squared error; 0 for empty input.
func MSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		s += d * d
	}
	return s / float64(len(yTrue))
}

// MAE is the mean absolute error; 0 for empty input.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		s += math.Abs(yPred[i] - yTrue[i])
	}
	return s / float64(len(yTrue))
}

// R2 is the coefficient of determination. A constant yTrue yields 0.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	m := 0.0
	for _, v := range yTrue {
		m += v
	}
	m /= float64(len(yTrue))
	ssTot, ssRes := 0.0, 0.0
	for i := range yTrue {
		d := yTrue[i] - m
		ssTot += d * d
		r := yTrue[i] - yPred[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// TrainTestSplit shuffles 0..n-1 with the given seed and returns train and
// test index sets. The test set holds ceil(n*testRatio) rows.
func TrainTestSplit(n int, testRatio float64, seed int64) (train, test []int) {
	rnd := rand.New(rand.NewPCG(uint64(seed), 0))
	perm := rnd.Perm(n)
	nTest := int(math.Ceil(float64(n) * testRatio))
	nTest = min(max(nTest, 0), n)
	return perm[nTest:], perm[:nTest]
}
