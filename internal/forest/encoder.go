package forest

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
)

// OneHotEncoder expands one categorical column into a fixed-width indicator
// block and passes every other column through. The block comes first,
// followed by the remaining columns in their original order.
//
// Category values not seen during Fit encode as an all-zero block.
type OneHotEncoder struct {
	Column     int
	InputWidth int
	Categories []float64
}

// NewOneHotEncoder returns an unfitted encoder for the given column.
func NewOneHotEncoder(column int) *OneHotEncoder {
	return &OneHotEncoder{Column: column}
}

// Fit learns the sorted set of category values present in X.
func (e *OneHotEncoder) Fit(X [][]float64) error {
	if len(X) == 0 {
		return eris.New("encoder: empty X")
	}
	p := len(X[0])
	if e.Column < 0 || e.Column >= p {
		return eris.Errorf("encoder: column %d out of range for %d features", e.Column, p)
	}

	seen := make(map[float64]struct{})
	for i, row := range X {
		if len(row) != p {
			return eris.Errorf("encoder: row %d has %d features, want %d", i, len(row), p)
		}
		v := row[e.Column]
		if math.IsNaN(v) {
			return eris.Errorf("encoder: row %d has NaN category", i)
		}
		seen[v] = struct{}{}
	}

	cats := make([]float64, 0, len(seen))
	for v := range seen {
		cats = append(cats, v)
	}
	slices.Sort(cats)

	e.InputWidth = p
	e.Categories = cats
	return nil
}

// OutputWidth is the number of columns Transform produces.
func (e *OneHotEncoder) OutputWidth() int {
	return len(e.Categories) + e.InputWidth - 1
}

// Known reports whether v was seen during Fit.
func (e *OneHotEncoder) Known(v float64) bool {
	_, found := slices.BinarySearch(e.Categories, v)
	return found
}

// Transform encodes a single row.
func (e *OneHotEncoder) Transform(x []float64) ([]float64, error) {
	if e.InputWidth == 0 {
		return nil, eris.New("encoder: not fitted")
	}
	if len(x) != e.InputWidth {
		return nil, eris.Errorf("encoder: got %d features, want %d", len(x), e.InputWidth)
	}

	out := make([]float64, e.OutputWidth())
	if j, found := slices.BinarySearch(e.Categories, x[e.Column]); found {
		out[j] = 1
	}
	k := len(e.Categories)
	for i, v := range x {
		if i == e.Column {
			continue
		}
		out[k] = v
		k++
	}
	return out, nil
}

// TransformAll encodes every row of X.
func (e *OneHotEncoder) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		enc, err := e.Transform(row)
		if err != nil {
			return nil, eris.Wrapf(err, "encoder: row %d", i)
		}
		out[i] = enc
	}
	return out, nil
}

// Fold maps per-output-column values (e.g. importances) back onto input
// columns; the indicator block sums into the categorical column.
func (e *OneHotEncoder) Fold(encoded []float64) []float64 {
	out := make([]float64, e.InputWidth)
	k := len(e.Categories)
	for j := 0; j < k && j < len(encoded); j++ {
		out[e.Column] += encoded[j]
	}
	for i := range out {
		if i == e.Column {
			continue
		}
		if k < len(encoded) {
			out[i] = encoded[k]
		}
		k++
	}
	return out
}
