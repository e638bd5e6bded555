package artifact

import (
	"bytes"
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/demand-forecast/internal/features"
	"github.com/sells-group/demand-forecast/internal/forest"
)

func sampleVector(i int) features.Vector {
	return features.Vector{
		float64(i % 24), float64(i % 7), float64(i%12 + 1),
		float64(100 + i*10), float64(50 + i*3), 0.9, float64(i%10 + 1),
		0.5, 0.2, float64(i % 3),
	}
}

func fitArtifact(t *testing.T) *Artifact {
	t.Helper()
	X := make([][]float64, 60)
	y := make([]float64, 60)
	for i := range X {
		X[i] = sampleVector(i)
		y[i] = X[i][3]*0.5 + X[i][9]*25
	}
	col, _ := features.Schema().Index(features.FieldRiskClassification)
	enc := forest.NewOneHotEncoder(col)
	require.NoError(t, enc.Fit(X))
	encoded, err := enc.TransformAll(X)
	require.NoError(t, err)

	f := forest.New(forest.Config{NEstimators: 5, Seed: 42, Bootstrap: true})
	require.NoError(t, f.Fit(context.Background(), encoded, y))

	return &Artifact{
		FeatureNames: features.Schema().Names(),
		Encoder:      enc,
		Forest:       f,
		Importances:  enc.Fold(f.Importances),
		TrainRows:    60,
		TrainedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	a := fitArtifact(t)
	path := filepath.Join(t.TempDir(), "models", "forest.gob")

	require.NoError(t, Save(path, a))
	loaded, err := Load(path)
	require.NoError(t, err)

	for i := range 10 {
		want, err := a.Predict(sampleVector(i))
		require.NoError(t, err)
		got, err := loaded.Predict(sampleVector(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, a.TrainedAt, loaded.TrainedAt.UTC())
	assert.Equal(t, a.Importances, loaded.Importances)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}

func TestLoad_Garbage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.gob")
	require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDecode_RejectsSchemaDrift(t *testing.T) {
	t.Parallel()
	a := fitArtifact(t)
	names := a.FeatureNames
	a.FeatureNames = append([]string{names[1], names[0]}, names[2:]...)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(envelope{Version: formatVersion, Artifact: a}))
	_, err := Decode(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestDecode_RejectsVersion(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(envelope{Version: 99, Artifact: fitArtifact(t)}))
	_, err := Decode(&buf)
	assert.Error(t, err)
}

func TestEncode_RejectsIncomplete(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, nil))
	assert.Error(t, Encode(&buf, &Artifact{FeatureNames: features.Schema().Names()}))
}

func TestPredict_UnseenCategory(t *testing.T) {
	t.Parallel()
	a := fitArtifact(t)
	vec := sampleVector(4)
	vec[9] = float64(features.RiskCritical) // never seen in fitArtifact
	y, err := a.Predict(vec)
	require.NoError(t, err)
	assert.Greater(t, y, 0.0)
}

func TestPredict_WrongWidth(t *testing.T) {
	t.Parallel()
	a := fitArtifact(t)
	_, err := a.Predict(features.Vector{1, 2, 3})
	assert.Error(t, err)
}

func TestImportance(t *testing.T) {
	t.Parallel()
	a := fitArtifact(t)
	total := 0.0
	for _, name := range a.FeatureNames {
		total += a.Importance(name)
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Equal(t, 0.0, a.Importance("nope"))
}
