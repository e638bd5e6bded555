// Package artifact packages a fitted encoder and forest into a single file
// that the prediction service loads at startup.
package artifact

import (
	"bufio"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/demand-forecast/internal/features"
	"github.com/sells-group/demand-forecast/internal/forest"
)

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

// Artifact is the immutable output of a training run. It is never mutated
// after construction or Load; replacing it means loading a new file.
type Artifact struct {
	// FeatureNames records the schema order the model was fit against.
	FeatureNames []string
	Encoder      *forest.OneHotEncoder
	Forest       *forest.Forest

	Metrics     forest.Metrics
	Importances []float64 // aligned with FeatureNames
	TrainRows   int
	TestRows    int
	TrainedAt   time.Time
}

// envelope is the on-disk form.
type envelope struct {
	Version  int
	Artifact *Artifact
}

// Check verifies the artifact is usable against the current schema.
func (a *Artifact) Check() error {
	if a == nil {
		return eris.New("artifact: nil")
	}
	if !features.Schema().SameNames(a.FeatureNames) {
		return eris.Errorf("artifact: feature order %v does not match schema %v",
			a.FeatureNames, features.Schema().Names())
	}
	if a.Encoder == nil || a.Forest == nil {
		return eris.New("artifact: missing encoder or forest")
	}
	if a.Encoder.InputWidth != len(a.FeatureNames) {
		return eris.Errorf("artifact: encoder expects %d features, schema has %d",
			a.Encoder.InputWidth, len(a.FeatureNames))
	}
	if a.Forest.NFeatures != a.Encoder.OutputWidth() || len(a.Forest.Trees) == 0 {
		return eris.Errorf("artifact: forest expects %d columns, encoder produces %d",
			a.Forest.NFeatures, a.Encoder.OutputWidth())
	}
	return nil
}

// Predict encodes a schema-ordered vector and returns the forest estimate.
func (a *Artifact) Predict(vec features.Vector) (float64, error) {
	if len(vec) != len(a.FeatureNames) {
		return 0, eris.Errorf("artifact: vector has %d values, want %d", len(vec), len(a.FeatureNames))
	}
	x, err := a.Encoder.Transform(vec)
	if err != nil {
		return 0, eris.Wrap(err, "artifact: encode")
	}
	y, err := a.Forest.Predict(x)
	if err != nil {
		return 0, eris.Wrap(err, "artifact: predict")
	}
	return y, nil
}

// Importance returns the named feature's importance, or 0 if unknown.
func (a *Artifact) Importance(name string) float64 {
	for i, n := range a.FeatureNames {
		if n == name && i < len(a.Importances) {
			return a.Importances[i]
		}
	}
	return 0
}

// Encode writes the artifact to w.
func Encode(w io.Writer, a *Artifact) error {
	if err := a.Check(); err != nil {
		return err
	}
	if err := gob.NewEncoder(w).Encode(envelope{Version: formatVersion, Artifact: a}); err != nil {
		return eris.Wrap(err, "artifact: encode")
	}
	return nil
}

// Decode reads an artifact from r and checks it against the schema.
func Decode(r io.Reader) (*Artifact, error) {
	var env envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, eris.Wrap(err, "artifact: decode")
	}
	if env.Version != formatVersion {
		return nil, eris.Errorf("artifact: unsupported format version %d", env.Version)
	}
	if err := env.Artifact.Check(); err != nil {
		return nil, err
	}
	return env.Artifact, nil
}

// Save writes the artifact to path. The file is written next to its final
// location and renamed into place, so readers never see a partial file.
func Save(path string, a *Artifact) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return eris.Wrap(err, "artifact: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	bw := bufio.NewWriter(tmp)
	if err := Encode(bw, a); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "artifact: flush")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "artifact: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "artifact: rename to %s", path)
	}
	return nil
}

// Load reads the artifact at path.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	a, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: load %s", path)
	}
	return a, nil
}
