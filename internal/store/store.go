// Package store records training run history: which dataset a model was fit
// on, with which hyperparameters, and how it scored. It does not hold model
// artifacts.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrRunNotFound is returned when a training run ID is unknown.
var ErrRunNotFound = eris.New("training run not found")

// Importance is one feature's share of the forest's impurity reduction.
type Importance struct {
	Feature string  `json:"feature" yaml:"feature"`
	Value   float64 `json:"value" yaml:"value"`
}

// TrainingRun is a completed training run.
type TrainingRun struct {
	ID           string        `json:"id" yaml:"id"`
	Dataset      string        `json:"dataset" yaml:"dataset"`
	TargetColumn string        `json:"target_column" yaml:"target_column"`
	ArtifactPath string        `json:"artifact_path" yaml:"artifact_path"`
	Rows         int           `json:"rows" yaml:"rows"`
	TrainRows    int           `json:"train_rows" yaml:"train_rows"`
	TestRows     int           `json:"test_rows" yaml:"test_rows"`
	Seed         int64         `json:"seed" yaml:"seed"`
	NEstimators  int           `json:"n_estimators" yaml:"n_estimators"`
	R2           float64       `json:"r2" yaml:"r2"`
	MAE          float64       `json:"mae" yaml:"mae"`
	RMSE         float64       `json:"rmse" yaml:"rmse"`
	Importances  []Importance  `json:"importances" yaml:"importances"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
}

// RunFilter specifies criteria for listing training runs.
type RunFilter struct {
	Dataset string `json:"dataset,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

const defaultListLimit = 100

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for training run history.
type Store interface {
	// CreateTrainingRun assigns run an ID and creation time and saves it.
	CreateTrainingRun(ctx context.Context, run *TrainingRun) error
	GetTrainingRun(ctx context.Context, id string) (*TrainingRun, error)
	// ListTrainingRuns returns runs newest first.
	ListTrainingRuns(ctx context.Context, filter RunFilter) ([]TrainingRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
