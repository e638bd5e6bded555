// Package predict serves single-record demand forecasts from a loaded
// artifact.
package predict

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/demand-forecast/internal/artifact"
	"github.com/sells-group/demand-forecast/internal/features"
	"github.com/sells-group/demand-forecast/internal/forest"
)

// Stage is a step of the per-request state machine:
// Received -> Validated -> Derived -> Inferred -> Responded, or Errored.
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageDerived   Stage = "derived"
	StageInferred  Stage = "inferred"
	StageResponded Stage = "responded"
	StageErrored   Stage = "errored"
)

// StatusSuccess is the status tag of a successful Result.
const StatusSuccess = "success"

// Result is a successful forecast.
type Result struct {
	PredictedDemand float64 `json:"predicted_demand"`
	Status          string  `json:"status"`

	// Record is the typed input the forecast was made from.
	Record features.Record `json:"-"`
}

// Status describes the service's model state.
type Status struct {
	Loaded    bool            `json:"model_loaded"`
	Reason    string          `json:"reason,omitempty"`
	Source    string          `json:"source,omitempty"`
	TrainedAt *time.Time      `json:"trained_at,omitempty"`
	Metrics   *forest.Metrics `json:"metrics,omitempty"`
}

// Service runs the prediction pipeline against one artifact. The artifact is
// fixed at construction; a Service with no artifact is the unavailable
// variant. Service is safe for concurrent use.
type Service struct {
	art    *artifact.Artifact
	source string
	reason string
}

// NewService returns a service backed by art.
func NewService(art *artifact.Artifact) *Service {
	if art == nil {
		return Unavailable("no artifact")
	}
	return &Service{art: art}
}

// Unavailable returns a service that rejects every request.
func Unavailable(reason string) *Service {
	return &Service{reason: reason}
}

// Open loads the artifact at path. A load failure is logged and yields the
// unavailable variant, so the process can still answer status queries.
func Open(path string) *Service {
	art, err := artifact.Load(path)
	if err != nil {
		zap.L().Error("predict: model not loaded", zap.String("path", path), zap.Error(err))
		s := Unavailable(err.Error())
		s.source = path
		return s
	}
	zap.L().Info("predict: model loaded",
		zap.String("path", path),
		zap.Int("trees", len(art.Forest.Trees)),
		zap.Time("trained_at", art.TrainedAt),
	)
	return &Service{art: art, source: path}
}

// Loaded reports whether an artifact is available.
func (s *Service) Loaded() bool { return s.art != nil }

// Ready returns a *ModelUnavailableError while no artifact is loaded.
func (s *Service) Ready() error {
	if s.art == nil {
		return &ModelUnavailableError{Reason: s.reason}
	}
	return nil
}

// Artifact returns the loaded artifact, or nil.
func (s *Service) Artifact() *artifact.Artifact { return s.art }

// Status reports the model state without side effects.
func (s *Service) Status() Status {
	st := Status{Loaded: s.art != nil, Reason: s.reason, Source: s.source}
	if s.art != nil {
		trained := s.art.TrainedAt
		metrics := s.art.Metrics
		st.TrainedAt = &trained
		st.Metrics = &metrics
	}
	return st
}

// Predict validates raw, derives its feature vector and evaluates the model.
// The result is rounded to two decimal places.
func (s *Service) Predict(raw features.RawRecord) (Result, error) {
	if err := s.Ready(); err != nil {
		return Result{}, err
	}

	if err := features.Validate(raw); err != nil {
		return Result{}, err
	}
	vec, err := features.Derive(raw)
	if err != nil {
		return Result{}, err
	}
	rec, err := features.RecordFromVector(vec)
	if err != nil {
		return Result{}, s.inferenceError(err.Error(), vec)
	}

	y, err := s.infer(vec)
	if err != nil {
		return Result{}, err
	}
	return Result{PredictedDemand: round2(y), Status: StatusSuccess, Record: rec}, nil
}

// infer evaluates the artifact, converting panics and non-finite output into
// an InferenceError.
func (s *Service) infer(vec features.Vector) (y float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.inferenceError(fmt.Sprintf("panic: %v", r), vec)
		}
	}()

	y, err = s.art.Predict(vec)
	if err != nil {
		return 0, s.inferenceError(err.Error(), vec)
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, s.inferenceError(fmt.Sprintf("non-finite prediction %v", y), vec)
	}
	return y, nil
}

func (s *Service) inferenceError(detail string, vec features.Vector) error {
	zap.L().Error("predict: inference failed",
		zap.String("detail", detail),
		zap.Float64s("vector", vec),
	)
	return &InferenceError{Detail: detail}
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
