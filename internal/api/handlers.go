package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/demand-forecast/internal/advisor"
	"github.com/sells-group/demand-forecast/internal/features"
	"github.com/sells-group/demand-forecast/internal/predict"
)

type statusResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// InsightsResponse is the body of a successful /api/insights call.
type InsightsResponse struct {
	PredictedDemand float64 `json:"predicted_demand"`
	Status          string  `json:"status"`
	advisor.Insights
}

// NewInsightsResponse runs the advisor over a successful prediction.
func NewInsightsResponse(res predict.Result) InsightsResponse {
	return InsightsResponse{
		PredictedDemand: res.PredictedDemand,
		Status:          res.Status,
		Insights:        advisor.Analyze(res.PredictedDemand, res.Record),
	}
}

type schemaResponse struct {
	Features       []features.Feature `json:"features"`
	TimestampField string             `json:"timestamp_field"`
	RiskLabels     map[int]string     `json:"risk_labels"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "API is running", ModelLoaded: s.svc.Loaded()})
}

func (s *Server) model(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) schema(w http.ResponseWriter, _ *http.Request) {
	labels := make(map[int]string)
	for _, code := range []int{features.RiskLow, features.RiskModerate, features.RiskHigh, features.RiskCritical} {
		labels[code] = features.RiskLabel(code)
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Features:       features.Schema().Features(),
		TimestampField: features.FieldTimestamp,
		RiskLabels:     labels,
	})
}

func (s *Server) predictDemand(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runPrediction(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runPrediction(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NewInsightsResponse(res))
}

// runPrediction decodes the body and runs the service, writing the error
// response itself when it fails.
func (s *Server) runPrediction(w http.ResponseWriter, r *http.Request) (predict.Result, bool) {
	// Availability is checked before the body is read.
	if err := s.svc.Ready(); err != nil {
		s.predictionFailed(w, r, err)
		return predict.Result{}, false
	}

	raw, status, err := decodeRecord(w, r, s.opts.MaxBodyBytes)
	if err != nil {
		zap.L().Warn("api: bad request body",
			zap.Error(err),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		writeError(w, status, err.Error())
		return predict.Result{}, false
	}

	res, err := s.svc.Predict(raw)
	if err != nil {
		s.predictionFailed(w, r, err)
		return predict.Result{}, false
	}
	return res, true
}

func (s *Server) predictionFailed(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	zap.L().Warn("api: prediction failed",
		zap.Error(err),
		zap.String("stage", string(predict.FailedStage(err))),
		zap.Int("status", status),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	writeError(w, status, err.Error())
}

// statusFor maps a prediction error to its HTTP status: a missing feature is
// the client's to fix, everything else is a 500.
func statusFor(err error) int {
	var missing *features.MissingFieldError
	if errors.As(err, &missing) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type bodyError struct {
	msg string
}

func (e *bodyError) Error() string { return e.msg }

// decodeRecord reads a JSON object body, keeping numbers as json.Number.
func decodeRecord(w http.ResponseWriter, r *http.Request, limit int64) (features.RawRecord, int, error) {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw features.RawRecord
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, &bodyError{msg: "Request body too large."}
		}
		return nil, http.StatusInternalServerError, &bodyError{msg: "Prediction failed: invalid JSON body: " + err.Error()}
	}
	if raw == nil {
		return nil, http.StatusInternalServerError, &bodyError{msg: "Prediction failed: request body must be a JSON object"}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, http.StatusInternalServerError, &bodyError{msg: "Prediction failed: invalid JSON body: unexpected data after JSON object"}
	}
	return raw, http.StatusOK, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
