//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/demand-forecast/internal/artifact"
	"github.com/sells-group/demand-forecast/internal/config"
	"github.com/sells-group/demand-forecast/internal/dataset"
	"github.com/sells-group/demand-forecast/internal/forest"
	"github.com/sells-group/demand-forecast/internal/predict"
	"github.com/sells-group/demand-forecast/internal/training"
)

var testArtifact = sync.OnceValue(func() *artifact.Artifact {
	tc := training.DefaultConfig()
	tc.Forest.NEstimators = 10
	_, art, err := training.New(tc).Run(context.Background(), training.GenerateSynthetic(200, 7).Records())
	if err != nil {
		panic(err)
	}
	return art
})

const sampleRecord = `{
	"hour": 14, "day_of_week": 4, "month": 11,
	"warehouse_inventory_level": 1500, "shipping_costs": 800,
	"supplier_reliability_score": 0.6, "lead_time_days": 9,
	"traffic_congestion_level": 0.75, "weather_condition_severity": 0.3,
	"risk_classification": "High Risk"
}`

func TestWriteTable_CSVAndXLSX(t *testing.T) {
	dir := t.TempDir()
	table := training.GenerateSynthetic(25, 1)

	csvPath := filepath.Join(dir, "nested", "data.csv")
	require.NoError(t, writeTable(csvPath, table))
	loaded, err := dataset.Load(context.Background(), csvPath, dataset.Options{})
	require.NoError(t, err)
	assert.Len(t, loaded.Rows, 25)
	assert.Equal(t, table.Header, loaded.Header)

	xlsxPath := filepath.Join(dir, "data.xlsx")
	require.NoError(t, writeTable(xlsxPath, table))
	loaded, err = dataset.Load(context.Background(), xlsxPath, dataset.Options{})
	require.NoError(t, err)
	assert.Len(t, loaded.Rows, 25)
}

func TestWriteTable_RejectsTSV(t *testing.T) {
	err := writeTable(filepath.Join(t.TempDir(), "data.tsv"), training.GenerateSynthetic(5, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tsv output is not supported")
}

func TestTrainingConfig(t *testing.T) {
	tc := trainingConfig(config.TrainingConfig{
		TargetColumn:    "demand",
		Seed:            9,
		NEstimators:     12,
		MaxDepth:        6,
		MinSamplesSplit: 4,
		MinSamplesLeaf:  2,
		TestRatio:       0.25,
		Workers:         3,
	})

	assert.Equal(t, "demand", tc.TargetColumn)
	assert.InDelta(t, 0.25, tc.TestRatio, 1e-9)
	assert.Equal(t, int64(9), tc.Forest.Seed)
	assert.Equal(t, 12, tc.Forest.NEstimators)
	assert.Equal(t, 6, tc.Forest.MaxDepth)
	assert.Equal(t, 4, tc.Forest.MinSamplesSplit)
	assert.Equal(t, 2, tc.Forest.MinSamplesLeaf)
	assert.Equal(t, 3, tc.Forest.Workers)
}

func TestFetchOptions(t *testing.T) {
	c := &config.Config{
		Training: config.TrainingConfig{Sheet: "Ops"},
		Fetch:    config.FetchConfig{TimeoutSecs: 5, MaxRetries: 2, UserAgent: "ua"},
	}
	opts := fetchOptions(c)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, 2, opts.MaxRetries)
	assert.Equal(t, "ua", opts.UserAgent)
	assert.Equal(t, "Ops", opts.Sheet)
}

func TestRunFromReport(t *testing.T) {
	report := &training.Report{
		Rows:         100,
		TrainRows:    80,
		TestRows:     20,
		Seed:         42,
		NEstimators:  100,
		TargetColumn: "historical_demand",
		Metrics:      forest.Metrics{R2: 0.9, MAE: 12.5, RMSE: 15},
		Importances: []training.Importance{
			{Feature: "shipping_costs", Value: 0.6},
			{Feature: "hour", Value: 0.4},
		},
		Duration: 2 * time.Second,
	}

	run := runFromReport(report, "data/training_data.csv", "models/m.gob")
	assert.Empty(t, run.ID)
	assert.Equal(t, "data/training_data.csv", run.Dataset)
	assert.Equal(t, "models/m.gob", run.ArtifactPath)
	assert.Equal(t, 80, run.TrainRows)
	assert.InDelta(t, 0.9, run.R2, 1e-9)
	assert.InDelta(t, 15.0, run.RMSE, 1e-9)
	require.Len(t, run.Importances, 2)
	assert.Equal(t, "shipping_costs", run.Importances[0].Feature)
	assert.Equal(t, 2*time.Second, run.Duration)
}

func TestWriteReport_Formats(t *testing.T) {
	report := &training.Report{Rows: 10, TrainRows: 8, TestRows: 2, NEstimators: 5, TargetColumn: "historical_demand"}

	var table bytes.Buffer
	require.NoError(t, writeReport(&table, report, "table"))
	assert.Contains(t, table.String(), "Rows:")

	var doc bytes.Buffer
	require.NoError(t, writeReport(&doc, report, "yaml"))
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(doc.Bytes(), &parsed))
	assert.Equal(t, 10, parsed["rows"])
}

func TestRunPredict(t *testing.T) {
	svc := predict.NewService(testArtifact())

	var out bytes.Buffer
	require.NoError(t, runPredict(strings.NewReader(sampleRecord), &out, svc, false))

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.IsType(t, float64(0), body["predicted_demand"])
	assert.NotContains(t, body, "cost_impact")
}

func TestRunPredict_Insights(t *testing.T) {
	svc := predict.NewService(testArtifact())

	var out bytes.Buffer
	require.NoError(t, runPredict(strings.NewReader(sampleRecord), &out, svc, true))

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Contains(t, body, "cost_impact")
	assert.Contains(t, body, "suggestions")
}

func TestRunPredict_Errors(t *testing.T) {
	tests := []struct {
		name    string
		svc     *predict.Service
		input   string
		wantErr string
	}{
		{"model not loaded", predict.Unavailable("missing"), sampleRecord, "Model not loaded."},
		{"bad json", predict.NewService(testArtifact()), "{not json", "predict: decode input"},
		{"null body", predict.NewService(testArtifact()), "null", "input must be a JSON object"},
		{"missing feature", predict.NewService(testArtifact()), `{"hour": 3}`, "Missing required feature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runPredict(strings.NewReader(tt.input), &out, tt.svc, false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var body map[string]string
			require.NoError(t, json.Unmarshal(out.Bytes(), &body))
			assert.Contains(t, body["error"], tt.wantErr)
		})
	}
}

func TestWriteSchema(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeSchema(&out))

	var doc struct {
		Features []struct {
			Name string `yaml:"name"`
		} `yaml:"features"`
		TimestampField string         `yaml:"timestamp_field"`
		RiskLabels     map[int]string `yaml:"risk_labels"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Features, 10)
	assert.Equal(t, "hour", doc.Features[0].Name)
	assert.Equal(t, "risk_classification", doc.Features[9].Name)
	assert.Equal(t, "timestamp", doc.TimestampField)
	assert.Len(t, doc.RiskLabels, 4)
}

func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRunServer_ServesUntilCancelled(t *testing.T) {
	oldCfg := cfg
	cfg = &config.Config{Server: config.ServerConfig{CORSOrigins: []string{"*"}}}
	defer func() { cfg = oldCfg }()

	port := getFreePort(t)
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           buildHandler(predict.Unavailable("none")),
		ReadHeaderTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/status", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close() //nolint:errcheck
		var body map[string]any
		if json.NewDecoder(resp.Body).Decode(&body) != nil {
			return false
		}
		return body["model_loaded"] == false
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServer_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck

	srv := &http.Server{Addr: l.Addr().String(), ReadHeaderTimeout: time.Second}
	err = runServer(context.Background(), srv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server listen")
}

func TestWorkflow_GenerateTrainListPredict(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("FORECAST_STORE_DATABASE_URL", filepath.Join(dir, "runs.db"))
	t.Setenv("FORECAST_LOG_LEVEL", "error")

	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	dataPath := filepath.Join(dir, "data", "train.csv")
	modelPath := filepath.Join(dir, "models", "forecaster.gob")

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		defer rootCmd.SetArgs(nil)
		require.NoError(t, rootCmd.Execute(), strings.Join(args, " "))
		return out.String()
	}

	run("generate", "--rows", "150", "--seed", "3", "--out", dataPath)
	require.FileExists(t, dataPath)

	report := run("train", "--data", dataPath, "--trees", "8", "--out", modelPath, "--format", "yaml")
	require.FileExists(t, modelPath)
	assert.Contains(t, report, "n_estimators: 8")

	list := run("runs", "list")
	assert.Contains(t, list, "DATASET")
	assert.Contains(t, list, "train.csv")

	inputPath := filepath.Join(dir, "record.json")
	require.NoError(t, os.WriteFile(inputPath, []byte(sampleRecord), 0o644))
	prediction := run("predict", "--model", modelPath, "--input", inputPath)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(prediction), &body))
	assert.Equal(t, "success", body["status"])
}
