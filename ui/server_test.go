package ui

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expeval/adapters/cache"
	"expeval/adapters/stats/legacy"
	"expeval/app"
	"expeval/domain/experiment"
	"expeval/domain/metric"
	"expeval/domain/stats"
	"expeval/internal/testkit"
	"expeval/ports"
)

func newTestServer(t *testing.T) (*Server, *testkit.TestKit) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kit := testkit.NewTestKit()
	kit.Experiments.AddExperiment(experiment.Experiment{
		ID:     "exp-1",
		TeamID: "team-1",
		Name:   "checkout test",
		FeatureFlag: experiment.FeatureFlag{
			ID:  "flag-1",
			Key: "new-checkout",
			Variants: []experiment.Variant{
				{Key: "control"},
				{Key: "test"},
			},
		},
	})
	kit.Experiments.AddTeam(experiment.Team{ID: "team-1"})
	kit.Executor.Rows = []ports.Row{
		{"control", int64(1000), 100.0, 100.0},
		{"test", int64(1000), 300.0, 300.0},
	}

	v1 := legacy.Strategy()
	service := app.NewEvaluationService(
		kit.Experiments,
		kit.Actions,
		kit.Executor,
		cache.NewMemoryCache(),
		app.StrategyTable{
			{Version: experiment.StatsV1, Metric: metric.TypeCount}:  v1,
			{Version: experiment.StatsV1, Metric: metric.TypeFunnel}: v1,
		},
		nil,
		nil,
	)

	return NewServer(Config{GinMode: gin.TestMode}, service, nil), kit
}

func postJSON(t *testing.T, s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEvaluateEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	w := postJSON(t, s, "/api/experiments/exp-1/results", evaluateBody{
		Metric: metric.Definition{Type: metric.TypeCount, Event: &metric.EventConfig{Event: "purchase"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp stats.EvaluationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ExperimentQuery", resp.Kind)
	assert.True(t, resp.Significant)
	assert.Equal(t, stats.Significant, resp.SignificanceCode)
	assert.Len(t, resp.TrendsVariants, 2)
}

func TestEvaluateEndpointFunnelRowsUnderVariantsKey(t *testing.T) {
	s, _ := newTestServer(t)
	w := postJSON(t, s, "/api/experiments/exp-1/results", evaluateBody{
		Metric: metric.Definition{Type: metric.TypeFunnel, Event: &metric.EventConfig{Event: "purchase"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Funnel rows ride the same "variants" key as trends rows; callers
	// never branch on metric type to find them.
	assert.Contains(t, w.Body.String(), `"variants":[{"key":"control","success_count":100,"failure_count":900}`)
	assert.NotContains(t, w.Body.String(), "funnel_variants")
}

func TestRequestLoggerRecordsLatency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := NewServer(Config{GinMode: gin.TestMode}, nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), "latency_ms=")
}

func TestEvaluateEndpointUnknownExperiment(t *testing.T) {
	s, _ := newTestServer(t)
	w := postJSON(t, s, "/api/experiments/nope/results", evaluateBody{
		Metric: metric.Definition{Type: metric.TypeCount, Event: &metric.EventConfig{Event: "purchase"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluateEndpointBadBody(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/experiments/exp-1/results", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateEndpointInvalidMetric(t *testing.T) {
	s, _ := newTestServer(t)
	w := postJSON(t, s, "/api/experiments/exp-1/results", evaluateBody{
		Metric: metric.Definition{
			Type:   metric.TypeCount,
			Event:  &metric.EventConfig{Event: "purchase"},
			Action: &metric.ActionConfig{ActionID: "a1"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateEndpointMissingControl(t *testing.T) {
	s, kit := newTestServer(t)
	kit.Executor.Rows = []ports.Row{
		{"test", int64(1000), 300.0, 300.0},
	}
	w := postJSON(t, s, "/api/experiments/exp-1/results", evaluateBody{
		Metric: metric.Definition{Type: metric.TypeCount, Event: &metric.EventConfig{Event: "purchase"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExportEndpointReturnsWorkbook(t *testing.T) {
	s, _ := newTestServer(t)
	w := postJSON(t, s, "/api/experiments/exp-1/results/export", evaluateBody{
		Metric: metric.Definition{Type: metric.TypeCount, Event: &metric.EventConfig{Event: "purchase"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestOpsServerHealthz(t *testing.T) {
	ops := NewOpsServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	ops.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
