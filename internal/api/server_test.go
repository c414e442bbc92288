package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivotnews/newsroom/internal/newsroom"
	"github.com/pivotnews/newsroom/internal/repository"
	"github.com/pivotnews/newsroom/internal/services"
)

// emptySource completes every run with zero headlines so handler tests
// never depend on the pipeline's downstream collaborators.
type emptySource struct{}

func (emptySource) Fetch(context.Context, int, string) ([]newsroom.HeadlineItem, error) {
	return nil, nil
}

type testServer struct {
	server *Server
	runs   *repository.MemoryRunRepository
}

func newTestServer(t *testing.T, apiToken string) *testServer {
	t.Helper()
	runs := repository.NewMemoryRunRepository()
	recorder := services.NewRecorder(runs, runs)
	config := repository.NewMemoryConfigRepository(newsroom.PipelineConfig{HeadlinesToFetch: 6})

	pipeline := services.NewPipeline(services.PipelineDeps{
		Recorder:  recorder,
		Feeds:     repository.NewMemoryFeedRepository(),
		Articles:  repository.NewMemoryArticleRepository(),
		Sites:     repository.NewMemorySiteRepository(),
		Config:    config,
		Headlines: emptySource{},
	})
	history := services.NewRunHistory(runs, runs)

	return &testServer{
		server: NewServer(pipeline, history, config, apiToken),
		runs:   runs,
	}
}

func (ts *testServer) request(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStartRun(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.request(t, http.MethodPost, "/api/pipeline/run", `{"article_count":3}`, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["run_id"])
	assert.Equal(t, "running", resp["status"])

	// The background execution settles to a terminal state.
	runID := resp["run_id"].(string)
	deadline := time.Now().Add(2 * time.Second)
	for {
		run, err := ts.runs.GetRun(context.Background(), runID)
		require.NoError(t, err)
		if run.Status != newsroom.RunStatusRunning {
			assert.Equal(t, newsroom.RunStatusCompleted, run.Status)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never left the running state")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartRun_EmptyBody(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.request(t, http.MethodPost, "/api/pipeline/run", "", "")
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
}

func TestStartRun_MalformedBody(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.request(t, http.MethodPost, "/api/pipeline/run", `{"article_count":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopRun_NoRunningRun(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.request(t, http.MethodPost, "/api/pipeline/stop", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no running run found")
}

func TestStopRun_FlagsLatestRunning(t *testing.T) {
	ts := newTestServer(t, "")

	run := &newsroom.Run{ID: "run-abc", Status: newsroom.RunStatusRunning, Trigger: newsroom.TriggerManual, StartedAt: time.Now()}
	require.NoError(t, ts.runs.CreateRun(context.Background(), run))

	rec := ts.request(t, http.MethodPost, "/api/pipeline/stop", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-abc", resp["run_id"])
	assert.Equal(t, true, resp["cancel_requested"])

	flagged, err := ts.runs.CancelRequested(context.Background(), "run-abc")
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestGetRun(t *testing.T) {
	ts := newTestServer(t, "")

	run := &newsroom.Run{ID: "run-xyz", Status: newsroom.RunStatusCompleted, Trigger: newsroom.TriggerCron, StartedAt: time.Now()}
	require.NoError(t, ts.runs.CreateRun(context.Background(), run))
	step := &newsroom.Step{ID: "step-1", RunID: "run-xyz", ArticleIndex: newsroom.RunLevelIndex,
		Kind: newsroom.StepFetchHeadlines, Name: "fetch_headlines", Status: newsroom.StepStatusCompleted, StartedAt: time.Now()}
	require.NoError(t, ts.runs.CreateStep(context.Background(), step))

	rec := ts.request(t, http.MethodGet, "/api/runs/run-xyz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail struct {
		Run   newsroom.Run    `json:"run"`
		Steps []newsroom.Step `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "run-xyz", detail.Run.ID)
	require.Len(t, detail.Steps, 1)
	assert.Equal(t, "fetch_headlines", detail.Steps[0].Name)
}

func TestGetRun_NotFound(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.request(t, http.MethodGet, "/api/runs/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t, "")
	for _, id := range []string{"run-1", "run-2"} {
		require.NoError(t, ts.runs.CreateRun(context.Background(), &newsroom.Run{
			ID: id, Status: newsroom.RunStatusCompleted, Trigger: newsroom.TriggerCron, StartedAt: time.Now(),
		}))
	}

	rec := ts.request(t, http.MethodGet, "/api/runs?limit=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Runs []newsroom.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Runs, 2)
}

func TestPipelineConfigRoundTrip(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.request(t, http.MethodGet, "/api/pipeline/config", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg newsroom.PipelineConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 6, cfg.HeadlinesToFetch)

	rec = ts.request(t, http.MethodPut, "/api/pipeline/config", `{"headlines_to_fetch":9,"publish_status":"publish"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.request(t, http.MethodGet, "/api/pipeline/config", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 9, cfg.HeadlinesToFetch)
	assert.Equal(t, "publish", cfg.PublishStatus)
}

func TestUpdateConfig_Invalid(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.request(t, http.MethodPut, "/api/pipeline/config", `{"headlines_to_fetch":-1}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, http.MethodPut, "/api/pipeline/config", `{"publish_status":"pending"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireToken(t *testing.T) {
	ts := newTestServer(t, "secret-token")

	rec := ts.request(t, http.MethodGet, "/api/runs", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/runs", "", "wrong-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/runs", "", "secret-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}
