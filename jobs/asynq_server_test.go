package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	payloads []AnalyticsWarmupPayload
	delays   []time.Duration
	err      error
}

func (r *recordingEnqueuer) EnqueueWarmup(ctx context.Context, payload AnalyticsWarmupPayload, delay time.Duration) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.payloads = append(r.payloads, payload)
	r.delays = append(r.delays, delay)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

type countingBumper struct {
	calls int
	err   error
}

func (c *countingBumper) Invalidate(ctx context.Context) error {
	c.calls++
	return c.err
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCacheRefresherBumpsThenEnqueues(t *testing.T) {
	bumper := &countingBumper{}
	enq := &recordingEnqueuer{}
	refresher := NewCacheRefresher(bumper, enq, 5*time.Second, discard())

	require.NoError(t, refresher.Invalidate(context.Background()))
	assert.Equal(t, 1, bumper.calls)
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, ReasonWrite, enq.payloads[0].Reason)
	assert.Equal(t, 5*time.Second, enq.delays[0])
}

func TestCacheRefresherErrors(t *testing.T) {
	boom := errors.New("redis down")

	enq := &recordingEnqueuer{}
	failing := NewCacheRefresher(&countingBumper{err: boom}, enq, 0, discard())
	assert.ErrorIs(t, failing.Invalidate(context.Background()), boom)
	assert.Empty(t, enq.payloads, "no warmup when the bump failed")

	queueDown := NewCacheRefresher(&countingBumper{}, &recordingEnqueuer{err: boom}, 0, discard())
	assert.NoError(t, queueDown.Invalidate(context.Background()), "enqueue failures are logged only")

	bumpOnly := NewCacheRefresher(&countingBumper{}, nil, 0, discard())
	assert.NoError(t, bumpOnly.Invalidate(context.Background()))

	var unset *CacheRefresher
	assert.NoError(t, unset.Invalidate(context.Background()))
}

func serveJobs(h *Handler, method, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestJobsHealth(t *testing.T) {
	rec := serveJobs(NewHandler(nil, nil, discard()), http.MethodGet, "/jobs/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, queueHealth{Queue: QueueDefault}, body)

	inspector := stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Active: 1, Failed: 2}}
	rec = serveJobs(NewHandler(inspector, nil, discard()), http.MethodGet, "/jobs/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 3, Active: 1, Failed: 2}, body)

	rec = serveJobs(NewHandler(stubInspector{err: errors.New("down")}, nil, discard()), http.MethodGet, "/jobs/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobsWarmupTrigger(t *testing.T) {
	enq := &recordingEnqueuer{}
	h := NewHandler(nil, enq, discard())

	rec := serveJobs(h, http.MethodPost, "/jobs/warmup?months=6")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, AnalyticsWarmupPayload{Reason: ReasonManual, TrailingMonths: 6}, enq.payloads[0])
	assert.Contains(t, rec.Body.String(), "task-1")

	rec = serveJobs(h, http.MethodPost, "/jobs/warmup?months=-1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serveJobs(NewHandler(nil, nil, discard()), http.MethodPost, "/jobs/warmup")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serveJobs(NewHandler(nil, &recordingEnqueuer{err: errors.New("redis down")}, discard()), http.MethodPost, "/jobs/warmup")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis down")
}

func TestNewWorkerRegistersHandlers(t *testing.T) {
	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Handlers:  []TaskHandler{{Type: TaskAnalyticsWarmup, Handler: func(context.Context, *asynq.Task) error { return nil }}, {}},
	})
	require.NoError(t, err)
	h, pattern := w.mux.Handler(asynq.NewTask(TaskAnalyticsWarmup, nil))
	assert.NotNil(t, h)
	assert.Equal(t, TaskAnalyticsWarmup, pattern)
	assert.Nil(t, w.scheduler)
}
