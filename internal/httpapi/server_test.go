package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/usecase"
)

type stubTrigger struct {
	fired []usecase.RunOptions
	err   error
	runID string
	runs  map[string]domain.GenerationRun
}

func (s *stubTrigger) Fire(_ context.Context, opts usecase.RunOptions) (string, error) {
	s.fired = append(s.fired, opts)
	return s.runID, s.err
}

func (s *stubTrigger) Status(_ context.Context, id string) (domain.GenerationRun, bool, error) {
	run, ok := s.runs[id]
	return run, ok, nil
}

type stubToken struct{ token string }

func (s stubToken) Current(context.Context) (string, error) { return s.token, nil }

func (s stubToken) Valid(_ context.Context, candidate string) (bool, error) {
	return candidate != "" && candidate == s.token, nil
}

type stubFeeds struct{}

func (stubFeeds) Check(context.Context) []usecase.FeedCheckResult {
	return []usecase.FeedCheckResult{{URL: "https://a", Status: "ok", Items: 3}}
}

type stubProcessed struct {
	records []domain.SeenRecord
	search  string
	offset  int
	limit   int
}

func (s *stubProcessed) List(_ context.Context, search string, offset, limit int) ([]domain.SeenRecord, int, error) {
	s.search, s.offset, s.limit = search, offset, limit
	return s.records, 45, nil
}

func (s *stubProcessed) Forget(_ context.Context, id string) (bool, error) {
	return id == "known", nil
}

func (s *stubProcessed) Clear(context.Context) (int64, error) { return 7, nil }

type stubKeys struct{}

func (stubKeys) VerifyKey(_ context.Context, key string) error {
	if key != "sk-good" {
		return errors.New("api key rejected")
	}
	return nil
}

type stubSettings struct{ s domain.Settings }

func (s stubSettings) Settings() domain.Settings { return s.s }

type stubNext struct{ at time.Time }

func (s stubNext) Next() time.Time { return s.at }

func newTestRouter(trig *stubTrigger, processed *stubProcessed) http.Handler {
	return NewRouter(Deps{
		Trigger:   trig,
		Token:     stubToken{token: "secret"},
		Feeds:     stubFeeds{},
		Processed: processed,
		Keys:      stubKeys{},
		Settings:  stubSettings{s: domain.Settings{FeedURLs: []string{"https://a"}, ScheduleTime: "08:00", Location: time.UTC, APIKey: "sk-good"}},
		Schedule:  stubNext{at: time.Date(2025, time.November, 9, 8, 0, 0, 0, time.UTC)},
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStartRun(t *testing.T) {
	trig := &stubTrigger{runID: "run-1"}
	h := newTestRouter(trig, &stubProcessed{})

	rec := do(t, h, http.MethodPost, "/api/runs", `{"force_fetch": true, "draft_mode": true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "run-1", decode(t, rec)["run_id"])
	require.Len(t, trig.fired, 1)
	require.True(t, trig.fired[0].ForceFetch)
	require.NotNil(t, trig.fired[0].DraftMode)
	require.Equal(t, usecase.TriggerManual, trig.fired[0].Trigger)

	rec = do(t, h, http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/runs", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRunConflict(t *testing.T) {
	trig := &stubTrigger{runID: "holder", err: usecase.ErrRunInProgress}
	rec := do(t, newTestRouter(trig, &stubProcessed{}), http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "holder", decode(t, rec)["run_id"])
}

func TestRunStatus(t *testing.T) {
	trig := &stubTrigger{runs: map[string]domain.GenerationRun{
		"r1": {RunID: "r1", Stage: domain.StageSummarizing, Message: "Summarizing 2 articles"},
	}}
	h := newTestRouter(trig, &stubProcessed{})

	rec := do(t, h, http.MethodGet, "/api/runs/r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "summarizing", body["stage"])

	rec = do(t, h, http.MethodGet, "/api/runs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not found or expired", decode(t, rec)["error"])
}

func TestCronGenerate(t *testing.T) {
	trig := &stubTrigger{runID: "run-9"}
	h := newTestRouter(trig, &stubProcessed{})

	rec := do(t, h, http.MethodGet, "/cron/generate?token=wrong", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, h, http.MethodGet, "/cron/generate", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, trig.fired)

	rec = do(t, h, http.MethodPost, "/cron/generate?token=secret", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, usecase.TriggerCron, trig.fired[0].Trigger)
}

func TestProcessedEndpoints(t *testing.T) {
	processed := &stubProcessed{records: []domain.SeenRecord{{ID: "a", SeenAt: time.Unix(0, 0).UTC()}}}
	h := newTestRouter(&stubTrigger{}, processed)

	rec := do(t, h, http.MethodGet, "/api/processed?page=3&per_page=10&search=foo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.EqualValues(t, 45, body["total"])
	require.EqualValues(t, 5, body["pages"])
	require.Equal(t, "foo", processed.search)
	require.Equal(t, 20, processed.offset)
	require.Equal(t, 10, processed.limit)

	rec = do(t, h, http.MethodDelete, "/api/processed/known", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/processed/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/processed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 7, decode(t, rec)["deleted"])
}

func TestAdminHelpers(t *testing.T) {
	h := newTestRouter(&stubTrigger{}, &stubProcessed{})

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/feeds/test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["feeds"], 1)

	rec = do(t, h, http.MethodPost, "/api/settings/api-key/test", "")
	require.Equal(t, http.StatusOK, rec.Code, "falls back to the configured key")
	rec = do(t, h, http.MethodPost, "/api/settings/api-key/test", `{"api_key":"sk-bad"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2025-11-09T08:00:00Z", decode(t, rec)["next_run"])

	rec = do(t, h, http.MethodGet, "/api/cron/token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "secret", decode(t, rec)["token"])
}
