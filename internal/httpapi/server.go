// Package httpapi exposes run triggering, progress polling and admin endpoints over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"FeedSummarizer/internal/domain"
	"FeedSummarizer/internal/logging"
	"FeedSummarizer/internal/ports"
	"FeedSummarizer/internal/usecase"
)

const (
	defaultPerPage = 20
	maxPerPage     = 200
)

// RunTrigger starts runs and reads their snapshots.
type RunTrigger interface {
	Fire(ctx context.Context, opts usecase.RunOptions) (string, error)
	Status(ctx context.Context, runID string) (domain.GenerationRun, bool, error)
}

// TokenGuard validates the external cron token.
type TokenGuard interface {
	Current(ctx context.Context) (string, error)
	Valid(ctx context.Context, candidate string) (bool, error)
}

// FeedProber checks that configured feeds are reachable.
type FeedProber interface {
	Check(ctx context.Context) []usecase.FeedCheckResult
}

// NextRunner reports the next scheduled run.
type NextRunner interface {
	Next() time.Time
}

// Deps wires the HTTP layer.
type Deps struct {
	Trigger   RunTrigger
	Token     TokenGuard
	Feeds     FeedProber
	Processed ports.DedupAdmin
	Keys      ports.KeyVerifier
	Settings  ports.SettingsProvider
	Schedule  NextRunner
	Logger    *slog.Logger
}

type server struct {
	Deps
	log *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

// NewRouter builds the chi router with all routes mounted.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logging.Discard()
	}
	s := &server{Deps: deps, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleStartRun)
		r.Get("/runs/{id}", s.handleRunStatus)

		r.Get("/feeds/test", s.handleTestFeeds)

		r.Get("/processed", s.handleListProcessed)
		r.Delete("/processed", s.handleClearProcessed)
		r.Delete("/processed/{id}", s.handleForgetProcessed)

		r.Post("/settings/api-key/test", s.handleTestAPIKey)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/cron/token", s.handleCronToken)
	})

	r.Get("/cron/generate", s.handleCron)
	r.Post("/cron/generate", s.handleCron)

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRunRequest struct {
	ForceFetch bool  `json:"force_fetch"`
	DraftMode  *bool `json:"draft_mode"`
}

func (s *server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	s.fire(w, r, usecase.RunOptions{ForceFetch: req.ForceFetch, DraftMode: req.DraftMode, Trigger: usecase.TriggerManual})
}

func (s *server) handleCron(w http.ResponseWriter, r *http.Request) {
	ok, err := s.Token.Valid(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		s.log.Error("validate cron token", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "token check failed"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
		return
	}
	s.fire(w, r, usecase.RunOptions{ForceFetch: queryBool(r, "force_fetch"), Trigger: usecase.TriggerCron})
}

func (s *server) fire(w http.ResponseWriter, r *http.Request, opts usecase.RunOptions) {
	runID, err := s.Trigger.Fire(r.Context(), opts)
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), RunID: runID})
	case err != nil:
		s.log.Error("start run", "trigger", opts.Trigger, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
	}
}

func (s *server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	run, found, err := s.Trigger.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found or expired"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleTestFeeds(w http.ResponseWriter, r *http.Request) {
	if len(s.Settings.Settings().FeedURLs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no feed URLs configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feeds": s.Feeds.Check(r.Context())})
}

type processedPage struct {
	Items   []domain.SeenRecord `json:"items"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
	Pages   int                 `json:"pages"`
}

func (s *server) handleListProcessed(w http.ResponseWriter, r *http.Request) {
	page := clampInt(r.URL.Query().Get("page"), 1, 1_000_000)
	perPage := clampInt(r.URL.Query().Get("per_page"), defaultPerPage, maxPerPage)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	items, total, err := s.Processed.List(r.Context(), search, (page-1)*perPage, perPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, processedPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   (total + perPage - 1) / perPage,
	})
}

func (s *server) handleClearProcessed(w http.ResponseWriter, r *http.Request) {
	n, err := s.Processed.Clear(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.log.Info("processed articles cleared", "count", n)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *server) handleForgetProcessed(w http.ResponseWriter, r *http.Request) {
	removed, err := s.Processed.Forget(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type apiKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (s *server) handleTestAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		key = s.Settings.Settings().APIKey
	}
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "API key is empty"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	if err := s.Keys.VerifyKey(ctx, key); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "API key is valid"})
}

func (s *server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	settings := s.Settings.Settings()
	resp := map[string]any{
		"time":     settings.ScheduleTime,
		"timezone": settings.Location.String(),
	}
	if next := s.Schedule.Next(); !next.IsZero() {
		resp["next_run"] = next.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCronToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.Token.Current(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "url": "/cron/generate?token=" + token})
}

// decodeOptional decodes a JSON body; an empty body leaves dst untouched.
func decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
