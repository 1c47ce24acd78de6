// Package app wires the service facade onto HTTP routes for the dashboard
// frontend: read-only state accessors, fetch triggers, token management,
// analytics queries, and the operational endpoints (metrics, health).
package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gitboard/gitboard/internal/analytics"
	"github.com/gitboard/gitboard/internal/githubapi"
	"github.com/gitboard/gitboard/internal/prefs"
	"github.com/gitboard/gitboard/internal/service"
	"github.com/gitboard/gitboard/internal/telemetry"
	"github.com/gitboard/gitboard/internal/token"
)

// Handlers holds the dependencies of the HTTP layer.
type Handlers struct {
	service *service.Service
	prefs   *prefs.Manager
	logger  *zap.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(svc *service.Service, prefManager *prefs.Manager, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{service: svc, prefs: prefManager, logger: logger}
}

// NewHTTPHandler wires the API, metrics, and health endpoints on one router.
func NewHTTPHandler(handlers *Handlers, metricsHandler, healthHandler http.Handler) http.Handler {
	router := chi.NewRouter()
	traceMode := telemetry.TraceMode()

	router.Route("/api", func(api chi.Router) {
		api.Get("/state", wrap(traceMode, "state", handlers.getState))
		api.Get("/repositories", wrap(traceMode, "repositories", handlers.getRepositories))
		api.Get("/commits", wrap(traceMode, "commits", handlers.getCommits))
		api.Get("/user", wrap(traceMode, "user", handlers.getUser))
		api.Get("/analytics/commits", wrap(traceMode, "analytics_commits", handlers.getCommitAnalytics))
		api.Get("/analytics/repositories", wrap(traceMode, "analytics_repositories", handlers.getRepoAnalytics))

		api.Post("/token", wrap(traceMode, "token_set", handlers.setToken))
		api.Delete("/token", wrap(traceMode, "token_clear", handlers.clearToken))

		api.Post("/refresh", wrap(traceMode, "refresh", handlers.refresh))
		api.Post("/repositories/fetch", wrap(traceMode, "repositories_fetch", handlers.fetchRepositories))
		api.Post("/commits/fetch", wrap(traceMode, "commits_fetch", handlers.fetchCommits))
		api.Post("/commits/fetch-all", wrap(traceMode, "commits_fetch_all", handlers.fetchAllCommits))

		api.Get("/search/repositories", wrap(traceMode, "search_repositories", handlers.searchRepositories))
		api.Get("/repositories/contents", wrap(traceMode, "repository_contents", handlers.getRepositoryContents))
		api.Get("/repositories/branches", wrap(traceMode, "repository_branches", handlers.getRepositoryBranches))
		api.Get("/repositories/releases", wrap(traceMode, "repository_releases", handlers.getRepositoryReleases))

		api.Get("/prefs", wrap(traceMode, "prefs_get", handlers.getPrefs))
		api.Put("/prefs", wrap(traceMode, "prefs_put", handlers.putPrefs))
	})

	router.Handle("/metrics", wrapHTTPHandler(traceMode, "metrics", metricsHandler))
	router.Handle("/livez", wrapHTTPHandler(traceMode, "livez", healthHandler))
	router.Handle("/readyz", wrapHTTPHandler(traceMode, "readyz", healthHandler))
	router.Handle("/healthz", wrapHTTPHandler(traceMode, "healthz", healthHandler))
	return router
}

func (h *Handlers) getState(w http.ResponseWriter, r *http.Request) {
	state := h.service.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"repository_count":     len(state.Repositories),
		"commit_count":         len(state.Commits),
		"has_user":             state.HasUser,
		"loading":              state.Loading,
		"global_error":         state.GlobalError,
		"loading_repositories": state.LoadingRepositories,
		"loading_commits":      state.LoadingCommits,
		"loading_user":         state.LoadingUser,
		"bulk_fetch_in_flight": state.BulkFetchInFlight,
		"repository_error":     state.RepositoryError,
		"commit_error":         state.CommitError,
		"user_error":           state.UserError,
		"commits_repo":         state.CommitsRepo,
		"partial_results":      state.PartialResults,
		"last_fetched_at":      state.LastFetchedAt,
		"has_token":            h.service.HasToken(),
	})
}

func (h *Handlers) getRepositories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Repositories())
}

func (h *Handlers) getCommits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Commits())
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.service.User()
	if !ok {
		writeError(w, http.StatusNotFound, "no user fetched")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) getCommitAnalytics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	spec := analytics.FilterSpec{
		Window: analytics.Window(query.Get("window")),
		Search: query.Get("search"),
		Author: query.Get("author"),
		Sort:   analytics.SortKey(query.Get("sort")),
	}
	if spec.Window != "" && !spec.Window.Valid() {
		writeError(w, http.StatusBadRequest, "unknown window "+string(spec.Window))
		return
	}
	writeJSON(w, http.StatusOK, h.service.Analytics(spec))
}

func (h *Handlers) getRepoAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.RepositoryAnalytics())
}

func (h *Handlers) setToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateToken(r.Context(), body.Token); err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			writeError(w, http.StatusUnprocessableEntity, "token must start with ghp_ or github_pat_")
			return
		}
		h.logger.Error("token update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "token update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) clearToken(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearToken(r.Context()); err != nil {
		h.logger.Error("token clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "token clear failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	h.runFetch(w, r, "refresh", h.service.RefreshAll)
}

func (h *Handlers) fetchRepositories(w http.ResponseWriter, r *http.Request) {
	h.runFetch(w, r, "repositories", h.service.FetchRepositories)
}

func (h *Handlers) fetchCommits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Repo        string `json:"repo"`
		Branch      string `json:"branch"`
		Author      string `json:"author"`
		Path        string `json:"path"`
		Since       string `json:"since"`
		Until       string `json:"until"`
		FullHistory bool   `json:"full_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, _, err := githubapi.ParseRepoFullName(body.Repo); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := service.CommitFetchOptions{
		Branch:      body.Branch,
		Author:      body.Author,
		Path:        body.Path,
		FullHistory: body.FullHistory,
	}
	if body.Since != "" {
		since, err := time.Parse(time.RFC3339, body.Since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		opts.Since = since
	}
	if body.Until != "" {
		until, err := time.Parse(time.RFC3339, body.Until)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC 3339")
			return
		}
		opts.Until = until
	}

	h.runFetch(w, r, "commits", func(ctx context.Context) error {
		return h.service.FetchCommits(ctx, body.Repo, opts)
	})
}

func (h *Handlers) fetchAllCommits(w http.ResponseWriter, r *http.Request) {
	h.runFetch(w, r, "commits_all", h.service.FetchAllRepositoriesCommits)
}

func (h *Handlers) searchRepositories(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	repos := h.service.SearchRepositories(r.Context(), query, githubapi.SearchOptions{
		Sort:  r.URL.Query().Get("sort"),
		Order: r.URL.Query().Get("order"),
	})
	writeJSON(w, http.StatusOK, repos)
}

func (h *Handlers) getRepositoryContents(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	if _, _, err := githubapi.ParseRepoFullName(repo); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items := h.service.GetRepositoryContents(r.Context(), repo, r.URL.Query().Get("path"), r.URL.Query().Get("ref"))
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) getRepositoryBranches(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	if _, _, err := githubapi.ParseRepoFullName(repo); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.service.GetRepositoryBranches(r.Context(), repo))
}

func (h *Handlers) getRepositoryReleases(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	if _, _, err := githubapi.ParseRepoFullName(repo); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.service.GetRepositoryReleases(r.Context(), repo))
}

func (h *Handlers) getPrefs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prefs.Get(r.Context()))
}

func (h *Handlers) putPrefs(w http.ResponseWriter, r *http.Request) {
	var incoming prefs.Preferences
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.prefs.Set(r.Context(), incoming); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, incoming)
}

// runFetch executes a fetch operation synchronously and maps its error to an
// HTTP status. The updated collections are read back through the state
// endpoints, so the response body only reports the outcome.
func (h *Handlers) runFetch(w http.ResponseWriter, r *http.Request, scope string, fetch func(ctx context.Context) error) {
	if err := fetch(r.Context()); err != nil {
		status := fetchErrorStatus(err)
		h.logger.Warn("fetch failed",
			zap.String("scope", scope),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func fetchErrorStatus(err error) int {
	switch {
	case errors.Is(err, token.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, githubapi.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, githubapi.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, githubapi.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func wrap(traceMode, route string, handler http.HandlerFunc) http.HandlerFunc {
	wrapped := wrapHTTPHandler(traceMode, route, handler)
	return wrapped.ServeHTTP
}

func wrapHTTPHandler(traceMode, route string, handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	if strings.EqualFold(strings.TrimSpace(traceMode), "off") {
		return handler
	}

	operation := strings.TrimSpace(route)
	if operation == "" {
		operation = "handler"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer("gitboard/internal/app").Start(
			r.Context(),
			"http.server."+operation,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		recorder := &statusCapturingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}
		handler.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
			return
		}
		span.SetStatus(codes.Ok, "request completed")
	})
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
