// Package httphandler is the HTTP driving adapter serving the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"starscope/internal/application"
	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

const (
	defaultHistoryDays   = 30
	defaultNeighborLimit = 10
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	repoStore     driven.RepoStore
	snapshotStore driven.SnapshotStore
	metricStore   driven.MetricStore
	signalStore   driven.SignalStore
	healthStore   driven.HealthScoreStore
	alertStore    driven.AlertStore

	fetchSvc      *application.FetchService
	healthSvc     *application.HealthService
	similaritySvc *application.SimilarityService
	alertSvc      *application.AlertService
	scheduler     *application.Scheduler

	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	repoStore driven.RepoStore,
	snapshotStore driven.SnapshotStore,
	metricStore driven.MetricStore,
	signalStore driven.SignalStore,
	healthStore driven.HealthScoreStore,
	alertStore driven.AlertStore,
	fetchSvc *application.FetchService,
	healthSvc *application.HealthService,
	similaritySvc *application.SimilarityService,
	alertSvc *application.AlertService,
	scheduler *application.Scheduler,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		repoStore:     repoStore,
		snapshotStore: snapshotStore,
		metricStore:   metricStore,
		signalStore:   signalStore,
		healthStore:   healthStore,
		alertStore:    alertStore,
		fetchSvc:      fetchSvc,
		healthSvc:     healthSvc,
		similaritySvc: similaritySvc,
		alertSvc:      alertSvc,
		scheduler:     scheduler,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/repos", h.TrackRepo)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}", h.GetRepo)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}", h.UntrackRepo)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/history", h.GetHistory)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/refresh", h.RefreshRepo)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/health", h.GetHealthScore)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/health/recalculate", h.RecalculateHealth)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/similar", h.ListSimilar)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/signals", h.ListRepoSignals)

	mux.HandleFunc("GET /api/v1/signals", h.ListSignals)
	mux.HandleFunc("POST /api/v1/signals/{id}/acknowledge", h.AcknowledgeSignal)

	mux.HandleFunc("GET /api/v1/alerts/rules", h.ListRules)
	mux.HandleFunc("POST /api/v1/alerts/rules", h.CreateRule)
	mux.HandleFunc("DELETE /api/v1/alerts/rules/{id}", h.DeleteRule)
	mux.HandleFunc("GET /api/v1/alerts", h.ListTriggered)
	mux.HandleFunc("POST /api/v1/alerts/{id}/acknowledge", h.AcknowledgeAlert)
	mux.HandleFunc("POST /api/v1/alerts/acknowledge-all", h.AcknowledgeAllAlerts)

	mux.HandleFunc("POST /api/v1/similar/recalculate", h.RecalculateSimilarity)

	mux.HandleFunc("GET /api/v1/jobs", h.ListJobs)
	mux.HandleFunc("POST /api/v1/jobs/{name}/trigger", h.TriggerJob)

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// resolveRepo loads the repository named in the path, writing the error
// response itself when that fails.
func (h *Handler) resolveRepo(w http.ResponseWriter, r *http.Request) *model.Repository {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	repo, err := h.repoStore.GetByFullName(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to load repo", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	if repo == nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return nil
	}
	return repo
}

// ListRepos returns all tracked repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.repoStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list repos", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TrackRepo adds a repository to the watchlist. The repository is fetched
// synchronously so the response already carries its metadata and counters.
func (h *Handler) TrackRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	repo, err := h.fetchSvc.TrackRepo(r.Context(), req.FullName, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidRepoName):
			writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		case errors.Is(err, driven.ErrRepoAlreadyExists):
			writeError(w, http.StatusConflict, "repository already tracked")
		case errors.Is(err, application.ErrNoGitHubClient):
			writeError(w, http.StatusServiceUnavailable, "no github token configured")
		case errors.Is(err, driven.ErrFetchPermanent):
			writeError(w, http.StatusNotFound, "repository not found on github")
		case errors.Is(err, driven.ErrFetchTransient):
			writeError(w, http.StatusBadGateway, "github is unavailable, try again")
		default:
			h.logger.Error("failed to track repo", "repo", req.FullName, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(*repo))
}

// GetRepo returns one repository with its derived metrics.
func (h *Handler) GetRepo(w http.ResponseWriter, r *http.Request) {
	repo := h.resolveRepo(w, r)
	if repo == nil {
		return
	}

	metrics := make(map[string]float64)
	for _, t := range []model.MetricType{
		model.MetricStarsDelta7d,
		model.MetricStarsDelta30d,
		model.MetricVelocity,
		model.MetricAcceleration,
		model.MetricTrend,
	} {
		metric, err := h.metricStore.Latest(r.Context(), repo.ID, t)
		if err != nil {
			h.logger.Error("failed to load metric", "repo", repo.FullName, "type", string(t), "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if metric != nil {
			metrics[string(t)] = metric.Value
		}
	}

	writeJSON(w, http.StatusOK, RepoDetailResponse{
		RepoResponse: toRepoResponse(*repo),
		Metrics:      metrics,
	})
}

// UntrackRepo removes a repository and all its derived data.
func (h *Handler) UntrackRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if err := h.fetchSvc.UntrackRepo(r.Context(), fullName); err != nil {
		if errors.Is(err, driven.ErrRepoNotFound) {
			writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		h.logger.Error("failed to untrack repo", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHistory returns the repository's snapshot series, newest last,
// bounded by the days query parameter.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	repo := h.resolveRepo(w, r)
	if repo == nil {
		return
	}

	days := defaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	history, err := h.snapshotStore.History(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("failed to load history", "repo", repo.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	resp := make([]SnapshotResponse, 0, len(history))
	for _, snap := range history {
		if snap.CapturedAt.Before(cutoff) {
			continue
		}
		resp = append(resp, toSnapshotResponse(snap))
	}

	writeJSON(w, http.StatusOK, resp)
}

// RefreshRepo fetches one repository immediately, outside the cycle.
func (h *Handler) RefreshRepo(w http.ResponseWriter, r *http.Request) {
	repo := h.resolveRepo(w, r)
	if repo == nil {
		return
	}

	if err := h.fetchSvc.RefreshRepo(r.Context(), repo.FullName, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, application.ErrNoGitHubClient):
			writeError(w, http.StatusServiceUnavailable, "no github token configured")
		case errors.Is(err, driven.ErrFetchPermanent):
			writeError(w, http.StatusNotFound, "repository not found on github")
		case errors.Is(err, driven.ErrFetchTransient):
			writeError(w, http.StatusBadGateway, "github is unavailable, try again")
		default:
			h.logger.Error("refresh failed", "repo", repo.FullName, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHealthScore returns the repository's stored health score.
func (h *Handler) GetHealthScore(w http.ResponseWriter, r *http.Request) {
	repo := h.resolveRepo(w, r)
	if repo == nil {
		return
	}

	score, err := h.healthStore.GetByRepo(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("failed to load health score", "repo", repo.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if score == nil {
		writeError(w, http.StatusNotFound, "health score not calculated yet")
		return
	}

	writeJSON(w, http.StatusOK, toHealthScoreResponse(*score))
}

// RecalculateHealth rescores one repository synchronously.
func (h *Handler) RecalculateHealth(w http.ResponseWriter, r *http.Request) {
	repo := h.resolveRepo(w, r)
	if repo == nil {
		return
	}

	score, err := h.healthSvc.RescoreRepo(r.Context(), repo.ID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, application.ErrNoGitHubClient):
			writeError(w, http.StatusServiceUnavailable, "no github token configured")
		case errors.Is(err, driven.ErrFetchTransient):
			writeError(w, http.StatusBadGateway, "github is unavailable, try again")
		default:
			h.logger.Error("health rescore failed", "repo", repo.FullName, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toHealthScoreResponse(*score))
}

// ListSimilar returns the repository's nearest neighbors.
func (h *Handler) ListSimilar(w http.ResponseWriter, r *http.Request) {
	repo := h.resolveRepo(w, r)
	if repo == nil {
		return
	}

	limit := defaultNeighborLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	neighbors, err := h.similaritySvc.Neighbors(r.Context(), repo.ID, limit)
	if err != nil {
		h.logger.Error("failed to load neighbors", "repo", repo.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]NeighborResponse, 0, len(neighbors))
	for _, n := range neighbors {
		resp = append(resp, toNeighborResponse(n))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRepoSignals returns every signal ever detected for one repository.
func (h *Handler) ListRepoSignals(w http.ResponseWriter, r *http.Request) {
	repo := h.resolveRepo(w, r)
	if repo == nil {
		return
	}

	signals, err := h.signalStore.ListByRepo(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("failed to list repo signals", "repo", repo.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]SignalResponse, 0, len(signals))
	for _, s := range signals {
		resp = append(resp, toSignalResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListSignals returns all currently active signals, newest first.
func (h *Handler) ListSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := h.signalStore.ListActive(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("failed to list signals", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]SignalResponse, 0, len(signals))
	for _, s := range signals {
		resp = append(resp, toSignalResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AcknowledgeSignal marks one signal as seen.
func (h *Handler) AcknowledgeSignal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signal id")
		return
	}

	if err := h.signalStore.Acknowledge(r.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, driven.ErrSignalNotFound) {
			writeError(w, http.StatusNotFound, "signal not found")
			return
		}
		h.logger.Error("failed to acknowledge signal", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRules returns all alert rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.alertStore.ListRules(r.Context(), false)
	if err != nil {
		h.logger.Error("failed to list rules", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AlertRuleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toAlertRuleResponse(rule))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateRule creates a new alert rule. Rules default to enabled.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule, err := h.alertSvc.CreateRule(r.Context(), model.AlertRule{
		Name:        req.Name,
		Description: req.Description,
		RepoID:      req.RepoID,
		MetricType:  model.MetricType(req.MetricType),
		Operator:    model.Operator(req.Operator),
		Threshold:   req.Threshold,
		Enabled:     enabled,
	}, time.Now().UTC())
	if err != nil {
		if errors.Is(err, application.ErrInvalidRule) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create rule", "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toAlertRuleResponse(*rule))
}

// DeleteRule removes a rule and its firing history.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := h.alertSvc.DeleteRule(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		h.logger.Error("failed to delete rule", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTriggered returns alert firings, newest first. The unacknowledged
// query parameter filters to open ones.
func (h *Handler) ListTriggered(w http.ResponseWriter, r *http.Request) {
	unackOnly := r.URL.Query().Get("unacknowledged") == "true"

	alerts, err := h.alertStore.ListTriggered(r.Context(), unackOnly)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]TriggeredAlertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, toTriggeredAlertResponse(a))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AcknowledgeAlert marks one firing as seen.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	if err := h.alertStore.AcknowledgeAlert(r.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, driven.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.Error("failed to acknowledge alert", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AcknowledgeAllAlerts marks every open firing as seen and reports the count.
func (h *Handler) AcknowledgeAllAlerts(w http.ResponseWriter, r *http.Request) {
	count, err := h.alertStore.AcknowledgeAll(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("failed to acknowledge alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"acknowledged": count})
}

// RecalculateSimilarity recomputes the whole similarity graph synchronously.
func (h *Handler) RecalculateSimilarity(w http.ResponseWriter, r *http.Request) {
	if err := h.similaritySvc.RecomputeAll(r.Context(), time.Now().UTC()); err != nil {
		h.logger.Error("similarity recompute failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListJobs reports the scheduler's registered jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := h.scheduler.Status()

	resp := make([]JobStatusResponse, 0, len(status))
	for _, s := range status {
		resp = append(resp, toJobStatusResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TriggerJob runs one scheduled job immediately.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.scheduler.Trigger(r.Context(), name); err != nil {
		switch {
		case errors.Is(err, application.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, application.ErrJobRunning):
			writeError(w, http.StatusConflict, "job already running")
		default:
			h.logger.Error("job trigger failed", "job", name, "error", err)
			writeError(w, http.StatusInternalServerError, "job failed: "+err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple liveness response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
