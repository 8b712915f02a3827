package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "starscope/internal/adapter/driving/http"
	"starscope/internal/application"
	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockRepoStore struct {
	repos   []model.Repository
	listErr error
	nextID  int64
}

func (m *mockRepoStore) Add(_ context.Context, repo model.Repository) (int64, error) {
	for _, r := range m.repos {
		if r.FullName == repo.FullName {
			return 0, driven.ErrRepoAlreadyExists
		}
	}
	m.nextID++
	repo.ID = m.nextID
	m.repos = append(m.repos, repo)
	return repo.ID, nil
}

func (m *mockRepoStore) Remove(_ context.Context, fullName string) error {
	for i, r := range m.repos {
		if r.FullName == fullName {
			m.repos = append(m.repos[:i], m.repos[i+1:]...)
			return nil
		}
	}
	return driven.ErrRepoNotFound
}

func (m *mockRepoStore) GetByFullName(_ context.Context, fullName string) (*model.Repository, error) {
	for _, r := range m.repos {
		if r.FullName == fullName {
			repo := r
			return &repo, nil
		}
	}
	return nil, nil
}

func (m *mockRepoStore) GetByID(_ context.Context, id int64) (*model.Repository, error) {
	for _, r := range m.repos {
		if r.ID == id {
			repo := r
			return &repo, nil
		}
	}
	return nil, nil
}

func (m *mockRepoStore) ListAll(_ context.Context) ([]model.Repository, error) {
	return m.repos, m.listErr
}

func (m *mockRepoStore) UpdateFetched(_ context.Context, repo model.Repository) error {
	for i, r := range m.repos {
		if r.ID == repo.ID {
			m.repos[i] = repo
			return nil
		}
	}
	return driven.ErrRepoNotFound
}

type mockSnapshotStore struct {
	series map[int64][]model.Snapshot // oldest first
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{series: make(map[int64][]model.Snapshot)}
}

func (m *mockSnapshotStore) Record(_ context.Context, repoID int64, stars, forks int, at time.Time) error {
	s := m.series[repoID]
	if len(s) > 0 && !at.After(s[len(s)-1].CapturedAt) {
		return driven.ErrInvalidSnapshot
	}
	m.series[repoID] = append(s, model.Snapshot{RepoID: repoID, Stars: stars, Forks: forks, CapturedAt: at})
	return nil
}

func (m *mockSnapshotStore) Latest(_ context.Context, repoID int64) (*model.Snapshot, error) {
	s := m.series[repoID]
	if len(s) == 0 {
		return nil, nil
	}
	snap := s[len(s)-1]
	return &snap, nil
}

func (m *mockSnapshotStore) Recent(_ context.Context, repoID int64, n int) ([]model.Snapshot, error) {
	s := m.series[repoID]
	out := make([]model.Snapshot, 0, n)
	for i := len(s) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s[i])
	}
	return out, nil
}

func (m *mockSnapshotStore) History(_ context.Context, repoID int64) ([]model.Snapshot, error) {
	return m.series[repoID], nil
}

func (m *mockSnapshotStore) Deltas(_ context.Context, _ int64, _ time.Duration) (*model.Delta, error) {
	return nil, driven.ErrNoSnapshotData
}

func (m *mockSnapshotStore) Prune(_ context.Context, _ time.Duration, _ int, _ time.Time) (int64, error) {
	return 0, nil
}

type metricKey struct {
	repoID int64
	t      model.MetricType
}

type mockMetricStore struct {
	metrics map[metricKey]model.Metric
}

func newMockMetricStore() *mockMetricStore {
	return &mockMetricStore{metrics: make(map[metricKey]model.Metric)}
}

func (m *mockMetricStore) set(repoID int64, t model.MetricType, value float64) {
	m.metrics[metricKey{repoID, t}] = model.Metric{RepoID: repoID, Type: t, Value: value}
}

func (m *mockMetricStore) Upsert(_ context.Context, metric model.Metric) error {
	m.metrics[metricKey{metric.RepoID, metric.Type}] = metric
	return nil
}

func (m *mockMetricStore) Latest(_ context.Context, repoID int64, t model.MetricType) (*model.Metric, error) {
	metric, ok := m.metrics[metricKey{repoID, t}]
	if !ok {
		return nil, nil
	}
	return &metric, nil
}

func (m *mockMetricStore) LatestByType(_ context.Context, t model.MetricType) ([]model.Metric, error) {
	var out []model.Metric
	for k, v := range m.metrics {
		if k.t == t {
			out = append(out, v)
		}
	}
	return out, nil
}

type mockSignalStore struct {
	signals []model.Signal
}

func (m *mockSignalStore) Insert(_ context.Context, signal model.Signal) (int64, error) {
	signal.ID = int64(len(m.signals) + 1)
	m.signals = append(m.signals, signal)
	return signal.ID, nil
}

func (m *mockSignalStore) ActiveByRepoAndType(_ context.Context, _ int64, _ model.SignalType, _ time.Time) (*model.Signal, error) {
	return nil, nil
}

func (m *mockSignalStore) RefreshExpiry(_ context.Context, _ int64, _ time.Time) error {
	return nil
}

func (m *mockSignalStore) ListActive(_ context.Context, now time.Time) ([]model.Signal, error) {
	var out []model.Signal
	for _, s := range m.signals {
		if s.Active(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSignalStore) ListByRepo(_ context.Context, repoID int64) ([]model.Signal, error) {
	var out []model.Signal
	for _, s := range m.signals {
		if s.RepoID == repoID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSignalStore) Acknowledge(_ context.Context, id int64, at time.Time) error {
	for i, s := range m.signals {
		if s.ID == id {
			m.signals[i].Acknowledged = true
			m.signals[i].AcknowledgedAt = &at
			return nil
		}
	}
	return driven.ErrSignalNotFound
}

func (m *mockSignalStore) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type mockHealthStore struct {
	scores map[int64]model.HealthScore
}

func newMockHealthStore() *mockHealthStore {
	return &mockHealthStore{scores: make(map[int64]model.HealthScore)}
}

func (m *mockHealthStore) Replace(_ context.Context, score model.HealthScore) error {
	m.scores[score.RepoID] = score
	return nil
}

func (m *mockHealthStore) GetByRepo(_ context.Context, repoID int64) (*model.HealthScore, error) {
	score, ok := m.scores[repoID]
	if !ok {
		return nil, nil
	}
	return &score, nil
}

type mockAlertStore struct {
	rules     []model.AlertRule
	triggered []model.TriggeredAlert
}

func (m *mockAlertStore) CreateRule(_ context.Context, rule model.AlertRule) (int64, error) {
	rule.ID = int64(len(m.rules) + 1)
	m.rules = append(m.rules, rule)
	return rule.ID, nil
}

func (m *mockAlertStore) DeleteRule(_ context.Context, id int64) error {
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return driven.ErrRuleNotFound
}

func (m *mockAlertStore) ListRules(_ context.Context, enabledOnly bool) ([]model.AlertRule, error) {
	var out []model.AlertRule
	for _, r := range m.rules {
		if enabledOnly && !r.Enabled {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockAlertStore) InsertTriggered(_ context.Context, alert model.TriggeredAlert) (int64, error) {
	alert.ID = int64(len(m.triggered) + 1)
	m.triggered = append(m.triggered, alert)
	return alert.ID, nil
}

func (m *mockAlertStore) ListTriggered(_ context.Context, unackOnly bool) ([]model.TriggeredAlert, error) {
	var out []model.TriggeredAlert
	for _, a := range m.triggered {
		if unackOnly && a.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAlertStore) AcknowledgeAlert(_ context.Context, id int64, at time.Time) error {
	for i, a := range m.triggered {
		if a.ID == id {
			m.triggered[i].Acknowledged = true
			m.triggered[i].AcknowledgedAt = &at
			return nil
		}
	}
	return driven.ErrAlertNotFound
}

func (m *mockAlertStore) AcknowledgeAll(_ context.Context, at time.Time) (int64, error) {
	var count int64
	for i, a := range m.triggered {
		if !a.Acknowledged {
			m.triggered[i].Acknowledged = true
			m.triggered[i].AcknowledgedAt = &at
			count++
		}
	}
	return count, nil
}

type mockSimilarityStore struct {
	neighbors map[int64][]model.Neighbor
}

func (m *mockSimilarityStore) ReplaceAll(_ context.Context, _ []model.SimilarRepo) error {
	return nil
}

func (m *mockSimilarityStore) NeighborsOf(_ context.Context, repoID int64, limit int) ([]model.Neighbor, error) {
	n := m.neighbors[repoID]
	if len(n) > limit {
		n = n[:limit]
	}
	return n, nil
}

type mockGitHubClient struct {
	fetchRepo   func(ctx context.Context, owner, name string) (*model.RepoInfo, error)
	fetchHealth func(ctx context.Context, owner, name string) (*model.HealthMetrics, error)
}

func (m *mockGitHubClient) FetchRepo(ctx context.Context, owner, name string) (*model.RepoInfo, error) {
	if m.fetchRepo == nil {
		return nil, errors.New("unexpected FetchRepo call")
	}
	return m.fetchRepo(ctx, owner, name)
}

func (m *mockGitHubClient) FetchHealthMetrics(ctx context.Context, owner, name string) (*model.HealthMetrics, error) {
	if m.fetchHealth == nil {
		return nil, errors.New("unexpected FetchHealthMetrics call")
	}
	return m.fetchHealth(ctx, owner, name)
}

// --- Test helpers ---

var (
	testTime    = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	testTimeStr = "2026-02-10T12:00:00Z"
)

type fixture struct {
	repos      *mockRepoStore
	snapshots  *mockSnapshotStore
	metrics    *mockMetricStore
	signals    *mockSignalStore
	health     *mockHealthStore
	alerts     *mockAlertStore
	similarity *mockSimilarityStore
	gh         *mockGitHubClient
	scheduler  *application.Scheduler
}

func newFixture() *fixture {
	return &fixture{
		repos:      &mockRepoStore{},
		snapshots:  newMockSnapshotStore(),
		metrics:    newMockMetricStore(),
		signals:    &mockSignalStore{},
		health:     newMockHealthStore(),
		alerts:     &mockAlertStore{},
		similarity: &mockSimilarityStore{neighbors: make(map[int64][]model.Neighbor)},
		gh:         &mockGitHubClient{},
		scheduler:  application.NewScheduler(),
	}
}

// mux wires real application services over the fixture's mock stores.
func (f *fixture) mux() http.Handler {
	logger := slog.Default()
	provider := application.NewGitHubClientProvider(f.gh)
	analyzer := application.NewAnalyzer(f.snapshots, f.metrics)
	fetchSvc := application.NewFetchService(provider, f.repos, f.snapshots, analyzer)
	healthSvc := application.NewHealthService(provider, f.repos, f.metrics, f.health)
	similaritySvc := application.NewSimilarityService(f.repos, f.similarity)
	alertSvc := application.NewAlertService(f.alerts, f.repos, f.metrics)

	h := httphandler.NewHandler(
		f.repos, f.snapshots, f.metrics, f.signals, f.health, f.alerts,
		fetchSvc, healthSvc, similaritySvc, alertSvc, f.scheduler, logger,
	)
	return httphandler.NewServeMux(h, logger)
}

func (f *fixture) addRepo(fullName string, stars int) model.Repository {
	owner, name, _ := strings.Cut(fullName, "/")
	f.repos.nextID++
	repo := model.Repository{
		ID:        f.repos.nextID,
		FullName:  fullName,
		Owner:     owner,
		Name:      name,
		URL:       "https://github.com/" + fullName,
		Language:  "Go",
		Topics:    []string{"cli"},
		Stars:     stars,
		Forks:     stars / 10,
		CreatedAt: testTime.AddDate(-1, 0, 0),
		AddedAt:   testTime,
		FetchedAt: testTime,
	}
	f.repos.repos = append(f.repos.repos, repo)
	return repo
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

func do(mux http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestListRepos(t *testing.T) {
	f := newFixture()
	f.addRepo("octocat/hello", 1200)
	f.addRepo("golang/go", 120000)
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	require.Len(t, resp, 2)
	assert.Equal(t, "octocat/hello", resp[0]["full_name"])
	assert.Equal(t, "octocat", resp[0]["owner"])
	assert.Equal(t, "hello", resp[0]["name"])
	assert.Equal(t, float64(1200), resp[0]["stars"])
	assert.Equal(t, testTimeStr, resp[0]["added_at"])
	topics, ok := resp[0]["topics"].([]any)
	require.True(t, ok)
	assert.Len(t, topics, 1)
}

func TestListRepos_Empty(t *testing.T) {
	f := newFixture()
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	assert.Len(t, resp, 0)
}

func TestListRepos_StoreError(t *testing.T) {
	f := newFixture()
	f.repos.listErr = errors.New("db fail")
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTrackRepo(t *testing.T) {
	f := newFixture()
	f.gh.fetchRepo = func(_ context.Context, owner, name string) (*model.RepoInfo, error) {
		return &model.RepoInfo{
			FullName:  owner + "/" + name,
			URL:       "https://github.com/" + owner + "/" + name,
			Language:  "Go",
			Stars:     512,
			Forks:     40,
			CreatedAt: testTime.AddDate(-2, 0, 0),
		}, nil
	}
	mux := f.mux()

	rec := do(mux, http.MethodPost, "/api/v1/repos", `{"full_name":"octocat/hello"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "octocat/hello", resp["full_name"])
	assert.Equal(t, float64(512), resp["stars"])
	require.Len(t, f.repos.repos, 1)
	assert.Len(t, f.snapshots.series[f.repos.repos[0].ID], 1)
}

func TestTrackRepo_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		fetchErr   error
		preTracked bool
		wantStatus int
	}{
		{
			name:       "invalid body",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid name",
			body:       `{"full_name":"no-slash-here"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "already tracked",
			body:       `{"full_name":"octocat/hello"}`,
			preTracked: true,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "repo gone on github",
			body:       `{"full_name":"octocat/hello"}`,
			fetchErr:   driven.ErrFetchPermanent,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "github unavailable",
			body:       `{"full_name":"octocat/hello"}`,
			fetchErr:   driven.ErrFetchTransient,
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.preTracked {
				f.addRepo("octocat/hello", 100)
			}
			f.gh.fetchRepo = func(_ context.Context, owner, name string) (*model.RepoInfo, error) {
				if tt.fetchErr != nil {
					return nil, tt.fetchErr
				}
				return &model.RepoInfo{FullName: owner + "/" + name, Stars: 1, CreatedAt: testTime}, nil
			}
			mux := f.mux()

			rec := do(mux, http.MethodPost, "/api/v1/repos", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetRepo(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	f.metrics.set(repo.ID, model.MetricVelocity, 12.5)
	f.metrics.set(repo.ID, model.MetricStarsDelta7d, 88)
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos/octocat/hello", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "octocat/hello", resp["full_name"])
	metrics, ok := resp["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(12.5), metrics["velocity"])
	assert.Equal(t, float64(88), metrics["stars_delta_7d"])
	assert.NotContains(t, metrics, "stars_delta_30d")
}

func TestGetRepo_NotFound(t *testing.T) {
	f := newFixture()
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos/octocat/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUntrackRepo(t *testing.T) {
	f := newFixture()
	f.addRepo("octocat/hello", 1200)
	mux := f.mux()

	rec := do(mux, http.MethodDelete, "/api/v1/repos/octocat/hello", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.repos.repos)

	rec = do(mux, http.MethodDelete, "/api/v1/repos/octocat/hello", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetHistory(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	now := time.Now().UTC()
	ctx := context.Background()
	require.NoError(t, f.snapshots.Record(ctx, repo.ID, 1000, 90, now.AddDate(0, 0, -40)))
	require.NoError(t, f.snapshots.Record(ctx, repo.ID, 1100, 95, now.AddDate(0, 0, -10)))
	require.NoError(t, f.snapshots.Record(ctx, repo.ID, 1200, 99, now.AddDate(0, 0, -1)))
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos/octocat/hello/history", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	// 40-day-old snapshot falls outside the default 30-day window.
	require.Len(t, resp, 2)
	assert.Equal(t, float64(1100), resp[0]["stars"])
	assert.Equal(t, float64(1200), resp[1]["stars"])

	rec = do(mux, http.MethodGet, "/api/v1/repos/octocat/hello/history?days=60", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	assert.Len(t, resp, 3)
}

func TestGetHistory_InvalidDays(t *testing.T) {
	f := newFixture()
	f.addRepo("octocat/hello", 1200)
	mux := f.mux()

	for _, days := range []string{"0", "-5", "soon"} {
		rec := do(mux, http.MethodGet, "/api/v1/repos/octocat/hello/history?days="+days, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", days)
	}
}

func TestGetHealthScore(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	f.health.scores[repo.ID] = model.HealthScore{
		RepoID:       repo.ID,
		OverallScore: 86.0,
		Grade:        "A",
		CalculatedAt: testTime,
	}
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos/octocat/hello/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, float64(86), resp["overall_score"])
	assert.Equal(t, "A", resp["grade"])
	assert.Equal(t, testTimeStr, resp["calculated_at"])
}

func TestGetHealthScore_NotCalculated(t *testing.T) {
	f := newFixture()
	f.addRepo("octocat/hello", 1200)
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos/octocat/hello/health", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecalculateHealth(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	f.gh.fetchHealth = func(_ context.Context, _, _ string) (*model.HealthMetrics, error) {
		return &model.HealthMetrics{
			HasReadme:  true,
			HasLicense: true,
		}, nil
	}
	mux := f.mux()

	rec := do(mux, http.MethodPost, "/api/v1/repos/octocat/hello/health/recalculate", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, float64(repo.ID), resp["repo_id"])
	assert.Equal(t, float64(70), resp["documentation_score"])
	_, stored := f.health.scores[repo.ID]
	assert.True(t, stored)
}

func TestListSimilar(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	other := f.addRepo("golang/go", 120000)
	f.similarity.neighbors[repo.ID] = []model.Neighbor{
		{Repo: other, Score: 0.72, SharedTopics: []string{"cli"}, SameLanguage: true},
	}
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos/octocat/hello/similar", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, float64(0.72), resp[0]["score"])
	assert.Equal(t, true, resp[0]["same_language"])
	nested, ok := resp[0]["repo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "golang/go", nested["full_name"])
}

func TestListSimilar_InvalidLimit(t *testing.T) {
	f := newFixture()
	f.addRepo("octocat/hello", 1200)
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/repos/octocat/hello/similar?limit=nope", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSignals(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	now := time.Now().UTC()
	f.signals.signals = []model.Signal{
		{ID: 1, RepoID: repo.ID, Type: model.SignalRisingStar, Severity: model.SeverityMedium,
			DetectedAt: now.Add(-time.Hour), ExpiresAt: now.Add(6 * 24 * time.Hour)},
		{ID: 2, RepoID: repo.ID, Type: model.SignalSuddenSpike, Severity: model.SeverityHigh,
			DetectedAt: now.AddDate(0, 0, -10), ExpiresAt: now.AddDate(0, 0, -7)},
	}
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/signals", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	// The expired spike is filtered out.
	require.Len(t, resp, 1)
	assert.Equal(t, "rising_star", resp[0]["type"])
	assert.Equal(t, "medium", resp[0]["severity"])
}

func TestAcknowledgeSignal(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	now := time.Now().UTC()
	f.signals.signals = []model.Signal{
		{ID: 7, RepoID: repo.ID, Type: model.SignalRisingStar, ExpiresAt: now.Add(24 * time.Hour)},
	}
	mux := f.mux()

	rec := do(mux, http.MethodPost, "/api/v1/signals/7/acknowledge", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, f.signals.signals[0].Acknowledged)

	rec = do(mux, http.MethodPost, "/api/v1/signals/99/acknowledge", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(mux, http.MethodPost, "/api/v1/signals/abc/acknowledge", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRule(t *testing.T) {
	f := newFixture()
	mux := f.mux()

	rec := do(mux, http.MethodPost, "/api/v1/alerts/rules",
		`{"name":"fast movers","metric_type":"velocity","operator":">","threshold":30}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "fast movers", resp["name"])
	assert.Equal(t, float64(30), resp["threshold"])
	assert.Equal(t, true, resp["enabled"])
	assert.NotZero(t, resp["id"])
}

func TestCreateRule_Invalid(t *testing.T) {
	f := newFixture()
	mux := f.mux()

	rec := do(mux, http.MethodPost, "/api/v1/alerts/rules",
		`{"name":"bad","metric_type":"stars_per_fortnight","operator":">","threshold":1}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Contains(t, resp["error"], "stars_per_fortnight")
}

func TestDeleteRule(t *testing.T) {
	f := newFixture()
	f.alerts.rules = []model.AlertRule{{ID: 3, Name: "r", MetricType: model.MetricVelocity, Operator: model.OpGreater}}
	mux := f.mux()

	rec := do(mux, http.MethodDelete, "/api/v1/alerts/rules/3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(mux, http.MethodDelete, "/api/v1/alerts/rules/3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTriggered(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	f.alerts.triggered = []model.TriggeredAlert{
		{ID: 1, RuleID: 1, RepoID: repo.ID, MetricValue: 42, TriggeredAt: testTime, Acknowledged: true},
		{ID: 2, RuleID: 1, RepoID: repo.ID, MetricValue: 55, TriggeredAt: testTime},
	}
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	assert.Len(t, resp, 2)

	rec = do(mux, http.MethodGet, "/api/v1/alerts?unacknowledged=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, float64(55), resp[0]["metric_value"])
}

func TestAcknowledgeAllAlerts(t *testing.T) {
	f := newFixture()
	repo := f.addRepo("octocat/hello", 1200)
	f.alerts.triggered = []model.TriggeredAlert{
		{ID: 1, RuleID: 1, RepoID: repo.ID, TriggeredAt: testTime},
		{ID: 2, RuleID: 1, RepoID: repo.ID, TriggeredAt: testTime},
	}
	mux := f.mux()

	rec := do(mux, http.MethodPost, "/api/v1/alerts/acknowledge-all", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int64
	decodeJSON(t, rec, &resp)
	assert.Equal(t, int64(2), resp["acknowledged"])
}

func TestJobs(t *testing.T) {
	f := newFixture()
	ran := false
	require.NoError(t, f.scheduler.Register("fetch", time.Hour, 0, func(_ context.Context, _ time.Time) error {
		ran = true
		return nil
	}))
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	decodeJSON(t, rec, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "fetch", resp[0]["name"])
	assert.Equal(t, "1h0m0s", resp[0]["interval"])

	rec = do(mux, http.MethodPost, "/api/v1/jobs/fetch/trigger", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ran)

	rec = do(mux, http.MethodPost, "/api/v1/jobs/unknown/trigger", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture()
	mux := f.mux()

	rec := do(mux, http.MethodGet, "/api/v1/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp["status"])
}
