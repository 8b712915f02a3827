package application_test

import (
	"context"
	"sort"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// --- Mock implementations shared by the application service tests ---

type mockRepoStore struct {
	repos   []model.Repository
	listErr error
	nextID  int64
	added   []model.Repository
	updates []model.Repository
	removed []string
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
	m.added = append(m.added, repo)
	return repo.ID, nil
}

func (m *mockRepoStore) Remove(_ context.Context, fullName string) error {
	for i, r := range m.repos {
		if r.FullName == fullName {
			m.repos = append(m.repos[:i], m.repos[i+1:]...)
			m.removed = append(m.removed, fullName)
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
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.repos, nil
}

func (m *mockRepoStore) UpdateFetched(_ context.Context, repo model.Repository) error {
	m.updates = append(m.updates, repo)
	for i, r := range m.repos {
		if r.ID == repo.ID {
			m.repos[i] = repo
			return nil
		}
	}
	return driven.ErrRepoNotFound
}

// mockSnapshotStore holds per-repository series oldest first.
type mockSnapshotStore struct {
	series     map[int64][]model.Snapshot
	recorded   []model.Snapshot
	recordErr  error
	pruneCalls int
	pruneAge   time.Duration
	pruneCap   int
	pruneNow   time.Time
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{series: make(map[int64][]model.Snapshot)}
}

func (m *mockSnapshotStore) seed(repoID int64, snaps ...model.Snapshot) {
	m.series[repoID] = append(m.series[repoID], snaps...)
}

func (m *mockSnapshotStore) Record(_ context.Context, repoID int64, stars, forks int, at time.Time) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	existing := m.series[repoID]
	if len(existing) > 0 && !at.After(existing[len(existing)-1].CapturedAt) {
		return driven.ErrInvalidSnapshot
	}
	snap := model.Snapshot{
		ID: int64(len(m.recorded) + 1), RepoID: repoID,
		Stars: stars, Forks: forks, CapturedAt: at,
	}
	m.series[repoID] = append(existing, snap)
	m.recorded = append(m.recorded, snap)
	return nil
}

func (m *mockSnapshotStore) Latest(_ context.Context, repoID int64) (*model.Snapshot, error) {
	series := m.series[repoID]
	if len(series) == 0 {
		return nil, nil
	}
	snap := series[len(series)-1]
	return &snap, nil
}

func (m *mockSnapshotStore) Recent(_ context.Context, repoID int64, n int) ([]model.Snapshot, error) {
	series := m.series[repoID]
	var out []model.Snapshot
	for i := len(series) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, series[i])
	}
	return out, nil
}

func (m *mockSnapshotStore) History(_ context.Context, repoID int64) ([]model.Snapshot, error) {
	return m.series[repoID], nil
}

func (m *mockSnapshotStore) Deltas(_ context.Context, repoID int64, window time.Duration) (*model.Delta, error) {
	series := m.series[repoID]
	if len(series) < 2 {
		return nil, driven.ErrNoSnapshotData
	}
	latest := series[len(series)-1]
	for i := len(series) - 2; i >= 0; i-- {
		if !series[i].CapturedAt.After(latest.CapturedAt.Add(-window)) {
			return &model.Delta{
				Earliest:  series[i],
				Latest:    latest,
				StarDelta: latest.Stars - series[i].Stars,
				Elapsed:   latest.CapturedAt.Sub(series[i].CapturedAt),
			}, nil
		}
	}
	return nil, driven.ErrNoSnapshotData
}

func (m *mockSnapshotStore) Prune(_ context.Context, maxAge time.Duration, maxPerRepo int, now time.Time) (int64, error) {
	m.pruneCalls++
	m.pruneAge = maxAge
	m.pruneCap = maxPerRepo
	m.pruneNow = now
	return 0, nil
}

type metricKey struct {
	repoID int64
	t      model.MetricType
}

type mockMetricStore struct {
	values  map[metricKey]model.Metric
	upserts []model.Metric
}

func newMockMetricStore() *mockMetricStore {
	return &mockMetricStore{values: make(map[metricKey]model.Metric)}
}

func (m *mockMetricStore) set(repoID int64, t model.MetricType, value float64) {
	m.values[metricKey{repoID, t}] = model.Metric{RepoID: repoID, Type: t, Value: value}
}

func (m *mockMetricStore) Upsert(_ context.Context, metric model.Metric) error {
	m.values[metricKey{metric.RepoID, metric.Type}] = metric
	m.upserts = append(m.upserts, metric)
	return nil
}

func (m *mockMetricStore) Latest(_ context.Context, repoID int64, t model.MetricType) (*model.Metric, error) {
	if metric, ok := m.values[metricKey{repoID, t}]; ok {
		return &metric, nil
	}
	return nil, nil
}

func (m *mockMetricStore) LatestByType(_ context.Context, t model.MetricType) ([]model.Metric, error) {
	var out []model.Metric
	for key, metric := range m.values {
		if key.t == t {
			out = append(out, metric)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RepoID < out[j].RepoID })
	return out, nil
}

// value returns the stored metric value, or false if never upserted.
func (m *mockMetricStore) value(repoID int64, t model.MetricType) (float64, bool) {
	metric, ok := m.values[metricKey{repoID, t}]
	return metric.Value, ok
}

// mockMentionStore holds mentions highest score first, as the real store
// returns them.
type mockMentionStore struct {
	mentions   map[int64][]model.Mention
	upserts    []model.Mention
	pruneCalls int
	lastPrune  mockMentionPrune
}

func newMockMentionStore() *mockMentionStore {
	return &mockMentionStore{mentions: make(map[int64][]model.Mention)}
}

func (m *mockMentionStore) Upsert(_ context.Context, mention model.Mention) error {
	m.upserts = append(m.upserts, mention)
	m.mentions[mention.RepoID] = append(m.mentions[mention.RepoID], mention)
	sort.SliceStable(m.mentions[mention.RepoID], func(i, j int) bool {
		return m.mentions[mention.RepoID][i].Score > m.mentions[mention.RepoID][j].Score
	})
	return nil
}

func (m *mockMentionStore) RecentByRepo(_ context.Context, repoID int64, since time.Time) ([]model.Mention, error) {
	var out []model.Mention
	for _, mention := range m.mentions[repoID] {
		if !mention.FetchedAt.Before(since) {
			out = append(out, mention)
		}
	}
	return out, nil
}

type mockMentionPrune struct {
	age time.Duration
	cap int
	now time.Time
}

func (m *mockMentionStore) Prune(_ context.Context, maxAge time.Duration, maxPerRepo int, now time.Time) (int64, error) {
	m.pruneCalls++
	m.lastPrune = mockMentionPrune{age: maxAge, cap: maxPerRepo, now: now}
	return 0, nil
}

type mockSignalStore struct {
	signals   []model.Signal
	nextID    int64
	refreshed []int64
	insertErr error
}

func (m *mockSignalStore) Insert(_ context.Context, signal model.Signal) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.nextID++
	signal.ID = m.nextID
	m.signals = append(m.signals, signal)
	return signal.ID, nil
}

func (m *mockSignalStore) ActiveByRepoAndType(_ context.Context, repoID int64, t model.SignalType, now time.Time) (*model.Signal, error) {
	for i := range m.signals {
		s := m.signals[i]
		if s.RepoID == repoID && s.Type == t && s.Active(now) {
			return &s, nil
		}
	}
	return nil, nil
}

func (m *mockSignalStore) RefreshExpiry(_ context.Context, id int64, expiresAt time.Time) error {
	for i := range m.signals {
		if m.signals[i].ID == id {
			m.signals[i].ExpiresAt = expiresAt
			m.refreshed = append(m.refreshed, id)
			return nil
		}
	}
	return driven.ErrSignalNotFound
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
	for i := range m.signals {
		if m.signals[i].ID == id {
			m.signals[i].Acknowledged = true
			ack := at
			m.signals[i].AcknowledgedAt = &ack
			return nil
		}
	}
	return driven.ErrSignalNotFound
}

func (m *mockSignalStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []model.Signal
	var removed int64
	for _, s := range m.signals {
		if s.ExpiresAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	m.signals = kept
	return removed, nil
}

// byType returns the repository's signals of one type, any expiry state.
func (m *mockSignalStore) byType(repoID int64, t model.SignalType) []model.Signal {
	var out []model.Signal
	for _, s := range m.signals {
		if s.RepoID == repoID && s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

type mockHealthStore struct {
	scores   map[int64]model.HealthScore
	replaced []model.HealthScore
}

func newMockHealthStore() *mockHealthStore {
	return &mockHealthStore{scores: make(map[int64]model.HealthScore)}
}

func (m *mockHealthStore) Replace(_ context.Context, score model.HealthScore) error {
	m.scores[score.RepoID] = score
	m.replaced = append(m.replaced, score)
	return nil
}

func (m *mockHealthStore) GetByRepo(_ context.Context, repoID int64) (*model.HealthScore, error) {
	if score, ok := m.scores[repoID]; ok {
		return &score, nil
	}
	return nil, nil
}

type mockSimilarityStore struct {
	replaceCalls [][]model.SimilarRepo
}

func (m *mockSimilarityStore) ReplaceAll(_ context.Context, edges []model.SimilarRepo) error {
	m.replaceCalls = append(m.replaceCalls, edges)
	return nil
}

func (m *mockSimilarityStore) NeighborsOf(_ context.Context, _ int64, _ int) ([]model.Neighbor, error) {
	return nil, nil
}

// lastEdges returns the edges of the most recent ReplaceAll pass.
func (m *mockSimilarityStore) lastEdges() []model.SimilarRepo {
	if len(m.replaceCalls) == 0 {
		return nil
	}
	return m.replaceCalls[len(m.replaceCalls)-1]
}

type mockAlertStore struct {
	rules     []model.AlertRule
	nextID    int64
	triggered []model.TriggeredAlert
	listErr   error
}

func (m *mockAlertStore) CreateRule(_ context.Context, rule model.AlertRule) (int64, error) {
	m.nextID++
	rule.ID = m.nextID
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
	if m.listErr != nil {
		return nil, m.listErr
	}
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
	for i := range m.triggered {
		if m.triggered[i].ID == id {
			m.triggered[i].Acknowledged = true
			ack := at
			m.triggered[i].AcknowledgedAt = &ack
			return nil
		}
	}
	return driven.ErrAlertNotFound
}

func (m *mockAlertStore) AcknowledgeAll(_ context.Context, at time.Time) (int64, error) {
	var count int64
	for i := range m.triggered {
		if !m.triggered[i].Acknowledged {
			m.triggered[i].Acknowledged = true
			ack := at
			m.triggered[i].AcknowledgedAt = &ack
			count++
		}
	}
	return count, nil
}

type mockGitHubClient struct {
	fetchRepo   func(ctx context.Context, owner, name string) (*model.RepoInfo, error)
	fetchHealth func(ctx context.Context, owner, name string) (*model.HealthMetrics, error)
}

func (m *mockGitHubClient) FetchRepo(ctx context.Context, owner, name string) (*model.RepoInfo, error) {
	return m.fetchRepo(ctx, owner, name)
}

func (m *mockGitHubClient) FetchHealthMetrics(ctx context.Context, owner, name string) (*model.HealthMetrics, error) {
	return m.fetchHealth(ctx, owner, name)
}

type mockMentionClient struct {
	search func(ctx context.Context, repoFullName string, since time.Time) ([]model.Mention, error)
}

func (m *mockMentionClient) SearchMentions(ctx context.Context, repoFullName string, since time.Time) ([]model.Mention, error) {
	return m.search(ctx, repoFullName, since)
}
