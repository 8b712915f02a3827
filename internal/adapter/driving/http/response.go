package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"starscope/internal/application"
	"starscope/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// RepoResponse is the JSON representation of a tracked repository.
type RepoResponse struct {
	ID          int64    `json:"id"`
	FullName    string   `json:"full_name"`
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	CreatedAt   string   `json:"created_at"`
	AddedAt     string   `json:"added_at"`
	FetchedAt   string   `json:"fetched_at,omitempty"`
}

// RepoDetailResponse is a repository joined with its derived metrics.
type RepoDetailResponse struct {
	RepoResponse
	Metrics map[string]float64 `json:"metrics"`
}

// SnapshotResponse is one point of the star history.
type SnapshotResponse struct {
	Stars      int    `json:"stars"`
	Forks      int    `json:"forks"`
	CapturedAt string `json:"captured_at"`
}

// SignalResponse is the JSON representation of a detected signal.
type SignalResponse struct {
	ID             int64   `json:"id"`
	RepoID         int64   `json:"repo_id"`
	Type           string  `json:"type"`
	Severity       string  `json:"severity"`
	Description    string  `json:"description"`
	VelocityValue  float64 `json:"velocity_value"`
	StarCount      int     `json:"star_count"`
	PercentileRank float64 `json:"percentile_rank"`
	DetectedAt     string  `json:"detected_at"`
	ExpiresAt      string  `json:"expires_at"`
	Acknowledged   bool    `json:"acknowledged"`
}

// HealthScoreResponse is the JSON representation of a composite health score.
type HealthScoreResponse struct {
	RepoID       int64   `json:"repo_id"`
	OverallScore float64 `json:"overall_score"`
	Grade        string  `json:"grade"`

	IssueResponseScore  float64 `json:"issue_response_score"`
	PRMergeScore        float64 `json:"pr_merge_score"`
	ReleaseCadenceScore float64 `json:"release_cadence_score"`
	BusFactorScore      float64 `json:"bus_factor_score"`
	DocumentationScore  float64 `json:"documentation_score"`
	DependencyScore     float64 `json:"dependency_score"`
	VelocityScore       float64 `json:"velocity_score"`

	CalculatedAt string `json:"calculated_at"`
}

// NeighborResponse is one similar repository with its similarity breakdown.
type NeighborResponse struct {
	Repo         RepoResponse `json:"repo"`
	Score        float64      `json:"score"`
	SharedTopics []string     `json:"shared_topics"`
	SameLanguage bool         `json:"same_language"`
}

// AlertRuleResponse is the JSON representation of an alert rule.
type AlertRuleResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	RepoID      *int64  `json:"repo_id,omitempty"`
	MetricType  string  `json:"metric_type"`
	Operator    string  `json:"operator"`
	Threshold   float64 `json:"threshold"`
	Enabled     bool    `json:"enabled"`
	CreatedAt   string  `json:"created_at"`
}

// CreateRuleRequest is the JSON body for the create rule endpoint.
type CreateRuleRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	RepoID      *int64  `json:"repo_id"`
	MetricType  string  `json:"metric_type"`
	Operator    string  `json:"operator"`
	Threshold   float64 `json:"threshold"`
	Enabled     *bool   `json:"enabled"`
}

// TriggeredAlertResponse is one rule firing.
type TriggeredAlertResponse struct {
	ID           int64   `json:"id"`
	RuleID       int64   `json:"rule_id"`
	RepoID       int64   `json:"repo_id"`
	MetricValue  float64 `json:"metric_value"`
	TriggeredAt  string  `json:"triggered_at"`
	Acknowledged bool    `json:"acknowledged"`
}

// JobStatusResponse is the JSON representation of one scheduled job.
type JobStatusResponse struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
	Running  bool   `json:"running"`
	LastRun  string `json:"last_run,omitempty"`
	LastErr  string `json:"last_error,omitempty"`
	Runs     int64  `json:"runs"`
	Failures int64  `json:"failures"`
	Skips    int64  `json:"skips"`
}

// HealthResponse is the JSON representation of the liveness endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// AddRepoRequest is the JSON body for the track repository endpoint.
type AddRepoRequest struct {
	FullName string `json:"full_name"`
}

func toRepoResponse(repo model.Repository) RepoResponse {
	topics := repo.Topics
	if topics == nil {
		topics = []string{}
	}

	resp := RepoResponse{
		ID:          repo.ID,
		FullName:    repo.FullName,
		Owner:       repo.Owner,
		Name:        repo.Name,
		URL:         repo.URL,
		Description: repo.Description,
		Language:    repo.Language,
		Topics:      topics,
		Stars:       repo.Stars,
		Forks:       repo.Forks,
		CreatedAt:   repo.CreatedAt.UTC().Format(time.RFC3339),
		AddedAt:     repo.AddedAt.UTC().Format(time.RFC3339),
	}
	if !repo.FetchedAt.IsZero() {
		resp.FetchedAt = repo.FetchedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toSnapshotResponse(s model.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Stars:      s.Stars,
		Forks:      s.Forks,
		CapturedAt: s.CapturedAt.UTC().Format(time.RFC3339),
	}
}

func toSignalResponse(s model.Signal) SignalResponse {
	return SignalResponse{
		ID:             s.ID,
		RepoID:         s.RepoID,
		Type:           string(s.Type),
		Severity:       string(s.Severity),
		Description:    s.Description,
		VelocityValue:  s.VelocityValue,
		StarCount:      s.StarCount,
		PercentileRank: s.PercentileRank,
		DetectedAt:     s.DetectedAt.UTC().Format(time.RFC3339),
		ExpiresAt:      s.ExpiresAt.UTC().Format(time.RFC3339),
		Acknowledged:   s.Acknowledged,
	}
}

func toHealthScoreResponse(s model.HealthScore) HealthScoreResponse {
	return HealthScoreResponse{
		RepoID:       s.RepoID,
		OverallScore: s.OverallScore,
		Grade:        s.Grade,

		IssueResponseScore:  s.IssueResponseScore,
		PRMergeScore:        s.PRMergeScore,
		ReleaseCadenceScore: s.ReleaseCadenceScore,
		BusFactorScore:      s.BusFactorScore,
		DocumentationScore:  s.DocumentationScore,
		DependencyScore:     s.DependencyScore,
		VelocityScore:       s.VelocityScore,

		CalculatedAt: s.CalculatedAt.UTC().Format(time.RFC3339),
	}
}

func toNeighborResponse(n model.Neighbor) NeighborResponse {
	shared := n.SharedTopics
	if shared == nil {
		shared = []string{}
	}
	return NeighborResponse{
		Repo:         toRepoResponse(n.Repo),
		Score:        n.Score,
		SharedTopics: shared,
		SameLanguage: n.SameLanguage,
	}
}

func toAlertRuleResponse(r model.AlertRule) AlertRuleResponse {
	return AlertRuleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		RepoID:      r.RepoID,
		MetricType:  string(r.MetricType),
		Operator:    string(r.Operator),
		Threshold:   r.Threshold,
		Enabled:     r.Enabled,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTriggeredAlertResponse(a model.TriggeredAlert) TriggeredAlertResponse {
	return TriggeredAlertResponse{
		ID:           a.ID,
		RuleID:       a.RuleID,
		RepoID:       a.RepoID,
		MetricValue:  a.MetricValue,
		TriggeredAt:  a.TriggeredAt.UTC().Format(time.RFC3339),
		Acknowledged: a.Acknowledged,
	}
}

func toJobStatusResponse(s application.JobStatus) JobStatusResponse {
	resp := JobStatusResponse{
		Name:     s.Name,
		Interval: s.Interval.String(),
		Running:  s.Running,
		LastErr:  s.LastErr,
		Runs:     s.Runs,
		Failures: s.Failures,
		Skips:    s.Skips,
	}
	if !s.LastRun.IsZero() {
		resp.LastRun = s.LastRun.UTC().Format(time.RFC3339)
	}
	return resp
}
