package driven

import (
	"context"
	"errors"
	"time"

	"starscope/internal/domain/model"
)

// Fetch failure classification at the collaborator boundary. Transient
// failures are retried with bounded backoff inside the adapter; what
// escapes carries one of these sentinels so the caller can decide to
// skip the repository and continue the job.
var (
	// ErrFetchPermanent indicates the repository cannot be fetched and
	// retrying will not help (missing, access revoked, bad credentials).
	ErrFetchPermanent = errors.New("permanent fetch failure")

	// ErrFetchTransient indicates retries were exhausted on a failure
	// that may succeed later (network, rate limit, server error).
	ErrFetchTransient = errors.New("transient fetch failure")
)

// GitHubClient defines the driven port for the code-hosting collaborator.
type GitHubClient interface {
	// FetchRepo returns the repository's current metadata and counters.
	FetchRepo(ctx context.Context, owner, name string) (*model.RepoInfo, error)
	// FetchHealthMetrics gathers the raw inputs to health scoring
	// (issues, pull requests, releases, contributors, community files).
	FetchHealthMetrics(ctx context.Context, owner, name string) (*model.HealthMetrics, error)
}

// MentionClient defines the driven port for external discussion search.
type MentionClient interface {
	// SearchMentions returns discussions referencing the repository
	// published at or after since.
	SearchMentions(ctx context.Context, repoFullName string, since time.Time) ([]model.Mention, error)
}
