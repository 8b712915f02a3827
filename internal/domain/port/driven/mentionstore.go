package driven

import (
	"context"
	"time"

	"starscope/internal/domain/model"
)

// MentionStore defines the driven port for external mention persistence.
// Upsert is keyed on (repository, source, external id): a re-fetched
// mention updates its score and comment count in place.
type MentionStore interface {
	Upsert(ctx context.Context, mention model.Mention) error
	// RecentByRepo returns mentions fetched at or after since, highest
	// score first.
	RecentByRepo(ctx context.Context, repoID int64, since time.Time) ([]model.Mention, error)
	// Prune removes mentions that are BOTH older than maxAge before now
	// AND beyond the maxPerRepo highest-scoring for their repository.
	// Returns rows removed.
	Prune(ctx context.Context, maxAge time.Duration, maxPerRepo int, now time.Time) (int64, error)
}
