package driven

import (
	"context"

	"starscope/internal/domain/model"
)

// HealthScoreStore defines the driven port for composite health scores.
// Replace swaps the repository's entire score row in one atomic write;
// partial sub-score updates are not possible through this port.
type HealthScoreStore interface {
	Replace(ctx context.Context, score model.HealthScore) error
	// GetByRepo returns the current score, or nil if never calculated.
	GetByRepo(ctx context.Context, repoID int64) (*model.HealthScore, error)
}
