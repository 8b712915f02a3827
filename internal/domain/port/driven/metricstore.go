package driven

import (
	"context"

	"starscope/internal/domain/model"
)

// MetricStore defines the driven port for derived per-repository metrics.
// Upsert replaces the existing (repository, type) row if present.
type MetricStore interface {
	Upsert(ctx context.Context, metric model.Metric) error
	// Latest returns the current value of one metric for one repository,
	// or nil if it has never been calculated.
	Latest(ctx context.Context, repoID int64, t model.MetricType) (*model.Metric, error)
	// LatestByType returns the current value of one metric across all
	// repositories, ordered by repository id ascending.
	LatestByType(ctx context.Context, t model.MetricType) ([]model.Metric, error)
}
