package driven

import (
	"context"

	"starscope/internal/domain/model"
)

// SimilarityStore defines the driven port for cached similarity edges.
// ReplaceAll clears the table and inserts the given edges in a single
// transaction, so readers never observe a half-finished pass.
type SimilarityStore interface {
	ReplaceAll(ctx context.Context, edges []model.SimilarRepo) error
	// NeighborsOf returns up to limit neighbors of the repository, sorted
	// by similarity descending, neighbor repository id ascending on ties.
	NeighborsOf(ctx context.Context, repoID int64, limit int) ([]model.Neighbor, error)
}
