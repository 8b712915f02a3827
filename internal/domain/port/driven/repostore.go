// Package driven defines the ports the application core drives:
// persistence stores and external data clients.
package driven

import (
	"context"
	"errors"

	"starscope/internal/domain/model"
)

// Sentinel errors returned by RepoStore implementations.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadyExists indicates a repository with the same full name
	// is already on the watchlist.
	ErrRepoAlreadyExists = errors.New("repository already exists")
)

// RepoStore defines the driven port for watchlist persistence.
// Add returns ErrRepoAlreadyExists on duplicate full names.
// Remove returns ErrRepoNotFound when absent; removal cascades to all
// derived rows (snapshots, metrics, signals, scores, alerts, mentions).
type RepoStore interface {
	Add(ctx context.Context, repo model.Repository) (int64, error)
	Remove(ctx context.Context, fullName string) error
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
	GetByID(ctx context.Context, id int64) (*model.Repository, error)
	ListAll(ctx context.Context) ([]model.Repository, error)
	// UpdateFetched merges freshly fetched metadata and counters into the
	// stored repository and stamps FetchedAt.
	UpdateFetched(ctx context.Context, repo model.Repository) error
}
