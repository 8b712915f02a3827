package driven

import (
	"context"
	"errors"
	"time"

	"starscope/internal/domain/model"
)

// ErrSignalNotFound indicates the requested signal does not exist.
var ErrSignalNotFound = errors.New("signal not found")

// SignalStore defines the driven port for detected early signals.
type SignalStore interface {
	Insert(ctx context.Context, signal model.Signal) (int64, error)
	// ActiveByRepoAndType returns the unexpired signal of the given type
	// for the repository, or nil if none is active at now.
	ActiveByRepoAndType(ctx context.Context, repoID int64, t model.SignalType, now time.Time) (*model.Signal, error)
	// RefreshExpiry extends an active signal's expiry after re-detection.
	RefreshExpiry(ctx context.Context, id int64, expiresAt time.Time) error
	// ListActive returns all unexpired signals, newest first.
	ListActive(ctx context.Context, now time.Time) ([]model.Signal, error)
	ListByRepo(ctx context.Context, repoID int64) ([]model.Signal, error)
	Acknowledge(ctx context.Context, id int64, at time.Time) error
	// DeleteExpired removes signals whose expiry passed before cutoff.
	// Returns rows removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
