package driven

import (
	"context"
	"errors"
	"time"

	"starscope/internal/domain/model"
)

// Sentinel errors returned by SnapshotStore implementations.
var (
	// ErrInvalidSnapshot indicates a snapshot whose capture time is not
	// strictly after the repository's latest snapshot.
	ErrInvalidSnapshot = errors.New("snapshot timestamp not after latest snapshot")

	// ErrNoSnapshotData indicates fewer than two snapshots exist for the
	// repository, so no delta can be computed.
	ErrNoSnapshotData = errors.New("not enough snapshot data")
)

// SnapshotStore defines the driven port for the append-only counter
// time series. Record rejects non-monotonic capture times with
// ErrInvalidSnapshot. Deltas returns ErrNoSnapshotData when fewer than
// two snapshots exist.
type SnapshotStore interface {
	Record(ctx context.Context, repoID int64, stars, forks int, at time.Time) error
	Latest(ctx context.Context, repoID int64) (*model.Snapshot, error)
	// Recent returns up to n snapshots, newest first.
	Recent(ctx context.Context, repoID int64, n int) ([]model.Snapshot, error)
	// History returns all snapshots, oldest first.
	History(ctx context.Context, repoID int64) ([]model.Snapshot, error)
	// Deltas returns the growth between the latest snapshot and the most
	// recent earlier snapshot captured at least window before it.
	Deltas(ctx context.Context, repoID int64, window time.Duration) (*model.Delta, error)
	// Prune removes snapshots that are BOTH older than maxAge before now
	// AND beyond the maxPerRepo most recent for their repository. A
	// snapshot surviving either retention pass is kept. Returns rows
	// removed.
	Prune(ctx context.Context, maxAge time.Duration, maxPerRepo int, now time.Time) (int64, error)
}
