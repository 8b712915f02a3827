package model

import "time"

// Snapshot is an immutable point-in-time counter reading for one repository.
// Snapshots are append-only: per repository, CapturedAt is strictly
// increasing in insertion order, and rows are removed only by retention
// pruning, never mutated.
type Snapshot struct {
	ID         int64
	RepoID     int64
	Stars      int
	Forks      int
	CapturedAt time.Time
}

// Delta describes star growth between the most recent snapshot pair
// spanning at least the requested window.
type Delta struct {
	Earliest  Snapshot
	Latest    Snapshot
	StarDelta int
	Elapsed   time.Duration
}
