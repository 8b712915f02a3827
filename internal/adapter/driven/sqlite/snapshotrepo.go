package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*SnapshotRepo)(nil)

// SnapshotRepo is the SQLite implementation of the SnapshotStore port
// interface. The snapshots table is append-only: rows are inserted with
// strictly increasing capture times per repository and removed only by
// retention pruning.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new SnapshotRepo backed by the given DB.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Record appends one snapshot. Returns ErrInvalidSnapshot if at is not
// strictly after the repository's latest snapshot.
func (r *SnapshotRepo) Record(ctx context.Context, repoID int64, stars, forks int, at time.Time) error {
	latest, err := r.Latest(ctx, repoID)
	if err != nil {
		return err
	}
	if latest != nil && !at.After(latest.CapturedAt) {
		return fmt.Errorf("record snapshot for repo %d at %s: %w",
			repoID, at.UTC().Format(time.RFC3339), driven.ErrInvalidSnapshot)
	}

	const query = `INSERT INTO snapshots (repo_id, stars, forks, captured_at) VALUES (?, ?, ?, ?)`

	if _, err := r.db.Writer.ExecContext(ctx, query, repoID, stars, forks, formatTime(at)); err != nil {
		return fmt.Errorf("record snapshot for repo %d: %w", repoID, err)
	}

	return nil
}

// Latest returns the most recent snapshot, or nil if none exist.
func (r *SnapshotRepo) Latest(ctx context.Context, repoID int64) (*model.Snapshot, error) {
	const query = `SELECT id, repo_id, stars, forks, captured_at FROM snapshots
		WHERE repo_id = ? ORDER BY captured_at DESC LIMIT 1`

	snap, err := scanSnapshot(r.db.Reader.QueryRowContext(ctx, query, repoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for repo %d: %w", repoID, err)
	}

	return snap, nil
}

// Recent returns up to n snapshots, newest first.
func (r *SnapshotRepo) Recent(ctx context.Context, repoID int64, n int) ([]model.Snapshot, error) {
	const query = `SELECT id, repo_id, stars, forks, captured_at FROM snapshots
		WHERE repo_id = ? ORDER BY captured_at DESC LIMIT ?`

	return r.querySnapshots(ctx, query, repoID, n)
}

// History returns all snapshots for the repository, oldest first.
func (r *SnapshotRepo) History(ctx context.Context, repoID int64) ([]model.Snapshot, error) {
	const query = `SELECT id, repo_id, stars, forks, captured_at FROM snapshots
		WHERE repo_id = ? ORDER BY captured_at ASC`

	return r.querySnapshots(ctx, query, repoID)
}

// Deltas returns the star growth between the latest snapshot and the most
// recent earlier snapshot captured at least window before it. Returns
// ErrNoSnapshotData when fewer than two snapshots exist or none spans the
// window.
func (r *SnapshotRepo) Deltas(ctx context.Context, repoID int64, window time.Duration) (*model.Delta, error) {
	latest, err := r.Latest(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("deltas for repo %d: %w", repoID, driven.ErrNoSnapshotData)
	}

	cutoff := latest.CapturedAt.Add(-window)

	const query = `SELECT id, repo_id, stars, forks, captured_at FROM snapshots
		WHERE repo_id = ? AND captured_at <= ? ORDER BY captured_at DESC LIMIT 1`

	earliest, err := scanSnapshot(r.db.Reader.QueryRowContext(ctx, query, repoID, formatTime(cutoff)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deltas for repo %d: %w", repoID, driven.ErrNoSnapshotData)
	}
	if err != nil {
		return nil, fmt.Errorf("deltas for repo %d: %w", repoID, err)
	}
	if earliest.ID == latest.ID {
		return nil, fmt.Errorf("deltas for repo %d: %w", repoID, driven.ErrNoSnapshotData)
	}

	return &model.Delta{
		Earliest:  *earliest,
		Latest:    *latest,
		StarDelta: latest.Stars - earliest.Stars,
		Elapsed:   latest.CapturedAt.Sub(earliest.CapturedAt),
	}, nil
}

// Prune removes snapshots that are both older than maxAge and beyond the
// maxPerRepo most recent for their repository. Age-based and count-based
// retention are independent: surviving either keeps the row.
func (r *SnapshotRepo) Prune(ctx context.Context, maxAge time.Duration, maxPerRepo int, now time.Time) (int64, error) {
	cutoff := now.UTC().Add(-maxAge)

	// Rank snapshots newest-first within each repository; delete only rows
	// failing both retention passes.
	const query = `DELETE FROM snapshots WHERE captured_at < ? AND id NOT IN (
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY repo_id ORDER BY captured_at DESC
			) AS rn FROM snapshots
		) WHERE rn <= ?
	)`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(cutoff), maxPerRepo)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return removed, nil
}

func (r *SnapshotRepo) querySnapshots(ctx context.Context, query string, args ...any) ([]model.Snapshot, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, nil
}

func scanSnapshot(s scanner) (*model.Snapshot, error) {
	var snap model.Snapshot
	var capturedAt string

	if err := s.Scan(&snap.ID, &snap.RepoID, &snap.Stars, &snap.Forks, &capturedAt); err != nil {
		return nil, err
	}

	var err error
	snap.CapturedAt, err = parseTime(capturedAt)
	if err != nil {
		return nil, fmt.Errorf("parse captured_at: %w", err)
	}

	return &snap, nil
}
