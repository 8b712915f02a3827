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
var _ driven.SignalStore = (*SignalRepo)(nil)

// SignalRepo is the SQLite implementation of the SignalStore port interface.
type SignalRepo struct {
	db *DB
}

// NewSignalRepo creates a new SignalRepo backed by the given DB.
func NewSignalRepo(db *DB) *SignalRepo {
	return &SignalRepo{db: db}
}

const signalColumns = `id, repo_id, signal_type, severity, description, velocity_value, star_count, percentile_rank, detected_at, expires_at, acknowledged, acknowledged_at`

// Insert stores a newly detected signal and returns its id.
func (r *SignalRepo) Insert(ctx context.Context, signal model.Signal) (int64, error) {
	const query = `INSERT INTO signals
		(repo_id, signal_type, severity, description, velocity_value, star_count, percentile_rank, detected_at, expires_at, acknowledged, acknowledged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	result, err := r.db.Writer.ExecContext(ctx, query,
		signal.RepoID, string(signal.Type), string(signal.Severity), signal.Description,
		signal.VelocityValue, signal.StarCount, signal.PercentileRank,
		formatTime(signal.DetectedAt), formatTime(signal.ExpiresAt), boolToInt(signal.Acknowledged),
	)
	if err != nil {
		return 0, fmt.Errorf("insert signal %s for repo %d: %w", signal.Type, signal.RepoID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert signal: last insert id: %w", err)
	}

	return id, nil
}

// ActiveByRepoAndType returns the unexpired signal of the given type for the
// repository, or nil if none is active at now.
func (r *SignalRepo) ActiveByRepoAndType(ctx context.Context, repoID int64, t model.SignalType, now time.Time) (*model.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals
		WHERE repo_id = ? AND signal_type = ? AND expires_at > ?
		ORDER BY detected_at DESC LIMIT 1`

	signal, err := scanSignal(r.db.Reader.QueryRowContext(ctx, query, repoID, string(t), formatTime(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active signal %s for repo %d: %w", t, repoID, err)
	}

	return signal, nil
}

// RefreshExpiry extends an active signal's expiry after re-detection.
// Returns ErrSignalNotFound if the signal does not exist.
func (r *SignalRepo) RefreshExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	const query = `UPDATE signals SET expires_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(expiresAt), id)
	if err != nil {
		return fmt.Errorf("refresh signal %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("refresh signal %d: %w", id, driven.ErrSignalNotFound)
	}

	return nil
}

// ListActive returns all unexpired signals, newest first.
func (r *SignalRepo) ListActive(ctx context.Context, now time.Time) ([]model.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals
		WHERE expires_at > ? ORDER BY detected_at DESC`

	return r.querySignals(ctx, query, formatTime(now))
}

// ListByRepo returns all signals for one repository, newest first.
func (r *SignalRepo) ListByRepo(ctx context.Context, repoID int64) ([]model.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals
		WHERE repo_id = ? ORDER BY detected_at DESC`

	return r.querySignals(ctx, query, repoID)
}

// Acknowledge marks a signal as seen by the user.
// Returns ErrSignalNotFound if the signal does not exist.
func (r *SignalRepo) Acknowledge(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE signals SET acknowledged = 1, acknowledged_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("acknowledge signal %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("acknowledge signal %d: %w", id, driven.ErrSignalNotFound)
	}

	return nil
}

// DeleteExpired removes signals whose expiry passed before cutoff.
func (r *SignalRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM signals WHERE expires_at < ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired signals: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return removed, nil
}

func (r *SignalRepo) querySignals(ctx context.Context, query string, args ...any) ([]model.Signal, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, *signal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}

	return signals, nil
}

func scanSignal(s scanner) (*model.Signal, error) {
	var signal model.Signal
	var signalType, severity, detectedAt, expiresAt string
	var acknowledged int
	var acknowledgedAt sql.NullString

	err := s.Scan(
		&signal.ID, &signal.RepoID, &signalType, &severity, &signal.Description,
		&signal.VelocityValue, &signal.StarCount, &signal.PercentileRank,
		&detectedAt, &expiresAt, &acknowledged, &acknowledgedAt,
	)
	if err != nil {
		return nil, err
	}

	signal.Type = model.SignalType(signalType)
	signal.Severity = model.Severity(severity)
	signal.Acknowledged = acknowledged != 0

	if signal.DetectedAt, err = parseTime(detectedAt); err != nil {
		return nil, fmt.Errorf("parse detected_at: %w", err)
	}
	if signal.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if signal.AcknowledgedAt, err = parseNullTimePtr(acknowledgedAt); err != nil {
		return nil, fmt.Errorf("parse acknowledged_at: %w", err)
	}

	return &signal, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
