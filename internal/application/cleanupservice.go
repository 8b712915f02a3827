package application

import (
	"context"
	"log/slog"
	"time"

	"starscope/internal/domain/port/driven"
)

// RetentionPolicy bounds how much derived history is kept. A row survives
// when either its age or its per-repo rank retains it.
type RetentionPolicy struct {
	SnapshotMaxAge     time.Duration
	SnapshotMaxPerRepo int
	MentionMaxAge      time.Duration
	MentionMaxPerRepo  int
}

// CleanupService applies retention to snapshots and mentions and drops
// expired signals.
type CleanupService struct {
	snapshots driven.SnapshotStore
	signals   driven.SignalStore
	mentions  driven.MentionStore
	policy    RetentionPolicy
}

// NewCleanupService creates a new CleanupService.
func NewCleanupService(
	snapshots driven.SnapshotStore,
	signals driven.SignalStore,
	mentions driven.MentionStore,
	policy RetentionPolicy,
) *CleanupService {
	return &CleanupService{
		snapshots: snapshots,
		signals:   signals,
		mentions:  mentions,
		policy:    policy,
	}
}

// Run executes one retention pass. Each table is pruned independently so
// one failure does not block the others; the first error is returned after
// all passes ran.
func (s *CleanupService) Run(ctx context.Context, now time.Time) error {
	var firstErr error

	snapshotsRemoved, err := s.snapshots.Prune(ctx, s.policy.SnapshotMaxAge, s.policy.SnapshotMaxPerRepo, now)
	if err != nil {
		slog.Error("snapshot prune failed", "error", err)
		firstErr = err
	}

	signalsRemoved, err := s.signals.DeleteExpired(ctx, now)
	if err != nil {
		slog.Error("expired signal cleanup failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	mentionsRemoved, err := s.mentions.Prune(ctx, s.policy.MentionMaxAge, s.policy.MentionMaxPerRepo, now)
	if err != nil {
		slog.Error("mention prune failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	slog.Info("cleanup complete",
		"snapshots_removed", snapshotsRemoved,
		"signals_removed", signalsRemoved,
		"mentions_removed", mentionsRemoved,
	)

	return firstErr
}
