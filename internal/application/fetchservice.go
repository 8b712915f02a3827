package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// ErrInvalidRepoName indicates a watchlist entry that is not of the form
// "owner/name".
var ErrInvalidRepoName = errors.New("repository name must be owner/name")

// FetchService orchestrates the periodic star-count fetch: pull current
// counters for every tracked repository, merge the metadata, append a
// snapshot, and recompute derived metrics. It also owns the track/untrack
// use cases, since tracking starts with a validating fetch.
type FetchService struct {
	provider  *GitHubClientProvider
	repos     driven.RepoStore
	snapshots driven.SnapshotStore
	analyzer  *Analyzer
}

// NewFetchService creates a new FetchService.
func NewFetchService(
	provider *GitHubClientProvider,
	repos driven.RepoStore,
	snapshots driven.SnapshotStore,
	analyzer *Analyzer,
) *FetchService {
	return &FetchService{
		provider:  provider,
		repos:     repos,
		snapshots: snapshots,
		analyzer:  analyzer,
	}
}

// TrackRepo adds a repository to the watchlist. The repository is fetched
// first, so a typo or a private repository is rejected before anything is
// stored, and the first snapshot lands together with the metadata.
func (s *FetchService) TrackRepo(ctx context.Context, fullName string, now time.Time) (*model.Repository, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	client := s.provider.Get()
	if client == nil {
		return nil, ErrNoGitHubClient
	}

	info, err := client.FetchRepo(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", fullName, err)
	}

	repo := model.Repository{
		FullName:    info.FullName,
		Owner:       owner,
		Name:        name,
		URL:         info.URL,
		Description: info.Description,
		Language:    info.Language,
		Topics:      info.Topics,
		Stars:       info.Stars,
		Forks:       info.Forks,
		CreatedAt:   info.CreatedAt,
		AddedAt:     now,
		FetchedAt:   now,
	}

	id, err := s.repos.Add(ctx, repo)
	if err != nil {
		return nil, err
	}
	repo.ID = id

	if err := s.snapshots.Record(ctx, id, info.Stars, info.Forks, now); err != nil {
		return nil, err
	}

	slog.Info("repository tracked", "repo", repo.FullName, "stars", repo.Stars)
	return &repo, nil
}

// UntrackRepo removes a repository and all its derived data.
func (s *FetchService) UntrackRepo(ctx context.Context, fullName string) error {
	if err := s.repos.Remove(ctx, fullName); err != nil {
		return err
	}
	slog.Info("repository untracked", "repo", fullName)
	return nil
}

// RunCycle fetches every tracked repository once. A failure on one
// repository is logged and skipped; the cycle never aborts for a single
// bad repo. Permanent failures (deleted or privatized repositories) are
// called out louder than transient ones.
func (s *FetchService) RunCycle(ctx context.Context, now time.Time) error {
	if !s.provider.HasClient() {
		return ErrNoGitHubClient
	}

	start := time.Now()

	repos, err := s.repos.ListAll(ctx)
	if err != nil {
		return err
	}

	var fetchErrors int
	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.fetchRepo(ctx, repo, now); err != nil {
			fetchErrors++
			switch {
			case errors.Is(err, driven.ErrFetchPermanent):
				slog.Error("repository is gone or inaccessible, consider untracking",
					"repo", repo.FullName, "error", err)
			case errors.Is(err, driven.ErrFetchTransient):
				slog.Warn("fetch failed, will retry next cycle", "repo", repo.FullName, "error", err)
			default:
				slog.Error("fetch failed", "repo", repo.FullName, "error", err)
			}
		}
	}

	slog.Info("fetch cycle complete",
		"repos", len(repos),
		"errors", fetchErrors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// RefreshRepo fetches a single repository immediately, bypassing the cycle.
func (s *FetchService) RefreshRepo(ctx context.Context, fullName string, now time.Time) error {
	repo, err := s.repos.GetByFullName(ctx, fullName)
	if err != nil {
		return err
	}
	if repo == nil {
		return driven.ErrRepoNotFound
	}
	return s.fetchRepo(ctx, *repo, now)
}

// fetchRepo is one repository's fetch-merge-snapshot-recalculate sequence.
func (s *FetchService) fetchRepo(ctx context.Context, repo model.Repository, now time.Time) error {
	client := s.provider.Get()
	if client == nil {
		return ErrNoGitHubClient
	}

	info, err := client.FetchRepo(ctx, repo.Owner, repo.Name)
	if err != nil {
		return err
	}

	repo.URL = info.URL
	repo.Description = info.Description
	repo.Language = info.Language
	repo.Topics = info.Topics
	repo.Stars = info.Stars
	repo.Forks = info.Forks
	repo.CreatedAt = info.CreatedAt
	repo.FetchedAt = now

	if err := s.repos.UpdateFetched(ctx, repo); err != nil {
		return err
	}

	if err := s.snapshots.Record(ctx, repo.ID, info.Stars, info.Forks, now); err != nil {
		if errors.Is(err, driven.ErrInvalidSnapshot) {
			// Two triggers landed inside the same instant; counters are
			// already current.
			slog.Debug("snapshot skipped", "repo", repo.FullName, "at", now)
			return nil
		}
		return err
	}

	return s.analyzer.Recalculate(ctx, repo.ID, now)
}

func splitFullName(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoName, fullName)
	}
	return owner, name, nil
}
