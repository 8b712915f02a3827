package application

import (
	"context"
	"log/slog"
	"time"

	"starscope/internal/domain/port/driven"
)

// mentionLookback bounds how far back the mention search reaches. Older
// discussions cannot feed the viral detector anyway.
const mentionLookback = 7 * day

// MentionService refreshes external discussion mentions for every tracked
// repository.
type MentionService struct {
	client   driven.MentionClient
	repos    driven.RepoStore
	mentions driven.MentionStore
}

// NewMentionService creates a new MentionService.
func NewMentionService(client driven.MentionClient, repos driven.RepoStore, mentions driven.MentionStore) *MentionService {
	return &MentionService{client: client, repos: repos, mentions: mentions}
}

// RefreshAll searches for recent mentions of every tracked repository and
// upserts them. Re-found mentions refresh their score and comment count.
// A failed search is logged and skipped.
func (s *MentionService) RefreshAll(ctx context.Context, now time.Time) error {
	repos, err := s.repos.ListAll(ctx)
	if err != nil {
		return err
	}

	since := now.Add(-mentionLookback)
	var found, searchErrors int

	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		mentions, err := s.client.SearchMentions(ctx, repo.FullName, since)
		if err != nil {
			slog.Warn("mention search failed", "repo", repo.FullName, "error", err)
			searchErrors++
			continue
		}

		for _, mention := range mentions {
			mention.RepoID = repo.ID
			mention.FetchedAt = now
			if err := s.mentions.Upsert(ctx, mention); err != nil {
				slog.Error("mention upsert failed",
					"repo", repo.FullName, "external_id", mention.ExternalID, "error", err)
				continue
			}
			found++
		}
	}

	slog.Info("mention refresh complete",
		"repos", len(repos),
		"mentions", found,
		"errors", searchErrors,
	)

	return nil
}
