package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MentionStore = (*MentionRepo)(nil)

// MentionRepo is the SQLite implementation of the MentionStore port interface.
type MentionRepo struct {
	db *DB
}

// NewMentionRepo creates a new MentionRepo backed by the given DB.
func NewMentionRepo(db *DB) *MentionRepo {
	return &MentionRepo{db: db}
}

// Upsert inserts a mention or, when (repo_id, source, external_id) already
// exists, refreshes its score, comment count, and fetch time.
func (r *MentionRepo) Upsert(ctx context.Context, mention model.Mention) error {
	const query = `INSERT INTO mentions
		(repo_id, source, external_id, title, url, score, comment_count, author, published_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, source, external_id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			score = excluded.score,
			comment_count = excluded.comment_count,
			fetched_at = excluded.fetched_at`

	_, err := r.db.Writer.ExecContext(ctx, query,
		mention.RepoID, string(mention.Source), mention.ExternalID,
		mention.Title, mention.URL, mention.Score, mention.CommentCount,
		mention.Author, formatNullTime(mention.PublishedAt), formatTime(mention.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert mention %s/%s for repo %d: %w",
			mention.Source, mention.ExternalID, mention.RepoID, err)
	}

	return nil
}

// RecentByRepo returns mentions fetched at or after since, highest score first.
func (r *MentionRepo) RecentByRepo(ctx context.Context, repoID int64, since time.Time) ([]model.Mention, error) {
	const query = `SELECT id, repo_id, source, external_id, title, url, score, comment_count, author, published_at, fetched_at
		FROM mentions
		WHERE repo_id = ? AND fetched_at >= ?
		ORDER BY score DESC, id ASC`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("recent mentions for repo %d: %w", repoID, err)
	}
	defer rows.Close()

	var mentions []model.Mention
	for rows.Next() {
		mention, err := scanMention(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		mentions = append(mentions, *mention)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}

	return mentions, nil
}

// Prune removes mentions that are both older than maxAge and beyond the
// maxPerRepo highest-scoring for their repository.
func (r *MentionRepo) Prune(ctx context.Context, maxAge time.Duration, maxPerRepo int, now time.Time) (int64, error) {
	cutoff := now.UTC().Add(-maxAge)

	const query = `DELETE FROM mentions WHERE fetched_at < ? AND id NOT IN (
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY repo_id ORDER BY score DESC, id ASC
			) AS rn FROM mentions
		) WHERE rn <= ?
	)`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(cutoff), maxPerRepo)
	if err != nil {
		return 0, fmt.Errorf("prune mentions: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return removed, nil
}

func scanMention(s scanner) (*model.Mention, error) {
	var mention model.Mention
	var source, fetchedAt string
	var publishedAt sql.NullString

	err := s.Scan(
		&mention.ID, &mention.RepoID, &source, &mention.ExternalID,
		&mention.Title, &mention.URL, &mention.Score, &mention.CommentCount,
		&mention.Author, &publishedAt, &fetchedAt,
	)
	if err != nil {
		return nil, err
	}

	mention.Source = model.MentionSource(source)

	if mention.PublishedAt, err = parseNullTime(publishedAt); err != nil {
		return nil, fmt.Errorf("parse published_at: %w", err)
	}
	if mention.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}

	return &mention, nil
}
