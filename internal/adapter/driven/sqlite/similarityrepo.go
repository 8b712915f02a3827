package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SimilarityStore = (*SimilarityRepo)(nil)

// SimilarityRepo is the SQLite implementation of the SimilarityStore port
// interface. Edges are whole-table derived data: ReplaceAll clears and
// repopulates inside one transaction so readers never see a partial pass.
type SimilarityRepo struct {
	db *DB
}

// NewSimilarityRepo creates a new SimilarityRepo backed by the given DB.
func NewSimilarityRepo(db *DB) *SimilarityRepo {
	return &SimilarityRepo{db: db}
}

// ReplaceAll swaps the entire edge set in a single transaction.
func (r *SimilarityRepo) ReplaceAll(ctx context.Context, edges []model.SimilarRepo) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace similarities: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM similar_repos`); err != nil {
		return fmt.Errorf("replace similarities: clear: %w", err)
	}

	const query = `INSERT INTO similar_repos
		(repo_id, similar_repo_id, score, shared_topics, same_language, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("replace similarities: prepare: %w", err)
	}
	defer stmt.Close()

	for _, edge := range edges {
		_, err := stmt.ExecContext(ctx,
			edge.RepoID, edge.SimilarRepoID, edge.Score,
			encodeStrings(edge.SharedTopics), boolToInt(edge.SameLanguage),
			formatTime(edge.CalculatedAt),
		)
		if err != nil {
			return fmt.Errorf("replace similarities: insert %d->%d: %w",
				edge.RepoID, edge.SimilarRepoID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace similarities: commit: %w", err)
	}

	return nil
}

// NeighborsOf returns up to limit neighbors of the repository, sorted by
// similarity descending, neighbor repository id ascending on ties.
func (r *SimilarityRepo) NeighborsOf(ctx context.Context, repoID int64, limit int) ([]model.Neighbor, error) {
	const query = `SELECT s.score, s.shared_topics, s.same_language,
		r.id, r.full_name, r.owner, r.name, r.url, r.description, r.language,
		r.topics, r.stars, r.forks, r.created_at, r.added_at, r.fetched_at
		FROM similar_repos s
		JOIN repositories r ON r.id = s.similar_repo_id
		WHERE s.repo_id = ?
		ORDER BY s.score DESC, s.similar_repo_id ASC
		LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoID, limit)
	if err != nil {
		return nil, fmt.Errorf("neighbors of repo %d: %w", repoID, err)
	}
	defer rows.Close()

	var neighbors []model.Neighbor
	for rows.Next() {
		var n model.Neighbor
		var sharedTopics string
		var sameLanguage int

		// Leading edge columns, then the full repository row.
		dest := []any{&n.Score, &sharedTopics, &sameLanguage}
		repo, scanErr := scanRepositoryInto(rows, dest)
		if scanErr != nil {
			return nil, fmt.Errorf("scan neighbor: %w", scanErr)
		}

		n.Repo = *repo
		n.SharedTopics = decodeStrings(sharedTopics)
		n.SameLanguage = sameLanguage != 0
		neighbors = append(neighbors, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}

	return neighbors, nil
}

// scanRepositoryInto scans prefix destinations followed by the standard
// repository column set from a single row.
func scanRepositoryInto(s scanner, prefix []any) (*model.Repository, error) {
	var repo model.Repository
	var topics, addedAt string
	var createdAt, fetchedAt sql.NullString

	dest := append(prefix,
		&repo.ID, &repo.FullName, &repo.Owner, &repo.Name, &repo.URL,
		&repo.Description, &repo.Language, &topics, &repo.Stars, &repo.Forks,
		&createdAt, &addedAt, &fetchedAt,
	)

	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	repo.Topics = decodeStrings(topics)

	var err error
	if repo.AddedAt, err = parseTime(addedAt); err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}
	if repo.CreatedAt, err = parseNullTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if repo.FetchedAt, err = parseNullTime(fetchedAt); err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}

	return &repo, nil
}
