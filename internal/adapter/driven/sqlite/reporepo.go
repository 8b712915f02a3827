package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

const repoColumns = `id, full_name, owner, name, url, description, language, topics, stars, forks, created_at, added_at, fetched_at`

// Add inserts a new repository and returns its id. Returns
// ErrRepoAlreadyExists if a repository with the same full_name exists.
func (r *RepoRepo) Add(ctx context.Context, repo model.Repository) (int64, error) {
	const query = `INSERT INTO repositories
		(full_name, owner, name, url, description, language, topics, stars, forks, created_at, added_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	addedAt := repo.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		repo.FullName, repo.Owner, repo.Name, repo.URL, repo.Description,
		repo.Language, encodeStrings(repo.Topics), repo.Stars, repo.Forks,
		formatNullTime(repo.CreatedAt), formatTime(addedAt), formatNullTime(repo.FetchedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return 0, fmt.Errorf("add repository %s: %w", repo.FullName, driven.ErrRepoAlreadyExists)
		}
		return 0, fmt.Errorf("add repository %s: %w", repo.FullName, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add repository %s: last insert id: %w", repo.FullName, err)
	}

	return id, nil
}

// Remove deletes a repository by full name. Returns ErrRepoNotFound if the
// repository does not exist. Foreign key cascades delete all snapshots,
// metrics, signals, scores, alerts, and mentions for the repository.
func (r *RepoRepo) Remove(ctx context.Context, fullName string) error {
	const query = `DELETE FROM repositories WHERE full_name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, fullName)
	if err != nil {
		return fmt.Errorf("remove repository %s: %w", fullName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("remove repository %s: %w", fullName, driven.ErrRepoNotFound)
	}

	return nil
}

// GetByFullName retrieves a repository by its full name. Returns nil, nil if
// the repository does not exist.
func (r *RepoRepo) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE full_name = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, fullName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}

	return repo, nil
}

// GetByID retrieves a repository by id. Returns nil, nil if it does not exist.
func (r *RepoRepo) GetByID(ctx context.Context, id int64) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE id = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %d: %w", id, err)
	}

	return repo, nil
}

// ListAll returns all repositories ordered by full name.
func (r *RepoRepo) ListAll(ctx context.Context) ([]model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories ORDER BY full_name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// UpdateFetched merges freshly fetched metadata and counters into the stored
// repository and stamps fetched_at. Returns ErrRepoNotFound if absent.
func (r *RepoRepo) UpdateFetched(ctx context.Context, repo model.Repository) error {
	const query = `UPDATE repositories
		SET url = ?, description = ?, language = ?, topics = ?, stars = ?, forks = ?, created_at = ?, fetched_at = ?
		WHERE id = ?`

	fetchedAt := repo.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		repo.URL, repo.Description, repo.Language, encodeStrings(repo.Topics),
		repo.Stars, repo.Forks, formatNullTime(repo.CreatedAt), formatTime(fetchedAt),
		repo.ID,
	)
	if err != nil {
		return fmt.Errorf("update repository %d: %w", repo.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update repository %d: %w", repo.ID, driven.ErrRepoNotFound)
	}

	return nil
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var topics, addedAt string
	var createdAt, fetchedAt sql.NullString

	err := s.Scan(
		&repo.ID, &repo.FullName, &repo.Owner, &repo.Name, &repo.URL,
		&repo.Description, &repo.Language, &topics, &repo.Stars, &repo.Forks,
		&createdAt, &addedAt, &fetchedAt,
	)
	if err != nil {
		return nil, err
	}

	repo.Topics = decodeStrings(topics)

	repo.AddedAt, err = parseTime(addedAt)
	if err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}

	repo.CreatedAt, err = parseNullTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	repo.FetchedAt, err = parseNullTime(fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}

	return &repo, nil
}
