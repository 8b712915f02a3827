package application

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Similarity weighting. Topic overlap dominates; language match and star
// magnitude proximity refine the ordering.
const (
	similarityTopicWeight    = 0.6
	similarityLanguageWeight = 0.3
	similaritySizeWeight     = 0.1

	// Edges scoring below this are not worth surfacing and are dropped.
	similarityMinScore = 0.1

	// Star magnitudes more than this many orders apart score zero on the
	// size component.
	similarityMaxMagnitudeGap = 3.0
)

// SimilarityService recomputes the pairwise similarity graph over the
// watchlist. Every pass replaces the whole edge set atomically.
type SimilarityService struct {
	repos driven.RepoStore
	edges driven.SimilarityStore
}

// NewSimilarityService creates a new SimilarityService.
func NewSimilarityService(repos driven.RepoStore, edges driven.SimilarityStore) *SimilarityService {
	return &SimilarityService{repos: repos, edges: edges}
}

// RecomputeAll scores every unordered pair of tracked repositories and
// replaces the stored edge set with both directions of each pair that
// clears the minimum score.
func (s *SimilarityService) RecomputeAll(ctx context.Context, now time.Time) error {
	repos, err := s.repos.ListAll(ctx)
	if err != nil {
		return err
	}

	var edges []model.SimilarRepo
	for i := 0; i < len(repos); i++ {
		for j := i + 1; j < len(repos); j++ {
			score, shared, sameLang := SimilarityBetween(repos[i], repos[j])
			if score < similarityMinScore {
				continue
			}

			edges = append(edges,
				model.SimilarRepo{
					RepoID: repos[i].ID, SimilarRepoID: repos[j].ID,
					Score: score, SharedTopics: shared, SameLanguage: sameLang,
					CalculatedAt: now,
				},
				model.SimilarRepo{
					RepoID: repos[j].ID, SimilarRepoID: repos[i].ID,
					Score: score, SharedTopics: shared, SameLanguage: sameLang,
					CalculatedAt: now,
				},
			)
		}
	}

	if err := s.edges.ReplaceAll(ctx, edges); err != nil {
		return err
	}

	slog.Info("similarity graph recomputed", "repos", len(repos), "edges", len(edges))
	return nil
}

// Neighbors returns the repository's most similar neighbors.
func (s *SimilarityService) Neighbors(ctx context.Context, repoID int64, limit int) ([]model.Neighbor, error) {
	repo, err := s.repos.GetByID(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, driven.ErrRepoNotFound
	}
	return s.edges.NeighborsOf(ctx, repoID, limit)
}

// SimilarityBetween scores how alike two repositories are, 0 to 1. The
// score is symmetric. Shared topics are returned sorted and lowercased.
func SimilarityBetween(a, b model.Repository) (score float64, sharedTopics []string, sameLanguage bool) {
	topicScore, shared := topicOverlap(a.Topics, b.Topics)

	sameLanguage = a.Language != "" && strings.EqualFold(a.Language, b.Language)
	var languageScore float64
	if sameLanguage {
		languageScore = 1
	}

	score = similarityTopicWeight*topicScore +
		similarityLanguageWeight*languageScore +
		similaritySizeWeight*sizeProximity(a.Stars, b.Stars)

	return score, shared, sameLanguage
}

// topicOverlap is the Jaccard index of the lowercased topic sets.
func topicOverlap(a, b []string) (float64, []string) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}

	setA := make(map[string]bool, len(a))
	for _, topic := range a {
		setA[strings.ToLower(topic)] = true
	}

	seen := make(map[string]bool, len(b))
	var shared []string
	for _, topic := range b {
		lower := strings.ToLower(topic)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		if setA[lower] {
			shared = append(shared, lower)
		}
	}

	union := len(setA) + len(seen) - len(shared)
	sort.Strings(shared)
	return float64(len(shared)) / float64(union), shared
}

// sizeProximity compares star counts on a log scale: repositories within
// the same order of magnitude score close to 1, three or more orders
// apart score 0.
func sizeProximity(starsA, starsB int) float64 {
	gap := math.Abs(log10Stars(starsA) - log10Stars(starsB))
	return 1 - math.Min(gap, similarityMaxMagnitudeGap)/similarityMaxMagnitudeGap
}

func log10Stars(stars int) float64 {
	if stars < 1 {
		stars = 1
	}
	return math.Log10(float64(stars))
}
