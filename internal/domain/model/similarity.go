package model

import "time"

// SimilarRepo is one directed edge of the pairwise similarity computation:
// how close SimilarRepoID is to RepoID. Edges are derived data, recomputed
// wholesale each similarity pass (both directions of every retained pair).
type SimilarRepo struct {
	RepoID        int64
	SimilarRepoID int64
	Score         float64
	SharedTopics  []string
	SameLanguage  bool
	CalculatedAt  time.Time
}

// Neighbor is a similarity edge joined with the neighboring repository,
// as returned to the presentation layer.
type Neighbor struct {
	Repo         Repository
	Score        float64
	SharedTopics []string
	SameLanguage bool
}
