package model

import "time"

// MentionSource identifies where an external mention was found.
type MentionSource string

const (
	MentionHackerNews MentionSource = "hacker_news"
)

// Mention is an external discussion referencing a tracked repository,
// unique per (repository, source, external id). Mentions feed the
// viral_mention detector and are pruned by age and per-repo count.
type Mention struct {
	ID           int64
	RepoID       int64
	Source       MentionSource
	ExternalID   string
	Title        string
	URL          string
	Score        int
	CommentCount int
	Author       string
	PublishedAt  time.Time
	FetchedAt    time.Time
}
