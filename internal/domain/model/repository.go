// Package model contains the domain entities of the StarScope core.
package model

import "time"

// Repository is a GitHub repository on the user's watchlist.
// Static attributes and counters are refreshed on every successful fetch.
type Repository struct {
	ID          int64
	FullName    string
	Owner       string
	Name        string
	URL         string
	Description string
	Language    string
	Topics      []string
	Stars       int
	Forks       int
	CreatedAt   time.Time // repository creation date on GitHub
	AddedAt     time.Time // when the user added it to the watchlist
	FetchedAt   time.Time // last successful counter fetch; zero if never fetched
}

// RepoInfo is the slice of repository metadata returned by a single
// fetch against the hosting provider. The fetch service merges it into
// the stored Repository and records a Snapshot from the counters.
type RepoInfo struct {
	FullName    string
	URL         string
	Description string
	Language    string
	Topics      []string
	Stars       int
	Forks       int
	CreatedAt   time.Time
}
