// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

const (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxElapsed      = 30 * time.Second
)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client

	retryInitial    time.Duration
	retryMaxElapsed time.Duration
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:              client,
		retryInitial:    retryInitialInterval,
		retryMaxElapsed: retryMaxElapsed,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Fast retry settings keep transient-failure tests quick.
	return &Client{
		gh:              client,
		retryInitial:    10 * time.Millisecond,
		retryMaxElapsed: 250 * time.Millisecond,
	}, nil
}

// FetchRepo retrieves the repository's current metadata and counters. Transient
// failures are retried with exponential backoff; the returned error carries
// ErrFetchPermanent or ErrFetchTransient so the caller can decide whether the
// repository is worth retrying on a later pass.
func (c *Client) FetchRepo(ctx context.Context, owner, name string) (*model.RepoInfo, error) {
	var repo *gh.Repository

	err := c.withRetry(ctx, func() error {
		r, resp, err := c.gh.Repositories.Get(ctx, owner, name)
		if err != nil {
			return err
		}
		logRateLimit(resp, owner+"/"+name, 0, 1)
		repo = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, name, err)
	}

	return mapRepoInfo(repo), nil
}

// FetchHealthMetrics gathers the raw inputs to health scoring. Each endpoint
// is best-effort: a failing group is logged and reported as missing data via
// the Has* flags rather than failing the whole fetch, matching the behavior
// of scoring a repository with issues disabled or no releases. Only context
// cancellation aborts.
func (c *Client) FetchHealthMetrics(ctx context.Context, owner, name string) (*model.HealthMetrics, error) {
	metrics := &model.HealthMetrics{}
	fullName := owner + "/" + name

	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetching health metrics for %s: %w", fullName, ctx.Err())
		}
		slog.Warn("health metrics repo fetch failed", "repo", fullName, "error", err)
	} else {
		logRateLimit(resp, fullName+"/health", 0, 1)
		metrics.HasLicense = repo.GetLicense() != nil
		metrics.OpenIssues = repo.GetOpenIssuesCount()
	}

	c.collectIssueMetrics(ctx, owner, name, metrics)
	c.collectPullMetrics(ctx, owner, name, metrics)
	c.collectReleaseMetrics(ctx, owner, name, metrics)
	c.collectContributorMetrics(ctx, owner, name, metrics)
	c.collectCommunityFiles(ctx, owner, name, metrics)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("fetching health metrics for %s: %w", fullName, ctx.Err())
	}

	return metrics, nil
}

// collectIssueMetrics counts open/closed issues and averages time-to-close
// over the most recently updated page. The issues endpoint also returns pull
// requests; those are filtered out.
func (c *Client) collectIssueMetrics(ctx context.Context, owner, name string, metrics *model.HealthMetrics) {
	issues, _, err := c.gh.Issues.ListByRepo(ctx, owner, name, &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		slog.Warn("health metrics issue fetch failed", "repo", owner+"/"+name, "error", err)
		return
	}

	var open, closed int
	var totalHours float64
	var closedWithTimes int

	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		switch issue.GetState() {
		case "open":
			open++
		case "closed":
			closed++
			created := issue.GetCreatedAt().Time
			closedAt := issue.GetClosedAt().Time
			if !created.IsZero() && closedAt.After(created) {
				totalHours += closedAt.Sub(created).Hours()
				closedWithTimes++
			}
		}
	}

	metrics.OpenIssues = open
	metrics.ClosedIssues = closed
	if closedWithTimes > 0 {
		metrics.AvgIssueResponseHours = totalHours / float64(closedWithTimes)
		metrics.HasIssueData = true
	}
}

func (c *Client) collectPullMetrics(ctx context.Context, owner, name string, metrics *model.HealthMetrics) {
	pulls, _, err := c.gh.PullRequests.List(ctx, owner, name, &gh.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		slog.Warn("health metrics pull fetch failed", "repo", owner+"/"+name, "error", err)
		return
	}

	for _, pr := range pulls {
		switch {
		case !pr.GetMergedAt().IsZero():
			metrics.MergedPRs++
		case pr.GetState() == "closed":
			metrics.ClosedPRs++
		default:
			metrics.OpenPRs++
		}
	}
}

func (c *Client) collectReleaseMetrics(ctx context.Context, owner, name string, metrics *model.HealthMetrics) {
	releases, _, err := c.gh.Repositories.ListReleases(ctx, owner, name, &gh.ListOptions{PerPage: 30})
	if err != nil {
		slog.Warn("health metrics release fetch failed", "repo", owner+"/"+name, "error", err)
		return
	}

	now := time.Now().UTC()
	oneYearAgo := now.AddDate(-1, 0, 0)

	for _, release := range releases {
		if release.GetDraft() {
			continue
		}
		published := release.GetPublishedAt().Time
		if published.IsZero() {
			continue
		}
		if !metrics.HasReleaseData {
			// Releases come newest first; the first non-draft is the latest.
			metrics.DaysSinceLastRelease = int(now.Sub(published).Hours() / 24)
			metrics.HasReleaseData = true
		}
		if published.After(oneYearAgo) {
			metrics.ReleasesLastYear++
		}
	}
}

func (c *Client) collectContributorMetrics(ctx context.Context, owner, name string, metrics *model.HealthMetrics) {
	contributors, _, err := c.gh.Repositories.ListContributors(ctx, owner, name, &gh.ListContributorsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		slog.Warn("health metrics contributor fetch failed", "repo", owner+"/"+name, "error", err)
		return
	}

	metrics.ContributorCount = len(contributors)
	if len(contributors) == 0 {
		return
	}

	var total int
	for _, contributor := range contributors {
		total += contributor.GetContributions()
	}
	if total > 0 {
		// Contributors come ordered by contribution count descending.
		metrics.TopContributorPercentage = float64(contributors[0].GetContributions()) / float64(total) * 100
	}
}

func (c *Client) collectCommunityFiles(ctx context.Context, owner, name string, metrics *model.HealthMetrics) {
	community, _, err := c.gh.Repositories.GetCommunityHealthMetrics(ctx, owner, name)
	if err != nil {
		slog.Warn("health metrics community fetch failed", "repo", owner+"/"+name, "error", err)
		return
	}

	files := community.GetFiles()
	if files == nil {
		return
	}

	metrics.HasReadme = files.Readme != nil
	metrics.HasContributing = files.Contributing != nil
	if files.License != nil {
		metrics.HasLicense = true
	}
}

// withRetry runs op with exponential backoff, stopping early on failures
// that retrying cannot fix. The error that escapes carries the appropriate
// classification sentinel.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.MaxElapsedTime = c.retryMaxElapsed

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(fmt.Errorf("%w: %v", driven.ErrFetchPermanent, err))
		}
		return err
	}, backoff.WithContext(bo, ctx))

	if err == nil || errors.Is(err, driven.ErrFetchPermanent) {
		return err
	}
	return fmt.Errorf("%w: %v", driven.ErrFetchTransient, err)
}

// isPermanent reports whether the API error cannot be fixed by retrying:
// the repository is gone, the token is bad, or access is denied. Secondary
// rate limits (403 with an abuse marker) are handled by the rate limit
// transport before they get here.
func isPermanent(err error) bool {
	var errResp *gh.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Response == nil {
		return false
	}

	switch errResp.Response.StatusCode {
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden, http.StatusGone:
		return true
	}
	return false
}

// mapRepoInfo converts a go-github Repository to the domain fetch result.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapRepoInfo(repo *gh.Repository) *model.RepoInfo {
	return &model.RepoInfo{
		FullName:    repo.GetFullName(),
		URL:         repo.GetHTMLURL(),
		Description: repo.GetDescription(),
		Language:    repo.GetLanguage(),
		Topics:      repo.Topics,
		Stars:       repo.GetStargazersCount(),
		Forks:       repo.GetForksCount(),
		CreatedAt:   repo.GetCreatedAt().Time,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
