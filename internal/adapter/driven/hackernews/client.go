// Package hackernews implements the MentionClient port against the Algolia
// Hacker News search API (https://hn.algolia.com/api).
package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"starscope/internal/domain/model"
	"starscope/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MentionClient = (*Client)(nil)

const (
	defaultBaseURL = "https://hn.algolia.com/api/v1/search"
	defaultTimeout = 10 * time.Second
	hitsPerPage    = 20
)

// Client searches Hacker News stories via the Algolia API.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a Client against the production Algolia endpoint.
func NewClient() *Client {
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a Client against a custom endpoint, for
// httptest servers.
func NewClientWithBaseURL(httpClient *http.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: baseURL}
}

// searchResponse is the subset of the Algolia response we consume.
type searchResponse struct {
	Hits []storyHit `json:"hits"`
}

type storyHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
}

// SearchMentions looks the repository up under both "owner/name" and the bare
// name, deduplicates by story id, and returns stories published at or after
// since, highest points first. A query that fails is skipped; the call errors
// only when every query failed and nothing was found.
func (c *Client) SearchMentions(ctx context.Context, repoFullName string, since time.Time) ([]model.Mention, error) {
	queries := []string{repoFullName}
	if _, name, ok := strings.Cut(repoFullName, "/"); ok && name != "" {
		queries = append(queries, name)
	}

	seen := make(map[string]bool)
	var mentions []model.Mention
	var failures int

	for _, query := range queries {
		hits, err := c.search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("searching hacker news for %s: %w", repoFullName, ctx.Err())
			}
			slog.Warn("hacker news query failed", "query", query, "error", err)
			failures++
			continue
		}

		for _, hit := range hits {
			if hit.ObjectID == "" || seen[hit.ObjectID] {
				continue
			}
			seen[hit.ObjectID] = true

			mention := mapStory(hit)
			if !since.IsZero() && mention.PublishedAt.Before(since) {
				continue
			}
			mentions = append(mentions, mention)
		}
	}

	if mentions == nil && failures == len(queries) {
		return nil, fmt.Errorf("searching hacker news for %s: all %d queries failed", repoFullName, failures)
	}

	sort.SliceStable(mentions, func(i, j int) bool {
		return mentions[i].Score > mentions[j].Score
	})

	return mentions, nil
}

func (c *Client) search(ctx context.Context, query string) ([]storyHit, error) {
	params := url.Values{
		"query":       {query},
		"tags":        {"story"},
		"hitsPerPage": {strconv.Itoa(hitsPerPage)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return body.Hits, nil
}

func mapStory(hit storyHit) model.Mention {
	publishedAt, err := time.Parse(time.RFC3339, hit.CreatedAt)
	if err != nil {
		publishedAt = time.Now().UTC()
	}

	storyURL := hit.URL
	if storyURL == "" {
		storyURL = "https://news.ycombinator.com/item?id=" + hit.ObjectID
	}

	return model.Mention{
		Source:       model.MentionHackerNews,
		ExternalID:   hit.ObjectID,
		Title:        hit.Title,
		URL:          storyURL,
		Score:        hit.Points,
		CommentCount: hit.NumComments,
		Author:       hit.Author,
		PublishedAt:  publishedAt,
	}
}
