// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken string
	ListenAddr  string
	DBPath      string

	FetchInterval   time.Duration
	MentionInterval time.Duration
	AlertInterval   time.Duration
	CleanupInterval time.Duration

	SnapshotMaxAge     time.Duration
	SnapshotMaxPerRepo int
	MentionMaxAge      time.Duration
	MentionMaxPerRepo  int
}

// HasGitHubToken returns true when a token is configured. Used by the
// composition root to decide whether to create a real GitHub client at
// startup or start with a nil client in the provider.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a
// validated Config. STARSCOPE_GITHUB_TOKEN is optional; without it the app
// starts but fetching is inactive until a token is provided.
// Optional variables with defaults: STARSCOPE_LISTEN_ADDR (127.0.0.1:8090),
// STARSCOPE_DB_PATH (starscope.db), STARSCOPE_FETCH_INTERVAL (30m),
// STARSCOPE_MENTION_INTERVAL (30m), STARSCOPE_ALERT_INTERVAL (30m),
// STARSCOPE_CLEANUP_INTERVAL (24h), STARSCOPE_SNAPSHOT_MAX_AGE (2160h),
// STARSCOPE_SNAPSHOT_MAX_PER_REPO (365), STARSCOPE_MENTION_MAX_AGE (720h),
// STARSCOPE_MENTION_MAX_PER_REPO (50).
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken: os.Getenv("STARSCOPE_GITHUB_TOKEN"),
		ListenAddr:  "127.0.0.1:8090",
		DBPath:      "starscope.db",

		FetchInterval:   30 * time.Minute,
		MentionInterval: 30 * time.Minute,
		AlertInterval:   30 * time.Minute,
		CleanupInterval: 24 * time.Hour,

		SnapshotMaxAge:     90 * 24 * time.Hour,
		SnapshotMaxPerRepo: 365,
		MentionMaxAge:      30 * 24 * time.Hour,
		MentionMaxPerRepo:  50,
	}

	if v, ok := os.LookupEnv("STARSCOPE_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("STARSCOPE_DB_PATH"); ok {
		cfg.DBPath = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"STARSCOPE_FETCH_INTERVAL", &cfg.FetchInterval},
		{"STARSCOPE_MENTION_INTERVAL", &cfg.MentionInterval},
		{"STARSCOPE_ALERT_INTERVAL", &cfg.AlertInterval},
		{"STARSCOPE_CLEANUP_INTERVAL", &cfg.CleanupInterval},
		{"STARSCOPE_SNAPSHOT_MAX_AGE", &cfg.SnapshotMaxAge},
		{"STARSCOPE_MENTION_MAX_AGE", &cfg.MentionMaxAge},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s has invalid duration %q: %w", d.key, v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %q", d.key, v)
		}
		*d.dst = parsed
	}

	counts := []struct {
		key string
		dst *int
	}{
		{"STARSCOPE_SNAPSHOT_MAX_PER_REPO", &cfg.SnapshotMaxPerRepo},
		{"STARSCOPE_MENTION_MAX_PER_REPO", &cfg.MentionMaxPerRepo},
	}
	for _, c := range counts {
		v, ok := os.LookupEnv(c.key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer, got %q", c.key, v)
		}
		*c.dst = parsed
	}

	return cfg, nil
}
