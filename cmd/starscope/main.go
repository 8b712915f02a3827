package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "starscope/internal/adapter/driven/github"
	"starscope/internal/adapter/driven/hackernews"
	sqliteadapter "starscope/internal/adapter/driven/sqlite"
	httphandler "starscope/internal/adapter/driving/http"
	"starscope/internal/application"
	"starscope/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load .env if present, then configuration from the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"fetch_interval", cfg.FetchInterval,
		"has_token", cfg.HasGitHubToken(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire store adapters.
	repoStore := sqliteadapter.NewRepoRepo(db)
	snapshotStore := sqliteadapter.NewSnapshotRepo(db)
	metricStore := sqliteadapter.NewMetricRepo(db)
	signalStore := sqliteadapter.NewSignalRepo(db)
	healthStore := sqliteadapter.NewHealthScoreRepo(db)
	similarityStore := sqliteadapter.NewSimilarityRepo(db)
	alertStore := sqliteadapter.NewAlertRepo(db)
	mentionStore := sqliteadapter.NewMentionRepo(db)

	// 6. Create the GitHub client. Without a token the app starts with an
	// empty provider and the fetch jobs stay idle.
	provider := application.NewGitHubClientProvider(nil)
	if cfg.HasGitHubToken() {
		provider.Replace(githubadapter.NewClient(cfg.GitHubToken))
		slog.Info("github client created")
	} else {
		slog.Info("no github token configured, fetching disabled")
	}

	hnClient := hackernews.NewClient()

	// 7. Wire application services.
	analyzer := application.NewAnalyzer(snapshotStore, metricStore)
	fetchSvc := application.NewFetchService(provider, repoStore, snapshotStore, analyzer)
	detector := application.NewDetector(repoStore, snapshotStore, metricStore, mentionStore, signalStore)
	healthSvc := application.NewHealthService(provider, repoStore, metricStore, healthStore)
	similaritySvc := application.NewSimilarityService(repoStore, similarityStore)
	alertSvc := application.NewAlertService(alertStore, repoStore, metricStore)
	mentionSvc := application.NewMentionService(hnClient, repoStore, mentionStore)
	cleanupSvc := application.NewCleanupService(snapshotStore, signalStore, mentionStore, application.RetentionPolicy{
		SnapshotMaxAge:     cfg.SnapshotMaxAge,
		SnapshotMaxPerRepo: cfg.SnapshotMaxPerRepo,
		MentionMaxAge:      cfg.MentionMaxAge,
		MentionMaxPerRepo:  cfg.MentionMaxPerRepo,
	})

	// 8. Register scheduled jobs. The fetch job chains detection and
	// similarity so signals reflect the counters just fetched; health
	// scoring rides the same pass. Mentions and alerts run on their own
	// cadence, cleanup daily.
	scheduler := application.NewScheduler()

	fetchJob := func(ctx context.Context, now time.Time) error {
		if err := fetchSvc.RunCycle(ctx, now); err != nil {
			return err
		}
		if err := detector.DetectAll(ctx, now); err != nil {
			return err
		}
		if err := similaritySvc.RecomputeAll(ctx, now); err != nil {
			return err
		}
		return healthSvc.RescoreAll(ctx, now)
	}
	jobs := []struct {
		name         string
		interval     time.Duration
		initialDelay time.Duration
		fn           application.JobFunc
	}{
		{"fetch", cfg.FetchInterval, 0, fetchJob},
		{"mentions", cfg.MentionInterval, 2 * time.Minute, func(ctx context.Context, now time.Time) error {
			return mentionSvc.RefreshAll(ctx, now)
		}},
		{"alerts", cfg.AlertInterval, time.Minute, func(ctx context.Context, now time.Time) error {
			_, err := alertSvc.EvaluateAll(ctx, now)
			return err
		}},
		{"cleanup", cfg.CleanupInterval, 5 * time.Minute, func(ctx context.Context, now time.Time) error {
			return cleanupSvc.Run(ctx, now)
		}},
	}
	for _, j := range jobs {
		if err := scheduler.Register(j.name, j.interval, j.initialDelay, j.fn); err != nil {
			return err
		}
	}
	go scheduler.Start(ctx)

	// 9. Create HTTP handler and server.
	apiHandler := httphandler.NewHandler(
		repoStore, snapshotStore, metricStore, signalStore, healthStore, alertStore,
		fetchSvc, healthSvc, similaritySvc, alertSvc, scheduler, slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("starscope started",
		"listen_addr", cfg.ListenAddr,
		"fetch_interval", cfg.FetchInterval,
	)

	// 10. Wait for shutdown signal, then drain the HTTP server.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
