package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/demon607/Summarization-Service-Build/internal/config"
	"github.com/demon607/Summarization-Service-Build/internal/events"
	"github.com/demon607/Summarization-Service-Build/internal/fetch"
	"github.com/demon607/Summarization-Service-Build/internal/queue"
	"github.com/demon607/Summarization-Service-Build/internal/ratelimit"
	"github.com/demon607/Summarization-Service-Build/internal/refresh"
	"github.com/demon607/Summarization-Service-Build/internal/safeurl"
	"github.com/demon607/Summarization-Service-Build/internal/server"
	"github.com/demon607/Summarization-Service-Build/internal/service"
	"github.com/demon607/Summarization-Service-Build/internal/store"
	"github.com/demon607/Summarization-Service-Build/internal/summarize"
	"github.com/demon607/Summarization-Service-Build/internal/view"
)

var (
	logger *zap.Logger
	debug  bool
)

var rootCmd = &cobra.Command{
	Use:   "summarizerd",
	Short: "summarizerd - article summarization service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server, processing queue, and poll refresher",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	articles, err := store.OpenSQLite(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer articles.Close()

	snapshots, err := store.OpenSnapshots(cfg.Storage.SnapshotPath)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	// Articles orphaned in processing by a crash go back to pending before
	// the queue is first woken.
	if swept, err := articles.ResetStuckProcessing(ctx); err != nil {
		return err
	} else if swept > 0 {
		logger.Info("reset orphaned processing articles", zap.Int64("count", swept))
	}

	var limiter ratelimit.Limiter
	if cfg.Storage.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedis(rdb, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
		logger.Info("rate limiting on redis", zap.String("addr", cfg.Storage.RedisAddr))
	} else {
		limiter = ratelimit.NewMemory(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	}

	hub := events.NewHub()
	cache := view.NewCache()
	if err := cache.Reload(ctx, articles); err != nil {
		return err
	}

	summarizer := summarize.NewExtractive(cfg.Summary.MinSentences, cfg.Summary.MaxSentences, logger)
	q := queue.New(articles, summarizer, hub, logger)
	refresher := refresh.New(cache, articles, hub, cfg.Refresh.Interval, logger)

	validator := safeurl.NewValidator(nil, logger)
	fetcher := fetch.NewFetcher(fetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		UserAgent:    cfg.Fetch.UserAgent,
	}, logger)

	svc := service.New(articles, snapshots, cache, hub, limiter, validator, fetcher, q, logger)
	srv := server.NewServer(svc, hub, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return q.Run(gctx) })
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error { return cache.Follow(gctx, hub) })
	g.Go(func() error {
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	// Pending rows may already exist from a previous run.
	q.Wake()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose development logging")
	rootCmd.AddCommand(serveCmd)

	cobra.OnInitialize(func() {
		var err error
		if debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			panic(err)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
