package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/storecrawl/storecrawl/internal/config"
	"github.com/storecrawl/storecrawl/internal/crawler"
	"github.com/storecrawl/storecrawl/internal/database"
	"github.com/storecrawl/storecrawl/internal/fetch"
	"github.com/storecrawl/storecrawl/pkg/logger"
)

func main() {
	mode := flag.String("mode", "products", "crawl mode: products or reviews")
	searchURL := flag.String("search", "", "search page to seed the product crawl (defaults to the newest-releases listing)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("shutting down crawler...")
		cancel()
	}()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.CreateSchema(ctx); err != nil {
		log.Error("failed to create schema", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	fetcher := fetch.NewFetcher(cfg.Crawler.FetchTimeout, cfg.Crawler.UserAgent)
	dedupe := fetch.NewDeduper(redisClient)
	limiter := fetch.NewRateLimiter(redisClient, cfg.Crawler.RateLimit)
	scheduler := fetch.NewScheduler(fetcher, dedupe, limiter, log)

	cache, err := crawler.LoadCache(ctx, db)
	if err != nil {
		log.Error("failed to load identity caches", "error", err)
		os.Exit(1)
	}
	ingest := crawler.NewIngestor(db, cache, log)

	switch *mode {
	case "products":
		err = runProducts(ctx, scheduler, ingest, db, cfg, *searchURL, log)
	case "reviews":
		err = runReviews(ctx, scheduler, ingest, cache, db, cfg, log)
	default:
		log.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("crawl failed", "mode", *mode, "error", err)
		os.Exit(1)
	}

	log.Info("crawl finished", "mode", *mode)
}

func runProducts(ctx context.Context, scheduler *fetch.Scheduler, ingest *crawler.Ingestor, db *database.DB, cfg *config.Config, searchURL string, log *slog.Logger) error {
	if searchURL == "" {
		searchURL = cfg.Crawler.StoreBaseURL + "/search/?sort_by=Released_DESC&page=1"
	}
	log.Info("starting product crawl", "seed", searchURL)

	pc := crawler.NewProductCrawler(ingest, db, cfg.Crawler.CommunityBaseURL, cfg.Crawler.StoreBaseURL, log)
	scheduler.Enqueue(pc.StartRequests([]string{searchURL})...)
	return scheduler.Run(ctx, pc.HandleResponse)
}

func runReviews(ctx context.Context, scheduler *fetch.Scheduler, ingest *crawler.Ingestor, cache *crawler.Cache, db *database.DB, cfg *config.Config, log *slog.Logger) error {
	ctrl := crawler.NewController(db, ingest, cache, crawler.ControllerOptions{
		MaxPageFails:     cfg.Crawler.MaxPageFails,
		FailDumpDir:      cfg.Crawler.FailDumpDir,
		UnsuccessfulFile: cfg.Crawler.UnsuccessfulFile,
	}, log)

	reqs, err := ctrl.StartRequests(ctx)
	if err != nil {
		return err
	}
	log.Info("starting review crawl", "feeds", len(reqs))

	scheduler.Enqueue(reqs...)
	return scheduler.Run(ctx, ctrl.HandleResponse)
}
