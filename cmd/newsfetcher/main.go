package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/storecrawl/storecrawl/internal/config"
	"github.com/storecrawl/storecrawl/internal/crawler"
	"github.com/storecrawl/storecrawl/internal/database"
	"github.com/storecrawl/storecrawl/internal/news"
	"github.com/storecrawl/storecrawl/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("shutting down news fetcher...")
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

	cache, err := crawler.LoadCache(ctx, db)
	if err != nil {
		log.Error("failed to load identity caches", "error", err)
		os.Exit(1)
	}
	ingest := crawler.NewIngestor(db, cache, log)

	client := news.NewClient(cfg.News.APIBaseURL, cfg.News.APIKey, cfg.Crawler.FetchTimeout)
	poller := news.NewPoller(client, db, ingest, cfg.News.Pause, log)

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("news fetch failed", "error", err)
		os.Exit(1)
	}

	log.Info("news fetch finished")
}
