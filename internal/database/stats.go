package database

import (
	"context"
	"fmt"
)

// Stats summarizes crawl progress for the status API.
type Stats struct {
	Products      int64 `json:"products"`
	Reviews       int64 `json:"reviews"`
	Sessions      int64 `json:"sessions"`
	Users         int64 `json:"users"`
	News          int64 `json:"news"`
	FeedsDone     int64 `json:"feeds_done"`
	FeedsRedirect int64 `json:"feeds_redirected"`
	FeedsPending  int64 `json:"feeds_pending"`
}

// CrawlStats counts rows and feed states across the store.
func (db *DB) CrawlStats(ctx context.Context) (*Stats, error) {
	s := &Stats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM product`, &s.Products},
		{`SELECT COUNT(*) FROM review`, &s.Reviews},
		{`SELECT COUNT(*) FROM rscrape`, &s.Sessions},
		{`SELECT COUNT(*) FROM users`, &s.Users},
		{`SELECT COUNT(*) FROM news`, &s.News},
		{`SELECT COUNT(*) FROM product WHERE reviews_scraped IS NOT NULL AND reviews_scraped <> '` + RedirectedMarker + `'`, &s.FeedsDone},
		{`SELECT COUNT(*) FROM product WHERE reviews_scraped = '` + RedirectedMarker + `'`, &s.FeedsRedirect},
		{`SELECT COUNT(*) FROM product WHERE reviews_scraped IS NULL AND n_reviews IS NOT NULL`, &s.FeedsPending},
	}

	for _, c := range counts {
		if err := db.pool.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	return s, nil
}
