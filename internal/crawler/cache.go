package crawler

import (
	"context"
	"fmt"

	"github.com/storecrawl/storecrawl/internal/database"
)

// CacheLoader is the subset of store operations needed to rebuild the
// identity caches at session start.
type CacheLoader interface {
	LoadReviewIDs(ctx context.Context) (map[database.ReviewKey]int64, error)
	LoadSessionIDs(ctx context.Context) (map[database.SessionKey]int64, error)
	LoadUserIDs(ctx context.Context) (map[string]struct{}, error)
	LoadNewsTags(ctx context.Context) (map[string]int64, error)
}

// Cache holds the in-memory identity mappings for one crawl session. It is
// rebuilt from the store at every process start and every successful write
// must update it in the same call; a write that skips its cache update makes
// later duplicates undetectable. Not safe for concurrent use: responses are
// handled one at a time.
type Cache struct {
	reviews  map[database.ReviewKey]int64
	sessions map[database.SessionKey]int64
	users    map[string]struct{}
	newsTags map[string]int64
}

// NewCache returns an empty cache, for crawls against a fresh store.
func NewCache() *Cache {
	return &Cache{
		reviews:  make(map[database.ReviewKey]int64),
		sessions: make(map[database.SessionKey]int64),
		users:    make(map[string]struct{}),
		newsTags: make(map[string]int64),
	}
}

// LoadCache populates a cache with one full scan per identity table.
func LoadCache(ctx context.Context, store CacheLoader) (*Cache, error) {
	reviews, err := store.LoadReviewIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load review cache: %w", err)
	}
	sessions, err := store.LoadSessionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session cache: %w", err)
	}
	users, err := store.LoadUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user cache: %w", err)
	}
	newsTags, err := store.LoadNewsTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load news tag cache: %w", err)
	}

	return &Cache{
		reviews:  reviews,
		sessions: sessions,
		users:    users,
		newsTags: newsTags,
	}, nil
}

// ReviewID returns the review id for a (product, user) pair if one is known.
func (c *Cache) ReviewID(key database.ReviewKey) (int64, bool) {
	id, ok := c.reviews[key]
	return id, ok
}

func (c *Cache) PutReview(key database.ReviewKey, id int64) {
	c.reviews[key] = id
}

// SessionID returns the rscrape id for a (product, page) pair if one is known.
func (c *Cache) SessionID(key database.SessionKey) (int64, bool) {
	id, ok := c.sessions[key]
	return id, ok
}

func (c *Cache) PutSession(key database.SessionKey, id int64) {
	c.sessions[key] = id
}

func (c *Cache) HasUser(id string) bool {
	_, ok := c.users[id]
	return ok
}

func (c *Cache) PutUser(id string) {
	c.users[id] = struct{}{}
}

// NewsTagID returns the tag id for a news tag name if one is known.
func (c *Cache) NewsTagID(name string) (int64, bool) {
	id, ok := c.newsTags[name]
	return id, ok
}

func (c *Cache) PutNewsTag(name string, id int64) {
	c.newsTags[name] = id
}
