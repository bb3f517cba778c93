package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupKey     = "storecrawl:fetched"
	rateLimitKey = "storecrawl:ratelimit"
)

// Fingerprint canonicalizes a URL (sorted query parameters, tracking params
// dropped) and hashes it, so the same logical page always maps to the same
// member regardless of parameter order.
func Fingerprint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		sum := sha1.Sum([]byte(rawURL))
		return hex.EncodeToString(sum[:])
	}

	q := u.Query()
	q.Del("snr")
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	b.WriteString(u.Path)
	for _, k := range keys {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.Join(q[k], ","))
	}

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Deduper tracks fetched request fingerprints in a redis set shared across
// crawler processes.
type Deduper struct {
	rdb *redis.Client
}

func NewDeduper(rdb *redis.Client) *Deduper {
	return &Deduper{rdb: rdb}
}

// Seen records the request's fingerprint and reports whether it had been
// recorded before.
func (d *Deduper) Seen(ctx context.Context, req *Request) (bool, error) {
	added, err := d.rdb.SAdd(ctx, dedupKey, Fingerprint(req.URL)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record fingerprint: %w", err)
	}
	return added == 0, nil
}

// Forget removes a request's fingerprint so it can be fetched again.
func (d *Deduper) Forget(ctx context.Context, req *Request) error {
	if err := d.rdb.SRem(ctx, dedupKey, Fingerprint(req.URL)).Err(); err != nil {
		return fmt.Errorf("failed to forget fingerprint: %w", err)
	}
	return nil
}

// RateLimiter spaces fetches globally using a redis lease so several crawler
// processes share one budget.
type RateLimiter struct {
	rdb      *redis.Client
	interval time.Duration
}

func NewRateLimiter(rdb *redis.Client, interval time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, interval: interval}
}

// Wait blocks until a fetch slot is available or the context ends.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}

	for {
		ok, err := l.rdb.SetNX(ctx, rateLimitKey, 1, l.interval).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire rate limit slot: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval / 4):
		}
	}
}
