package fetch

import (
	"context"
	"log/slog"
)

// Handler processes one completed fetch and returns any follow-up requests.
// The scheduler guarantees handlers run one at a time, to completion, so
// handler state needs no locking.
type Handler func(ctx context.Context, res *Result) ([]*Request, error)

// Scheduler owns the request queue and the fetch loop. Retry of transport
// failures lives here; what to do with a page's content is the handler's
// business.
type Scheduler struct {
	fetcher    *Fetcher
	dedupe     *Deduper
	limiter    *RateLimiter
	logger     *slog.Logger
	queue      []*Request
	maxRetries int
}

func NewScheduler(fetcher *Fetcher, dedupe *Deduper, limiter *RateLimiter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		fetcher:    fetcher,
		dedupe:     dedupe,
		limiter:    limiter,
		logger:     logger.With("component", "scheduler"),
		maxRetries: 3,
	}
}

// Enqueue appends requests to the queue.
func (s *Scheduler) Enqueue(reqs ...*Request) {
	for _, req := range reqs {
		if req != nil {
			s.queue = append(s.queue, req)
		}
	}
}

// Run drains the queue, fetching each request and feeding its result to the
// handler. Handler errors are logged and the affected request is dropped; the
// crawl continues with the rest of the queue.
func (s *Scheduler) Run(ctx context.Context, handler Handler) error {
	for len(s.queue) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req := s.queue[0]
		s.queue = s.queue[1:]

		if s.dedupe != nil {
			if req.Force {
				if err := s.dedupe.Forget(ctx, req); err != nil {
					s.logger.Error("failed to clear dedup record", "url", req.URL, "error", err)
				}
			} else {
				seen, err := s.dedupe.Seen(ctx, req)
				if err != nil {
					s.logger.Error("dedup check failed", "url", req.URL, "error", err)
				} else if seen {
					s.logger.Debug("skipping already fetched request", "url", req.URL)
					continue
				}
			}
		}

		res, err := s.fetchWithRetry(ctx, req)
		if err != nil {
			s.logger.Error("fetch failed", "url", req.URL, "product_id", req.ProductID, "error", err)
			continue
		}

		// Handler errors mean the response could not be attributed to an
		// entity; continuing would have unknown blast radius, so the run
		// stops.
		followups, err := handler(ctx, res)
		if err != nil {
			return err
		}

		s.Enqueue(followups...)
	}

	return nil
}

func (s *Scheduler) fetchWithRetry(ctx context.Context, req *Request) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		res, err := s.fetcher.Do(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		s.logger.Warn("fetch attempt failed", "url", req.URL, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}
