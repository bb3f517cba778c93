package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/storecrawl/storecrawl/internal/database"
	"github.com/storecrawl/storecrawl/internal/fetch"
	"github.com/storecrawl/storecrawl/internal/parser"
)

// ErrUnknownEntity means a response could not be attributed to any product:
// the controller must not guess which feed to mark, so this error propagates
// and halts the run.
var ErrUnknownEntity = errors.New("cannot determine product for response")

// FeedState is the lifecycle of one product's review feed.
type FeedState int

const (
	FeedUnstarted FeedState = iota
	FeedInProgress
	FeedDone
	FeedRedirected
	FeedAbandoned
)

func (s FeedState) String() string {
	switch s {
	case FeedUnstarted:
		return "unstarted"
	case FeedInProgress:
		return "in_progress"
	case FeedDone:
		return "done"
	case FeedRedirected:
		return "redirected"
	case FeedAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further pages may be requested for the feed.
func (s FeedState) Terminal() bool {
	return s == FeedDone || s == FeedRedirected || s == FeedAbandoned
}

// pageRetry tracks repeated failures of a single page of a feed.
type pageRetry struct {
	fails      int
	lastReason string
}

type feedStatus struct {
	state   FeedState
	retries map[int]*pageRetry
}

func (f *feedStatus) retry(page int) *pageRetry {
	if f.retries == nil {
		f.retries = make(map[int]*pageRetry)
	}
	r, ok := f.retries[page]
	if !ok {
		r = &pageRetry{}
		f.retries[page] = r
	}
	return r
}

// ControllerStore is the store surface the controller drives: per-response
// transactions plus the terminal-state mutations.
type ControllerStore interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
	MarkReviewsScraped(ctx context.Context, productID int64, redirected bool) error
	MarkSessionFailed(ctx context.Context, sessionID int64) error
	FreshFeeds(ctx context.Context) ([]database.Feed, error)
	PartialFeeds(ctx context.Context) ([]database.ResumePoint, error)
}

type ControllerOptions struct {
	// MaxPageFails bounds re-fetches of a page whose extraction keeps
	// failing; past it the feed is abandoned.
	MaxPageFails int
	// FailDumpDir receives raw pages with failed extractions for offline
	// inspection. Empty disables dumping.
	FailDumpDir string
	// UnsuccessfulFile collects abandoned product ids, one per line. Empty
	// disables the list.
	UnsuccessfulFile string
	// MatureContentCookie names the cookie that bypasses the site's age gate
	// on review feeds.
	MatureContentCookie string
}

// Controller walks each product's paginated review feed: it decides which
// page to fetch next, resumes partially scraped feeds, recognizes terminal
// states and commits every page's writes as one transaction. Responses are
// handled strictly one at a time.
type Controller struct {
	store  ControllerStore
	ingest *Ingestor
	cache  *Cache
	logger *slog.Logger
	opts   ControllerOptions
	now    func() time.Time

	feeds map[int64]*feedStatus
}

func NewController(store ControllerStore, ingest *Ingestor, cache *Cache, opts ControllerOptions, logger *slog.Logger) *Controller {
	if opts.MaxPageFails <= 0 {
		opts.MaxPageFails = 10
	}
	if opts.MatureContentCookie == "" {
		opts.MatureContentCookie = "wants_mature_content_apps"
	}
	return &Controller{
		store:  store,
		ingest: ingest,
		cache:  cache,
		logger: logger.With("component", "controller"),
		opts:   opts,
		now:    time.Now,
		feeds:  make(map[int64]*feedStatus),
	}
}

// FeedState returns the current state of a product's feed.
func (c *Controller) FeedState(productID int64) FeedState {
	if f, ok := c.feeds[productID]; ok {
		return f.state
	}
	return FeedUnstarted
}

// StartRequests partitions products into fresh feeds, which begin at page 1,
// and partially scraped feeds, which resume at the page after their latest
// recorded session.
func (c *Controller) StartRequests(ctx context.Context) ([]*fetch.Request, error) {
	fresh, err := c.store.FreshFeeds(ctx)
	if err != nil {
		return nil, err
	}

	var reqs []*fetch.Request
	for _, f := range fresh {
		c.feeds[f.ProductID] = &feedStatus{state: FeedUnstarted}
		req := fetch.NewRequest(f.ReviewsURL, f.ProductID, 0)
		req.Cookies = c.feedCookies(f.ProductID)
		reqs = append(reqs, req)
	}

	partial, err := c.store.PartialFeeds(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range partial {
		req, err := c.resumeRequest(p)
		if err != nil {
			c.logger.Error("cannot resume feed", "product_id", p.ProductID, "error", err)
			continue
		}
		c.feeds[p.ProductID] = &feedStatus{state: FeedInProgress}
		reqs = append(reqs, req)
	}

	c.logger.Info("start requests built", "fresh", len(fresh), "resumed", len(partial))
	return reqs, nil
}

// resumeRequest rebuilds the continuation for a partially scraped feed. The
// recorded session is the last completed page, so the continuation targets
// the page after the one captured in its URL.
func (c *Controller) resumeRequest(p database.ResumePoint) (*fetch.Request, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recorded session url: %w", err)
	}

	last := p.Page
	q := u.Query()
	if raw := q.Get("p"); raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			last = n
		}
	}

	q.Set("p", strconv.Itoa(last+1))
	u.RawQuery = q.Encode()

	req := fetch.NewRequest(u.String(), p.ProductID, last)
	req.Cookies = c.feedCookies(p.ProductID)
	return req, nil
}

// HandleResponse processes one feed page: terminal-redirect detection,
// extraction, ingestion inside a single transaction, then the continuation
// decision. It returns the follow-up requests to schedule, if any.
func (c *Controller) HandleResponse(ctx context.Context, res *fetch.Result) ([]*fetch.Request, error) {
	productID := res.Request.ProductID
	if productID == 0 {
		productID = parser.ProductIDFromURL(res.FinalURL)
	}
	if productID == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, res.FinalURL)
	}

	feed, ok := c.feeds[productID]
	if !ok {
		feed = &feedStatus{state: FeedUnstarted}
		c.feeds[productID] = feed
	}
	if feed.state.Terminal() {
		c.logger.Warn("response for terminal feed ignored",
			"product_id", productID, "state", feed.state.String())
		return nil, nil
	}

	// A redirect away from the product's own pages is a recognized terminal
	// state (delisted or merged catalog entries), not an error.
	if res.Redirected() && parser.ProductIDFromURL(res.FinalURL) != productID {
		last := res.Redirects[len(res.Redirects)-1]
		c.logger.Info("feed redirected away",
			"product_id", productID,
			"final_url", res.FinalURL,
			"reason", last.Reason)
		if err := c.store.MarkReviewsScraped(ctx, productID, true); err != nil {
			return nil, err
		}
		feed.state = FeedRedirected
		return nil, nil
	}

	page := c.derivePage(res)
	feed.state = FeedInProgress

	parsed, err := parser.ParseReviewPage(res.Body)
	if err != nil {
		c.logger.Error("failed to parse feed page", "product_id", productID, "page", page, "error", err)
		c.dumpPage(productID, page, res.Body)
		return c.retryPage(ctx, res, feed, productID, page, "unparseable page")
	}

	incomplete := 0
	now := c.now()
	err = c.store.Transaction(ctx, func(tx pgx.Tx) error {
		for _, rec := range parsed.Reviews {
			rec.ProductID = productID
			rec.Page = page
			if rec.Incomplete {
				incomplete++
			}
			if err := c.ingest.IngestReview(ctx, tx, rec, res.FinalURL, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("failed to ingest page", "product_id", productID, "page", page, "error", err)
		c.dumpPage(productID, page, res.Body)
		return c.retryPage(ctx, res, feed, productID, page, "ingest failed")
	}

	c.logger.Debug("page processed",
		"product_id", productID,
		"page", page,
		"reviews", len(parsed.Reviews),
		"incomplete", incomplete)

	if incomplete > 0 {
		c.dumpPage(productID, page, res.Body)
		return c.retryPage(ctx, res, feed, productID, page, "incomplete review cards")
	}
	delete(feed.retries, page)

	if parsed.Form == nil {
		if err := c.store.MarkReviewsScraped(ctx, productID, false); err != nil {
			return nil, err
		}
		feed.state = FeedDone
		c.logger.Info("feed completed", "product_id", productID, "pages", page)
		return nil, nil
	}

	next := fetch.NewRequest(parsed.Form.URL(), productID, page)
	next.Cookies = c.feedCookies(productID)
	return []*fetch.Request{next}, nil
}

// retryPage re-requests the same page after a soft failure, abandoning the
// feed once the bounded retry count is exhausted.
func (c *Controller) retryPage(ctx context.Context, res *fetch.Result, feed *feedStatus, productID int64, page int, reason string) ([]*fetch.Request, error) {
	r := feed.retry(page)
	r.fails++
	r.lastReason = reason

	if r.fails > c.opts.MaxPageFails {
		c.abandonFeed(ctx, feed, productID, page, r)
		return nil, nil
	}

	c.logger.Warn("repeating page",
		"product_id", productID,
		"page", page,
		"attempt", r.fails,
		"reason", reason)

	again := fetch.NewRequest(res.Request.URL, productID, res.Request.PrevPage)
	again.Cookies = res.Request.Cookies
	again.Force = true
	return []*fetch.Request{again}, nil
}

// abandonFeed is the terminal failure transition: the feed stops making
// progress, the failing page's session is marked FAILED and the product id is
// appended to the unsuccessful list. Other feeds are unaffected.
func (c *Controller) abandonFeed(ctx context.Context, feed *feedStatus, productID int64, page int, r *pageRetry) {
	feed.state = FeedAbandoned
	c.logger.Error("feed abandoned",
		"product_id", productID,
		"page", page,
		"fails", r.fails,
		"reason", r.lastReason)

	if id, ok := c.cache.SessionID(database.SessionKey{ProductID: productID, Page: page}); ok {
		if err := c.store.MarkSessionFailed(ctx, id); err != nil {
			c.logger.Error("failed to mark session failed", "session_id", id, "error", err)
		}
	}
	c.recordUnsuccessful(productID)
}

// derivePage resolves a response's logical page: the page query parameter
// when the URL carries one, else one past the page that produced the request.
func (c *Controller) derivePage(res *fetch.Result) int {
	if u, err := url.Parse(res.FinalURL); err == nil {
		if raw := u.Query().Get("p"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				return n
			}
		}
	}
	return res.Request.PrevPage + 1
}

func (c *Controller) feedCookies(productID int64) map[string]string {
	return map[string]string{
		c.opts.MatureContentCookie: strconv.FormatInt(productID, 10),
	}
}

// dumpPage preserves a raw page whose extraction failed.
func (c *Controller) dumpPage(productID int64, page int, body []byte) {
	if c.opts.FailDumpDir == "" {
		return
	}
	if err := os.MkdirAll(c.opts.FailDumpDir, 0o755); err != nil {
		c.logger.Error("failed to create dump dir", "dir", c.opts.FailDumpDir, "error", err)
		return
	}
	name := filepath.Join(c.opts.FailDumpDir, fmt.Sprintf("%d-p%d.html", productID, page))
	if err := os.WriteFile(name, body, 0o644); err != nil {
		c.logger.Error("failed to dump page", "file", name, "error", err)
	}
}

func (c *Controller) recordUnsuccessful(productID int64) {
	if c.opts.UnsuccessfulFile == "" {
		return
	}
	f, err := os.OpenFile(c.opts.UnsuccessfulFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		c.logger.Error("failed to open unsuccessful list", "file", c.opts.UnsuccessfulFile, "error", err)
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d\n", productID); err != nil {
		c.logger.Error("failed to append unsuccessful list", "file", c.opts.UnsuccessfulFile, "error", err)
	}
}
