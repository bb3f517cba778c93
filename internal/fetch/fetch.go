// Package fetch issues page requests for the crawler: a plain HTTP fetcher
// that records redirect chains, a redis-backed request deduper and rate
// limiter, and a single-threaded scheduler that drives response handling.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Request describes one page fetch. ProductID and PrevPage are carried
// through to the response untouched so the handler can locate the page in its
// feed even when the final URL is unhelpful.
type Request struct {
	ID        uuid.UUID
	URL       string
	ProductID int64
	PrevPage  int
	Cookies   map[string]string
	// Force bypasses the fingerprint dedup, for deliberate re-fetches of a
	// page already seen this run.
	Force bool
}

// NewRequest creates a request with a fresh id.
func NewRequest(url string, productID int64, prevPage int) *Request {
	return &Request{
		ID:        uuid.New(),
		URL:       url,
		ProductID: productID,
		PrevPage:  prevPage,
	}
}

// Hop is one intermediate redirect: the URL that answered and the reason it
// gave (the redirect status).
type Hop struct {
	URL    string
	Reason string
}

// Result is a completed fetch.
type Result struct {
	Request    *Request
	FinalURL   string
	Redirects  []Hop
	StatusCode int
	Body       []byte
}

// Redirected reports whether the response arrived through at least one
// redirect hop.
func (r *Result) Redirected() bool {
	return len(r.Redirects) > 0
}

type Fetcher struct {
	transport http.RoundTripper
	timeout   time.Duration
	userAgent string
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		transport: http.DefaultTransport,
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Do fetches the request, following redirects and recording each hop.
func (f *Fetcher) Do(ctx context.Context, req *Request) (*Result, error) {
	var hops []Hop

	// A per-call client so CheckRedirect can close over this fetch's hop
	// list; the transport is shared.
	client := &http.Client{
		Transport: f.transport,
		Timeout:   f.timeout,
		CheckRedirect: func(next *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			if next.Response != nil {
				hops = append(hops, Hop{
					URL:    via[len(via)-1].URL.String(),
					Reason: next.Response.Status,
				})
			}
			return nil
		},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &Result{
		Request:    req,
		FinalURL:   resp.Request.URL.String(),
		Redirects:  hops,
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}
