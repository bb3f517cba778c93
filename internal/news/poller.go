// Package news fetches per-product news items from the platform's news API
// and hands them to the ingest path.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

// Client calls the GetNewsForApp endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type newsResponse struct {
	AppNews struct {
		AppID     int64               `json:"appid"`
		NewsItems []*crawler.NewsItem `json:"newsitems"`
	} `json:"appnews"`
}

// NewsForProduct fetches the news feed of one product.
func (c *Client) NewsForProduct(ctx context.Context, productID int64) ([]*crawler.NewsItem, error) {
	url := fmt.Sprintf("%s/ISteamNews/GetNewsForApp/v2/?appid=%d&maxlength=0&format=json", c.baseURL, productID)
	if c.apiKey != "" {
		url += "&key=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for product %d: %w", productID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news api returned %d for product %d", resp.StatusCode, productID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read news response: %w", err)
	}

	var parsed newsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}

	return parsed.AppNews.NewsItems, nil
}

// PollerStore is what the poller needs from the store: the product backlog
// and per-product transactions.
type PollerStore interface {
	ProductsWithoutNews(ctx context.Context) ([]int64, error)
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// Poller works through products that finished review scraping but have no
// news rows, one product per transaction. API failures skip the product; it
// stays in the backlog for the next run.
type Poller struct {
	client *Client
	store  PollerStore
	ingest *crawler.Ingestor
	pause  time.Duration
	logger *slog.Logger
}

func NewPoller(client *Client, store PollerStore, ingest *crawler.Ingestor, pause time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		client: client,
		store:  store,
		ingest: ingest,
		pause:  pause,
		logger: logger.With("component", "news"),
	}
}

// Run drains the news backlog once.
func (p *Poller) Run(ctx context.Context) error {
	ids, err := p.store.ProductsWithoutNews(ctx)
	if err != nil {
		return fmt.Errorf("failed to list news backlog: %w", err)
	}
	p.logger.Info("news backlog loaded", "products", len(ids))

	for i, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.pollProduct(ctx, id); err != nil {
			p.logger.Error("failed to fetch news", "product_id", id, "error", err)
		}

		if p.pause > 0 && i < len(ids)-1 {
			time.Sleep(p.pause)
		}
	}

	return nil
}

func (p *Poller) pollProduct(ctx context.Context, productID int64) error {
	items, err := p.client.NewsForProduct(ctx, productID)
	if err != nil {
		return err
	}

	err = p.store.Transaction(ctx, func(tx pgx.Tx) error {
		for _, item := range items {
			item.AppID = productID
			if err := p.ingest.IngestNews(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store news: %w", err)
	}

	p.logger.Debug("news stored", "product_id", productID, "items", len(items))
	return nil
}
