package crawler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/storecrawl/storecrawl/internal/fetch"
	"github.com/storecrawl/storecrawl/internal/parser"
)

// ageGateCookies bypass the storefront's age interstitial so product pages
// render their full details block.
var ageGateCookies = map[string]string{
	"wants_mature_content": "1",
	"lastagecheckage":      "1-0-1985",
	"birthtime":            "470703601",
}

// Transactor runs a function inside one transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// ProductCrawler walks store search result pages and persists every product
// page they link to. One insert per product id; already stored products are
// skipped without a write.
type ProductCrawler struct {
	ingest        *Ingestor
	store         Transactor
	communityBase string
	storeBase     string
	logger        *slog.Logger
}

func NewProductCrawler(ingest *Ingestor, store Transactor, communityBase, storeBase string, logger *slog.Logger) *ProductCrawler {
	return &ProductCrawler{
		ingest:        ingest,
		store:         store,
		communityBase: communityBase,
		storeBase:     storeBase,
		logger:        logger.With("component", "products"),
	}
}

// StartRequests seeds the crawl with the given search URLs.
func (p *ProductCrawler) StartRequests(searchURLs []string) []*fetch.Request {
	var reqs []*fetch.Request
	for _, u := range searchURLs {
		reqs = append(reqs, fetch.NewRequest(u, 0, 0))
	}
	return reqs
}

// HandleResponse routes a page by shape: search result pages fan out into
// product page requests plus the next result page, product pages are parsed
// and stored.
func (p *ProductCrawler) HandleResponse(ctx context.Context, res *fetch.Result) ([]*fetch.Request, error) {
	if strings.Contains(res.FinalURL, "/search/") {
		return p.handleSearchPage(res)
	}
	return nil, p.handleProductPage(ctx, res)
}

func (p *ProductCrawler) handleSearchPage(res *fetch.Result) ([]*fetch.Request, error) {
	page, err := parser.ParseSearchPage(res.Body)
	if err != nil {
		p.logger.Error("failed to parse search page", "url", res.FinalURL, "error", err)
		return nil, nil
	}

	var reqs []*fetch.Request
	for _, u := range page.ProductURLs {
		req := fetch.NewRequest(u, parser.ProductIDFromURL(u), 0)
		req.Cookies = ageGateCookies
		reqs = append(reqs, req)
	}
	if page.NextURL != "" {
		reqs = append(reqs, fetch.NewRequest(page.NextURL, 0, 0))
	}

	p.logger.Debug("search page processed",
		"url", res.FinalURL,
		"products", len(page.ProductURLs),
		"has_next", page.NextURL != "")
	return reqs, nil
}

func (p *ProductCrawler) handleProductPage(ctx context.Context, res *fetch.Result) error {
	rec, err := parser.ParseProductPage(res.Body, res.FinalURL, p.communityBase, p.storeBase)
	if err != nil {
		// A product page without an extractable id (an age gate that slipped
		// through, a removed product) is skipped, not fatal.
		p.logger.Warn("skipping product page", "url", res.FinalURL, "error", err)
		return nil
	}

	err = p.store.Transaction(ctx, func(tx pgx.Tx) error {
		return p.ingest.IngestProduct(ctx, tx, rec)
	})
	if err != nil {
		p.logger.Error("failed to store product", "product_id", rec.ID, "error", err)
		return nil
	}

	p.logger.Debug("product stored", "product_id", rec.ID)
	return nil
}
