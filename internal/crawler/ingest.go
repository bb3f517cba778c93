package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/storecrawl/storecrawl/internal/database"
	"github.com/storecrawl/storecrawl/internal/parser"
)

// ProductStore covers the product side of ingestion.
type ProductStore interface {
	ProductExists(ctx context.Context, id int64) (bool, error)
	InsertProductTx(ctx context.Context, tx pgx.Tx, p *database.Product) error
	AddProductGenreTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error
	AddProductSpecTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error
	AddProductTagTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error
}

// ReviewStore covers the review side of ingestion.
type ReviewStore interface {
	InsertSessionTx(ctx context.Context, tx pgx.Tx, s *database.Session) (int64, error)
	InsertUserTx(ctx context.Context, tx pgx.Tx, u *database.User) error
	InsertReviewTx(ctx context.Context, tx pgx.Tx, r *database.Review) (int64, error)
	LinkSessionReviewTx(ctx context.Context, tx pgx.Tx, sessionID, reviewID int64) error
}

// NewsStore covers the news side of ingestion.
type NewsStore interface {
	InsertNewsTx(ctx context.Context, tx pgx.Tx, n *database.News) (int64, error)
	UpsertNewsTagTx(ctx context.Context, tx pgx.Tx, name string) (int64, error)
	LinkNewsTagTx(ctx context.Context, tx pgx.Tx, newsID, tagID int64) error
}

// Store is everything the ingestor writes through.
type Store interface {
	ProductStore
	ReviewStore
	NewsStore
}

// NewsItem is one entry from the news API feed.
type NewsItem struct {
	AppID     int64  `json:"appid"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Contents  string `json:"contents"`
	FeedLabel string `json:"feedlabel"`
	// Date is a unix timestamp.
	Date     int64    `json:"date"`
	FeedName string   `json:"feedname"`
	FeedType int      `json:"feed_type"`
	Tags     []string `json:"tags"`
}

// Ingestor is the idempotent write path for products, reviews and news.
// Identity rules: products insert at most once per id, reviews at most once
// per (product, user), news always insert. The cache must be the one loaded
// for this session; every successful write updates it before returning.
type Ingestor struct {
	store  Store
	cache  *Cache
	logger *slog.Logger
}

func NewIngestor(store Store, cache *Cache, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		cache:  cache,
		logger: logger.With("component", "ingestor"),
	}
}

// IngestProduct inserts a product and its genre/spec/tag links unless a row
// with the same id already exists. Products are visited once per crawl, so
// existence is checked against the store directly rather than a cache.
func (in *Ingestor) IngestProduct(ctx context.Context, tx pgx.Tx, rec *parser.ProductRecord) error {
	exists, err := in.store.ProductExists(ctx, rec.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	p := &database.Product{
		ID:                 rec.ID,
		URL:                optStr(rec.URL),
		NewsURL:            optStr(rec.NewsURL),
		ReviewsURL:         optStr(rec.ReviewsURL),
		Title:              rec.Title,
		Developer:          rec.Developer,
		Publisher:          rec.Publisher,
		ReleaseDate:        rec.ReleaseDate,
		DescriptionAbout:   rec.DescriptionAbout,
		AppName:            rec.AppName,
		DiscountPrice:      rec.DiscountPrice,
		Price:              rec.Price,
		EarlyAccess:        rec.EarlyAccess,
		Sentiment:          rec.Sentiment,
		NReviews:           rec.NReviews,
		Metascore:          rec.Metascore,
		DescriptionReviews: rec.DescriptionReviews,
	}

	if err := in.store.InsertProductTx(ctx, tx, p); err != nil {
		return err
	}

	for _, genre := range rec.Genres {
		if err := in.store.AddProductGenreTx(ctx, tx, rec.ID, genre); err != nil {
			return err
		}
	}
	for _, spec := range rec.Specs {
		if err := in.store.AddProductSpecTx(ctx, tx, rec.ID, spec); err != nil {
			return err
		}
	}
	for _, tag := range rec.Tags {
		if err := in.store.AddProductTagTx(ctx, tx, rec.ID, tag); err != nil {
			return err
		}
	}

	return nil
}

// IngestReview inserts a review, creating its scrape session and user rows on
// first sight. Records missing the product or user identifier are dropped.
// pageURL is the URL that produced the page this review came from; date is
// the scrape time recorded on both the session and the review.
func (in *Ingestor) IngestReview(ctx context.Context, tx pgx.Tx, rec *parser.ReviewRecord, pageURL string, date time.Time) error {
	if rec.ProductID == 0 || rec.UserID == "" {
		return nil
	}

	key := database.ReviewKey{ProductID: rec.ProductID, UserID: rec.UserID}
	if _, ok := in.cache.ReviewID(key); ok {
		return nil
	}

	sessionKey := database.SessionKey{ProductID: rec.ProductID, Page: rec.Page}
	sessionID, ok := in.cache.SessionID(sessionKey)
	if !ok {
		var err error
		sessionID, err = in.store.InsertSessionTx(ctx, tx, &database.Session{
			Status:    database.SessionStatusOK,
			URL:       pageURL,
			Page:      rec.Page,
			ScrapedAt: date,
			ProductID: rec.ProductID,
		})
		if err != nil {
			return err
		}
		in.cache.PutSession(sessionKey, sessionID)
	}

	if !in.cache.HasUser(rec.UserID) {
		err := in.insertUser(ctx, tx, &database.User{
			ID:       rec.UserID,
			Username: rec.Username,
			Products: rec.Products,
		})
		if err != nil {
			// Best effort: the review is still worth keeping. A failure here
			// usually means another crawler inserted the user first, so the
			// review's foreign key holds anyway. The user stays out of the
			// cache so the next review by them retries the insert.
			in.logger.Error("failed to add user", "user_id", rec.UserID, "error", err)
		} else {
			in.cache.PutUser(rec.UserID)
		}
	}

	dateStr := date.UTC().Format("2006-01-02 15:04:05")
	reviewID, err := in.store.InsertReviewTx(ctx, tx, &database.Review{
		Recommended:   rec.Recommended,
		Date:          &dateStr,
		Text:          rec.Text,
		Hours:         rec.Hours,
		FoundAwarding: rec.FoundAwarding,
		EarlyAccess:   rec.EarlyAccess,
		FoundHelpful:  rec.FoundHelpful,
		FoundFunny:    rec.FoundFunny,
		Compensation:  rec.Compensation,
		ProductID:     rec.ProductID,
		UserID:        rec.UserID,
	})
	if err != nil {
		return err
	}

	if err := in.store.LinkSessionReviewTx(ctx, tx, sessionID, reviewID); err != nil {
		return err
	}

	in.cache.PutReview(key, reviewID)
	return nil
}

// insertUser runs the user insert under a savepoint. A plain statement error
// would put the caller's per-page transaction into the aborted state and take
// every write on the page down with it; the savepoint confines the failure to
// the user row.
func (in *Ingestor) insertUser(ctx context.Context, tx pgx.Tx, u *database.User) error {
	inner, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := in.store.InsertUserTx(ctx, inner, u); err != nil {
		_ = inner.Rollback(ctx)
		return err
	}
	return inner.Commit(ctx)
}

// IngestNews inserts a news item and links its tags, creating unknown tag
// names as it goes.
func (in *Ingestor) IngestNews(ctx context.Context, tx pgx.Tx, item *NewsItem) error {
	date := time.Unix(item.Date, 0).UTC()
	newsID, err := in.store.InsertNewsTx(ctx, tx, &database.News{
		Title:     optStr(item.Title),
		Author:    optStr(item.Author),
		Contents:  optStr(item.Contents),
		Date:      &date,
		ProductID: item.AppID,
		FeedName:  optStr(item.FeedName),
		FeedLabel: optStr(item.FeedLabel),
		FeedType:  &item.FeedType,
	})
	if err != nil {
		return err
	}

	for _, tag := range item.Tags {
		tagID, ok := in.cache.NewsTagID(tag)
		if !ok {
			tagID, err = in.store.UpsertNewsTagTx(ctx, tx, tag)
			if err != nil {
				return err
			}
			in.cache.PutNewsTag(tag, tagID)
		}
		if err := in.store.LinkNewsTagTx(ctx, tx, newsID, tagID); err != nil {
			return err
		}
	}

	return nil
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
