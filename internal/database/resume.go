package database

import (
	"context"
	"fmt"
)

// Feed is a product review feed that has never been scraped. Products whose
// declared review count is absent fall below the site's pagination threshold
// and are never scheduled.
type Feed struct {
	ProductID  int64
	ReviewsURL string
}

// ResumePoint is the most recently recorded session of a partially scraped
// feed: the page that completed last and the URL that fetched it.
type ResumePoint struct {
	ProductID int64
	URL       string
	Page      int
}

// FreshFeeds returns feeds with no scraped reviews and no terminal marker.
func (db *DB) FreshFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT product.id, product.reviews_url
		FROM product
		LEFT JOIN review ON product.id = review.product_id
		WHERE product.reviews_scraped IS NULL
			AND product.n_reviews IS NOT NULL
			AND product.reviews_url IS NOT NULL
		GROUP BY product.id
		HAVING COUNT(review.id) = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fresh feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.ProductID, &f.ReviewsURL); err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return feeds, nil
}

// PartialFeeds returns, for every feed with at least one scraped review and
// no terminal marker, the latest recorded session to resume from.
func (db *DB) PartialFeeds(ctx context.Context) ([]ResumePoint, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT DISTINCT ON (product_id) product_id, url, page
		FROM rscrape
		WHERE product_id IN (
			SELECT product.id
			FROM product
			LEFT JOIN review ON product.id = review.product_id
			WHERE product.reviews_scraped IS NULL AND product.n_reviews IS NOT NULL
			GROUP BY product.id
			HAVING COUNT(review.id) > 0
		)
		ORDER BY product_id, scraped_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partial feeds: %w", err)
	}
	defer rows.Close()

	var points []ResumePoint
	for rows.Next() {
		var p ResumePoint
		if err := rows.Scan(&p.ProductID, &p.URL, &p.Page); err != nil {
			return nil, fmt.Errorf("failed to scan resume point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return points, nil
}
