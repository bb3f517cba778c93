package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Product is a catalog item. The identifier is assigned by the storefront,
// not by the database. Every descriptive field is optional; absent fields are
// stored as NULL so the insert parameter set is always complete.
type Product struct {
	ID                 int64
	URL                *string
	NewsURL            *string
	ReviewsURL         *string
	Title              *string
	Developer          *string
	Publisher          *string
	ReleaseDate        *string
	DescriptionAbout   *string
	AppName            *string
	DiscountPrice      *float64
	Price              *float64
	EarlyAccess        *bool
	Sentiment          *string
	NReviews           *int
	Metascore          *float64
	DescriptionReviews *string
	ReviewsScraped     *string
}

// ProductExists reports whether a product row with the given id exists.
func (db *DB) ProductExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM product WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return exists, nil
}

// InsertProductTx inserts a product row within a transaction.
func (db *DB) InsertProductTx(ctx context.Context, tx pgx.Tx, p *Product) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO product (
			id, url, news_url, reviews_url, title, developer, publisher,
			release_date, description_about, app_name, discount_price, price,
			early_access, sentiment, n_reviews, metascore, description_reviews,
			reviews_scraped
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)`,
		p.ID, p.URL, p.NewsURL, p.ReviewsURL, p.Title, p.Developer, p.Publisher,
		p.ReleaseDate, p.DescriptionAbout, p.AppName, p.DiscountPrice, p.Price,
		p.EarlyAccess, p.Sentiment, p.NReviews, p.Metascore, p.DescriptionReviews,
		p.ReviewsScraped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// upsertName resolves a name in one of the lookup tables, creating it if
// missing. The ON CONFLICT no-op update makes RETURNING yield the id either
// way, so concurrent inserts of the same name cannot race.
func upsertName(ctx context.Context, tx pgx.Tx, table, name string) (int64, error) {
	var id int64
	query := fmt.Sprintf(`
		INSERT INTO %s (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, table)
	if err := tx.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert %s name: %w", table, err)
	}
	return id, nil
}

func linkProduct(ctx context.Context, tx pgx.Tx, junction, column string, productID, nameID int64) error {
	query := fmt.Sprintf(`INSERT INTO %s (product_id, %s) VALUES ($1, $2)`, junction, column)
	if _, err := tx.Exec(ctx, query, productID, nameID); err != nil {
		return fmt.Errorf("failed to link %s: %w", junction, err)
	}
	return nil
}

// AddProductGenreTx resolves the genre name and links it to the product.
func (db *DB) AddProductGenreTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error {
	id, err := upsertName(ctx, tx, "genre", name)
	if err != nil {
		return err
	}
	return linkProduct(ctx, tx, "product_genre", "genre_id", productID, id)
}

// AddProductSpecTx resolves the spec name and links it to the product.
func (db *DB) AddProductSpecTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error {
	id, err := upsertName(ctx, tx, "spec", name)
	if err != nil {
		return err
	}
	return linkProduct(ctx, tx, "product_spec", "spec_id", productID, id)
}

// AddProductTagTx resolves the tag name and links it to the product.
func (db *DB) AddProductTagTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error {
	id, err := upsertName(ctx, tx, "tag", name)
	if err != nil {
		return err
	}
	return linkProduct(ctx, tx, "product_tag", "tag_id", productID, id)
}
