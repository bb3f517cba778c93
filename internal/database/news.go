package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// News is a single news item scoped to a product. News identity is not
// tracked across runs; rows are always inserted.
type News struct {
	ID        int64
	Title     *string
	Author    *string
	Contents  *string
	Date      *time.Time
	ProductID int64
	FeedName  *string
	FeedLabel *string
	FeedType  *int
}

// InsertNewsTx inserts a news row and returns its id.
func (db *DB) InsertNewsTx(ctx context.Context, tx pgx.Tx, n *News) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO news (title, author, contents, date, product_id, feed_name, feed_label, feed_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		n.Title, n.Author, n.Contents, n.Date, n.ProductID, n.FeedName, n.FeedLabel, n.FeedType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert news: %w", err)
	}
	n.ID = id
	return id, nil
}

// UpsertNewsTagTx resolves a news tag name, creating it if missing.
func (db *DB) UpsertNewsTagTx(ctx context.Context, tx pgx.Tx, name string) (int64, error) {
	return upsertName(ctx, tx, "ntag", name)
}

// LinkNewsTagTx links a news item to a tag.
func (db *DB) LinkNewsTagTx(ctx context.Context, tx pgx.Tx, newsID, tagID int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO news_ntag (news_id, ntag_id)
		VALUES ($1, $2)`,
		newsID, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to link news tag: %w", err)
	}
	return nil
}

// LoadNewsTags maps every news tag name to its id.
func (db *DB) LoadNewsTags(ctx context.Context) (map[string]int64, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, name FROM ntag`)
	if err != nil {
		return nil, fmt.Errorf("failed to load news tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan news tag: %w", err)
		}
		tags[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tags, nil
}

// ProductsWithoutNews returns products whose reviews have been scraped but
// that have no news rows yet.
func (db *DB) ProductsWithoutNews(ctx context.Context) ([]int64, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT DISTINCT product.id
		FROM product
		LEFT JOIN news ON product.id = news.product_id
		WHERE product.reviews_scraped IS NOT NULL AND news.id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products without news: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}
