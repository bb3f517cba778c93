package database

import (
	"context"
	"fmt"
)

// RedirectedMarker is the sentinel stored in product.reviews_scraped when a
// review feed terminated by redirecting away from the product.
const RedirectedMarker = "REDIRECTED"

// schemaStatements creates every table the crawler writes to. All statements
// are idempotent, so an existing database passes through unchanged; in-place
// migrations are not supported.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS genre (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS spec (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS tag (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS product (
		id BIGINT PRIMARY KEY,
		url TEXT,
		news_url TEXT,
		reviews_url TEXT,
		title TEXT,
		developer TEXT,
		publisher TEXT,
		release_date TEXT,
		description_about TEXT,
		app_name TEXT,
		discount_price DOUBLE PRECISION,
		price DOUBLE PRECISION,
		early_access BOOLEAN,
		sentiment TEXT,
		n_reviews INTEGER,
		metascore DOUBLE PRECISION,
		description_reviews TEXT,
		reviews_scraped TEXT DEFAULT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS product_genre (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT REFERENCES product(id),
		genre_id BIGINT REFERENCES genre(id)
	)`,
	`CREATE TABLE IF NOT EXISTS product_spec (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT REFERENCES product(id),
		spec_id BIGINT REFERENCES spec(id)
	)`,
	`CREATE TABLE IF NOT EXISTS product_tag (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT REFERENCES product(id),
		tag_id BIGINT REFERENCES tag(id)
	)`,
	`CREATE TABLE IF NOT EXISTS rscrape (
		id BIGSERIAL PRIMARY KEY,
		status TEXT,
		url TEXT,
		page INTEGER,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		product_id BIGINT REFERENCES product(id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT,
		products INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS review (
		id BIGSERIAL PRIMARY KEY,
		recommended TEXT,
		date TEXT,
		text TEXT,
		hours DOUBLE PRECISION,
		found_awarding TEXT,
		early_access BOOLEAN,
		found_helpful INTEGER,
		found_funny INTEGER,
		compensation TEXT,
		product_id BIGINT REFERENCES product(id),
		user_id TEXT REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS rscrape_review (
		id BIGSERIAL PRIMARY KEY,
		rscrape_id BIGINT REFERENCES rscrape(id),
		review_id BIGINT REFERENCES review(id)
	)`,
	`CREATE TABLE IF NOT EXISTS news (
		id BIGSERIAL PRIMARY KEY,
		title TEXT,
		author TEXT,
		contents TEXT,
		date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		product_id BIGINT REFERENCES product(id),
		feed_name TEXT,
		feed_label TEXT,
		feed_type INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS ntag (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS news_ntag (
		id BIGSERIAL PRIMARY KEY,
		news_id BIGINT REFERENCES news(id),
		ntag_id BIGINT REFERENCES ntag(id)
	)`,
}

// CreateSchema creates all tables if they do not exist yet.
func (db *DB) CreateSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
