// Command minimize copies a random sample of products, with every row that
// depends on them, from a full crawl database into a smaller one. The target
// gets the same schema and stays fully consistent, so it can back tests and
// local development without the full dataset.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/storecrawl/storecrawl/internal/config"
	"github.com/storecrawl/storecrawl/internal/database"
	"github.com/storecrawl/storecrawl/pkg/logger"
)

func main() {
	targetName := flag.String("target", "", "name of the database to fill (required)")
	sample := flag.Int("sample", 100, "number of products to sample")
	flag.Parse()

	if *targetName == "" {
		fmt.Fprintln(os.Stderr, "usage: minimize -target <dbname> [-sample n]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	ctx := context.Background()

	dbCfg := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}

	source, err := database.New(ctx, dbCfg)
	if err != nil {
		log.Error("failed to connect to source database", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	dbCfg.Database = *targetName
	target, err := database.New(ctx, dbCfg)
	if err != nil {
		log.Error("failed to connect to target database", "error", err)
		os.Exit(1)
	}
	defer target.Close()

	if err := target.CreateSchema(ctx); err != nil {
		log.Error("failed to create target schema", "error", err)
		os.Exit(1)
	}

	ids, err := sampleProducts(ctx, source, *sample)
	if err != nil {
		log.Error("failed to sample products", "error", err)
		os.Exit(1)
	}
	log.Info("sampled products", "count", len(ids))

	err = target.Transaction(ctx, func(tx pgx.Tx) error {
		return copySample(ctx, source, tx, ids)
	})
	if err != nil {
		log.Error("failed to copy sample", "error", err)
		os.Exit(1)
	}

	log.Info("minimized dataset written", "target", *targetName, "products", len(ids))
}

func sampleProducts(ctx context.Context, source *database.DB, n int) ([]int64, error) {
	rows, err := source.Query(ctx, `SELECT id FROM product ORDER BY random() LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample product ids: %w", err)
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
	return ids, rows.Err()
}

// tableCopy describes one table's slice of the sample: the columns carried
// over and the predicate tying its rows to the sampled products. An empty
// where copies the whole table.
type tableCopy struct {
	table string
	cols  []string
	where string
}

// Copy order respects foreign keys: lookup tables first, then products, then
// everything hanging off them.
var copyPlan = []tableCopy{
	{"genre", []string{"id", "name"}, ""},
	{"spec", []string{"id", "name"}, ""},
	{"tag", []string{"id", "name"}, ""},
	{"ntag", []string{"id", "name"}, ""},
	{"product", []string{
		"id", "url", "news_url", "reviews_url", "title", "developer", "publisher",
		"release_date", "description_about", "app_name", "discount_price", "price",
		"early_access", "sentiment", "n_reviews", "metascore", "description_reviews",
		"reviews_scraped",
	}, "id = ANY($1)"},
	{"product_genre", []string{"product_id", "genre_id"}, "product_id = ANY($1)"},
	{"product_spec", []string{"product_id", "spec_id"}, "product_id = ANY($1)"},
	{"product_tag", []string{"product_id", "tag_id"}, "product_id = ANY($1)"},
	{"users", []string{"id", "username", "products"},
		"id IN (SELECT user_id FROM review WHERE product_id = ANY($1))"},
	{"rscrape", []string{"id", "status", "url", "page", "scraped_at", "product_id"},
		"product_id = ANY($1)"},
	{"review", []string{
		"id", "recommended", "date", "text", "hours", "found_awarding",
		"early_access", "found_helpful", "found_funny", "compensation",
		"product_id", "user_id",
	}, "product_id = ANY($1)"},
	{"rscrape_review", []string{"rscrape_id", "review_id"},
		"review_id IN (SELECT id FROM review WHERE product_id = ANY($1))"},
	{"news", []string{
		"id", "title", "author", "contents", "date", "product_id",
		"feed_name", "feed_label", "feed_type",
	}, "product_id = ANY($1)"},
	{"news_ntag", []string{"news_id", "ntag_id"},
		"news_id IN (SELECT id FROM news WHERE product_id = ANY($1))"},
}

func copySample(ctx context.Context, source *database.DB, tx pgx.Tx, ids []int64) error {
	for _, tc := range copyPlan {
		n, err := copyTable(ctx, source, tx, tc, ids)
		if err != nil {
			return fmt.Errorf("failed to copy %s: %w", tc.table, err)
		}
		fmt.Printf("%s: %d rows\n", tc.table, n)
	}

	// Rows arrived with their source ids, so the target's sequences must be
	// advanced past them before the crawler writes to this database.
	for _, table := range []string{"genre", "spec", "tag", "ntag", "rscrape", "review", "news"} {
		q := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 1)) FROM %s`,
			table, table)
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to advance %s sequence: %w", table, err)
		}
	}
	return nil
}

func copyTable(ctx context.Context, source *database.DB, tx pgx.Tx, tc tableCopy, ids []int64) (int, error) {
	sel := fmt.Sprintf("SELECT %s FROM %s", strings.Join(tc.cols, ", "), tc.table)
	var args []interface{}
	if tc.where != "" {
		sel += " WHERE " + tc.where
		args = append(args, ids)
	}

	rows, err := source.Query(ctx, sel, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	placeholders := make([]string, len(tc.cols))
	for i := range tc.cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	ins := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tc.table, strings.Join(tc.cols, ", "), strings.Join(placeholders, ", "))

	count := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return count, err
		}
		if _, err := tx.Exec(ctx, ins, values...); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}
