package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	SessionStatusOK     = "OK"
	SessionStatusFailed = "FAILED"
)

// ReviewKey identifies a review by its natural key. A user reviews a product
// at most once in this model.
type ReviewKey struct {
	ProductID int64
	UserID    string
}

// SessionKey identifies one fetch of one page of a product's review feed.
type SessionKey struct {
	ProductID int64
	Page      int
}

// Session records one fetch of one page within a review feed.
type Session struct {
	ID        int64
	Status    string
	URL       string
	Page      int
	ScrapedAt time.Time
	ProductID int64
}

type User struct {
	ID       string
	Username *string
	Products *int
}

type Review struct {
	ID            int64
	Recommended   *string
	Date          *string
	Text          *string
	Hours         *float64
	FoundAwarding *string
	EarlyAccess   *bool
	FoundHelpful  *int
	FoundFunny    *int
	Compensation  *string
	ProductID     int64
	UserID        string
}

// InsertSessionTx inserts an rscrape row and returns its id.
func (db *DB) InsertSessionTx(ctx context.Context, tx pgx.Tx, s *Session) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO rscrape (status, url, page, scraped_at, product_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		s.Status, s.URL, s.Page, s.ScrapedAt, s.ProductID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = id
	return id, nil
}

// InsertUserTx inserts a user row.
func (db *DB) InsertUserTx(ctx context.Context, tx pgx.Tx, u *User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, username, products)
		VALUES ($1, $2, $3)`,
		u.ID, u.Username, u.Products,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// InsertReviewTx inserts a review row and returns its id.
func (db *DB) InsertReviewTx(ctx context.Context, tx pgx.Tx, r *Review) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO review (
			recommended, date, text, hours, found_awarding, early_access,
			found_helpful, found_funny, compensation, product_id, user_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING id`,
		r.Recommended, r.Date, r.Text, r.Hours, r.FoundAwarding, r.EarlyAccess,
		r.FoundHelpful, r.FoundFunny, r.Compensation, r.ProductID, r.UserID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert review: %w", err)
	}
	r.ID = id
	return id, nil
}

// LinkSessionReviewTx links a review to the session that produced it.
func (db *DB) LinkSessionReviewTx(ctx context.Context, tx pgx.Tx, sessionID, reviewID int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO rscrape_review (rscrape_id, review_id)
		VALUES ($1, $2)`,
		sessionID, reviewID,
	)
	if err != nil {
		return fmt.Errorf("failed to link session review: %w", err)
	}
	return nil
}

// MarkReviewsScraped sets the product's terminal review-scrape marker: the
// current timestamp on normal completion, the redirect sentinel otherwise.
func (db *DB) MarkReviewsScraped(ctx context.Context, productID int64, redirected bool) error {
	marker := time.Now().UTC().Format("2006-01-02 15:04:05")
	if redirected {
		marker = RedirectedMarker
	}

	_, err := db.pool.Exec(ctx, `
		UPDATE product SET reviews_scraped = $1 WHERE id = $2`,
		marker, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark reviews scraped: %w", err)
	}
	return nil
}

// MarkSessionFailed records a session as failed.
func (db *DB) MarkSessionFailed(ctx context.Context, sessionID int64) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE rscrape SET status = $1 WHERE id = $2`,
		SessionStatusFailed, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}
	return nil
}

// LoadReviewIDs maps every (product, user) pair to its review id.
func (db *DB) LoadReviewIDs(ctx context.Context) (map[ReviewKey]int64, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, product_id, user_id FROM review`)
	if err != nil {
		return nil, fmt.Errorf("failed to load review ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[ReviewKey]int64)
	for rows.Next() {
		var id, productID int64
		var userID string
		if err := rows.Scan(&id, &productID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan review id: %w", err)
		}
		ids[ReviewKey{ProductID: productID, UserID: userID}] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// LoadSessionIDs maps every (product, page) pair to its rscrape id.
func (db *DB) LoadSessionIDs(ctx context.Context) (map[SessionKey]int64, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, product_id, page FROM rscrape`)
	if err != nil {
		return nil, fmt.Errorf("failed to load session ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[SessionKey]int64)
	for rows.Next() {
		var id, productID int64
		var page int
		if err := rows.Scan(&id, &productID, &page); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids[SessionKey{ProductID: productID, Page: page}] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}

// LoadUserIDs returns the set of known user identifiers.
func (db *DB) LoadUserIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.pool.Query(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to load user ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}
