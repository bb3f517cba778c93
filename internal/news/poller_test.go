package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecrawl/storecrawl/internal/crawler"
	"github.com/storecrawl/storecrawl/internal/database"
)

type fakeNewsStore struct {
	backlog []int64

	rows  []*database.News
	tags  map[string]int64
	links map[int64][]int64
	next  int64
}

func newFakeNewsStore(backlog ...int64) *fakeNewsStore {
	return &fakeNewsStore{
		backlog: backlog,
		tags:    make(map[string]int64),
		links:   make(map[int64][]int64),
	}
}

func (s *fakeNewsStore) ProductsWithoutNews(ctx context.Context) ([]int64, error) {
	return s.backlog, nil
}

func (s *fakeNewsStore) Transaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

func (s *fakeNewsStore) InsertNewsTx(ctx context.Context, tx pgx.Tx, n *database.News) (int64, error) {
	s.next++
	n.ID = s.next
	s.rows = append(s.rows, n)
	return n.ID, nil
}

func (s *fakeNewsStore) UpsertNewsTagTx(ctx context.Context, tx pgx.Tx, name string) (int64, error) {
	if id, ok := s.tags[name]; ok {
		return id, nil
	}
	s.next++
	s.tags[name] = s.next
	return s.next, nil
}

func (s *fakeNewsStore) LinkNewsTagTx(ctx context.Context, tx pgx.Tx, newsID, tagID int64) error {
	s.links[newsID] = append(s.links[newsID], tagID)
	return nil
}

// fakeNewsStore only covers the store surface the poller touches; the rest of
// the ingest interface is never called for news.
func (s *fakeNewsStore) ProductExists(ctx context.Context, id int64) (bool, error) { return false, nil }
func (s *fakeNewsStore) InsertProductTx(ctx context.Context, tx pgx.Tx, p *database.Product) error {
	return nil
}
func (s *fakeNewsStore) AddProductGenreTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error {
	return nil
}
func (s *fakeNewsStore) AddProductSpecTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error {
	return nil
}
func (s *fakeNewsStore) AddProductTagTx(ctx context.Context, tx pgx.Tx, productID int64, name string) error {
	return nil
}
func (s *fakeNewsStore) InsertSessionTx(ctx context.Context, tx pgx.Tx, sess *database.Session) (int64, error) {
	return 0, nil
}
func (s *fakeNewsStore) InsertUserTx(ctx context.Context, tx pgx.Tx, u *database.User) error {
	return nil
}
func (s *fakeNewsStore) InsertReviewTx(ctx context.Context, tx pgx.Tx, r *database.Review) (int64, error) {
	return 0, nil
}
func (s *fakeNewsStore) LinkSessionReviewTx(ctx context.Context, tx pgx.Tx, sessionID, reviewID int64) error {
	return nil
}

func TestPollerRun(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("stores news for every backlog product", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appid := r.URL.Query().Get("appid")
			fmt.Fprintf(w, `{"appnews":{"appid":%s,"newsitems":[
				{"title":"Update one","author":"dev","contents":"Things.","date":1680350400,"feedname":"steam_community_announcements","tags":["patchnotes"]},
				{"title":"Update two","contents":"More things.","date":1680436800,"tags":[]}
			]}}`, appid)
		}))
		defer server.Close()

		store := newFakeNewsStore(440, 570)
		cache := crawler.NewCache()
		ingest := crawler.NewIngestor(store, cache, logger)
		client := NewClient(server.URL, "", 5*time.Second)
		poller := NewPoller(client, store, ingest, 0, logger)

		require.NoError(t, poller.Run(ctx))

		require.Len(t, store.rows, 4)
		assert.Equal(t, int64(440), store.rows[0].ProductID)
		assert.Equal(t, int64(570), store.rows[2].ProductID)
		require.NotNil(t, store.rows[0].Title)
		assert.Equal(t, "Update one", *store.rows[0].Title)
		require.NotNil(t, store.rows[0].Date)
		assert.Equal(t, time.Unix(1680350400, 0).UTC(), *store.rows[0].Date)

		// Both products' first items share one tag row.
		assert.Len(t, store.tags, 1)
	})

	t.Run("api failure skips the product and continues", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if r.URL.Query().Get("appid") == "440" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"appnews":{"appid":570,"newsitems":[{"title":"Only this","date":1680350400}]}}`)
		}))
		defer server.Close()

		store := newFakeNewsStore(440, 570)
		ingest := crawler.NewIngestor(store, crawler.NewCache(), logger)
		poller := NewPoller(NewClient(server.URL, "", 5*time.Second), store, ingest, 0, logger)

		require.NoError(t, poller.Run(ctx))

		assert.Equal(t, 2, calls)
		require.Len(t, store.rows, 1)
		assert.Equal(t, int64(570), store.rows[0].ProductID)
	})

	t.Run("empty backlog does nothing", func(t *testing.T) {
		store := newFakeNewsStore()
		ingest := crawler.NewIngestor(store, crawler.NewCache(), logger)
		poller := NewPoller(NewClient("http://unreachable.invalid", "", time.Second), store, ingest, 0, logger)

		require.NoError(t, poller.Run(ctx))
		assert.Empty(t, store.rows)
	})
}
