package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecrawl/storecrawl/internal/database"
)

type fakeCacheLoader struct {
	reviews  map[database.ReviewKey]int64
	sessions map[database.SessionKey]int64
	users    map[string]struct{}
	newsTags map[string]int64
}

func (l *fakeCacheLoader) LoadReviewIDs(ctx context.Context) (map[database.ReviewKey]int64, error) {
	return l.reviews, nil
}

func (l *fakeCacheLoader) LoadSessionIDs(ctx context.Context) (map[database.SessionKey]int64, error) {
	return l.sessions, nil
}

func (l *fakeCacheLoader) LoadUserIDs(ctx context.Context) (map[string]struct{}, error) {
	return l.users, nil
}

func (l *fakeCacheLoader) LoadNewsTags(ctx context.Context) (map[string]int64, error) {
	return l.newsTags, nil
}

func TestLoadCache(t *testing.T) {
	loader := &fakeCacheLoader{
		reviews:  map[database.ReviewKey]int64{{ProductID: 440, UserID: "u1"}: 7},
		sessions: map[database.SessionKey]int64{{ProductID: 440, Page: 1}: 3},
		users:    map[string]struct{}{"u1": {}},
		newsTags: map[string]int64{"patchnotes": 12},
	}

	cache, err := LoadCache(context.Background(), loader)
	require.NoError(t, err)

	id, ok := cache.ReviewID(database.ReviewKey{ProductID: 440, UserID: "u1"})
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok = cache.SessionID(database.SessionKey{ProductID: 440, Page: 1})
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	assert.True(t, cache.HasUser("u1"))
	assert.False(t, cache.HasUser("u2"))

	id, ok = cache.NewsTagID("patchnotes")
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)
}

func TestCacheKeysAreComposite(t *testing.T) {
	cache := NewCache()

	cache.PutReview(database.ReviewKey{ProductID: 440, UserID: "u1"}, 1)

	// The same user on another product is a different identity.
	_, ok := cache.ReviewID(database.ReviewKey{ProductID: 570, UserID: "u1"})
	assert.False(t, ok)

	cache.PutSession(database.SessionKey{ProductID: 440, Page: 1}, 2)
	_, ok = cache.SessionID(database.SessionKey{ProductID: 440, Page: 2})
	assert.False(t, ok)
}
