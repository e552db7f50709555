package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCacheConstants(t *testing.T) {
	assert.Equal(t, 0, GENERAL_CACHE_INDEX)
	assert.Equal(t, 1, SESSION_CACHE_INDEX)
	assert.Equal(t, 2, USER_CACHE_INDEX)
	assert.Equal(t, 3, EVENTS_CACHE_INDEX)
	assert.Equal(t, 4, STATS_CACHE_INDEX)
	assert.Len(t, cacheIndexNames, 5)
}

func TestCache_ByIndex(t *testing.T) {
	var cache Cache
	assert.Nil(t, cache.byIndex(STATS_CACHE_INDEX))
	assert.Nil(t, cache.byIndex(99))
}

func TestCacheBuilder_KeyComposition(t *testing.T) {
	id := uuid.MustParse("0190f5c2-8d6e-7a1b-9c3d-2e4f6a8b0c1d")

	assert.Equal(t, "user:"+id.String(), NewCacheBuilder(nil, id).WithHash("user").Key())
	assert.Equal(t, "plain", NewCacheBuilder(nil, "plain").WithHash("").Key())
	assert.Equal(
		t,
		[]string{"stats:a", "stats:b"},
		NewCacheBuilder(nil, []string{"a", "b"}).WithHash("stats").Keys(),
	)
}

func TestCacheBuilder_NilClientIsNoop(t *testing.T) {
	var out map[string]int

	found, err := NewCacheBuilder(nil, "key").Get(&out)
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, NewCacheBuilder(nil, "key").WithStruct(map[string]int{"a": 1}).Set())
	assert.NoError(t, NewCacheBuilder(nil, []string{"a", "b"}).Delete())
}

func TestCacheBuilder_Validation(t *testing.T) {
	assert.EqualError(t, NewCacheBuilder(nil, "").WithValue("v").Set(), "key is required")
	assert.EqualError(t, NewCacheBuilder(nil, "key").Set(), "value is required")
	assert.EqualError(t, NewCacheBuilder(nil, "").Delete(), "key is required")

	err := NewCacheBuilder(nil, "key").WithStruct(make(chan int)).Set()
	assert.ErrorContains(t, err, "failed to marshal value to json")
}

func TestCacheBuilder_TimeoutContext(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cb := NewCacheBuilder(nil, "key").WithContext(parent).WithTimeout(time.Minute)
	ctx, done := cb.createTimeoutContext()
	defer done()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)
}

func TestDB_WithTimeout(t *testing.T) {
	db := DB{StoreTimeout: 2 * time.Second}
	ctx, cancel := db.WithTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, 200*time.Millisecond)

	assert.Len(t, Models(), 4)
}
