package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "plan:a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "plan:b", []byte("2"), 0))

	v, err := store.Get(ctx, "plan:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "plan:a")
	assert.ErrorIs(t, err, ErrMiss)

	keys, err := store.Keys(ctx, PrefixPlan)
	require.NoError(t, err)
	assert.Equal(t, []string{"plan:b"}, keys)
}

func TestMemoryStoreCleanup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "plan:short", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "plan:long", []byte("2"), time.Hour))
	require.NoError(t, store.Set(ctx, "plan:forever", []byte("3"), 0))
	require.NoError(t, store.Set(ctx, "other:short", []byte("4"), time.Minute))

	deleted, err := store.Cleanup(ctx, []string{PrefixPlan}, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other:short", "plan:forever", "plan:long"}, keys)
}

func TestJSONHelpers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	type payload struct {
		Codes []string `json:"codes"`
	}

	var got payload
	ok, err := GetJSON(ctx, store, "test", "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, store, "k", payload{Codes: []string{"CS2500"}}, time.Minute))
	ok, err = GetJSON(ctx, store, "test", "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"CS2500"}, got.Codes)

	require.NoError(t, store.Set(ctx, "bad", []byte("{not json"), time.Minute))
	ok, err = GetJSON(ctx, store, "test", "bad", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "subject_courses:202540:CS", SubjectCoursesKey("202540", "cs"))
	assert.Equal(t, "plan:computer-science:ai:4:abc:def", PlanKey("computer-science", "ai", 4, "abc", "def"))
	assert.Equal(t, "terms:list", TermsKey())
}
