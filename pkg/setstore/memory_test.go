package setstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetOps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Add(ctx, "a", "1", "2", "3")
	require.NoError(t, err)
	_, err = store.Add(ctx, "b", "2", "3", "4")
	require.NoError(t, err)

	n, err := store.InterStore(ctx, "inter", "a", "b")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	members, err := store.Members(ctx, "inter")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"2", "3"}, members)

	n, err = store.UnionStore(ctx, "union", "a", "b")
	require.NoError(t, err)
	require.EqualValues(t, 4, n)

	n, err = store.DiffStore(ctx, "diff", "a", "b")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	members, err = store.Members(ctx, "diff")
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, members)
}

func TestMemoryStoreDiffIsNotCommutative(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Add(ctx, "a", "1", "2", "3")
	require.NoError(t, err)
	_, err = store.Add(ctx, "b", "2", "3", "4")
	require.NoError(t, err)

	_, err = store.DiffStore(ctx, "ab", "a", "b")
	require.NoError(t, err)
	_, err = store.DiffStore(ctx, "ba", "b", "a")
	require.NoError(t, err)

	ab, err := store.Members(ctx, "ab")
	require.NoError(t, err)
	ba, err := store.Members(ctx, "ba")
	require.NoError(t, err)

	require.Equal(t, []string{"1"}, ab)
	require.Equal(t, []string{"4"}, ba)
}

func TestMemoryStoreExpire(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	store.SetNowFunc(func() time.Time { return now })

	_, err := store.Add(ctx, "a", "1")
	require.NoError(t, err)

	ok, err := store.Expire(ctx, "a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	exists, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	require.True(t, exists)

	now = now.Add(2 * time.Hour)

	exists, err = store.Exists(ctx, "a")
	require.NoError(t, err)
	require.False(t, exists)

	ok, err = store.Expire(ctx, "missing", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreUnion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Add(ctx, "a", "1", "2")
	require.NoError(t, err)
	_, err = store.Add(ctx, "b", "2", "3")
	require.NoError(t, err)

	members, err := store.Union(ctx, "a", "b", "missing")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1", "2", "3"}, members)
}
