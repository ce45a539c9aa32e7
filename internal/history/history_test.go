package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sub", Filename))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Empty(t *testing.T) {
	store := setupTestStore(t)

	last, err := store.Last()
	require.NoError(t, err)
	assert.Nil(t, last)

	recent, err := store.Recent(5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestStore_RecordAndQuery(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := []*Rotation{
		{Kind: "folder", Input: "/p/a.jpg", Output: "/dev/shm/wall-1.png"},
		{Kind: "folder", Input: "/p/b.jpg", Output: "/dev/shm/wall-2.png", Duration: 1500 * time.Millisecond},
		{Kind: "remote", Source: "Danbooru", Error: "danbooru.donmai.us returned status 503"},
	}
	for i, r := range rows {
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Record(r))
		assert.NotZero(t, r.ID)
	}

	recent, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "remote", recent[0].Kind)
	assert.False(t, recent[0].OK())
	assert.Equal(t, "/p/b.jpg", recent[1].Input)
	assert.Equal(t, 1500*time.Millisecond, recent[1].Duration)

	last, err := store.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "/dev/shm/wall-2.png", last.Output)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_RecordFillsTime(t *testing.T) {
	store := setupTestStore(t)
	r := &Rotation{Kind: "file", Input: "/a.png"}
	require.NoError(t, store.Record(r))
	assert.WithinDuration(t, time.Now(), r.CreatedAt, time.Minute)
}
