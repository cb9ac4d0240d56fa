package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnIsIdempotent(t *testing.T) {
	r := New()
	r.Bind("room-1", "a")

	assert.True(t, r.Spawn("a", "alice"))
	assert.False(t, r.Spawn("a", "someone else"))

	local, ok := r.Local()
	require.True(t, ok)
	assert.Equal(t, Avatar{PeerID: "a", Name: "alice", Local: true}, local)
	assert.Len(t, r.Snapshot(), 1)
}

func TestSnapshotKeepsSpawnOrder(t *testing.T) {
	r := New()
	r.Bind("room-1", "b")
	r.Spawn("a", "")
	r.Spawn("b", "")
	r.Spawn("c", "")

	require.True(t, r.Despawn("b"))
	assert.False(t, r.Despawn("b"))

	ids := []string{}
	for _, a := range r.Snapshot() {
		ids = append(ids, a.PeerID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)

	_, ok := r.Local()
	assert.False(t, ok)
}

func TestSetAuthorityIsExclusive(t *testing.T) {
	r := New()
	r.Bind("room-1", "a")
	r.Spawn("a", "")
	r.Spawn("b", "")

	r.SetAuthority("a")
	r.SetAuthority("b")

	snap := r.Snapshot()
	assert.False(t, snap[0].Authority)
	assert.True(t, snap[1].Authority)
}

func TestBindAndClearReset(t *testing.T) {
	r := New()
	r.Bind("room-1", "a")
	r.Spawn("a", "")

	r.Bind("room-2", "a")
	assert.Equal(t, "room-2", r.Room())
	assert.Empty(t, r.Snapshot())

	r.Spawn("a", "")
	r.Clear()
	assert.Empty(t, r.Room())
	assert.Empty(t, r.Snapshot())
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	r.Bind("room-1", "p0")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := string(rune('a' + i))
			r.Spawn(id, "")
			r.SetAuthority(id)
			_ = r.Snapshot()
		}()
	}
	wg.Wait()

	assert.Len(t, r.Snapshot(), 8)
}
