package session

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(zerolog.New(os.Stdout).Level(zerolog.Disabled))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetOrCreate(t *testing.T) {
	store := setupTestStore(t)

	s, created := store.GetOrCreate("u1")
	require.NotNil(t, s)
	assert.True(t, created)
	assert.Equal(t, "u1", s.UserID)

	s.Lock()
	snap := s.Snapshot()
	s.Unlock()

	assert.Empty(t, snap.History)
	assert.False(t, snap.HasJurisdiction())
	assert.True(t, snap.AwaitingJurisdiction)
	assert.False(t, snap.Greeted)

	again, created := store.GetOrCreate("u1")
	assert.False(t, created)
	assert.Same(t, s, again)
	assert.Equal(t, 1, store.Len())
}

func TestStore_GetOrCreate_Concurrent(t *testing.T) {
	store := setupTestStore(t)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	sessions := make(map[*Session]bool)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, created := store.GetOrCreate("shared")
			mu.Lock()
			defer mu.Unlock()
			sessions[s] = true
			if created {
				createdCount++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 1, store.Len())
}

func TestStore_Get(t *testing.T) {
	store := setupTestStore(t)

	_, ok := store.Get("missing")
	assert.False(t, ok)

	created, _ := store.GetOrCreate("u1")
	found, ok := store.Get("u1")
	assert.True(t, ok)
	assert.Same(t, created, found)
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	store := setupTestStore(t)
	s, _ := store.GetOrCreate("u1")

	s.Lock()
	store.AppendUser(s, "first")
	store.AppendAssistant(s, "second")
	store.AppendUser(s, "third")
	snap := s.Snapshot()
	s.Unlock()

	require.Len(t, snap.History, 3)
	assert.Equal(t, Turn{Role: RoleUser, Content: "first", Timestamp: snap.History[0].Timestamp}, snap.History[0])
	assert.Equal(t, RoleAssistant, snap.History[1].Role)
	assert.Equal(t, "second", snap.History[1].Content)
	assert.Equal(t, RoleUser, snap.History[2].Role)
	assert.Equal(t, "third", snap.History[2].Content)
	for _, turn := range snap.History {
		assert.NotEqual(t, RoleSystem, turn.Role)
		assert.False(t, turn.Timestamp.IsZero())
	}
}

func TestStore_SnapshotIsDefensiveCopy(t *testing.T) {
	store := setupTestStore(t)
	s, _ := store.GetOrCreate("u1")

	s.Lock()
	store.AppendUser(s, "hello")
	snap := s.Snapshot()
	snap.History[0].Content = "tampered"
	store.AppendAssistant(s, "hi")
	fresh := s.Snapshot()
	s.Unlock()

	assert.Len(t, snap.History, 1)
	require.Len(t, fresh.History, 2)
	assert.Equal(t, "hello", fresh.History[0].Content)
}

func TestStore_SetJurisdiction_FirstWriteWins(t *testing.T) {
	store := setupTestStore(t)
	s, _ := store.GetOrCreate("u1")

	s.Lock()
	defer s.Unlock()

	store.SetJurisdiction(s, "")
	_, ok := s.Jurisdiction()
	assert.False(t, ok, "empty value must not set jurisdiction")

	store.SetJurisdiction(s, "Germany")
	store.SetJurisdiction(s, "France")

	value, ok := s.Jurisdiction()
	assert.True(t, ok)
	assert.Equal(t, "Germany", value)
}

func TestStore_ResolveAwaiting_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	s, _ := store.GetOrCreate("u1")

	s.Lock()
	defer s.Unlock()

	assert.True(t, s.AwaitingJurisdiction())
	store.ResolveAwaiting(s)
	assert.False(t, s.AwaitingJurisdiction())
	store.ResolveAwaiting(s)
	assert.False(t, s.AwaitingJurisdiction())
}

func TestStore_MarkGreeted(t *testing.T) {
	store := setupTestStore(t)
	s, _ := store.GetOrCreate("u1")

	s.Lock()
	defer s.Unlock()

	assert.False(t, s.Greeted())
	store.MarkGreeted(s)
	assert.True(t, s.Greeted())
}

func TestStore_ConcurrentAppendsAcrossUsers(t *testing.T) {
	store := setupTestStore(t)

	const users = 8
	const turns = 50
	var wg sync.WaitGroup

	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			s, _ := store.GetOrCreate(fmt.Sprintf("user-%d", u))
			for i := 0; i < turns; i++ {
				s.Lock()
				store.AppendUser(s, fmt.Sprintf("msg-%d", i))
				s.Unlock()
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, users, store.Len())
	for u := 0; u < users; u++ {
		s, ok := store.Get(fmt.Sprintf("user-%d", u))
		require.True(t, ok)
		s.Lock()
		snap := s.Snapshot()
		s.Unlock()
		require.Len(t, snap.History, turns)
		for i, turn := range snap.History {
			assert.Equal(t, fmt.Sprintf("msg-%d", i), turn.Content)
		}
	}
}

func TestStore_Close(t *testing.T) {
	store := setupTestStore(t)
	store.GetOrCreate("u1")
	store.GetOrCreate("u2")
	require.Equal(t, 2, store.Len())

	require.NoError(t, store.Close())
	assert.Equal(t, 0, store.Len())

	_, created := store.GetOrCreate("u1")
	assert.True(t, created)
}
