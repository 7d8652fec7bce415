package challenge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePopConsumes(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	session := webauthn.SessionData{Challenge: "abc", UserID: []byte("user-1")}
	require.NoError(t, s.Put(ctx, "key-1", session))

	got, ok, err := s.Pop(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", got.Challenge)
	assert.Equal(t, []byte("user-1"), got.UserID)

	_, ok, err = s.Pop(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreMissingKey(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	_, ok, err := s.Pop(context.Background(), "never-stored")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "key-1", webauthn.SessionData{Challenge: "abc"}))

	time.Sleep(30 * time.Millisecond)

	_, ok, err := s.Pop(ctx, "key-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorePutOverwrites(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "key-1", webauthn.SessionData{Challenge: "first"}))
	require.NoError(t, s.Put(ctx, "key-1", webauthn.SessionData{Challenge: "second"}))

	got, ok, err := s.Pop(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got.Challenge)
}

func TestMemoryStoreConcurrentPopSingleWinner(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "key-1", webauthn.SessionData{Challenge: "abc"}))

	const workers = 16
	var wg sync.WaitGroup
	var winners int32
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.Pop(ctx, "key-1")
			require.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}
