package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

const defaultTTL = 5 * time.Minute

type memoryEntry struct {
	session webauthn.SessionData
	expires time.Time
}

// MemoryStore is an in-memory Store for single-instance deployments.
// Entries expire after a TTL; in-flight ceremonies do not survive a process
// restart.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*memoryEntry
	ttl  time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &MemoryStore{data: make(map[string]*memoryEntry), ttl: ttl}
	go s.cleanup()
	return s
}

func (s *MemoryStore) Put(ctx context.Context, key string, session webauthn.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &memoryEntry{session: session, expires: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Pop(ctx context.Context, key string) (webauthn.SessionData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.data[key]
	if e == nil {
		return webauthn.SessionData{}, false, nil
	}
	delete(s.data, key)
	if time.Now().After(e.expires) {
		return webauthn.SessionData{}, false, nil
	}
	return e.session, true, nil
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for key, e := range s.data {
			if now.After(e.expires) {
				delete(s.data, key)
			}
		}
		s.mu.Unlock()
	}
}

var _ Store = (*MemoryStore)(nil)
