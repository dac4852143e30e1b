// Package session holds the per-browser wizard state: uploaded image refs,
// the image selection, questionnaire answers and the computed severity.
//
// Two SessionStore backends are provided. MemoryStore keeps sessions in an
// expiring LRU inside the process; RedisStore keeps one key per slot so
// several server replicas can share sessions.
package session

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/injury-assessment-server/internal/domain"
)

const (
	defaultMaxSessions = 10000
	defaultTTL         = 2 * time.Hour

	// Generations are remembered for this many times MaxSessions ids.
	generationMemory = 4
)

type memorySession struct {
	generation int64
	slots      map[domain.Slot][]byte
}

// MemoryStore is an in-process SessionStore. Sessions expire TTL after the
// last write; the least recently used session is evicted past MaxSessions.
//
// The last generation of each session outlives the session itself. A session
// recreated after expiry or eviction starts one generation later, so a write
// guarded by the old generation is refused.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    *expirable.LRU[string, *memorySession]
	generations *lru.Cache[string, int64]
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(maxSessions int, ttl time.Duration) *MemoryStore {
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	generations, _ := lru.New[string, int64](maxSessions * generationMemory)
	return &MemoryStore{
		sessions:    expirable.NewLRU[string, *memorySession](maxSessions, nil, ttl),
		generations: generations,
	}
}

// lookup returns the session, creating it when absent. Callers hold mu.
func (m *MemoryStore) lookup(sessionID string) *memorySession {
	s, ok := m.sessions.Get(sessionID)
	if !ok {
		s = &memorySession{
			generation: m.freshGeneration(sessionID),
			slots:      make(map[domain.Slot][]byte),
		}
	}
	return s
}

// freshGeneration is the generation of a session that is not live: zero for
// an unknown id, one past the last recorded generation otherwise.
func (m *MemoryStore) freshGeneration(sessionID string) int64 {
	if last, ok := m.generations.Get(sessionID); ok {
		return last + 1
	}
	return 0
}

// put stores s and records its generation. Callers hold mu.
func (m *MemoryStore) put(sessionID string, s *memorySession) {
	m.sessions.Add(sessionID, s)
	m.generations.Add(sessionID, s.generation)
}

// Set stores value under slot and refreshes the session TTL.
func (m *MemoryStore) Set(ctx context.Context, sessionID string, slot domain.Slot, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slot = slot.Canonical()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(sessionID)
	s.slots[slot] = append([]byte(nil), value...)
	m.put(sessionID, s)
	return nil
}

// Get returns a copy of the slot value.
func (m *MemoryStore) Get(ctx context.Context, sessionID string, slot domain.Slot) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	slot = slot.Canonical()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions.Get(sessionID)
	if !ok {
		return nil, false, nil
	}
	v, ok := s.slots[slot]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// ClearAll removes every slot and bumps the generation. The session entry
// itself is kept so the new generation is observable.
func (m *MemoryStore) ClearAll(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(sessionID)
	s.slots = make(map[domain.Slot][]byte)
	s.generation++
	m.put(sessionID, s)
	return nil
}

// Generation returns the number of clears the session has seen.
func (m *MemoryStore) Generation(ctx context.Context, sessionID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions.Get(sessionID); ok {
		return s.generation, nil
	}
	return m.freshGeneration(sessionID), nil
}

// SetIfGeneration writes only while the session generation equals generation.
func (m *MemoryStore) SetIfGeneration(ctx context.Context, sessionID string, generation int64, slot domain.Slot, value []byte) (bool, error) {
	return m.WriteIf(ctx, sessionID, domain.ConditionalWrite{
		Generation: generation,
		Values:     map[domain.Slot][]byte{slot: value},
	})
}

// WriteIf applies w in one critical section.
func (m *MemoryStore) WriteIf(ctx context.Context, sessionID string, w domain.ConditionalWrite) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(sessionID)
	if s.generation != w.Generation {
		return false, nil
	}
	for _, slot := range w.Absent {
		if _, ok := s.slots[slot.Canonical()]; ok {
			return false, nil
		}
	}
	for slot, value := range w.Values {
		s.slots[slot.Canonical()] = append([]byte(nil), value...)
	}
	m.put(sessionID, s)
	return true, nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.sessions.Len()
}

// Close drops all sessions.
func (m *MemoryStore) Close() error {
	m.sessions.Purge()
	return nil
}
