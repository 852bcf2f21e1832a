package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. They are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

func (m *MemoryStore) Get(_ context.Context, accountID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[accountID]
	if !ok {
		return nil, ErrNoSession
	}
	s.Data.Phones = append([]string(nil), s.Data.Phones...)
	return &s, nil
}

func (m *MemoryStore) Set(_ context.Context, accountID int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	cp.Data.Phones = append([]string(nil), s.Data.Phones...)
	m.sessions[accountID] = cp
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, accountID)
	return nil
}
