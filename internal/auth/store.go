package auth

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/models"
)

// SessionStore holds the server-side records behind session cookies.
// Get reports false for unknown or expired sessions.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, bool, error)
	Set(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore keeps sessions in process memory. Records are lost on restart,
// which logs every browser out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

// Get retrieves a session by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || sess.IsExpired() {
		return nil, false, nil
	}
	cp := *sess
	return &cp, true, nil
}

// Set stores a session keyed by its ID.
func (s *MemoryStore) Set(_ context.Context, session *models.Session) error {
	cp := *session
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &cp
	return nil
}

// Delete removes a session by ID.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions and returns their IDs.
func (s *MemoryStore) Cleanup() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var removed []string
	for k, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, k)
			removed = append(removed, k)
		}
	}
	return removed
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
