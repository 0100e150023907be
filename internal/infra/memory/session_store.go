package memory

import (
	"context"
	"sync"
	"time"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions expire ttl after their last write; a zero ttl keeps them forever.
// Expired sessions are swept on write, at most once per ttl.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu        sync.RWMutex
	sessions  map[string]*session
	lastSweep time.Time
}

type session struct {
	values    map[string][]byte
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*session),
	}
}

func (s *SessionStore) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess) {
		return nil, false, nil
	}
	value, ok := sess.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *SessionStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess) {
		sess = &session{values: make(map[string][]byte)}
		s.sessions[sessionID] = sess
	}
	sess.values[key] = append([]byte(nil), value...)
	if s.ttl > 0 {
		sess.expiresAt = s.clock().Add(s.ttl)
	}
	return nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(sess.values, key)
	if len(sess.values) == 0 {
		delete(s.sessions, sessionID)
	}
	return nil
}

func (s *SessionStore) expired(sess *session) bool {
	return !sess.expiresAt.IsZero() && !sess.expiresAt.After(s.clock())
}

// sweep drops expired sessions. Callers hold the write lock.
func (s *SessionStore) sweep() {
	if s.ttl <= 0 {
		return
	}
	now := s.clock()
	if now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
		}
	}
}
