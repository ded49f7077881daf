// Package session holds the authoritative record of in-progress chunked uploads.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moyoez/scangate/types"
)

var (
	ErrNotFound      = errors.New("upload session not found")
	ErrAlreadyExists = errors.New("upload session already exists")
)

// Store is the session table. Implementations must make Update atomic per
// session id, and must treat sessions past ExpiresAt as not found.
type Store interface {
	Create(ctx context.Context, s *types.UploadSession) error
	// Get returns a copy of the session.
	Get(ctx context.Context, sessionId string) (*types.UploadSession, error)
	// Update runs fn on a copy of the session under the session's lock and
	// stores the copy only when fn returns nil. It returns the stored copy.
	Update(ctx context.Context, sessionId string, fn func(s *types.UploadSession) error) (*types.UploadSession, error)
	Delete(ctx context.Context, sessionId string) error
	// Sweep removes sessions past ExpiresAt and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// ExpireFunc is called by Sweep for every session it reclaims, with State
// already set to expired when the session had not finished.
type ExpireFunc func(s *types.UploadSession)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.UploadSession
	now      func() time.Time
	onExpire ExpireFunc
}

type Option func(*MemoryStore)

func WithClock(now func() time.Time) Option {
	return func(m *MemoryStore) {
		m.now = now
	}
}

func WithExpireHook(fn ExpireFunc) Option {
	return func(m *MemoryStore) {
		m.onExpire = fn
	}
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]*types.UploadSession),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) Create(_ context.Context, s *types.UploadSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[s.SessionId]; ok && !existing.ExpiredAt(m.now()) {
		return ErrAlreadyExists
	}
	m.sessions[s.SessionId] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionId string) (*types.UploadSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionId]
	if !ok || s.ExpiredAt(m.now()) {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, sessionId string, fn func(s *types.UploadSession) error) (*types.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[sessionId]
	now := m.now()
	if !ok || current.ExpiredAt(now) {
		return nil, ErrNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = now
	m.sessions[sessionId] = working
	return working.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionId]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, sessionId)
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	var reclaimed []*types.UploadSession
	for id, s := range m.sessions {
		if !s.ExpiredAt(now) {
			continue
		}
		delete(m.sessions, id)
		if !s.State.Terminal() {
			s.State = types.StateExpired
		}
		reclaimed = append(reclaimed, s)
	}
	m.mu.Unlock()

	// hooks run outside the lock so they may call back into the store
	if m.onExpire != nil {
		for _, s := range reclaimed {
			m.onExpire(s)
		}
	}
	return len(reclaimed), nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
