package repo

import (
	"context"
	"sync"
	"time"

	"github.com/astrobot/server/internal/model"
)

// MemoryStore keeps sessions and profiles in process. It enforces the same
// version check as the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	profiles map[string]model.Profile
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.Session),
		profiles: make(map[string]model.Profile),
		now:      time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var snap Snapshot
	if s, ok := m.sessions[userID]; ok {
		c := s.Clone()
		snap.Session = &c
	}
	if p, ok := m.profiles[userID]; ok {
		c := p.Clone()
		snap.Profile = &c
	}
	if snap.Session == nil && snap.Profile == nil {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemoryStore) Commit(_ context.Context, session model.Session, profile *model.Profile) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[session.UserID]
	if (ok && current.Version != session.Version) || (!ok && session.Version != 0) {
		return model.Session{}, ErrVersionConflict
	}
	session = session.Clone()
	session.Version++
	m.sessions[session.UserID] = session

	if profile != nil {
		p := profile.Clone()
		now := m.now().UTC()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		m.profiles[p.UserID] = p
	}
	return session.Clone(), nil
}
