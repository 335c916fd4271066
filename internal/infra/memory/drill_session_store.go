package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"drill-review-service/internal/domain"
)

// DrillSessionStore is an in-memory implementation of app.DrillSessionStore.
type DrillSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.DrillSession
}

func NewDrillSessionStore() *DrillSessionStore {
	return &DrillSessionStore{
		sessions: make(map[string]domain.DrillSession),
	}
}

func (s *DrillSessionStore) Create(_ context.Context, session domain.DrillSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("drill session %s already exists", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *DrillSessionStore) Get(_ context.Context, id string) (domain.DrillSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.DrillSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

// List returns sessions ordered by creation time.
func (s *DrillSessionStore) List(_ context.Context) ([]domain.DrillSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DrillSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *DrillSessionStore) Transition(_ context.Context, id string, to domain.SessionStatus, now time.Time) (domain.DrillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.DrillSession{}, domain.ErrSessionNotFound
	}
	if to == domain.SessionLive {
		for otherID, other := range s.sessions {
			if otherID != id && other.Status == domain.SessionLive {
				return domain.DrillSession{}, domain.ErrSessionAlreadyLive
			}
		}
	}
	if err := session.Transition(to, now); err != nil {
		return domain.DrillSession{}, err
	}
	s.sessions[id] = session
	return session, nil
}
