package memory

import (
	"context"
	"sync"

	"drill-review-service/internal/app"
	"drill-review-service/internal/domain"
)

// AnswerStore is an in-memory implementation of app.AnswerStore. A single
// mutex makes Insert and conditional Update atomic.
type AnswerStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]domain.Answer
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{byID: make(map[string]domain.Answer)}
}

func (s *AnswerStore) Insert(_ context.Context, answer domain.Answer, guard app.AttemptGuard) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := make([]domain.Answer, 0, 4)
	for _, id := range s.order {
		a := s.byID[id]
		if a.LeaderID == answer.LeaderID && a.QuestionID == answer.QuestionID {
			prior = append(prior, a)
		}
	}
	if guard != nil {
		if err := guard(prior); err != nil {
			return domain.Answer{}, err
		}
	}

	answer.AttemptNumber = domain.NextAttemptNumber(prior)
	if answer.Status == "" {
		answer.Status = domain.StatusPending
	}
	s.byID[answer.ID] = answer
	s.order = append(s.order, answer.ID)
	return answer, nil
}

func (s *AnswerStore) Get(_ context.Context, id string) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	return a, nil
}

func (s *AnswerStore) List(_ context.Context, filter domain.AnswerFilter) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for _, id := range s.order {
		if a := s.byID[id]; filter.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *AnswerStore) Update(_ context.Context, id string, patch domain.AnswerPatch) (domain.Answer, error) {
	if err := patch.Validate(); err != nil {
		return domain.Answer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[id]
	if !ok {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	if patch.ExpectPending && !current.Status.IsPending() {
		return domain.Answer{}, domain.ErrAnswerNotPending
	}
	updated := patch.Apply(current)
	s.byID[id] = updated
	return updated, nil
}

func (s *AnswerStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}
