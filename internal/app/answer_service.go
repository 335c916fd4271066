package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"drill-review-service/internal/domain"
	"github.com/google/uuid"
)

// SubmitInput is a leader's answer submission as received at the boundary.
type SubmitInput struct {
	LeaderID   string `json:"leaderId" validate:"required,max=64,nonul"`
	SessionID  string `json:"sessionId" validate:"required,max=64,nonul"`
	QuestionID string `json:"questionId" validate:"required,max=64,nonul"`
	Text       string `json:"text" validate:"required,max=20000,nonul"`
}

func (in SubmitInput) trimmed() SubmitInput {
	in.LeaderID = strings.TrimSpace(in.LeaderID)
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.QuestionID = strings.TrimSpace(in.QuestionID)
	in.Text = strings.TrimSpace(in.Text)
	return in
}

// AnswerService owns submission, lookup and deletion of answers.
type AnswerService struct {
	answers     AnswerStore
	maxAttempts int
	gate        SessionGate
	leaders     LeaderDirectory
	listeners   []ChangeListener
	now         func() time.Time
	newID       func() string
}

// NewAnswerService builds the service. maxAttempts <= 0 falls back to
// domain.DefaultMaxAttempts.
func NewAnswerService(answers AnswerStore, maxAttempts int) *AnswerService {
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	return &AnswerService{
		answers:     answers,
		maxAttempts: maxAttempts,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// WithSessionGate requires the answer's session to accept submissions.
func (s *AnswerService) WithSessionGate(gate SessionGate) *AnswerService {
	s.gate = gate
	return s
}

// WithLeaders requires submitting leaders to be registered.
func (s *AnswerService) WithLeaders(leaders LeaderDirectory) *AnswerService {
	s.leaders = leaders
	return s
}

// WithListeners registers change listeners.
func (s *AnswerService) WithListeners(listeners ...ChangeListener) *AnswerService {
	s.listeners = append(s.listeners, listeners...)
	return s
}

// WithClock is for deterministic timestamps in tests.
func (s *AnswerService) WithClock(now func() time.Time) *AnswerService {
	s.now = now
	return s
}

// MaxAttempts returns the configured attempt limit.
func (s *AnswerService) MaxAttempts() int {
	return s.maxAttempts
}

// Submit records a new pending attempt for the (leader, question) pair.
func (s *AnswerService) Submit(ctx context.Context, in SubmitInput) (domain.Answer, error) {
	in = in.trimmed()
	if err := validateInput(in); err != nil {
		return domain.Answer{}, err
	}
	if s.leaders != nil {
		if _, err := s.leaders.Leader(ctx, in.LeaderID); err != nil {
			return domain.Answer{}, err
		}
	}
	if s.gate != nil {
		if err := s.gate.RequireLive(ctx, in.SessionID); err != nil {
			return domain.Answer{}, err
		}
	}

	maxAttempts := s.maxAttempts
	created, err := s.answers.Insert(ctx, domain.Answer{
		ID:          s.newID(),
		LeaderID:    in.LeaderID,
		SessionID:   in.SessionID,
		QuestionID:  in.QuestionID,
		Text:        in.Text,
		Status:      domain.StatusPending,
		SubmittedAt: s.now().UTC(),
	}, func(prior []domain.Answer) error {
		return domain.CheckAttempt(prior, maxAttempts)
	})
	if err != nil {
		return domain.Answer{}, err
	}

	notify(ctx, s.listeners, domain.AnswerChange{Kind: domain.ChangeSubmitted, Answer: created, At: created.SubmittedAt})
	return created, nil
}

// Get returns one answer or domain.ErrAnswerNotFound.
func (s *AnswerService) Get(ctx context.Context, id string) (domain.Answer, error) {
	return s.answers.Get(ctx, id)
}

// List returns answers matching filter in submission order.
func (s *AnswerService) List(ctx context.Context, filter domain.AnswerFilter) ([]domain.Answer, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ValidationErrors{{Field: "status", Message: "must be one of: pending approved rejected", Value: string(filter.Status), Rule: "oneof"}}
	}
	return s.answers.List(ctx, filter)
}

// Delete removes an answer for good and reports whether it existed.
func (s *AnswerService) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.answers.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	deleted, err := s.answers.Delete(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	notify(ctx, s.listeners, domain.AnswerChange{Kind: domain.ChangeDeleted, Answer: existing, At: s.now().UTC()})
	return true, nil
}
