package app

import (
	"context"
	"strings"
	"time"

	"drill-review-service/internal/domain"
	"github.com/google/uuid"
)

// CreateSessionInput describes a new drill session.
type CreateSessionInput struct {
	Name      string     `json:"name" validate:"required,max=200"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

// DrillService manages drill sessions and gates submissions on the live one.
type DrillService struct {
	sessions DrillSessionStore
	now      func() time.Time
	newID    func() string
}

func NewDrillService(sessions DrillSessionStore) *DrillService {
	return &DrillService{sessions: sessions, now: time.Now, newID: uuid.NewString}
}

// WithClock is for deterministic timestamps in tests.
func (s *DrillService) WithClock(now func() time.Time) *DrillService {
	s.now = now
	return s
}

// Create stores a new session in draft.
func (s *DrillService) Create(ctx context.Context, in CreateSessionInput) (domain.DrillSession, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return domain.DrillSession{}, err
	}
	if in.StartTime != nil && in.EndTime != nil && !in.EndTime.After(*in.StartTime) {
		return domain.DrillSession{}, domain.ValidationErrors{{Field: "endTime", Message: "must be after startTime", Rule: "gtfield"}}
	}
	session := domain.DrillSession{
		ID:        s.newID(),
		Name:      in.Name,
		Status:    domain.SessionDraft,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.DrillSession{}, err
	}
	return session, nil
}

func (s *DrillService) Get(ctx context.Context, id string) (domain.DrillSession, error) {
	return s.sessions.Get(ctx, id)
}

func (s *DrillService) List(ctx context.Context) ([]domain.DrillSession, error) {
	return s.sessions.List(ctx)
}

// Transition moves a session along draft -> scheduled -> live -> completed,
// allowing live -> scheduled as pause. Accepts the paused/running aliases.
func (s *DrillService) Transition(ctx context.Context, id, status string) (domain.DrillSession, error) {
	to, ok := domain.NormalizeSessionStatus(strings.TrimSpace(status))
	if !ok {
		return domain.DrillSession{}, domain.ValidationErrors{{
			Field:   "status",
			Message: "must be one of: draft scheduled live completed",
			Value:   status,
			Rule:    "oneof",
		}}
	}
	return s.sessions.Transition(ctx, id, to, s.now().UTC())
}

// Live returns the currently live session, if any.
func (s *DrillService) Live(ctx context.Context) (domain.DrillSession, bool, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return domain.DrillSession{}, false, err
	}
	for _, session := range sessions {
		if session.Status == domain.SessionLive {
			return session, true, nil
		}
	}
	return domain.DrillSession{}, false, nil
}

// RequireLive implements SessionGate.
func (s *DrillService) RequireLive(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.SessionLive {
		return domain.ErrSessionNotLive
	}
	return nil
}
