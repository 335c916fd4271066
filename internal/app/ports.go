package app

import (
	"context"
	"errors"
	"time"

	"drill-review-service/internal/domain"
)

// AttemptGuard inspects the existing attempts of a (leader, question) pair and
// returns an error to veto a new one.
type AttemptGuard func(prior []domain.Answer) error

// AnswerStore abstracts where answers live (in-memory, Redis, Postgres).
//
// Insert must run the guard and assign the attempt number atomically with the
// write, and Update must honour AnswerPatch.ExpectPending atomically, so that
// two racing reviews of one answer cannot both succeed.
type AnswerStore interface {
	Insert(ctx context.Context, answer domain.Answer, guard AttemptGuard) (domain.Answer, error)
	Get(ctx context.Context, id string) (domain.Answer, error)
	List(ctx context.Context, filter domain.AnswerFilter) ([]domain.Answer, error)
	Update(ctx context.Context, id string, patch domain.AnswerPatch) (domain.Answer, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// DrillSessionStore persists drill sessions. Transition must reject a move to
// live while another session is live.
type DrillSessionStore interface {
	Create(ctx context.Context, session domain.DrillSession) error
	Get(ctx context.Context, id string) (domain.DrillSession, error)
	List(ctx context.Context) ([]domain.DrillSession, error)
	Transition(ctx context.Context, id string, to domain.SessionStatus, now time.Time) (domain.DrillSession, error)
}

// LeaderDirectory answers who the registered leaders are.
type LeaderDirectory interface {
	Roster(ctx context.Context) ([]domain.Leader, error)
	Leader(ctx context.Context, id string) (domain.Leader, error)
}

// SessionGate decides whether a drill session currently accepts submissions.
type SessionGate interface {
	RequireLive(ctx context.Context, sessionID string) error
}

// Authorizer decides whether reviewer may approve or reject answer.
type Authorizer interface {
	CanReview(ctx context.Context, reviewer domain.Reviewer, answer domain.Answer) (bool, error)
}

// ChangeListener is told about every committed answer change. Listeners must
// not block for long; they run on the caller's goroutine.
type ChangeListener interface {
	AnswerChanged(ctx context.Context, change domain.AnswerChange)
}

func notify(ctx context.Context, listeners []ChangeListener, change domain.AnswerChange) {
	for _, l := range listeners {
		l.AnswerChanged(ctx, change)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
