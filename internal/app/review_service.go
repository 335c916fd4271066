package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"drill-review-service/internal/domain"
)

// ReviewService moves pending answers to approved or rejected.
type ReviewService struct {
	answers   AnswerStore
	authz     Authorizer
	listeners []ChangeListener
	now       func() time.Time
}

// NewReviewService builds the workflow. A nil authz skips the reviewer check;
// callers are then responsible for it.
func NewReviewService(answers AnswerStore, authz Authorizer, listeners ...ChangeListener) *ReviewService {
	return &ReviewService{answers: answers, authz: authz, listeners: listeners, now: time.Now}
}

// WithClock is for deterministic timestamps in tests.
func (s *ReviewService) WithClock(now func() time.Time) *ReviewService {
	s.now = now
	return s
}

// Approve marks a pending answer approved.
func (s *ReviewService) Approve(ctx context.Context, answerID string, reviewer domain.Reviewer, feedback *string) (domain.Answer, error) {
	return s.review(ctx, answerID, reviewer, domain.StatusApproved, feedback)
}

// Reject marks a pending answer rejected, freeing the leader for another attempt.
func (s *ReviewService) Reject(ctx context.Context, answerID string, reviewer domain.Reviewer, feedback *string) (domain.Answer, error) {
	return s.review(ctx, answerID, reviewer, domain.StatusRejected, feedback)
}

func (s *ReviewService) review(ctx context.Context, answerID string, reviewer domain.Reviewer, to domain.AnswerStatus, feedback *string) (domain.Answer, error) {
	answerID = strings.TrimSpace(answerID)
	if answerID == "" {
		return domain.Answer{}, domain.ValidationErrors{{Field: "id", Message: "is required", Rule: "required"}}
	}
	if strings.TrimSpace(reviewer.ID) == "" {
		return domain.Answer{}, domain.ValidationErrors{{Field: "reviewerId", Message: "is required", Rule: "required"}}
	}

	current, err := s.answers.Get(ctx, answerID)
	if err != nil {
		return domain.Answer{}, err
	}
	if s.authz != nil {
		ok, err := s.authz.CanReview(ctx, reviewer, current)
		if err != nil {
			return domain.Answer{}, err
		}
		if !ok {
			return domain.Answer{}, fmt.Errorf("%w: %s may not review answers of leader %s", domain.ErrUnauthorized, reviewer.ID, current.LeaderID)
		}
	}
	if !current.Status.IsPending() {
		return domain.Answer{}, fmt.Errorf("%w (status %s)", domain.ErrAnswerNotPending, current.Status)
	}

	now := s.now().UTC()
	reviewerID := reviewer.ID
	updated, err := s.answers.Update(ctx, answerID, domain.AnswerPatch{
		Status:        &to,
		ReviewedAt:    &now,
		ReviewedBy:    &reviewerID,
		Feedback:      cleanFeedback(feedback),
		ExpectPending: true,
	})
	if err != nil {
		return domain.Answer{}, err
	}

	kind := domain.ChangeApproved
	if to == domain.StatusRejected {
		kind = domain.ChangeRejected
	}
	notify(ctx, s.listeners, domain.AnswerChange{Kind: kind, Answer: updated, At: now})
	return updated, nil
}

func cleanFeedback(feedback *string) *string {
	if feedback == nil {
		return nil
	}
	v := strings.TrimSpace(*feedback)
	if v == "" {
		return nil
	}
	return &v
}

// AssignmentAuthorizer lets super-admins review everything and X-CONs review
// the leaders assigned to them.
type AssignmentAuthorizer struct {
	leaders LeaderDirectory
}

func NewAssignmentAuthorizer(leaders LeaderDirectory) *AssignmentAuthorizer {
	return &AssignmentAuthorizer{leaders: leaders}
}

func (a *AssignmentAuthorizer) CanReview(ctx context.Context, reviewer domain.Reviewer, answer domain.Answer) (bool, error) {
	switch reviewer.Role {
	case domain.RoleSuperAdmin:
		return true, nil
	case domain.RoleXcon:
		leader, err := a.leaders.Leader(ctx, answer.LeaderID)
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return leader.AssignedXconID != "" && leader.AssignedXconID == reviewer.ID, nil
	default:
		return false, nil
	}
}
