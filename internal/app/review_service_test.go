package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"drill-review-service/internal/app"
	"drill-review-service/internal/domain"
)

func TestConcurrentReviewsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustSubmit(t, "L", "Q1")

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.review.Approve(ctx, a.ID, superAdmin, nil)
			} else {
				_, err = f.review.Reject(ctx, a.ID, superAdmin, nil)
			}
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected one winning review, got %d", wins)
	}

	reviewed := 0
	for _, k := range f.recorder.kinds() {
		if k == domain.ChangeApproved || k == domain.ChangeRejected {
			reviewed++
		}
	}
	if reviewed != 1 {
		t.Fatalf("expected one review notification, got %d", reviewed)
	}
}

func TestReviewChecksAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustSubmit(t, "L", "Q1")

	_, err := f.review.Approve(ctx, a.ID, domain.Reviewer{ID: "x2", Role: domain.RoleXcon}, nil)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	stored, _ := f.submit.Get(ctx, a.ID)
	if stored.Status != domain.StatusPending {
		t.Fatalf("refused review must not mutate, got %s", stored.Status)
	}

	if _, err := f.review.Reject(ctx, a.ID, domain.Reviewer{Role: domain.RoleXcon}, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected missing reviewer validation, got %v", err)
	}
	if _, err := f.review.Reject(ctx, "missing", superAdmin, nil); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	rejected, err := f.review.Reject(ctx, a.ID, domain.Reviewer{ID: "x1", Role: domain.RoleXcon}, strPtr("   "))
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Feedback != nil {
		t.Fatalf("blank feedback should be dropped, got %q", *rejected.Feedback)
	}
}

func TestAssignmentAuthorizer(t *testing.T) {
	f := newFixture(t)
	authz := app.NewAssignmentAuthorizer(f.leaders)
	ctx := context.Background()

	cases := []struct {
		name     string
		reviewer domain.Reviewer
		leader   string
		want     bool
	}{
		{"super admin reviews anyone", superAdmin, "M", true},
		{"assigned xcon", domain.Reviewer{ID: "x1", Role: domain.RoleXcon}, "L", true},
		{"other xcon", domain.Reviewer{ID: "x1", Role: domain.RoleXcon}, "M", false},
		{"unknown leader", domain.Reviewer{ID: "x1", Role: domain.RoleXcon}, "ghost", false},
		{"leader role", domain.Reviewer{ID: "L", Role: domain.RoleLeader}, "L", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := authz.CanReview(ctx, tc.reviewer, domain.Answer{LeaderID: tc.leader})
			if err != nil {
				t.Fatalf("can review: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want %v got %v", tc.want, got)
			}
		})
	}
}
