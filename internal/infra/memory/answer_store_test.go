package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"drill-review-service/internal/domain"
)

func allowAll(_ []domain.Answer) error { return nil }

func TestAnswerStoreAssignsSequentialAttempts(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()

	for i, id := range []string{"a1", "a2", "a3"} {
		got, err := store.Insert(ctx, domain.Answer{ID: id, LeaderID: "l1", SessionID: "s1", QuestionID: "q1"}, allowAll)
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
		if got.AttemptNumber != i+1 {
			t.Fatalf("expected attempt %d, got %d", i+1, got.AttemptNumber)
		}
		if got.Status != domain.StatusPending {
			t.Fatalf("expected pending status, got %s", got.Status)
		}
	}

	other, err := store.Insert(ctx, domain.Answer{ID: "b1", LeaderID: "l1", SessionID: "s1", QuestionID: "q2"}, allowAll)
	if err != nil {
		t.Fatalf("insert other question: %v", err)
	}
	if other.AttemptNumber != 1 {
		t.Fatalf("attempts are per question, got %d", other.AttemptNumber)
	}
}

func TestAnswerStoreGuardVetoesInsert(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()

	_, err := store.Insert(ctx, domain.Answer{ID: "a1", LeaderID: "l1", QuestionID: "q1"}, func(prior []domain.Answer) error {
		return domain.ErrAttemptLimitReached
	})
	if !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if _, err := store.Get(ctx, "a1"); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("vetoed answer must not be stored, got %v", err)
	}
}

func TestAnswerStoreListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()
	for _, a := range []domain.Answer{
		{ID: "x", LeaderID: "l2", SessionID: "s1", QuestionID: "q1"},
		{ID: "y", LeaderID: "l1", SessionID: "s2", QuestionID: "q1"},
		{ID: "z", LeaderID: "l1", SessionID: "s1", QuestionID: "q2"},
	} {
		if _, err := store.Insert(ctx, a, allowAll); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all, _ := store.List(ctx, domain.AnswerFilter{})
	if len(all) != 3 || all[0].ID != "x" || all[1].ID != "y" || all[2].ID != "z" {
		t.Fatalf("unexpected order: %+v", all)
	}
	s1, _ := store.List(ctx, domain.AnswerFilter{SessionID: "s1", LeaderID: "l1"})
	if len(s1) != 1 || s1[0].ID != "z" {
		t.Fatalf("unexpected filtered result: %+v", s1)
	}
	none, _ := store.List(ctx, domain.AnswerFilter{Status: domain.StatusApproved})
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", none)
	}
}

func TestAnswerStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()
	if _, err := store.Insert(ctx, domain.Answer{ID: "a1", LeaderID: "l1", SessionID: "s1", QuestionID: "q1"}, allowAll); err != nil {
		t.Fatalf("insert: %v", err)
	}

	other := "l2"
	if _, err := store.Update(ctx, "a1", domain.AnswerPatch{LeaderID: &other}); !errors.Is(err, domain.ErrImmutableField) {
		t.Fatalf("expected immutable field error, got %v", err)
	}
	if _, err := store.Update(ctx, "missing", domain.AnswerPatch{}); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	approved := domain.StatusApproved
	now := time.Now()
	reviewer := "x1"
	updated, err := store.Update(ctx, "a1", domain.AnswerPatch{Status: &approved, ReviewedAt: &now, ReviewedBy: &reviewer, ExpectPending: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusApproved || updated.ReviewedBy == nil || *updated.ReviewedBy != "x1" {
		t.Fatalf("unexpected updated answer: %+v", updated)
	}

	rejected := domain.StatusRejected
	if _, err := store.Update(ctx, "a1", domain.AnswerPatch{Status: &rejected, ExpectPending: true}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	stored, _ := store.Get(ctx, "a1")
	if stored.Status != domain.StatusApproved {
		t.Fatalf("failed conditional update must not mutate, got %s", stored.Status)
	}
}

func TestAnswerStoreConditionalUpdateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()
	if _, err := store.Insert(ctx, domain.Answer{ID: "a1", LeaderID: "l1", QuestionID: "q1"}, allowAll); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 16)
	for i := 0; i < 16; i++ {
		status := domain.StatusApproved
		if i%2 == 1 {
			status = domain.StatusRejected
		}
		wg.Add(1)
		go func(status domain.AnswerStatus) {
			defer wg.Done()
			_, err := store.Update(ctx, "a1", domain.AnswerPatch{Status: &status, ExpectPending: true})
			results <- err
		}(status)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, domain.ErrInvalidTransition):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestAnswerStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()
	if _, err := store.Insert(ctx, domain.Answer{ID: "a1", LeaderID: "l1", QuestionID: "q1"}, allowAll); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ok, err := store.Delete(ctx, "a1"); err != nil || !ok {
		t.Fatalf("expected delete to succeed, got %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "a1"); err != nil || ok {
		t.Fatalf("second delete should report missing, got %v %v", ok, err)
	}
	all, _ := store.List(ctx, domain.AnswerFilter{})
	if len(all) != 0 {
		t.Fatalf("expected empty store, got %d", len(all))
	}
}
