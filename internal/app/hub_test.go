package app_test

import (
	"context"
	"testing"
	"time"

	"drill-review-service/internal/app"
)

func TestHubPushesOnAnswerChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hub := app.NewLeaderboardHub(f.board)
	f.submit.WithListeners(hub)
	f.review = app.NewReviewService(f.answers, nil, hub)

	ch, cancel, err := hub.Subscribe(ctx, f.session)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	<-ch // initial snapshot

	a := f.mustSubmit(t, "L", "Q1")
	if _, err := f.review.Approve(ctx, a.ID, superAdmin, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case lb := <-ch:
			if lb.Entries[0].LeaderID == "L" && lb.Entries[0].Score == 10 {
				cancel()
				if hub.Subscribers(f.session) != 0 {
					t.Fatalf("expected no subscribers after cancel")
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for approved leaderboard")
		}
	}
}

func TestHubSkipsOtherSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hub := app.NewLeaderboardHub(f.board)

	ch, cancel, err := hub.Subscribe(ctx, f.session)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-ch

	if err := hub.Refresh(ctx, "other-session"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	select {
	case lb := <-ch:
		t.Fatalf("unexpected push %+v", lb)
	default:
	}
}

func TestHubDropsStaleSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hub := app.NewLeaderboardHub(f.board)

	ch, cancel, err := hub.Subscribe(ctx, f.session)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	// Never drain: refreshes beyond the buffer must not block.
	for i := 0; i < 50; i++ {
		if err := hub.Refresh(ctx, f.session); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
	if len(ch) == 0 {
		t.Fatalf("expected buffered snapshots")
	}
}
