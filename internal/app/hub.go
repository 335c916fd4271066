package app

import (
	"context"
	"sync"

	"drill-review-service/internal/domain"
)

// LeaderboardSource computes a session leaderboard on demand.
type LeaderboardSource interface {
	Compute(ctx context.Context, sessionID string) (domain.Leaderboard, error)
}

// LeaderboardHub pushes freshly computed leaderboards to subscribers whenever
// an answer in their session changes. Clients that poll do not need it.
type LeaderboardHub struct {
	source LeaderboardSource

	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub(source LeaderboardSource) *LeaderboardHub {
	return &LeaderboardHub{
		source:      source,
		subscribers: make(map[string]map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel that first receives the current leaderboard and
// then every recomputation for sessionID. The caller must invoke the returned
// cancel function to avoid leaks.
func (h *LeaderboardHub) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Leaderboard, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	initial, err := h.source.Compute(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)
	subs, ok := h.subscribers[sessionID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	ch <- initial

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[sessionID]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, sessionID)
		}
	}
	return ch, cancel, nil
}

// AnswerChanged implements ChangeListener.
func (h *LeaderboardHub) AnswerChanged(ctx context.Context, change domain.AnswerChange) {
	_ = h.Refresh(ctx, change.Answer.SessionID)
}

// Refresh recomputes the session leaderboard and fans it out. Sessions without
// subscribers are skipped.
func (h *LeaderboardHub) Refresh(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[sessionID]
	if len(subs) == 0 {
		return nil
	}
	lb, err := h.source.Compute(ctx, sessionID)
	if err != nil {
		return err
	}
	for ch := range subs {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions for sessionID.
func (h *LeaderboardHub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[sessionID])
}
