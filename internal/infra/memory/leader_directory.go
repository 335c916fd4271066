package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"drill-review-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// LeaderLoader fetches the leader roster from a backing store.
type LeaderLoader interface {
	LoadLeaders(ctx context.Context) ([]domain.Leader, error)
}

// LeaderDirectory caches the roster with TTL to avoid repeated DB hits.
type LeaderDirectory struct {
	loader LeaderLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	roster    []domain.Leader
	byID      map[string]domain.Leader
	expiresAt time.Time
}

func NewLeaderDirectory(loader LeaderLoader, ttl time.Duration) *LeaderDirectory {
	return &LeaderDirectory{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *LeaderDirectory) Roster(ctx context.Context) ([]domain.Leader, error) {
	roster, _, err := d.load(ctx)
	return roster, err
}

func (d *LeaderDirectory) Leader(ctx context.Context, id string) (domain.Leader, error) {
	_, byID, err := d.load(ctx)
	if err != nil {
		return domain.Leader{}, err
	}
	leader, ok := byID[id]
	if !ok {
		return domain.Leader{}, domain.ErrLeaderNotFound
	}
	return leader, nil
}

// Invalidate drops the cached roster so the next read reloads it.
func (d *LeaderDirectory) Invalidate() {
	d.mu.Lock()
	d.expiresAt = time.Time{}
	d.mu.Unlock()
}

type rosterSnapshot struct {
	roster []domain.Leader
	byID   map[string]domain.Leader
}

func (d *LeaderDirectory) load(ctx context.Context) ([]domain.Leader, map[string]domain.Leader, error) {
	if snap, ok := d.cached(); ok {
		return snap.roster, snap.byID, nil
	}

	result, err, _ := d.sf.Do("roster", func() (interface{}, error) {
		if snap, ok := d.cached(); ok {
			return snap, nil
		}

		roster, err := d.loader.LoadLeaders(ctx)
		if err != nil {
			return rosterSnapshot{}, err
		}
		byID := make(map[string]domain.Leader, len(roster))
		for _, l := range roster {
			byID[l.ID] = l
		}

		d.mu.Lock()
		d.roster = roster
		d.byID = byID
		d.expiresAt = d.clock().Add(d.ttlWithJitter())
		d.mu.Unlock()
		return rosterSnapshot{roster: roster, byID: byID}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	snap := result.(rosterSnapshot)
	return snap.roster, snap.byID, nil
}

func (d *LeaderDirectory) cached() (rosterSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.byID == nil || !d.expiresAt.After(d.clock()) {
		return rosterSnapshot{}, false
	}
	return rosterSnapshot{roster: d.roster, byID: d.byID}, true
}

// StaticLeaderLoader serves a fixed roster (config seed, tests, demos).
type StaticLeaderLoader struct {
	leaders []domain.Leader
}

func NewStaticLeaderLoader(leaders []domain.Leader) *StaticLeaderLoader {
	return &StaticLeaderLoader{leaders: leaders}
}

func (l *StaticLeaderLoader) LoadLeaders(_ context.Context) ([]domain.Leader, error) {
	out := make([]domain.Leader, len(l.leaders))
	copy(out, l.leaders)
	return out, nil
}

func (d *LeaderDirectory) ttlWithJitter() time.Duration {
	if d.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(d.ttl) / 10
	return d.ttl + time.Duration(d.rnd.Int63n(jitterMax+1))
}
