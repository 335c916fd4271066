package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"drill-review-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// LeaderLoader fetches the leader roster from a backing store.
type LeaderLoader interface {
	LoadLeaders(ctx context.Context) ([]domain.Leader, error)
}

// LeaderDirectory caches the roster in Redis as one JSON value and falls back
// to the loader on a miss:
//
//	SET drill:leaders <json roster> EX ttl
type LeaderDirectory struct {
	client *redis.Client
	loader LeaderLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewLeaderDirectory(client *redis.Client, loader LeaderLoader, ttl time.Duration) *LeaderDirectory {
	return &LeaderDirectory{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *LeaderDirectory) Roster(ctx context.Context) ([]domain.Leader, error) {
	if roster, ok := d.cached(ctx); ok {
		return roster, nil
	}

	result, err, _ := d.sf.Do("roster", func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if roster, ok := d.cached(ctx); ok {
			return roster, nil
		}

		roster, err := d.loader.LoadLeaders(ctx)
		if err != nil {
			return nil, err
		}
		if ttl := d.ttlWithJitter(); ttl > 0 {
			if data, err := json.Marshal(roster); err == nil {
				_ = d.client.Set(ctx, d.key(), data, ttl).Err()
			}
		}
		return roster, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Leader), nil
}

func (d *LeaderDirectory) Leader(ctx context.Context, id string) (domain.Leader, error) {
	roster, err := d.Roster(ctx)
	if err != nil {
		return domain.Leader{}, err
	}
	for _, l := range roster {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Leader{}, domain.ErrLeaderNotFound
}

// Invalidate drops the cached roster.
func (d *LeaderDirectory) Invalidate(ctx context.Context) error {
	return d.client.Del(ctx, d.key()).Err()
}

func (d *LeaderDirectory) cached(ctx context.Context) ([]domain.Leader, bool) {
	raw, err := d.client.Get(ctx, d.key()).Bytes()
	if err != nil {
		return nil, false
	}
	var roster []domain.Leader
	if err := json.Unmarshal(raw, &roster); err != nil {
		return nil, false
	}
	return roster, true
}

func (d *LeaderDirectory) key() string {
	return "drill:leaders"
}

func (d *LeaderDirectory) ttlWithJitter() time.Duration {
	if d.ttl <= 0 {
		return 0
	}
	jitterMax := int64(d.ttl) / 10
	return d.ttl + time.Duration(d.rnd.Int63n(jitterMax+1))
}
