package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drill-review-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DrillSessionStore is a Redis implementation of app.DrillSessionStore.
// drill:live holds the id of the single live session; transitions watch it
// together with the session key.
type DrillSessionStore struct {
	client *redis.Client
}

func NewDrillSessionStore(client *redis.Client) *DrillSessionStore {
	return &DrillSessionStore{client: client}
}

func (s *DrillSessionStore) Create(ctx context.Context, session domain.DrillSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("drill session %s already exists", session.ID)
	}
	return s.client.RPush(ctx, s.indexKey(), session.ID).Err()
}

func (s *DrillSessionStore) Get(ctx context.Context, id string) (domain.DrillSession, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DrillSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.DrillSession{}, err
	}
	return decodeSession(raw)
}

// List returns sessions in creation order.
func (s *DrillSessionStore) List(ctx context.Context) ([]domain.DrillSession, error) {
	ids, err := s.client.LRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.DrillSession, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		session, err := decodeSession([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *DrillSessionStore) Transition(ctx context.Context, id string, to domain.SessionStatus, now time.Time) (domain.DrillSession, error) {
	key := s.key(id)
	var updated domain.DrillSession

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		session, err := decodeSession(raw)
		if err != nil {
			return err
		}

		live, err := tx.Get(ctx, s.liveKey()).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if to == domain.SessionLive && live != "" && live != id {
			return domain.ErrSessionAlreadyLive
		}
		if err := session.Transition(to, now); err != nil {
			return err
		}
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			switch {
			case to == domain.SessionLive:
				pipe.Set(ctx, s.liveKey(), id, 0)
			case live == id:
				pipe.Del(ctx, s.liveKey())
			}
			return nil
		})
		if err == nil {
			updated = session
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key, s.liveKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.DrillSession{}, err
		}
		return updated, nil
	}
	return domain.DrillSession{}, errTxContention
}

func decodeSession(raw []byte) (domain.DrillSession, error) {
	var session domain.DrillSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.DrillSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *DrillSessionStore) key(id string) string {
	return "drill:session:" + id
}

func (s *DrillSessionStore) indexKey() string {
	return "drill:sessions"
}

func (s *DrillSessionStore) liveKey() string {
	return "drill:live"
}
