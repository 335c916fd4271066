package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"drill-review-service/internal/app"
	"drill-review-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 32

var errTxContention = errors.New("redis: transaction retries exhausted")

// AnswerStore keeps answers in Redis so several service instances share them.
// Layout:
//
//	SET   drill:answer:{id}                    JSON answer
//	RPUSH drill:answers                        {id}  (submission order)
//	RPUSH drill:attempts:{leaderID}:{questionID} {id}
//
// Insert watches the pair list and Update watches the answer key, so racing
// writers are serialized by optimistic transactions.
type AnswerStore struct {
	client *redis.Client
}

func NewAnswerStore(client *redis.Client) *AnswerStore {
	return &AnswerStore{client: client}
}

func (s *AnswerStore) Insert(ctx context.Context, answer domain.Answer, guard app.AttemptGuard) (domain.Answer, error) {
	pair := s.pairKey(answer.LeaderID, answer.QuestionID)
	var created domain.Answer

	err := s.watch(ctx, func(tx *redis.Tx) error {
		ids, err := tx.LRange(ctx, pair, 0, -1).Result()
		if err != nil {
			return err
		}
		prior, err := s.fetch(ctx, tx, ids)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(prior); err != nil {
				return err
			}
		}

		created = answer
		created.AttemptNumber = domain.NextAttemptNumber(prior)
		if created.Status == "" {
			created.Status = domain.StatusPending
		}
		data, err := json.Marshal(created)
		if err != nil {
			return fmt.Errorf("marshal answer: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.answerKey(created.ID), data, 0)
			pipe.RPush(ctx, s.indexKey(), created.ID)
			pipe.RPush(ctx, pair, created.ID)
			return nil
		})
		return err
	}, pair)
	if err != nil {
		return domain.Answer{}, err
	}
	return created, nil
}

func (s *AnswerStore) Get(ctx context.Context, id string) (domain.Answer, error) {
	return s.read(ctx, s.client, id)
}

func (s *AnswerStore) List(ctx context.Context, filter domain.AnswerFilter) ([]domain.Answer, error) {
	ids, err := s.client.LRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	all, err := s.fetch(ctx, s.client, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Answer, 0, len(all))
	for _, a := range all {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *AnswerStore) Update(ctx context.Context, id string, patch domain.AnswerPatch) (domain.Answer, error) {
	if err := patch.Validate(); err != nil {
		return domain.Answer{}, err
	}
	key := s.answerKey(id)
	var updated domain.Answer

	err := s.watch(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.ExpectPending && !current.Status.IsPending() {
			return domain.ErrAnswerNotPending
		}
		updated = patch.Apply(current)
		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal answer: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return domain.Answer{}, err
	}
	return updated, nil
}

func (s *AnswerStore) Delete(ctx context.Context, id string) (bool, error) {
	key := s.answerKey(id)
	deleted := false

	err := s.watch(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, id)
		if errors.Is(err, domain.ErrAnswerNotFound) {
			deleted = false
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.LRem(ctx, s.indexKey(), 0, id)
			pipe.LRem(ctx, s.pairKey(current.LeaderID, current.QuestionID), 0, id)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}, key)
	return deleted, err
}

// reader is the read surface shared by *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (s *AnswerStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errTxContention
}

func (s *AnswerStore) read(ctx context.Context, c reader, id string) (domain.Answer, error) {
	raw, err := c.Get(ctx, s.answerKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.Answer{}, err
	}
	var a domain.Answer
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Answer{}, fmt.Errorf("unmarshal answer %s: %w", id, err)
	}
	return a, nil
}

// fetch loads answers by id in the given order, skipping ids whose record
// vanished between the index read and the MGET.
func (s *AnswerStore) fetch(ctx context.Context, c reader, ids []string) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.answerKey(id)
	}
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var a domain.Answer
		if err := json.Unmarshal([]byte(str), &a); err != nil {
			return nil, fmt.Errorf("unmarshal answer %s: %w", ids[i], err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *AnswerStore) answerKey(id string) string {
	return "drill:answer:" + id
}

func (s *AnswerStore) indexKey() string {
	return "drill:answers"
}

func (s *AnswerStore) pairKey(leaderID, questionID string) string {
	return "drill:attempts:" + leaderID + ":" + questionID
}
