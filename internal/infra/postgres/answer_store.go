package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"drill-review-service/internal/app"
	"drill-review-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type answerModel struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID            string     `bun:"id,pk"`
	LeaderID      string     `bun:"leader_id,notnull"`
	SessionID     string     `bun:"session_id,notnull"`
	QuestionID    string     `bun:"question_id,notnull"`
	Text          string     `bun:"text,notnull"`
	Status        string     `bun:"status,notnull"`
	AttemptNumber int        `bun:"attempt_number,notnull"`
	SubmittedAt   time.Time  `bun:"submitted_at,notnull"`
	ReviewedAt    *time.Time `bun:"reviewed_at"`
	ReviewedBy    *string    `bun:"reviewed_by"`
	Feedback      *string    `bun:"feedback"`
}

func toAnswerModel(a domain.Answer) answerModel {
	return answerModel{
		ID:            a.ID,
		LeaderID:      a.LeaderID,
		SessionID:     a.SessionID,
		QuestionID:    a.QuestionID,
		Text:          a.Text,
		Status:        string(a.Status),
		AttemptNumber: a.AttemptNumber,
		SubmittedAt:   a.SubmittedAt,
		ReviewedAt:    a.ReviewedAt,
		ReviewedBy:    a.ReviewedBy,
		Feedback:      a.Feedback,
	}
}

func (m answerModel) toDomain() domain.Answer {
	return domain.Answer{
		ID:            m.ID,
		LeaderID:      m.LeaderID,
		SessionID:     m.SessionID,
		QuestionID:    m.QuestionID,
		Text:          m.Text,
		Status:        domain.AnswerStatus(m.Status),
		AttemptNumber: m.AttemptNumber,
		SubmittedAt:   m.SubmittedAt,
		ReviewedAt:    m.ReviewedAt,
		ReviewedBy:    m.ReviewedBy,
		Feedback:      m.Feedback,
	}
}

// attemptLockQuery takes the two-key advisory lock of one (leader, question)
// pair, so keys never collide through concatenation.
const attemptLockQuery = "SELECT pg_advisory_xact_lock(hashtext(?), hashtext(?))"

// AnswerStore persists answers in the answers table.
//
// Insert serializes attempts of one (leader, question) pair with a
// transaction-scoped advisory lock; Update locks the row with SELECT ... FOR
// UPDATE before checking the pending condition.
type AnswerStore struct {
	db *bun.DB
}

func NewAnswerStore(db *bun.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

func (s *AnswerStore) Insert(ctx context.Context, answer domain.Answer, guard app.AttemptGuard) (domain.Answer, error) {
	var created domain.Answer
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, attemptLockQuery, answer.LeaderID, answer.QuestionID); err != nil {
			return fmt.Errorf("lock attempts: %w", err)
		}

		var rows []answerModel
		err := tx.NewSelect().
			Model(&rows).
			Where("a.leader_id = ?", answer.LeaderID).
			Where("a.question_id = ?", answer.QuestionID).
			OrderExpr("a.attempt_number ASC").
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		prior := make([]domain.Answer, len(rows))
		for i, r := range rows {
			prior[i] = r.toDomain()
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
		m := toAnswerModel(created)
		_, err = tx.NewInsert().Model(&m).Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Answer{}, err
	}
	return created, nil
}

func (s *AnswerStore) Get(ctx context.Context, id string) (domain.Answer, error) {
	var m answerModel
	err := s.db.NewSelect().Model(&m).Where("a.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.Answer{}, err
	}
	return m.toDomain(), nil
}

// List returns matching answers in submission order.
func (s *AnswerStore) List(ctx context.Context, filter domain.AnswerFilter) ([]domain.Answer, error) {
	var rows []answerModel
	q := s.db.NewSelect().Model(&rows).OrderExpr("a.seq ASC")
	if filter.LeaderID != "" {
		q = q.Where("a.leader_id = ?", filter.LeaderID)
	}
	if filter.SessionID != "" {
		q = q.Where("a.session_id = ?", filter.SessionID)
	}
	switch {
	case filter.Status.IsPending():
		q = q.Where("a.status IN (?)", bun.In([]string{string(domain.StatusPending), string(domain.StatusSubmitted)}))
	case filter.Status != "":
		q = q.Where("a.status = ?", string(filter.Status))
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]domain.Answer, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *AnswerStore) Update(ctx context.Context, id string, patch domain.AnswerPatch) (domain.Answer, error) {
	if err := patch.Validate(); err != nil {
		return domain.Answer{}, err
	}
	var updated domain.Answer
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m answerModel
		err := tx.NewSelect().Model(&m).Where("a.id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAnswerNotFound
		}
		if err != nil {
			return err
		}
		current := m.toDomain()
		if patch.ExpectPending && !current.Status.IsPending() {
			return domain.ErrAnswerNotPending
		}
		updated = patch.Apply(current)
		next := toAnswerModel(updated)
		_, err = tx.NewUpdate().
			Model(&next).
			Column("text", "status", "reviewed_at", "reviewed_by", "feedback").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Answer{}, err
	}
	return updated, nil
}

func (s *AnswerStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.NewDelete().Model((*answerModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
