package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"drill-review-service/internal/domain"
	"github.com/uptrace/bun"
)

type sessionModel struct {
	bun.BaseModel `bun:"table:drill_sessions,alias:s"`

	ID        string     `bun:"id,pk"`
	Name      string     `bun:"name,notnull"`
	Status    string     `bun:"status,notnull"`
	StartTime *time.Time `bun:"start_time"`
	EndTime   *time.Time `bun:"end_time"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
}

func toSessionModel(d domain.DrillSession) sessionModel {
	return sessionModel{
		ID:        d.ID,
		Name:      d.Name,
		Status:    string(d.Status),
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
		CreatedAt: d.CreatedAt,
	}
}

func (m sessionModel) toDomain() domain.DrillSession {
	return domain.DrillSession{
		ID:        m.ID,
		Name:      m.Name,
		Status:    domain.SessionStatus(m.Status),
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		CreatedAt: m.CreatedAt,
	}
}

// DrillSessionStore keeps drill sessions in Postgres. A partial unique index
// on status = 'live' backs up the single-live check made under row lock.
type DrillSessionStore struct {
	db *bun.DB
}

func NewDrillSessionStore(db *bun.DB) *DrillSessionStore {
	return &DrillSessionStore{db: db}
}

func (s *DrillSessionStore) Create(ctx context.Context, session domain.DrillSession) error {
	m := toSessionModel(session)
	if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("drill session %s already exists", session.ID)
		}
		return err
	}
	return nil
}

func (s *DrillSessionStore) Get(ctx context.Context, id string) (domain.DrillSession, error) {
	var m sessionModel
	err := s.db.NewSelect().Model(&m).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DrillSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.DrillSession{}, err
	}
	return m.toDomain(), nil
}

func (s *DrillSessionStore) List(ctx context.Context) ([]domain.DrillSession, error) {
	var rows []sessionModel
	err := s.db.NewSelect().Model(&rows).OrderExpr("s.created_at ASC, s.id ASC").Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]domain.DrillSession, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *DrillSessionStore) Transition(ctx context.Context, id string, to domain.SessionStatus, now time.Time) (domain.DrillSession, error) {
	var updated domain.DrillSession
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m sessionModel
		err := tx.NewSelect().Model(&m).Where("s.id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		if to == domain.SessionLive {
			busy, err := tx.NewSelect().
				Model((*sessionModel)(nil)).
				Where("s.status = ?", string(domain.SessionLive)).
				Where("s.id <> ?", id).
				Exists(ctx)
			if err != nil {
				return err
			}
			if busy {
				return domain.ErrSessionAlreadyLive
			}
		}

		session := m.toDomain()
		if err := session.Transition(to, now); err != nil {
			return err
		}
		next := toSessionModel(session)
		if _, err := tx.NewUpdate().
			Model(&next).
			Column("status", "start_time", "end_time").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		updated = session
		return nil
	})
	if isUniqueViolation(err) {
		return domain.DrillSession{}, domain.ErrSessionAlreadyLive
	}
	if err != nil {
		return domain.DrillSession{}, err
	}
	return updated, nil
}
