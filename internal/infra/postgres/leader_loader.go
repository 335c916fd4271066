package postgres

import (
	"context"
	"fmt"

	"drill-review-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
)

// LeaderLoader loads the leader roster from Postgres.
type LeaderLoader struct {
	pool *pgxpool.Pool
}

func NewLeaderLoader(pool *pgxpool.Pool) *LeaderLoader {
	return &LeaderLoader{pool: pool}
}

func (l *LeaderLoader) LoadLeaders(ctx context.Context) ([]domain.Leader, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, name, email, team, assigned_xcon_id FROM leaders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load leaders: %w", err)
	}
	defer rows.Close()

	var leaders []domain.Leader
	for rows.Next() {
		var l domain.Leader
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Team, &l.AssignedXconID); err != nil {
			return nil, fmt.Errorf("scan leader: %w", err)
		}
		leaders = append(leaders, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load leaders: %w", err)
	}
	return leaders, nil
}

type leaderModel struct {
	bun.BaseModel `bun:"table:leaders,alias:l"`

	ID             string `bun:"id,pk"`
	Name           string `bun:"name,notnull"`
	Email          string `bun:"email,notnull"`
	Team           string `bun:"team,notnull"`
	AssignedXconID string `bun:"assigned_xcon_id,notnull"`
}

// UpsertLeaders writes leaders into the roster table, replacing rows with the
// same id.
func UpsertLeaders(ctx context.Context, db bun.IDB, leaders []domain.Leader) error {
	if len(leaders) == 0 {
		return nil
	}
	rows := make([]leaderModel, len(leaders))
	for i, l := range leaders {
		rows[i] = leaderModel{
			ID:             l.ID,
			Name:           l.Name,
			Email:          l.Email,
			Team:           l.Team,
			AssignedXconID: l.AssignedXconID,
		}
	}
	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("team = EXCLUDED.team").
		Set("assigned_xcon_id = EXCLUDED.assigned_xcon_id").
		Exec(ctx)
	return err
}
