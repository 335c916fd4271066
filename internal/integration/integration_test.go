package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"drill-review-service/internal/app"
	"drill-review-service/internal/domain"
	"drill-review-service/internal/infra/postgres"
	pgmigrations "drill-review-service/internal/infra/postgres/migrations"
	infraredis "drill-review-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestDrillReviewEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateAndSeed(t, ctx, pgURL, sampleLeaders())
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	leaders := infraredis.NewLeaderDirectory(redisClient, postgres.NewLeaderLoader(pool), 5*time.Minute)
	answers := postgres.NewAnswerStore(db)
	drills := app.NewDrillService(postgres.NewDrillSessionStore(db))
	submit := app.NewAnswerService(answers, 3).WithSessionGate(drills).WithLeaders(leaders)
	review := app.NewReviewService(answers, app.NewAssignmentAuthorizer(leaders))
	board := app.NewLeaderboardService(answers, leaders, 10)

	session, err := drills.Create(ctx, app.CreateSessionInput{Name: "Integration drill"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for _, status := range []string{"scheduled", "live"} {
		if _, err := drills.Transition(ctx, session.ID, status); err != nil {
			t.Fatalf("transition %s: %v", status, err)
		}
	}

	other, err := drills.Create(ctx, app.CreateSessionInput{Name: "Second"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := drills.Transition(ctx, other.ID, "scheduled"); err != nil {
		t.Fatalf("schedule second: %v", err)
	}
	if _, err := drills.Transition(ctx, other.ID, "live"); !errors.Is(err, domain.ErrSessionAlreadyLive) {
		t.Fatalf("expected single live session, got %v", err)
	}

	first, err := submit.Submit(ctx, app.SubmitInput{LeaderID: "u1", SessionID: session.ID, QuestionID: "q1", Text: "evacuate"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := review.Reject(ctx, first.ID, domain.Reviewer{ID: "x1", Role: domain.RoleXcon}, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}
	second, err := submit.Submit(ctx, app.SubmitInput{LeaderID: "u1", SessionID: session.ID, QuestionID: "q1", Text: "evacuate floor 3"})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.AttemptNumber != 2 {
		t.Fatalf("expected attempt 2, got %d", second.AttemptNumber)
	}
	// The pair lock is keyed per (leader, question); another leader on q1 starts fresh.
	otherLeader, err := submit.Submit(ctx, app.SubmitInput{LeaderID: "u2", SessionID: session.ID, QuestionID: "q1", Text: "isolate"})
	if err != nil || otherLeader.AttemptNumber != 1 {
		t.Fatalf("expected u2 attempt 1, got %+v %v", otherLeader, err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := review.Approve(ctx, second.ID, domain.Reviewer{ID: "admin", Role: domain.RoleSuperAdmin}, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("unexpected approve error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected one approval, got %d", wins)
	}

	lb, err := board.Compute(ctx, session.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].LeaderID != "u1" {
		t.Fatalf("expected u1 leading, got %+v", lb.Entries)
	}
	if e := lb.Entries[0]; e.Answered != 2 || e.Approved != 1 || e.Score != 10 {
		t.Fatalf("unexpected u1 entry %+v", e)
	}

	deleted, err := submit.Delete(ctx, first.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "drill", "POSTGRES_PASSWORD": "drillpass", "POSTGRES_DB": "drilldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://drill:drillpass@%s:%s/drilldb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string, leaders []domain.Leader) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := postgres.UpsertLeaders(ctx, db, leaders); err != nil {
		t.Fatalf("seed leaders: %v", err)
	}
	return db
}

func sampleLeaders() []domain.Leader {
	return []domain.Leader{
		{ID: "u1", Name: "Alice", Team: "North", AssignedXconID: "x1"},
		{ID: "u2", Name: "Bob", Team: "South", AssignedXconID: "x2"},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
