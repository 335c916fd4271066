package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drill-review-service/internal/app"
	"drill-review-service/internal/config"
	"drill-review-service/internal/events"
	"drill-review-service/internal/infra/memory"
	"drill-review-service/internal/infra/postgres"
	infraredis "drill-review-service/internal/infra/redis"
	"drill-review-service/internal/logging"
	transport "drill-review-service/internal/transport/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the drill review server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the storage backend selected by storage.driver.
type stores struct {
	answers  app.AnswerStore
	sessions app.DrillSessionStore
	leaders  app.LeaderDirectory
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	publisher, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	drills := app.NewDrillService(st.sessions)
	board := app.NewLeaderboardService(st.answers, st.leaders, cfg.Scoring.PointsPerApproval)
	hub := app.NewLeaderboardHub(board)
	answers := app.NewAnswerService(st.answers, cfg.Scoring.MaxAttempts).
		WithSessionGate(drills).
		WithLeaders(st.leaders).
		WithListeners(hub, publisher)
	reviews := app.NewReviewService(st.answers, app.NewAssignmentAuthorizer(st.leaders), hub, publisher)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(transport.Services{
		Answers:     answers,
		Reviews:     reviews,
		Leaderboard: board,
		Sessions:    drills,
		Leaders:     st.leaders,
		Hub:         hub,
	}, log)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting drill review service",
			zap.String("port", finalPort),
			zap.String("storage", cfg.Storage.Driver),
			zap.Int("max_attempts", answers.MaxAttempts()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (*stores, error) {
	st := &stores{}
	leaderTTL := config.TTLDuration(cfg.Leaders.TTL, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	var loader memory.LeaderLoader = memory.NewStaticLeaderLoader(cfg.RosterLeaders())

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.closers = append(st.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			st.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := openBun(cfg)
		if err != nil {
			st.close()
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		if err := migrateDB(ctx, db, log); err != nil {
			st.close()
			return nil, err
		}
		if err := postgres.UpsertLeaders(ctx, db, cfg.RosterLeaders()); err != nil {
			st.close()
			return nil, fmt.Errorf("seed leaders: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			st.close()
			return nil, err
		}
		st.closers = append(st.closers, pool.Close)
		loader = postgres.NewLeaderLoader(pool)
		st.answers = postgres.NewAnswerStore(db)
		st.sessions = postgres.NewDrillSessionStore(db)
	case config.DriverRedis:
		st.answers = infraredis.NewAnswerStore(redisClient)
		st.sessions = infraredis.NewDrillSessionStore(redisClient)
	default:
		st.answers = memory.NewAnswerStore()
		st.sessions = memory.NewDrillSessionStore()
	}

	if redisClient != nil {
		st.leaders = infraredis.NewLeaderDirectory(redisClient, loader, leaderTTL)
	} else {
		st.leaders = memory.NewLeaderDirectory(loader, leaderTTL)
	}
	return st, nil
}

func openPublisher(cfg config.Config, log *zap.Logger) (*events.Publisher, error) {
	var pub message.Publisher
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaPub, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, log)
		if err != nil {
			return nil, err
		}
		pub = kafkaPub
	} else {
		pub = events.NewGoChannel(log)
	}
	return events.NewPublisher(pub, cfg.Events.Topic, log), nil
}
