package cli

import (
	"context"
	"fmt"
	"time"

	"daily-challenge-service/internal/app"
	"daily-challenge-service/internal/config"
	"daily-challenge-service/internal/domain"
	"daily-challenge-service/internal/infra/memory"
	pgstore "daily-challenge-service/internal/infra/postgres"
	redisstore "daily-challenge-service/internal/infra/redis"
	"daily-challenge-service/internal/logger"
	"daily-challenge-service/internal/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// backend holds the storage adapters chosen from config. Postgres is preferred for durable
// state, Redis for caching and rankings, and memory fills whatever is not configured.
type backend struct {
	catalog  app.ChallengeCatalog
	attempts app.AttemptRepository
	ledger   app.BalanceLedger
	ranking  app.RankingBoard
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}
	retention := config.TTLDuration(cfg.Redis.TTL, 48*time.Hour)

	var loader memory.ChallengeLoader
	if pool != nil {
		loader = pgstore.NewChallengeLoader(pool, log)
	} else {
		static, err := memory.NewStaticChallengeLoader(sampleChallenges())
		if err != nil {
			b.Close()
			return nil, err
		}
		loader = static
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	if redisClient != nil {
		b.catalog = redisstore.NewCatalogCache(redisClient, loader, catalogTTL)
	} else {
		b.catalog = memory.NewCatalog(loader, catalogTTL)
	}

	switch {
	case pool != nil:
		b.attempts = pgstore.NewAttemptStore(pool)
		b.ledger = pgstore.NewLedger(pool)
		b.ranking = pgstore.NewRankingBoard(pool)
	case redisClient != nil:
		b.attempts = redisstore.NewAttemptStore(redisClient, retention)
		b.ledger = memory.NewLedger()
		b.ranking = redisstore.NewRankingBoard(redisClient, retention)
		log.Warn("no postgres configured, balances are kept in memory")
	default:
		b.attempts = memory.NewAttemptStore()
		b.ledger = memory.NewLedger()
		b.ranking = memory.NewRankingBoard()
		log.Warn("no storage configured, running fully in memory")
	}
	return b, nil
}

func newService(cfg config.Config, b *backend, log *zap.Logger, m *metrics.Metrics) (*app.ChallengeService, error) {
	calendar, err := domain.NewCalendar(cfg.Calendar.Timezone)
	if err != nil {
		return nil, err
	}
	return app.NewChallengeService(b.catalog, b.attempts, b.ledger, b.ranking,
		app.WithCalendar(calendar),
		app.WithLogger(log),
		app.WithMetrics(m),
	), nil
}

// sampleChallenges backs the service when no database is configured and seeds one on request.
func sampleChallenges() map[string]domain.Challenge {
	return map[string]domain.Challenge{
		"daily-general": {
			ID:              "daily-general",
			Title:           "General knowledge",
			Reward:          decimal.NewFromInt(100),
			RequiredCorrect: 3,
			TimeLimit:       300,
			Active:          true,
			Questions: []domain.Question{
				{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectAnswer: "b"},
				{ID: "q2", Text: "Which planet is known as the red planet?", Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectAnswer: "Mars"},
				{ID: "q3", Text: "How many continents are there?", Options: []string{"5", "6", "7", "8"}, CorrectAnswer: "c"},
				{ID: "q4", Text: "What is the chemical symbol for gold?", Options: []string{"Ag", "Au", "Gd", "Go"}, CorrectAnswer: "au"},
				{ID: "q5", Text: "Which ocean is the largest?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectAnswer: "d"},
			},
		},
	}
}
