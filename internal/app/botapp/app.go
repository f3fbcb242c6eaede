package botapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Habibi330/anexo-lookup-bot/internal/config"
	s3infra "github.com/Habibi330/anexo-lookup-bot/internal/infra/s3"
	tginfra "github.com/Habibi330/anexo-lookup-bot/internal/infra/telegram"
	"github.com/Habibi330/anexo-lookup-bot/internal/jobs/cleanup"
	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
	redrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/redis"
	abusesvc "github.com/Habibi330/anexo-lookup-bot/internal/services/abuseguard"
	accesssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/access"
	banssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/bans"
	entsvc "github.com/Habibi330/anexo-lookup-bot/internal/services/entitlements"
	lookupsvc "github.com/Habibi330/anexo-lookup-bot/internal/services/lookup"
	tokenssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/tokens"
)

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	s3       *minio.Client
	bot      *tginfra.Bot

	userRepo     *pgrepo.UserRepo
	bans         *banssvc.Service
	guard        *abusesvc.Guard
	access       *accesssvc.Service
	entitlements *entsvc.Service
	tokens       *tokenssvc.Service
	lookup       *lookupsvc.Service
	cleanupJob   *cleanup.Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	if cfg.Postgres.MigrationsPath != "" {
		if err := pgrepo.Migrate(cfg.Postgres.DSN, cfg.Postgres.MigrationsPath, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	redisClient := redrepo.NewClient(redrepo.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	statsRepo := redrepo.NewStatsRepo(redisClient, cfg.Redis.StatsTTL)

	s3Client, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init s3 for bot app: %w", err)
	}

	bot, err := tginfra.NewBot(cfg.Bot.Token)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	userRepo := pgrepo.NewUserRepo(pool)
	tokenRepo := pgrepo.NewTokenRepo(pool)
	banRepo := pgrepo.NewBanRepo(pool)
	requestRepo := pgrepo.NewRequestRepo(pool)

	banService := banssvc.NewService(banRepo)
	guard := abusesvc.NewGuard(banService, abusesvc.Config{
		FloodWindow:           cfg.AntiAbuse.FloodWindow,
		FloodThreshold:        cfg.AntiAbuse.FloodThreshold,
		FloodFirstBan:         cfg.AntiAbuse.FloodFirstBan,
		FloodRepeatBan:        cfg.AntiAbuse.FloodRepeatBan,
		InvalidTokenThreshold: cfg.AntiAbuse.InvalidTokenThreshold,
		InvalidTokenBan:       cfg.AntiAbuse.InvalidTokenBan,
		ReusedTokenBan:        cfg.AntiAbuse.ReusedTokenBan,
		MaxTrackedSubjects:    cfg.AntiAbuse.MaxTrackedSubjects,
	}, logger)
	accessService := accesssvc.NewService(banService, guard)
	entitlementService := entsvc.NewService(tokenRepo, userRepo, entsvc.Config{
		DailyFreeSearches: cfg.Limits.FreeSearchesPerDay,
		MinTokenLength:    cfg.Limits.MinTokenLength,
	})
	tokenService := tokenssvc.NewService(tokenRepo)

	storage := lookupsvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	lookupService := lookupsvc.NewService(storage, statsRepo, requestRepo, int(cfg.Limits.MaxFileMB), logger)

	cleanupJob := cleanup.NewBanCleanupJob(banRepo, cfg.Cleanup.BanRetention, logger)

	return &App{
		cfg:          cfg,
		logger:       logger,
		postgres:     pool,
		redis:        redisClient,
		s3:           s3Client,
		bot:          bot,
		userRepo:     userRepo,
		bans:         banService,
		guard:        guard,
		access:       accessService,
		entitlements: entitlementService,
		tokens:       tokenService,
		lookup:       lookupService,
		cleanupJob:   cleanupJob,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	errCh := make(chan error, 2)
	go func() {
		errCh <- a.runCleanupLoop(ctx)
	}()
	go func() {
		errCh <- a.bot.Listen(ctx, tginfra.Handlers{
			OnCommand: a.handleCommand,
			OnText:    a.handleText,
		})
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

func (a *App) runCleanupLoop(ctx context.Context) error {
	if a.cleanupJob == nil {
		return nil
	}

	interval := a.cfg.Cleanup.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	if err := a.cleanupJob.Run(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.cleanupJob.Run(ctx); err != nil {
				return err
			}
		}
	}
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
