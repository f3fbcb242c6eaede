package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Habibi330/anexo-lookup-bot/internal/config"
	pgrepo "github.com/Habibi330/anexo-lookup-bot/internal/repo/postgres"
	banssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/bans"
	tokenssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/tokens"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	banRepo := pgrepo.NewBanRepo(pool)
	tokenRepo := pgrepo.NewTokenRepo(pool)
	requestRepo := pgrepo.NewRequestRepo(pool)

	banService := banssvc.NewService(banRepo)
	tokenService := tokenssvc.NewService(tokenRepo)

	RegisterRoutes(r, Dependencies{
		BanService:   banService,
		TokenService: tokenService,
		RequestsRepo: requestRepo,
		Logger:       log,
		Config:       cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("admin api started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
