package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Habibi330/anexo-lookup-bot/internal/config"
	banssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/bans"
	tokenssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/tokens"
	"github.com/Habibi330/anexo-lookup-bot/internal/transport/http/handlers"
)

type Dependencies struct {
	BanService   *banssvc.Service
	TokenService *tokenssvc.Service
	RequestsRepo handlers.MissingRequestLister
	Logger       *zap.Logger
	Config       config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	bansHandler := handlers.NewBansHandler(deps.BanService)
	tokensHandler := handlers.NewTokensHandler(deps.TokenService)
	requestsHandler := handlers.NewRequestsHandler(deps.RequestsRepo)

	r.Get("/health", healthHandler.Health)

	r.Route("/admin", func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Config.API.AuthToken))

		r.Get("/bans", bansHandler.List)
		r.Post("/bans", bansHandler.Create)
		r.Delete("/bans/{subject}", bansHandler.Delete)

		r.Post("/tokens", tokensHandler.Create)
		r.Get("/tokens/unused", tokensHandler.Unused)

		r.Get("/requests", requestsHandler.Recent)
	})
}
