package handler

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"device-entitlement-backend/pkg/billing"
	"device-entitlement-backend/pkg/config"
	"device-entitlement-backend/pkg/database"
	"device-entitlement-backend/pkg/entitlement"
	"device-entitlement-backend/pkg/handlers"
	customMiddleware "device-entitlement-backend/pkg/middleware"
	"device-entitlement-backend/pkg/plans"
	"device-entitlement-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

var (
	initOnce sync.Once
	router   *chi.Mux
	initErr  error
)

// Handler is the serverless entry point. All API endpoints live on one Chi
// router built lazily on the first request and reused across invocations of
// the same instance.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(initialize)
	if initErr != nil {
		utils.WriteInternalServerErrorResponse(w, "Service initialization failed: "+initErr.Error())
		return
	}
	router.ServeHTTP(w, r)
}

func initialize() {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		initErr = fmt.Errorf("configuration error: %w", err)
		return
	}

	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := database.NewPostgresDatabase(cfg.PostgresDSN)
	if err != nil {
		initErr = fmt.Errorf("database connection failed: %w", err)
		return
	}

	router = chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db)
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(customMiddleware.RequestLogger)
	router.Use(customMiddleware.Recovery(cfg))
	router.Use(customMiddleware.CORS(cfg))

	// leave headroom under the serverless execution limit
	router.Use(middleware.Timeout(25 * time.Second))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	// Engine wiring: services over the store, handlers over the services.
	directory := entitlement.NewDirectory(db)
	guard := entitlement.NewGuard(directory)
	resolver := entitlement.NewResolver(db, directory)
	accountant := entitlement.NewAccountant(db, directory)
	orgs := entitlement.NewOrgService(db, directory, guard)
	registry := entitlement.NewRegistry(db, resolver, accountant)
	syncer := entitlement.NewSyncer(db)

	stripe := billing.NewClient(cfg.StripeSecretKey)
	catalog := plans.NewCatalog(stripe, cfg.PriceCacheTTL)

	orgHandler := handlers.NewOrgHandler(orgs)
	deviceHandler := handlers.NewDeviceHandler(registry)
	subHandler := handlers.NewSubscriptionHandler(cfg, resolver, accountant, guard, stripe, catalog)
	profileHandler := handlers.NewProfileHandler(db)
	authzHandler := handlers.NewAuthzHandler(guard)
	webhookHandler := handlers.NewWebhookHandler(cfg, syncer, stripe, catalog)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := db.HealthCheck(); err != nil {
			status = "degraded"
		}
		utils.WriteSuccessResponse(w, map[string]string{
			"status":      status,
			"environment": cfg.Environment,
		})
	})

	router.Route("/api", func(r chi.Router) {
		// Webhooks authenticate by signature, not bearer token.
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookHandler.HandleStripe)
		})

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))

			r.Route("/profile", func(r chi.Router) {
				r.Post("/", profileHandler.Create)
				r.Get("/", profileHandler.Get)
				r.Put("/", profileHandler.Update)
			})

			r.Route("/organisation", func(r chi.Router) {
				r.Post("/", orgHandler.Create)
				r.Get("/", orgHandler.Get)
				r.Post("/leave", orgHandler.Leave)
				r.Post("/invitations/accept", orgHandler.AcceptInvitation)

				r.Route("/{org_id}", func(r chi.Router) {
					r.Put("/", orgHandler.Update)
					r.Delete("/", orgHandler.Delete)
					r.Get("/members", orgHandler.Members)
					r.Post("/members/invite", orgHandler.Invite)
					r.Put("/members/{member_id}", orgHandler.UpdateMemberRole)
					r.Delete("/members/{member_id}", orgHandler.RemoveMember)
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", deviceHandler.List)
				r.Post("/", deviceHandler.Register)
				r.Post("/{device_id}/heartbeat", deviceHandler.Heartbeat)
				r.Delete("/{device_id}", deviceHandler.Remove)
			})

			r.Route("/subscription", func(r chi.Router) {
				r.Get("/", subHandler.Get)
				r.Post("/checkout", subHandler.Checkout)
				r.Post("/portal", subHandler.Portal)
			})

			r.Post("/authz/check", authzHandler.Check)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponse(w, http.StatusMethodNotAllowed,
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path))
	})
}
