package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mesaqr/api/internal/config"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/handler"
	"github.com/mesaqr/api/internal/menu"
	mw "github.com/mesaqr/api/internal/middleware"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/mesaqr/api/internal/ws"
	"github.com/rs/zerolog/log"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, table scoping, rate limiting, and role-based
// middleware as needed.
func New(cfg *config.Config, passcodeHash string, store *orderstore.Store, catalog *menu.Catalog, hub *ws.Hub) (chi.Router, error) {
	customerLimit, err := mw.RateLimit(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","origin":%q,"persist_failures":%d}`, store.Origin(), store.PersistFailures())
	})

	authHandler := handler.NewAuthHandler(passcodeHash, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	menuHandler := handler.NewMenuHandler(catalog)
	menuHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{channel}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, store, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		tableHandler := handler.NewTableHandler(store, catalog)
		r.Route("/tables/{tid}", func(r chi.Router) {
			// Diners act on their own table; staff pass through.
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireTable)
				r.Use(customerLimit)
				tableHandler.RegisterCustomerRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.StaffRoles...))
				tableHandler.RegisterStaffRoutes(r)
			})
		})

		boardHandler := handler.NewBoardHandler(store)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleWaiter, enum.RoleAdmin))
			boardHandler.RegisterBoardRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleKitchen, enum.RoleWaiter, enum.RoleAdmin))
			boardHandler.RegisterKitchenRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleBar, enum.RoleWaiter, enum.RoleAdmin))
			boardHandler.RegisterBarRoutes(r)
		})
	})

	log.Info().Msg("router initialized with all handlers")
	return r, nil
}
