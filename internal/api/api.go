package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/config"
	"multi-tenant-notes/internal/manager"
	"multi-tenant-notes/internal/metrics"
)

type API struct {
	Accounts *manager.AccountManager
	Notes    *manager.NoteManager
	Tenants  *manager.TenantManager
	Resolver *auth.Resolver
	Cfg      *config.Config
	log      *zap.Logger
}

func NewAPI(
	accounts *manager.AccountManager,
	notes *manager.NoteManager,
	tenants *manager.TenantManager,
	resolver *auth.Resolver,
	cfg *config.Config,
	log *zap.Logger,
) *API {
	return &API{
		Accounts: accounts,
		Notes:    notes,
		Tenants:  tenants,
		Resolver: resolver,
		Cfg:      cfg,
		log:      log,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(a.recoverer)
	r.Use(a.cors())

	// Public
	r.Get("/health", a.Health)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/auth/login", a.Login)

	// Secured
	r.Group(func(r chi.Router) {
		r.Use(a.Resolver.Middleware(a.writeError))

		r.With(auth.Require(a.writeError)).Get("/auth/me", a.Me)
		r.With(auth.Require(a.writeError, auth.AdminOnly)).Post("/auth/register", a.Register)

		r.Route("/notes", func(r chi.Router) {
			r.Use(auth.Require(a.writeError))
			r.Get("/", a.ListNotes)
			r.Post("/", a.CreateNote)
			r.Get("/{id}", a.GetNote)
			r.Put("/{id}", a.UpdateNote)
			r.Delete("/{id}", a.DeleteNote)
		})

		r.With(auth.Require(a.writeError, auth.AdminOnly)).Post("/tenants/{slug}/upgrade", a.UpgradeTenant)
	})

	return r
}
