package flags

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/flaggate/pkg/flag"
)

// Options configures the flags module router.
type Options struct {
	// Engine serves the public evaluation routes.
	Engine *flag.Engine
	// Service serves the privileged flag mutations.
	Service *flag.Service
	// Overrides serves the per-tenant override mutations.
	Overrides *flag.OverrideManager
	// AdminRole is the role required on the admin routes, matched against
	// the X-Admin-Role request header.
	AdminRole string
	// Logger receives request-level diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Router builds the module's HTTP surface: a public, tenant-scoped read
// path and a privileged admin write path.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/", flags.Router(flags.Options{
//	    Engine:    engine,
//	    Service:   svc,
//	    Overrides: overrides,
//	    AdminRole: "flags-admin",
//	}))
func Router(opts Options) chi.Router {
	if opts.Engine == nil || opts.Service == nil || opts.Overrides == nil {
		panic("flags: engine, service, and overrides are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &handlers{
		engine:    opts.Engine,
		service:   opts.Service,
		overrides: opts.Overrides,
		log:       opts.Logger,
	}

	r := chi.NewRouter()

	r.Route("/flags/{tenantID}", func(r chi.Router) {
		r.Get("/", h.evaluateAll)
		r.Get("/{flagKey}", h.evaluate)
	})

	r.Route("/admin/flags", func(r chi.Router) {
		r.Use(requireRole(opts.AdminRole))

		r.Post("/", h.createFlag)
		r.Get("/", h.listFlags)

		r.Route("/{flagID}", func(r chi.Router) {
			r.Get("/", h.getFlag)
			r.Put("/", h.updateFlag)
			r.Post("/kill", h.killFlag)
			r.Post("/revive", h.reviveFlag)
			r.Post("/archive", h.archiveFlag)
			r.Get("/history", h.listHistory)
			r.Get("/overrides", h.listOverrides)
			r.Post("/overrides/{tenantID}", h.setOverride)
			r.Delete("/overrides/{tenantID}", h.removeOverride)
		})
	})

	return r
}
