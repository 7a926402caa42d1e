package app

import (
	"context"
	"net/http"
	"time"

	authapi "bloggers/cmd/internal/auth/api"
	platformapi "bloggers/cmd/internal/platform/api"
	"bloggers/cmd/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (a *App) routes(authH *authapi.Handler, platformH *platformapi.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if a.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(WithRequestLogging(a.log))
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware)
	r.Use(WithSecurityHeaders)
	if origins := a.cfg.AllowedOrigins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", a.metrics.Handler())

	if a.cfg.TestingEndpoints {
		r.Delete("/testing/all-data", a.handleWipe)
	}

	authH.Register(r)
	platformH.Register(r)
	return r
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	for _, dep := range a.ready {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := dep.check(ctx)
		cancel()
		if err != nil {
			a.log.WarnContext(r.Context(), "readyz.not_ready", "dep", dep.name, "err", err)
			http.Error(w, dep.name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}

func (a *App) handleWipe(w http.ResponseWriter, r *http.Request) {
	if err := a.Wipe(r.Context()); err != nil {
		web.Fail(w, r, a.log, "testing.wipe.fail", err)
		return
	}
	a.log.InfoContext(r.Context(), "testing.wipe")
	web.WriteStatus(w, http.StatusNoContent)
}
