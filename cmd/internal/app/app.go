// Package app wires the Bloggers server runtime: config, logging, storage
// backends, HTTP routes and lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bloggers/cmd/identity"
	authapi "bloggers/cmd/internal/auth/api"
	"bloggers/cmd/internal/auth/session"
	"bloggers/cmd/internal/notify"
	"bloggers/cmd/internal/platform"
	platformapi "bloggers/cmd/internal/platform/api"
	"bloggers/cmd/internal/web"
	"bloggers/cmd/security/password"
	"bloggers/cmd/security/token"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// readiness is one dependency /readyz pings.
type readiness struct {
	name  string
	check func(ctx context.Context) error
}

// App owns every long-lived dependency of the server.
type App struct {
	cfg Config
	log Logger

	metrics *Metrics
	handler http.Handler

	identity *identity.Service
	sessions *session.Service
	platform *platform.Service

	ready   []readiness
	closers []func(ctx context.Context) error
}

// New connects the configured backends and builds the HTTP handler.
// Without MONGO_URI every store is in memory.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	a := &App{cfg: cfg, log: log, metrics: NewMetrics()}
	if err := a.build(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		Issuer:        cfg.JWTIssuer,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	hasher, err := password.DefaultConfig().Apply(password.Overrides{
		MinLength:   cfg.PasswordMinLen,
		MaxLength:   cfg.PasswordMaxLen,
		MemoryKiB:   cfg.Argon2MemoryKiB,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
	})
	if err != nil {
		return fmt.Errorf("password config: %w", err)
	}

	var (
		users    identity.Store = identity.NewMemoryStore()
		content  platform.Store = platform.NewMemoryStore()
		sessions session.Store  = session.NewMemoryStore()
	)
	var mdb *mongo.Database

	if cfg.MongoURI != "" {
		client, err := NewMongo(ctx, cfg)
		if err != nil {
			return err
		}
		a.onClose(client.Disconnect)
		a.addCheck("mongo", func(ctx context.Context) error { return PingMongo(ctx, client, 2*time.Second) })
		mdb = client.Database(cfg.MongoDB)

		us := identity.NewMongoStore(mdb)
		if err := us.EnsureIndexes(ctx); err != nil {
			return err
		}
		cs := platform.NewMongoStore(mdb)
		if err := cs.EnsureIndexes(ctx); err != nil {
			return err
		}
		users, content = us, cs
		a.log.Info("store.mongo", "db", cfg.MongoDB)
	} else {
		a.log.Info("store.memory")
	}

	switch cfg.SessionBackend() {
	case "mongo":
		ss := session.NewMongoStore(mdb)
		if err := ss.EnsureIndexes(ctx); err != nil {
			return err
		}
		sessions = ss
	case "postgres":
		if err := session.Migrate(cfg.DatabaseURL, "up"); err != nil {
			return err
		}
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { pool.Close(); return nil })
		a.addCheck("postgres", func(ctx context.Context) error { return PingDB(ctx, pool, 2*time.Second) })
		sessions = session.NewPostgresStore(pool)
	}
	a.log.Info("session.store", "backend", cfg.SessionBackend())

	var mailer identity.Mailer = notify.LogMailer{Log: a.log}
	if cfg.SMTPHost != "" {
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return err
		}
		mailer = m
	}

	idCfg := identity.DefaultConfig()
	idCfg.RequireConfirmed = cfg.RequireEmailConfirmed
	idCfg.PublicBaseURL = cfg.PublicBaseURL
	a.identity = identity.NewService(idCfg, users, hasher, mailer, identity.WithLogger(a.log))

	a.sessions, err = session.NewService(session.DefaultConfig(), sessions, tokens, authapi.SessionUsers(a.identity), session.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.platform = platform.NewService(content, platform.WithLogger(a.log))

	authOpts, err := a.authOptions(ctx)
	if err != nil {
		return err
	}

	authCfg := authapi.DefaultConfig()
	authCfg.RefreshCookieName = cfg.RefreshCookieName
	authCfg.CookieSecure = cfg.CookieSecure
	authCfg.CookieSameSite = authapi.ParseSameSite(cfg.CookieSameSite)
	authCfg.TrustProxy = cfg.TrustProxy
	authCfg.RateLimitMax = cfg.AuthRateLimitMax
	authCfg.RateLimitWindow = cfg.AuthRateLimitWindow

	v := web.NewValidator()
	authH, err := authapi.NewHandler(a.log, authCfg, a.identity, a.sessions, tokens, v, authOpts...)
	if err != nil {
		return err
	}
	platformH, err := platformapi.NewHandler(a.log, a.platform, tokens, v,
		platformapi.WithAdminCredentials(cfg.AdminLogin, cfg.AdminPassword))
	if err != nil {
		return err
	}

	a.handler = a.routes(authH, platformH)
	return nil
}

// authOptions picks the rate limiter and audit sinks.
func (a *App) authOptions(ctx context.Context) ([]authapi.HandlerOption, error) {
	cfg := a.cfg
	opts := []authapi.HandlerOption{
		authapi.WithAdminCredentials(cfg.AdminLogin, cfg.AdminPassword),
	}

	if cfg.RedisURL != "" {
		rdb, err := NewRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return rdb.Close() })
		opts = append(opts, authapi.WithLimiter(authapi.NewRedisLimiter(rdb, cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow)))
		a.log.Info("ratelimit.redis")
	}

	metricsAudit, err := authapi.NewMetricsAuditor(a.metrics.Registerer())
	if err != nil {
		return nil, err
	}
	auditors := authapi.Auditors{authapi.LogAuditor{Log: a.log}, metricsAudit}
	if k := authapi.NewKafkaAuditor(cfg.KafkaBrokerList(), cfg.AuditKafkaTopic, a.log); k != nil {
		a.onClose(func(context.Context) error { return k.Close() })
		auditors = append(auditors, k)
		a.log.Info("audit.kafka", "topic", cfg.AuditKafkaTopic)
	}
	return append(opts, authapi.WithAuditor(auditors)), nil
}

func (a *App) onClose(f func(ctx context.Context) error) {
	a.closers = append(a.closers, f)
}

func (a *App) addCheck(name string, f func(ctx context.Context) error) {
	a.ready = append(a.ready, readiness{name: name, check: f})
}

// Handler is the fully wired router.
func (a *App) Handler() http.Handler { return a.handler }

// Wipe deletes all users, sessions, blogs, posts, comments and likes.
func (a *App) Wipe(ctx context.Context) error {
	return errors.Join(
		a.identity.Wipe(ctx),
		a.sessions.Wipe(ctx),
		a.platform.Wipe(ctx),
	)
}

// Close waits for queued mail and releases backends in reverse order.
func (a *App) Close(ctx context.Context) error {
	if a.identity != nil {
		a.identity.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
