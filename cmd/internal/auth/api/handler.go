package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bloggers/cmd/identity"
	"bloggers/cmd/internal/auth/session"
	"bloggers/cmd/internal/web"
	"bloggers/cmd/security/token"

	"github.com/go-chi/chi/v5"
)

// Handler wires HTTP auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	identity *identity.Service
	sessions *session.Service
	tokens   web.AccessParser
	validate *web.Validator

	limiter Limiter
	auditor Auditor

	adminLogin    string
	adminPassword string

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLimiter overrides the default in-memory rate limiter.
func WithLimiter(l Limiter) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// WithAuditor sets where auth events go. Without one they are only logged.
func WithAuditor(a Auditor) HandlerOption {
	return func(h *Handler) {
		if a != nil {
			h.auditor = a
		}
	}
}

// WithAdminCredentials sets the Basic credentials guarding /users.
func WithAdminCredentials(login, password string) HandlerOption {
	return func(h *Handler) {
		h.adminLogin = login
		h.adminPassword = password
	}
}

// WithClock overrides the time source used for cookies and rate limiting.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, ids *identity.Service, sessions *session.Service, tokens web.AccessParser, v *web.Validator, opts ...HandlerOption) (*Handler, error) {
	if ids == nil || sessions == nil || tokens == nil {
		return nil, errors.New("auth: identity, sessions and tokens are required")
	}
	if log == nil {
		log = slog.Default()
	}
	if v == nil {
		v = web.NewValidator()
	}
	cfg = cfg.Normalize()

	h := &Handler{
		log:      log,
		cfg:      cfg,
		identity: ids,
		sessions: sessions,
		tokens:   tokens,
		validate: v,
		limiter:  NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		auditor:  LogAuditor{Log: log},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires the /auth, /security/devices and /users routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(h.throttle("registration")).Post("/registration", h.handleRegistration)
		r.With(h.throttle("registration-confirmation")).Post("/registration-confirmation", h.handleConfirmation)
		r.With(h.throttle("registration-email-resending")).Post("/registration-email-resending", h.handleResendConfirmation)
		r.With(h.throttle("login")).Post("/login", h.handleLogin)
		r.With(h.throttle("password-recovery")).Post("/password-recovery", h.handlePasswordRecovery)
		r.With(h.throttle("new-password")).Post("/new-password", h.handleNewPassword)
		r.Post("/refresh-token", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
		r.With(web.RequireBearer(h.tokens)).Get("/me", h.handleMe)
	})

	r.Route("/security/devices", func(r chi.Router) {
		r.Use(h.requireRefreshSession)
		r.Get("/", h.handleDevices)
		r.Delete("/", h.handleRevokeOthers)
		r.Delete("/{deviceId}", h.handleRevokeDevice)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(web.RequireBasic(h.adminLogin, h.adminPassword))
		r.Get("/", h.handleUsersList)
		r.Post("/", h.handleUsersCreate)
		r.Delete("/{id}", h.handleUsersDelete)
	})
}

// ---- handlers ----

func (h *Handler) handleRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}

	u, err := h.identity.Register(r.Context(), identity.RegisterInput{
		Login:    req.Login,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeIdentityError(w, r, "auth.registration.fail", err)
		return
	}

	h.audit(r.Context(), Event{Action: "auth.registration", UserID: u.ID, IP: web.ClientIP(r, h.cfg.TrustProxy)})
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	var req confirmationRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	if err := h.identity.Confirm(r.Context(), req.Code); err != nil {
		h.writeIdentityError(w, r, "auth.confirmation.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleResendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	if err := h.identity.ResendConfirmation(r.Context(), req.Email); err != nil {
		h.writeIdentityError(w, r, "auth.confirmation.resend.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handlePasswordRecovery(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	if err := h.identity.RecoverPassword(r.Context(), req.Email); err != nil {
		h.writeIdentityError(w, r, "auth.password_recovery.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleNewPassword(w http.ResponseWriter, r *http.Request) {
	var req newPasswordRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	if err := h.identity.SetNewPassword(r.Context(), req.NewPassword, req.RecoveryCode); err != nil {
		h.writeIdentityError(w, r, "auth.new_password.fail", err)
		return
	}
	h.audit(r.Context(), Event{Action: "auth.password.changed", IP: web.ClientIP(r, h.cfg.TrustProxy)})
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}

	ctx := r.Context()
	ip := web.ClientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	u, err := h.identity.CheckCredentials(ctx, req.LoginOrEmail, req.Password)
	if err != nil {
		reason := "invalid_credentials"
		switch {
		case errors.Is(err, identity.ErrNotConfirmed):
			reason = "email_not_confirmed"
		case errors.Is(err, identity.ErrInvalidCredentials):
		default:
			web.Fail(w, r, h.log, "auth.login.fail", err)
			return
		}
		h.audit(ctx, Event{Action: "auth.login.fail", IP: ip, UserAgent: ua, Meta: map[string]any{"reason": reason}})
		web.WriteStatus(w, http.StatusUnauthorized)
		return
	}

	issued, err := h.sessions.Login(ctx, session.Principal{UserID: u.ID, Login: u.Login}, session.Device{IP: ip, Title: ua})
	if err != nil {
		web.Fail(w, r, h.log, "auth.login.fail", err)
		return
	}

	h.audit(ctx, Event{Action: "auth.login", UserID: u.ID, DeviceID: issued.DeviceID, IP: ip, UserAgent: ua})
	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp, h.now())
	web.WriteJSON(w, http.StatusOK, accessResponse{AccessToken: issued.AccessToken})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.refreshTokenFromCookie(r)
	if !ok {
		web.WriteStatus(w, http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	ip := web.ClientIP(r, h.cfg.TrustProxy)

	issued, err := h.sessions.Refresh(ctx, raw)
	if err != nil {
		if isUnauthorized(err) {
			h.audit(ctx, Event{Action: "auth.refresh.reject", IP: ip, UserAgent: r.UserAgent(), Meta: map[string]any{
				"token": token.Fingerprint(raw),
			}})
			h.expireRefreshCookie(w)
			web.WriteStatus(w, http.StatusUnauthorized)
			return
		}
		web.Fail(w, r, h.log, "auth.refresh.fail", err)
		return
	}

	h.audit(ctx, Event{Action: "auth.refresh", DeviceID: issued.DeviceID, IP: ip})
	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp, h.now())
	web.WriteJSON(w, http.StatusOK, accessResponse{AccessToken: issued.AccessToken})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.refreshTokenFromCookie(r)
	if !ok {
		web.WriteStatus(w, http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	sess, err := h.sessions.Logout(ctx, raw)
	if err != nil {
		if isUnauthorized(err) {
			h.expireRefreshCookie(w)
			web.WriteStatus(w, http.StatusUnauthorized)
			return
		}
		web.Fail(w, r, h.log, "auth.logout.fail", err)
		return
	}

	h.audit(ctx, Event{Action: "auth.logout", UserID: sess.UserID, DeviceID: sess.DeviceID, IP: web.ClientIP(r, h.cfg.TrustProxy)})
	h.expireRefreshCookie(w)
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := web.PrincipalFrom(r.Context())

	u, err := h.identity.Get(r.Context(), p.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			web.WriteStatus(w, http.StatusUnauthorized)
			return
		}
		web.Fail(w, r, h.log, "auth.me.fail", err)
		return
	}

	web.WriteJSON(w, http.StatusOK, meResponse{Email: u.Email, Login: u.Login, UserID: u.ID})
}

// ---- helpers ----

func isUnauthorized(err error) bool {
	return errors.Is(err, session.ErrInvalidToken) ||
		errors.Is(err, session.ErrSessionNotFound) ||
		errors.Is(err, session.ErrUnknownUser)
}

// writeIdentityError maps identity errors to 400 field errors, 404 or 500.
func (h *Handler) writeIdentityError(w http.ResponseWriter, r *http.Request, event string, err error) {
	if field, msg, ok := identity.FieldOf(err); ok {
		web.WriteField(w, field, msg)
		return
	}
	if identity.IsNotFound(err) {
		web.WriteStatus(w, http.StatusNotFound)
		return
	}
	web.Fail(w, r, h.log, event, err)
}

type sessionKey struct{}

// requireRefreshSession admits requests whose refresh cookie is bound to a
// live session.
func (h *Handler) requireRefreshSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := h.refreshTokenFromCookie(r)
		if !ok {
			web.WriteStatus(w, http.StatusUnauthorized)
			return
		}
		sess, err := h.sessions.Authenticate(r.Context(), raw)
		if err != nil {
			if isUnauthorized(err) {
				web.WriteStatus(w, http.StatusUnauthorized)
				return
			}
			web.Fail(w, r, h.log, "auth.devices.guard.fail", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func currentSession(ctx context.Context) session.Session {
	s, _ := ctx.Value(sessionKey{}).(session.Session)
	return s
}
