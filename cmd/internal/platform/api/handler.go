// Package platformapi exposes blogs, posts, comments and likes over HTTP.
package platformapi

import (
	"errors"
	"log/slog"
	"net/http"

	"bloggers/cmd/internal/platform"
	"bloggers/cmd/internal/web"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	log      *slog.Logger
	svc      *platform.Service
	tokens   web.AccessParser
	validate *web.Validator

	adminLogin    string
	adminPassword string
}

type HandlerOption func(*Handler)

// WithAdminCredentials sets the Basic credentials guarding blog and post writes.
func WithAdminCredentials(login, password string) HandlerOption {
	return func(h *Handler) {
		h.adminLogin = login
		h.adminPassword = password
	}
}

func NewHandler(log *slog.Logger, svc *platform.Service, tokens web.AccessParser, v *web.Validator, opts ...HandlerOption) (*Handler, error) {
	if svc == nil || tokens == nil {
		return nil, errors.New("platform api: service and tokens are required")
	}
	if log == nil {
		log = slog.Default()
	}
	if v == nil {
		v = web.NewValidator()
	}
	h := &Handler{log: log, svc: svc, tokens: tokens, validate: v}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires /blogs, /posts and /comments. Reads accept an optional
// bearer token so items carry the viewer's myStatus.
func (h *Handler) Register(r chi.Router) {
	admin := web.RequireBasic(h.adminLogin, h.adminPassword)
	user := web.RequireBearer(h.tokens)

	r.Route("/blogs", func(r chi.Router) {
		r.Use(web.OptionalBearer(h.tokens))
		r.Get("/", h.handleBlogsList)
		r.Get("/{id}", h.handleBlogGet)
		r.Get("/{id}/posts", h.handleBlogPosts)
		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/", h.handleBlogCreate)
			r.Put("/{id}", h.handleBlogUpdate)
			r.Delete("/{id}", h.handleBlogDelete)
			r.Post("/{id}/posts", h.handleBlogPostCreate)
		})
	})

	r.Route("/posts", func(r chi.Router) {
		r.Use(web.OptionalBearer(h.tokens))
		r.Get("/", h.handlePostsList)
		r.Get("/{id}", h.handlePostGet)
		r.Get("/{id}/comments", h.handlePostComments)
		r.With(user).Post("/{id}/comments", h.handleCommentCreate)
		r.With(user).Put("/{id}/like-status", h.handlePostLike)
		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/", h.handlePostCreate)
			r.Put("/{id}", h.handlePostUpdate)
			r.Delete("/{id}", h.handlePostDelete)
		})
	})

	r.Route("/comments", func(r chi.Router) {
		r.Use(web.OptionalBearer(h.tokens))
		r.Get("/{id}", h.handleCommentGet)
		r.Group(func(r chi.Router) {
			r.Use(user)
			r.Put("/{id}", h.handleCommentUpdate)
			r.Delete("/{id}", h.handleCommentDelete)
			r.Put("/{id}/like-status", h.handleCommentLike)
		})
	})
}

// viewer is the caller's user id, empty for anonymous requests.
func viewer(r *http.Request) string {
	p, _ := web.PrincipalFrom(r.Context())
	return p.UserID
}

func author(r *http.Request) platform.Author {
	p, _ := web.PrincipalFrom(r.Context())
	return platform.Author{UserID: p.UserID, Login: p.Login}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, event string, err error) {
	var fe platform.FieldError
	switch {
	case errors.As(err, &fe):
		web.WriteField(w, fe.Field, fe.Msg)
	case errors.Is(err, platform.ErrNotFound):
		web.WriteStatus(w, http.StatusNotFound)
	case errors.Is(err, platform.ErrForbidden):
		web.WriteStatus(w, http.StatusForbidden)
	default:
		web.Fail(w, r, h.log, event, err)
	}
}
