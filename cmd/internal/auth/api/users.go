package authapi

import (
	"net/http"

	"bloggers/cmd/identity"
	"bloggers/cmd/internal/paging"
	"bloggers/cmd/internal/web"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleUsersList(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := paging.ParseQuery(qs, identity.UserSortFields...)
	f := identity.ListFilter{
		SearchLogin: qs.Get("searchLoginTerm"),
		SearchEmail: qs.Get("searchEmailTerm"),
	}

	page, err := h.identity.List(r.Context(), f, q)
	if err != nil {
		web.Fail(w, r, h.log, "users.list.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.Map(page, toUserResponse))
}

func (h *Handler) handleUsersCreate(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}

	u, err := h.identity.Create(r.Context(), identity.RegisterInput{
		Login:    req.Login,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeIdentityError(w, r, "users.create.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *Handler) handleUsersDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeIdentityError(w, r, "users.delete.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}
