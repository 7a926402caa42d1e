package platformapi

import (
	"net/http"

	"bloggers/cmd/internal/paging"
	"bloggers/cmd/internal/platform"
	"bloggers/cmd/internal/web"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handlePostsList(w http.ResponseWriter, r *http.Request) {
	q := paging.ParseQuery(r.URL.Query(), platform.PostSortFields...)
	page, err := h.svc.ListPosts(r.Context(), "", q, viewer(r))
	if err != nil {
		h.writeError(w, r, "posts.list.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.Map(page, toPostView))
}

func (h *Handler) handlePostGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Post(r.Context(), chi.URLParam(r, "id"), viewer(r))
	if err != nil {
		h.writeError(w, r, "posts.get.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toPostView(p))
}

func (h *Handler) handlePostCreate(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePost(r.Context(), platform.PostInput(req))
	if err != nil {
		h.writeError(w, r, "posts.create.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, toPostView(p))
}

func (h *Handler) handlePostUpdate(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	if err := h.svc.UpdatePost(r.Context(), chi.URLParam(r, "id"), platform.PostInput(req)); err != nil {
		h.writeError(w, r, "posts.update.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handlePostDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "posts.delete.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handlePostLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	err := h.svc.SetPostLikeStatus(r.Context(), chi.URLParam(r, "id"), author(r), platform.LikeStatus(req.LikeStatus))
	if err != nil {
		h.writeError(w, r, "posts.like.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}
