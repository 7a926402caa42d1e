package platformapi

import (
	"net/http"

	"bloggers/cmd/internal/paging"
	"bloggers/cmd/internal/platform"
	"bloggers/cmd/internal/web"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handlePostComments(w http.ResponseWriter, r *http.Request) {
	q := paging.ParseQuery(r.URL.Query(), platform.CommentSortFields...)
	page, err := h.svc.ListComments(r.Context(), chi.URLParam(r, "id"), q, viewer(r))
	if err != nil {
		h.writeError(w, r, "comments.list.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.Map(page, toCommentView))
}

func (h *Handler) handleCommentCreate(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	c, err := h.svc.CreateComment(r.Context(), chi.URLParam(r, "id"), author(r), req.Content)
	if err != nil {
		h.writeError(w, r, "comments.create.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, toCommentView(c))
}

func (h *Handler) handleCommentGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Comment(r.Context(), chi.URLParam(r, "id"), viewer(r))
	if err != nil {
		h.writeError(w, r, "comments.get.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toCommentView(c))
}

func (h *Handler) handleCommentUpdate(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	if err := h.svc.UpdateComment(r.Context(), chi.URLParam(r, "id"), viewer(r), req.Content); err != nil {
		h.writeError(w, r, "comments.update.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleCommentDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteComment(r.Context(), chi.URLParam(r, "id"), viewer(r)); err != nil {
		h.writeError(w, r, "comments.delete.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleCommentLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	err := h.svc.SetCommentLikeStatus(r.Context(), chi.URLParam(r, "id"), author(r), platform.LikeStatus(req.LikeStatus))
	if err != nil {
		h.writeError(w, r, "comments.like.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}
