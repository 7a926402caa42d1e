package platformapi

import (
	"net/http"

	"bloggers/cmd/internal/paging"
	"bloggers/cmd/internal/platform"
	"bloggers/cmd/internal/web"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleBlogsList(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := paging.ParseQuery(qs, platform.BlogSortFields...)

	page, err := h.svc.ListBlogs(r.Context(), qs.Get("searchNameTerm"), q)
	if err != nil {
		h.writeError(w, r, "blogs.list.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.Map(page, toBlogView))
}

func (h *Handler) handleBlogGet(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Blog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "blogs.get.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toBlogView(b))
}

func (h *Handler) handleBlogCreate(w http.ResponseWriter, r *http.Request) {
	var req blogRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	b, err := h.svc.CreateBlog(r.Context(), platform.BlogInput(req))
	if err != nil {
		h.writeError(w, r, "blogs.create.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, toBlogView(b))
}

func (h *Handler) handleBlogUpdate(w http.ResponseWriter, r *http.Request) {
	var req blogRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	if err := h.svc.UpdateBlog(r.Context(), chi.URLParam(r, "id"), platform.BlogInput(req)); err != nil {
		h.writeError(w, r, "blogs.update.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleBlogDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBlog(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "blogs.delete.fail", err)
		return
	}
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleBlogPosts(w http.ResponseWriter, r *http.Request) {
	q := paging.ParseQuery(r.URL.Query(), platform.PostSortFields...)
	page, err := h.svc.ListPosts(r.Context(), chi.URLParam(r, "id"), q, viewer(r))
	if err != nil {
		h.writeError(w, r, "blogs.posts.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusOK, paging.Map(page, toPostView))
}

func (h *Handler) handleBlogPostCreate(w http.ResponseWriter, r *http.Request) {
	var req blogPostRequest
	if !h.validate.Bind(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePostForBlog(r.Context(), chi.URLParam(r, "id"), platform.PostInput{
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		Content:          req.Content,
	})
	if err != nil {
		h.writeError(w, r, "blogs.posts.create.fail", err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, toPostView(p))
}
