package platformapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bloggers/cmd/internal/paging"
	"bloggers/cmd/internal/platform"
	"bloggers/cmd/internal/web"
	"bloggers/cmd/security/token"

	"github.com/go-chi/chi/v5"
)

// stubParser accepts "<userId>:<login>" as an access token.
type stubParser struct{}

func (stubParser) ParseAccess(raw string) (token.AccessClaims, error) {
	id, login, ok := strings.Cut(raw, ":")
	if !ok {
		return token.AccessClaims{}, errors.New("bad token")
	}
	return token.AccessClaims{UserID: id, Login: login}, nil
}

const (
	aliceToken = "u-alice:alice"
	bobToken   = "u-bob:bob"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	h, err := NewHandler(nil, platform.NewService(platform.NewMemoryStore()), stubParser{}, web.NewValidator(),
		WithAdminCredentials("admin", "qwerty"))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	r := chi.NewRouter()
	h.Register(r)
	return r
}

type call struct {
	method, path, body string
	bearer             string
	basic              bool
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.basic {
		req.SetBasicAuth("admin", "qwerty")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func fields(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	body := decode[web.ErrorsBody](t, rec)
	out := make([]string, 0, len(body.ErrorsMessages))
	for _, e := range body.ErrorsMessages {
		out = append(out, e.Field)
	}
	return out
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, want, rec.Body.String())
	}
}

const (
	blogBody = `{"name":"gophers","description":"all about go","websiteUrl":"https://gophers.example.com"}`
	missing  = "65f0c0ffee0000000000abcd"
)

func createBlog(t *testing.T, h http.Handler) blogView {
	t.Helper()
	rec := do(t, h, call{method: http.MethodPost, path: "/blogs", body: blogBody, basic: true})
	expect(t, rec, http.StatusCreated)
	return decode[blogView](t, rec)
}

func createPost(t *testing.T, h http.Handler, blogID string) postView {
	t.Helper()
	rec := do(t, h, call{method: http.MethodPost, path: "/blogs/" + blogID + "/posts", basic: true,
		body: `{"title":"hello","shortDescription":"short","content":"body"}`})
	expect(t, rec, http.StatusCreated)
	return decode[postView](t, rec)
}

func TestBlogs(t *testing.T) {
	t.Parallel()
	h := newRouter(t)

	expect(t, do(t, h, call{method: http.MethodPost, path: "/blogs", body: blogBody}), http.StatusUnauthorized)

	rec := do(t, h, call{method: http.MethodPost, path: "/blogs", basic: true,
		body: `{"name":"a name that is far too long","description":"d","websiteUrl":"http://insecure.example.com"}`})
	expect(t, rec, http.StatusBadRequest)
	if got := fields(t, rec); len(got) != 2 || got[0] != "name" || got[1] != "websiteUrl" {
		t.Fatalf("fields=%v want=[name websiteUrl]", got)
	}

	b := createBlog(t, h)
	if b.Name != "gophers" || b.IsMembership || b.ID == "" {
		t.Fatalf("created blog=%+v", b)
	}

	rec = do(t, h, call{method: http.MethodGet, path: "/blogs?searchNameTerm=GOPH&pageSize=5"})
	expect(t, rec, http.StatusOK)
	page := decode[struct {
		PagesCount int        `json:"pagesCount"`
		PageSize   int        `json:"pageSize"`
		TotalCount int64      `json:"totalCount"`
		Items      []blogView `json:"items"`
	}](t, rec)
	if page.TotalCount != 1 || page.PagesCount != 1 || page.PageSize != 5 || page.Items[0].ID != b.ID {
		t.Fatalf("page=%+v", page)
	}

	expect(t, do(t, h, call{method: http.MethodPut, path: "/blogs/" + b.ID, basic: true,
		body: `{"name":"rustaceans","description":"d","websiteUrl":"https://rust.example.com/blog"}`}), http.StatusNoContent)
	rec = do(t, h, call{method: http.MethodGet, path: "/blogs/" + b.ID})
	expect(t, rec, http.StatusOK)
	if got := decode[blogView](t, rec); got.Name != "rustaceans" {
		t.Fatalf("updated name=%q", got.Name)
	}

	expect(t, do(t, h, call{method: http.MethodDelete, path: "/blogs/" + b.ID, basic: true}), http.StatusNoContent)
	expect(t, do(t, h, call{method: http.MethodGet, path: "/blogs/" + b.ID}), http.StatusNotFound)
	expect(t, do(t, h, call{method: http.MethodDelete, path: "/blogs/" + b.ID, basic: true}), http.StatusNotFound)
}

func TestPosts(t *testing.T) {
	t.Parallel()
	h := newRouter(t)
	b := createBlog(t, h)

	rec := do(t, h, call{method: http.MethodPost, path: "/posts", basic: true,
		body: `{"title":"t","shortDescription":"s","content":"c","blogId":"` + missing + `"}`})
	expect(t, rec, http.StatusBadRequest)
	if got := fields(t, rec); len(got) != 1 || got[0] != "blogId" {
		t.Fatalf("fields=%v want=[blogId]", got)
	}
	expect(t, do(t, h, call{method: http.MethodPost, path: "/blogs/" + missing + "/posts", basic: true,
		body: `{"title":"t","shortDescription":"s","content":"c"}`}), http.StatusNotFound)

	p := createPost(t, h, b.ID)
	if p.BlogID != b.ID || p.BlogName != "gophers" || p.ExtendedLikes.MyStatus != platform.StatusNone || p.ExtendedLikes.NewestLikes == nil {
		t.Fatalf("created post=%+v", p)
	}

	rec = do(t, h, call{method: http.MethodPost, path: "/posts", basic: true,
		body: `{"title":"  second  ","shortDescription":"s","content":"c","blogId":"` + b.ID + `"}`})
	expect(t, rec, http.StatusCreated)
	if got := decode[postView](t, rec); got.Title != "second" {
		t.Fatalf("title=%q want trimmed", got.Title)
	}

	rec = do(t, h, call{method: http.MethodGet, path: "/blogs/" + b.ID + "/posts?sortBy=title&sortDirection=asc"})
	expect(t, rec, http.StatusOK)
	list := decode[struct {
		TotalCount int64      `json:"totalCount"`
		Items      []postView `json:"items"`
	}](t, rec)
	if list.TotalCount != 2 || list.Items[0].Title != "hello" {
		t.Fatalf("blog posts=%+v", list)
	}
	expect(t, do(t, h, call{method: http.MethodGet, path: "/blogs/" + missing + "/posts"}), http.StatusNotFound)

	rec = do(t, h, call{method: http.MethodGet, path: "/posts?pageNumber=9223372036854775807&pageSize=100"})
	expect(t, rec, http.StatusOK)
	far := decode[struct {
		Page       int        `json:"page"`
		TotalCount int64      `json:"totalCount"`
		Items      []postView `json:"items"`
	}](t, rec)
	if far.TotalCount != 2 || len(far.Items) != 0 || far.Page != paging.MaxPageNumber {
		t.Fatalf("far page=%+v", far)
	}

	expect(t, do(t, h, call{method: http.MethodPut, path: "/posts/" + p.ID, basic: true,
		body: `{"title":"t","shortDescription":"s","content":"c","blogId":"` + missing + `"}`}), http.StatusBadRequest)
	expect(t, do(t, h, call{method: http.MethodPut, path: "/posts/" + missing, basic: true,
		body: `{"title":"t","shortDescription":"s","content":"c","blogId":"` + b.ID + `"}`}), http.StatusNotFound)
	expect(t, do(t, h, call{method: http.MethodDelete, path: "/posts/" + p.ID}), http.StatusUnauthorized)
	expect(t, do(t, h, call{method: http.MethodDelete, path: "/posts/" + p.ID, basic: true}), http.StatusNoContent)
	expect(t, do(t, h, call{method: http.MethodGet, path: "/posts/" + p.ID}), http.StatusNotFound)
}

func TestPostLikes(t *testing.T) {
	t.Parallel()
	h := newRouter(t)
	p := createPost(t, h, createBlog(t, h).ID)
	like := func(bearer, status string) *httptest.ResponseRecorder {
		return do(t, h, call{method: http.MethodPut, path: "/posts/" + p.ID + "/like-status", bearer: bearer,
			body: `{"likeStatus":"` + status + `"}`})
	}

	expect(t, like("", "Like"), http.StatusUnauthorized)
	rec := like(aliceToken, "Love")
	expect(t, rec, http.StatusBadRequest)
	if got := fields(t, rec); len(got) != 1 || got[0] != "likeStatus" {
		t.Fatalf("fields=%v want=[likeStatus]", got)
	}
	expect(t, like(aliceToken, "Like"), http.StatusNoContent)
	expect(t, like(bobToken, "Dislike"), http.StatusNoContent)

	rec = do(t, h, call{method: http.MethodGet, path: "/posts/" + p.ID, bearer: aliceToken})
	expect(t, rec, http.StatusOK)
	info := decode[postView](t, rec).ExtendedLikes
	if info.LikesCount != 1 || info.DislikesCount != 1 || info.MyStatus != platform.StatusLike {
		t.Fatalf("alice view=%+v", info)
	}
	if len(info.NewestLikes) != 1 || info.NewestLikes[0].Login != "alice" || info.NewestLikes[0].UserID != "u-alice" {
		t.Fatalf("newestLikes=%+v", info.NewestLikes)
	}

	rec = do(t, h, call{method: http.MethodGet, path: "/posts", bearer: bobToken})
	expect(t, rec, http.StatusOK)
	list := decode[struct {
		Items []postView `json:"items"`
	}](t, rec)
	if len(list.Items) != 1 || list.Items[0].ExtendedLikes.MyStatus != platform.StatusDislike {
		t.Fatalf("bob list=%+v", list.Items)
	}

	rec = do(t, h, call{method: http.MethodGet, path: "/posts/" + p.ID, bearer: "garbage"})
	expect(t, rec, http.StatusOK)
	if got := decode[postView](t, rec).ExtendedLikes.MyStatus; got != platform.StatusNone {
		t.Fatalf("anonymous myStatus=%q want=None", got)
	}

	expect(t, do(t, h, call{method: http.MethodPut, path: "/posts/" + missing + "/like-status", bearer: aliceToken,
		body: `{"likeStatus":"Like"}`}), http.StatusNotFound)
}

func TestComments(t *testing.T) {
	t.Parallel()
	h := newRouter(t)
	p := createPost(t, h, createBlog(t, h).ID)
	path := "/posts/" + p.ID + "/comments"
	body := `{"content":"this comment is long enough"}`

	expect(t, do(t, h, call{method: http.MethodPost, path: path, body: body}), http.StatusUnauthorized)
	rec := do(t, h, call{method: http.MethodPost, path: path, bearer: aliceToken, body: `{"content":"too short"}`})
	expect(t, rec, http.StatusBadRequest)
	if got := fields(t, rec); len(got) != 1 || got[0] != "content" {
		t.Fatalf("fields=%v want=[content]", got)
	}
	expect(t, do(t, h, call{method: http.MethodPost, path: "/posts/" + missing + "/comments", bearer: aliceToken, body: body}), http.StatusNotFound)

	rec = do(t, h, call{method: http.MethodPost, path: path, bearer: aliceToken, body: body})
	expect(t, rec, http.StatusCreated)
	c := decode[commentView](t, rec)
	if c.Commentator.UserID != "u-alice" || c.Commentator.UserLogin != "alice" || c.Likes.MyStatus != platform.StatusNone {
		t.Fatalf("created comment=%+v", c)
	}

	one := "/comments/" + c.ID
	expect(t, do(t, h, call{method: http.MethodPut, path: one, bearer: bobToken, body: `{"content":"bob rewrites this comment"}`}), http.StatusForbidden)
	expect(t, do(t, h, call{method: http.MethodPut, path: one, bearer: aliceToken, body: `{"content":"alice edits her own comment"}`}), http.StatusNoContent)
	expect(t, do(t, h, call{method: http.MethodPut, path: one + "/like-status", bearer: bobToken, body: `{"likeStatus":"Like"}`}), http.StatusNoContent)

	rec = do(t, h, call{method: http.MethodGet, path: path, bearer: bobToken})
	expect(t, rec, http.StatusOK)
	list := decode[struct {
		TotalCount int64         `json:"totalCount"`
		Items      []commentView `json:"items"`
	}](t, rec)
	if list.TotalCount != 1 || list.Items[0].Content != "alice edits her own comment" ||
		list.Items[0].Likes.LikesCount != 1 || list.Items[0].Likes.MyStatus != platform.StatusLike {
		t.Fatalf("comments=%+v", list)
	}

	expect(t, do(t, h, call{method: http.MethodDelete, path: one, bearer: bobToken}), http.StatusForbidden)
	expect(t, do(t, h, call{method: http.MethodDelete, path: one, bearer: aliceToken}), http.StatusNoContent)
	expect(t, do(t, h, call{method: http.MethodGet, path: one}), http.StatusNotFound)
	expect(t, do(t, h, call{method: http.MethodDelete, path: one, bearer: aliceToken}), http.StatusNotFound)
}
