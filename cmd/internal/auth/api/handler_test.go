package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bloggers/cmd/identity"
	"bloggers/cmd/internal/auth/session"
	"bloggers/cmd/internal/web"
	"bloggers/cmd/security/password"
	"bloggers/cmd/security/token"

	"github.com/go-chi/chi/v5"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type outbox struct {
	mu   sync.Mutex
	sent []identity.Message
}

func (o *outbox) Send(_ context.Context, m identity.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

// code returns the value of param in the last mailed link.
func (o *outbox) code(t *testing.T, param string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatalf("no mail sent")
	}
	html := o.sent[len(o.sent)-1].HTML
	i := strings.Index(html, param+"=")
	if i < 0 {
		t.Fatalf("no %s in %q", param, html)
	}
	rest := html[i+len(param)+1:]
	return rest[:strings.IndexByte(rest, '"')]
}

type server struct {
	router http.Handler
	ids    *identity.Service
	mail   *outbox
	clock  *testClock
}

func newServer(t *testing.T, cfg Config) server {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		Issuer:        "bloggers-test",
		AccessTTL:     10 * time.Second,
		RefreshTTL:    20 * time.Second,
	}, token.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("token.NewManager: %v", err)
	}

	hasher := password.DefaultConfig()
	hasher.Params.MemoryKiB = 8 * 1024
	hasher.Params.Iterations = 1
	hasher.Params.Parallelism = 1

	mail := &outbox{}
	ids := identity.NewService(identity.DefaultConfig(), identity.NewMemoryStore(), hasher, mail, identity.WithClock(clock.Now))
	sessions, err := session.NewService(session.DefaultConfig(), session.NewMemoryStore(), tokens, SessionUsers(ids), session.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("session.NewService: %v", err)
	}

	h, err := NewHandler(nil, cfg, ids, sessions, tokens, web.NewValidator(),
		WithClock(clock.Now),
		WithAdminCredentials("admin", "qwerty"),
	)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	r := chi.NewRouter()
	h.Register(r)
	return server{router: r, ids: ids, mail: mail, clock: clock}
}

type call struct {
	method, path, body string
	cookie, bearer     string
	basic              bool
	ip                 string
}

func (s server) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	req.Header.Set("User-Agent", "test-agent")
	if c.ip != "" {
		req.RemoteAddr = c.ip + ":40000"
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: c.cookie})
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.basic {
		req.SetBasicAuth("admin", "qwerty")
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func refreshCookie(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refreshToken" && c.Value != "" {
			return c.Value
		}
	}
	t.Fatalf("no refreshToken cookie in %v", rr.Header().Values("Set-Cookie"))
	return ""
}

func accessToken(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body accessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.AccessToken == "" {
		t.Fatalf("access token body=%q err=%v", rr.Body.String(), err)
	}
	return body.AccessToken
}

func fields(t *testing.T, rr *httptest.ResponseRecorder) []string {
	t.Helper()
	var body web.ErrorsBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("errors body=%q err=%v", rr.Body.String(), err)
	}
	out := make([]string, 0, len(body.ErrorsMessages))
	for _, e := range body.ErrorsMessages {
		out = append(out, e.Field)
	}
	return out
}

func noLimit() Config {
	cfg := DefaultConfig()
	cfg.RateLimitMax = 0
	return cfg
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	s := newServer(t, noLimit())

	reg := `{"login":"alice","password":"secret1","email":"alice@example.com"}`
	if rr := s.do(t, call{method: "POST", path: "/auth/registration", body: reg}); rr.Code != http.StatusNoContent {
		t.Fatalf("registration=%d body=%s", rr.Code, rr.Body)
	}
	rr := s.do(t, call{method: "POST", path: "/auth/registration", body: reg})
	if rr.Code != http.StatusBadRequest || fields(t, rr)[0] != "login" {
		t.Fatalf("duplicate registration=%d body=%s", rr.Code, rr.Body)
	}

	s.ids.Wait()
	code := s.mail.code(t, "code")
	confirm := `{"code":"` + code + `"}`
	if rr := s.do(t, call{method: "POST", path: "/auth/registration-confirmation", body: confirm}); rr.Code != http.StatusNoContent {
		t.Fatalf("confirmation=%d body=%s", rr.Code, rr.Body)
	}
	rr = s.do(t, call{method: "POST", path: "/auth/registration-confirmation", body: confirm})
	if rr.Code != http.StatusBadRequest || fields(t, rr)[0] != "code" {
		t.Fatalf("second confirmation=%d body=%s", rr.Code, rr.Body)
	}

	if rr := s.do(t, call{method: "POST", path: "/auth/login", body: `{"loginOrEmail":"alice","password":"wrong-pass"}`}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password login=%d", rr.Code)
	}

	rr = s.do(t, call{method: "POST", path: "/auth/login", body: `{"loginOrEmail":"alice@example.com","password":"secret1"}`})
	if rr.Code != http.StatusOK {
		t.Fatalf("login=%d body=%s", rr.Code, rr.Body)
	}
	access := accessToken(t, rr)
	first := refreshCookie(t, rr)

	rr = s.do(t, call{method: "GET", path: "/auth/me", bearer: access})
	if rr.Code != http.StatusOK {
		t.Fatalf("me=%d body=%s", rr.Code, rr.Body)
	}
	var me meResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Login != "alice" || me.Email != "alice@example.com" || me.UserID == "" {
		t.Fatalf("me=%+v", me)
	}

	// Same wall-clock second as the login.
	rr = s.do(t, call{method: "POST", path: "/auth/refresh-token", cookie: first})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh=%d body=%s", rr.Code, rr.Body)
	}
	second := refreshCookie(t, rr)
	if second == first {
		t.Fatalf("refresh must rotate the token")
	}

	if rr := s.do(t, call{method: "POST", path: "/auth/refresh-token", cookie: first}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh=%d want=401", rr.Code)
	}

	rr = s.do(t, call{method: "GET", path: "/security/devices", cookie: second})
	if rr.Code != http.StatusOK {
		t.Fatalf("devices=%d body=%s", rr.Code, rr.Body)
	}
	var devices []deviceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode devices: %v", err)
	}
	if len(devices) != 1 || devices[0].Title != "test-agent" || devices[0].DeviceID == "" {
		t.Fatalf("devices=%+v", devices)
	}

	if rr := s.do(t, call{method: "POST", path: "/auth/logout", cookie: second}); rr.Code != http.StatusNoContent {
		t.Fatalf("logout=%d", rr.Code)
	}
	if rr := s.do(t, call{method: "POST", path: "/auth/refresh-token", cookie: second}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout=%d want=401", rr.Code)
	}
	if rr := s.do(t, call{method: "POST", path: "/auth/logout", cookie: second}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("second logout=%d want=401", rr.Code)
	}

	s.clock.Advance(11 * time.Second)
	if rr := s.do(t, call{method: "GET", path: "/auth/me", bearer: access}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("me with expired token=%d want=401", rr.Code)
	}
}

func TestRefresh_WithoutCookie(t *testing.T) {
	t.Parallel()
	s := newServer(t, noLimit())

	if rr := s.do(t, call{method: "POST", path: "/auth/refresh-token"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh without cookie=%d want=401", rr.Code)
	}
	if rr := s.do(t, call{method: "POST", path: "/auth/refresh-token", cookie: "garbage"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with garbage=%d want=401", rr.Code)
	}
}

func TestRegistration_Validation(t *testing.T) {
	t.Parallel()
	s := newServer(t, noLimit())

	rr := s.do(t, call{method: "POST", path: "/auth/registration", body: `{"login":"a","password":"","email":"bad"}`})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("registration=%d want=400", rr.Code)
	}
	got := strings.Join(fields(t, rr), ",")
	if got != "login,password,email" {
		t.Fatalf("fields=%s want=login,password,email", got)
	}

	rr = s.do(t, call{method: "POST", path: "/auth/registration", body: `{"login":"bob","password":"123","email":"bob@example.com"}`})
	if rr.Code != http.StatusBadRequest || strings.Join(fields(t, rr), ",") != "password" {
		t.Fatalf("short password=%d body=%s", rr.Code, rr.Body)
	}
}

func TestPasswordRecovery(t *testing.T) {
	t.Parallel()
	s := newServer(t, noLimit())

	if rr := s.do(t, call{method: "POST", path: "/users", basic: true, body: `{"login":"carol","password":"secret1","email":"carol@example.com"}`}); rr.Code != http.StatusCreated {
		t.Fatalf("create user=%d body=%s", rr.Code, rr.Body)
	}

	if rr := s.do(t, call{method: "POST", path: "/auth/password-recovery", body: `{"email":"nobody@example.com"}`}); rr.Code != http.StatusNoContent {
		t.Fatalf("recovery for unknown email=%d want=204", rr.Code)
	}
	if rr := s.do(t, call{method: "POST", path: "/auth/password-recovery", body: `{"email":"carol@example.com"}`}); rr.Code != http.StatusNoContent {
		t.Fatalf("recovery=%d want=204", rr.Code)
	}
	s.ids.Wait()
	code := s.mail.code(t, "recoveryCode")

	rr := s.do(t, call{method: "POST", path: "/auth/new-password", body: `{"newPassword":"another1","recoveryCode":"nope"}`})
	if rr.Code != http.StatusBadRequest || fields(t, rr)[0] != "recoveryCode" {
		t.Fatalf("bad recovery code=%d body=%s", rr.Code, rr.Body)
	}
	if rr := s.do(t, call{method: "POST", path: "/auth/new-password", body: `{"newPassword":"another1","recoveryCode":"` + code + `"}`}); rr.Code != http.StatusNoContent {
		t.Fatalf("new password=%d body=%s", rr.Code, rr.Body)
	}

	if rr := s.do(t, call{method: "POST", path: "/auth/login", body: `{"loginOrEmail":"carol","password":"secret1"}`}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("login with old password=%d want=401", rr.Code)
	}
	if rr := s.do(t, call{method: "POST", path: "/auth/login", body: `{"loginOrEmail":"carol","password":"another1"}`}); rr.Code != http.StatusOK {
		t.Fatalf("login with new password=%d want=200", rr.Code)
	}
}

func TestDevices_Revoke(t *testing.T) {
	t.Parallel()
	s := newServer(t, noLimit())

	for _, u := range []string{"dave", "erin"} {
		body := `{"login":"` + u + `","password":"secret1","email":"` + u + `@example.com"}`
		if rr := s.do(t, call{method: "POST", path: "/users", basic: true, body: body}); rr.Code != http.StatusCreated {
			t.Fatalf("create %s=%d", u, rr.Code)
		}
	}
	login := func(u string) string {
		rr := s.do(t, call{method: "POST", path: "/auth/login", body: `{"loginOrEmail":"` + u + `","password":"secret1"}`})
		if rr.Code != http.StatusOK {
			t.Fatalf("login %s=%d", u, rr.Code)
		}
		return refreshCookie(t, rr)
	}

	d1, d2, d3 := login("dave"), login("dave"), login("dave")
	e1 := login("erin")

	devices := func(cookie string) []deviceResponse {
		rr := s.do(t, call{method: "GET", path: "/security/devices", cookie: cookie})
		if rr.Code != http.StatusOK {
			t.Fatalf("devices=%d", rr.Code)
		}
		var out []deviceResponse
		_ = json.Unmarshal(rr.Body.Bytes(), &out)
		return out
	}
	daves := devices(d1)
	if len(daves) != 3 {
		t.Fatalf("dave devices=%d want=3", len(daves))
	}
	erins := devices(e1)

	if rr := s.do(t, call{method: "DELETE", path: "/security/devices/" + erins[0].DeviceID, cookie: d1}); rr.Code != http.StatusForbidden {
		t.Fatalf("revoke foreign device=%d want=403", rr.Code)
	}
	if rr := s.do(t, call{method: "DELETE", path: "/security/devices/does-not-exist", cookie: d1}); rr.Code != http.StatusNotFound {
		t.Fatalf("revoke unknown device=%d want=404", rr.Code)
	}

	if rr := s.do(t, call{method: "DELETE", path: "/security/devices", cookie: d1}); rr.Code != http.StatusNoContent {
		t.Fatalf("revoke others=%d", rr.Code)
	}
	if got := devices(d1); len(got) != 1 {
		t.Fatalf("devices after revoke others=%d want=1", len(got))
	}
	for _, c := range []string{d2, d3} {
		if rr := s.do(t, call{method: "POST", path: "/auth/refresh-token", cookie: c}); rr.Code != http.StatusUnauthorized {
			t.Fatalf("refresh of revoked device=%d want=401", rr.Code)
		}
	}
	if rr := s.do(t, call{method: "GET", path: "/security/devices", cookie: e1}); rr.Code != http.StatusOK {
		t.Fatalf("other user's session must survive, got %d", rr.Code)
	}
}

func TestUsersAdmin(t *testing.T) {
	t.Parallel()
	s := newServer(t, noLimit())

	if rr := s.do(t, call{method: "GET", path: "/users"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("users without basic=%d want=401", rr.Code)
	}

	for _, u := range []string{"frank", "grace", "heidi"} {
		body := `{"login":"` + u + `","password":"secret1","email":"` + u + `@example.com"}`
		if rr := s.do(t, call{method: "POST", path: "/users", basic: true, body: body}); rr.Code != http.StatusCreated {
			t.Fatalf("create %s=%d", u, rr.Code)
		}
	}

	rr := s.do(t, call{method: "GET", path: "/users?searchLoginTerm=RA&sortBy=login&sortDirection=asc&pageSize=1", basic: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("list=%d", rr.Code)
	}
	var page struct {
		PagesCount int64          `json:"pagesCount"`
		TotalCount int64          `json:"totalCount"`
		Items      []userResponse `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.TotalCount != 2 || page.PagesCount != 2 || len(page.Items) != 1 || page.Items[0].Login != "frank" {
		t.Fatalf("page=%+v", page)
	}

	id := page.Items[0].ID
	if rr := s.do(t, call{method: "DELETE", path: "/users/" + id, basic: true}); rr.Code != http.StatusNoContent {
		t.Fatalf("delete=%d", rr.Code)
	}
	if rr := s.do(t, call{method: "DELETE", path: "/users/" + id, basic: true}); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete=%d want=404", rr.Code)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	t.Parallel()
	s := newServer(t, DefaultConfig())

	body := `{"loginOrEmail":"nobody","password":"whatever1"}`
	for i := 0; i < 5; i++ {
		if rr := s.do(t, call{method: "POST", path: "/auth/login", body: body, ip: "198.51.100.7"}); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d=%d want=401", i, rr.Code)
		}
	}
	rr := s.do(t, call{method: "POST", path: "/auth/login", body: body, ip: "198.51.100.7"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("6th attempt=%d want=429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "10" {
		t.Fatalf("Retry-After=%q want=10", rr.Header().Get("Retry-After"))
	}

	if rr := s.do(t, call{method: "POST", path: "/auth/login", body: body, ip: "198.51.100.8"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("other client=%d want=401", rr.Code)
	}

	s.clock.Advance(10 * time.Second)
	if rr := s.do(t, call{method: "POST", path: "/auth/login", body: body, ip: "198.51.100.7"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("after window=%d want=401", rr.Code)
	}
}
