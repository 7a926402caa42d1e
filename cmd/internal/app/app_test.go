package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		HTTPAddr:            "127.0.0.1:0",
		Env:                 "test",
		JWTAccessSecret:     "access-secret-for-tests",
		JWTRefreshSecret:    "refresh-secret-for-tests",
		JWTIssuer:           "bloggers-test",
		AccessTokenTTL:      10 * time.Second,
		RefreshTokenTTL:     20 * time.Second,
		RefreshCookieName:   "refreshToken",
		CookieSecure:        true,
		CookieSameSite:      "strict",
		CORSAllowedOrigins:  "https://app.example.com",
		AdminLogin:          "admin",
		AdminPassword:       "qwerty",
		PublicBaseURL:       "http://localhost:8080",
		AuthRateLimitMax:    5,
		AuthRateLimitWindow: 10 * time.Second,
		TestingEndpoints:    true,
		Argon2MemoryKiB:     8 * 1024,
		Argon2Iterations:    1,
		Argon2Parallelism:   1,
	}
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func serve(a *App, method, path, body string, prep func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if prep != nil {
		prep(req)
	}
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func asAdmin(r *http.Request) { r.SetBasicAuth("admin", "qwerty") }

func TestApp_Probes(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())

	if rr := serve(a, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("/healthz status=%d", rr.Code)
	}
	if rr := serve(a, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusOK || rr.Body.String() != "ready\n" {
		t.Fatalf("/readyz status=%d body=%q", rr.Code, rr.Body.String())
	}

	serve(a, http.MethodGet, "/blogs", "", nil)
	rr := serve(a, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`bloggers_http_requests_total{method="GET",route="/blogs`, `status="200"`, "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Fatalf("/metrics missing %q", want)
		}
	}
}

func TestApp_TestingWipe(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())

	rr := serve(a, http.MethodPost, "/blogs", `{"name":"gophers","description":"all about go","websiteUrl":"https://go.example.com"}`, asAdmin)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create blog status=%d body=%s", rr.Code, rr.Body.String())
	}

	if rr := serve(a, http.MethodDelete, "/testing/all-data", "", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("wipe status=%d", rr.Code)
	}

	rr = serve(a, http.MethodGet, "/blogs", "", nil)
	var page struct {
		TotalCount int64 `json:"totalCount"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.TotalCount != 0 {
		t.Fatalf("blogs after wipe=%d want=0", page.TotalCount)
	}
}

func TestApp_TestingWipeDisabled(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.TestingEndpoints = false
	a := newTestApp(t, cfg)

	if rr := serve(a, http.MethodDelete, "/testing/all-data", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("wipe status=%d want=404", rr.Code)
	}
}

func TestApp_CORSPreflight(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())

	rr := serve(a, http.MethodOptions, "/auth/refresh-token", "", func(r *http.Request) {
		r.Header.Set("Origin", "https://app.example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin=%q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("allow-credentials=%q", got)
	}

	rr = serve(a, http.MethodOptions, "/auth/refresh-token", "", func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin for foreign origin=%q want empty", got)
	}
}
