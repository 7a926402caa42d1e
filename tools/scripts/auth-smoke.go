// Package main provides a CI-friendly smoke test for the auth flow of a
// running Bloggers server.
//
// It validates:
//   - admin user creation (skips email confirmation)
//   - login: access token + refresh cookie
//   - /auth/me with the access token
//   - refresh rotation and rejection of the rotated token
//   - concurrent refreshes with one token: exactly one wins
//   - logout, after which the refresh token is dead
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const cookieName = "refreshToken"

type smokeClient struct {
	base    string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

type result struct {
	status  int
	body    []byte
	refresh string
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		admin    = flag.String("admin", "admin:qwerty", "Basic credentials for /users as login:password")
		parallel = flag.Int("parallel", 8, "Concurrent refreshes racing on one token")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	adminLogin, adminPassword, ok := strings.Cut(*admin, ":")
	if !ok || adminLogin == "" {
		fatalf("invalid -admin: want login:password")
	}
	if *parallel < 2 {
		fatalf("invalid -parallel: need at least 2")
	}

	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{Timeout: *timeout},
		timeout: *timeout,
		verbose: *verbose,
	}
	root := context.Background()

	suffix := fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000)
	login := "smk" + suffix
	password := "smoke-pass-1"

	res := c.mustDo(root, "create user", http.MethodPost, "/users", map[string]string{
		"login":    login,
		"password": password,
		"email":    login + "@example.com",
	}, func(r *http.Request) { r.SetBasicAuth(adminLogin, adminPassword) })
	expectStatus("create user", res, http.StatusCreated)
	var user struct {
		ID string `json:"id"`
	}
	mustDecode("create user", res.body, &user)

	res = c.mustDo(root, "login", http.MethodPost, "/auth/login", map[string]string{
		"loginOrEmail": login,
		"password":     password,
	}, nil)
	expectStatus("login", res, http.StatusOK)
	access := mustAccessToken("login", res)
	refresh := mustRefresh("login", res)

	res = c.mustDo(root, "me", http.MethodGet, "/auth/me", nil, bearer(access))
	expectStatus("me", res, http.StatusOK)
	var me struct {
		UserID string `json:"userId"`
		Login  string `json:"login"`
	}
	mustDecode("me", res.body, &me)
	if me.UserID != user.ID || me.Login != login {
		fatalf("me: got %+v want userId=%s login=%s", me, user.ID, login)
	}

	res = c.mustDo(root, "refresh", http.MethodPost, "/auth/refresh-token", nil, cookie(refresh))
	expectStatus("refresh", res, http.StatusOK)
	rotated := mustRefresh("refresh", res)

	res = c.mustDo(root, "refresh reuse", http.MethodPost, "/auth/refresh-token", nil, cookie(refresh))
	expectStatus("refresh reuse", res, http.StatusUnauthorized)

	winner := c.mustRace(root, rotated, *parallel)

	res = c.mustDo(root, "logout", http.MethodPost, "/auth/logout", nil, cookie(winner))
	expectStatus("logout", res, http.StatusNoContent)

	res = c.mustDo(root, "refresh after logout", http.MethodPost, "/auth/refresh-token", nil, cookie(winner))
	expectStatus("refresh after logout", res, http.StatusUnauthorized)

	res = c.mustDo(root, "delete user", http.MethodDelete, "/users/"+user.ID, nil,
		func(r *http.Request) { r.SetBasicAuth(adminLogin, adminPassword) })
	expectStatus("delete user", res, http.StatusNoContent)

	fmt.Printf("OK: user=%s login=%s parallel=%d\n", user.ID, login, *parallel)
}

// mustRace fires n refreshes with the same token and returns the refresh
// token of the single request that won.
func (c *smokeClient) mustRace(parent context.Context, token string, n int) string {
	var (
		wins   atomic.Int32
		winner atomic.Value
	)
	g, ctx := errgroup.WithContext(parent)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := c.do(ctx, http.MethodPost, "/auth/refresh-token", nil, cookie(token))
			if err != nil {
				return err
			}
			switch res.status {
			case http.StatusOK:
				wins.Add(1)
				winner.Store(res.refresh)
			case http.StatusUnauthorized:
			default:
				return fmt.Errorf("unexpected status %d: %s", res.status, res.body)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("race: %v", err)
	}
	if got := wins.Load(); got != 1 {
		fatalf("race: %d of %d concurrent refreshes succeeded, want exactly 1", got, n)
	}
	w, _ := winner.Load().(string)
	if w == "" {
		fatalf("race: winner got no refresh cookie")
	}
	if c.verbose {
		fmt.Printf("race: 1 of %d refreshes won\n", n)
	}
	return w
}

func (c *smokeClient) mustDo(parent context.Context, step, method, path string, body any, prep func(*http.Request)) result {
	res, err := c.do(parent, method, path, body, prep)
	if err != nil {
		fatalf("%s: %v", step, err)
	}
	if c.verbose {
		fmt.Printf("%s: %s %s -> %d\n", step, method, path, res.status)
	}
	return res
}

func (c *smokeClient) do(parent context.Context, method, path string, body any, prep func(*http.Request)) (result, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return result{}, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return result{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "bloggers-auth-smoke")
	if prep != nil {
		prep(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return result{}, err
	}
	res := result{status: resp.StatusCode, body: data}
	for _, ck := range resp.Cookies() {
		if ck.Name == cookieName && ck.Value != "" {
			res.refresh = ck.Value
		}
	}
	return res, nil
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func cookie(token string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cookieName, Value: token}) }
}

func mustAccessToken(step string, res result) string {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	mustDecode(step, res.body, &body)
	if strings.TrimSpace(body.AccessToken) == "" {
		fatalf("%s: missing accessToken", step)
	}
	return body.AccessToken
}

func mustRefresh(step string, res result) string {
	if res.refresh == "" {
		fatalf("%s: missing %s cookie", step, cookieName)
	}
	return res.refresh
}

func mustDecode(step string, data []byte, dst any) {
	if err := json.Unmarshal(data, dst); err != nil {
		fatalf("%s: decode %q: %v", step, data, err)
	}
}

func expectStatus(step string, res result, want int) {
	if res.status != want {
		fatalf("%s: status=%d want=%d body=%s", step, res.status, want, res.body)
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
