package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bloggers/cmd/security/token"
)

type signupBody struct {
	Login    string `json:"login" validate:"required,min=3,max=10,loginchars"`
	Email    string `json:"email" validate:"required,emailaddr"`
	Password string `json:"password" validate:"required,min=6,max=20"`
}

type likeBody struct {
	LikeStatus string `json:"likeStatus" validate:"required,likestatus"`
}

type siteBody struct {
	WebsiteURL string `json:"websiteUrl" validate:"required,max=100,website"`
}

func TestValidate(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	cases := []struct {
		name   string
		in     any
		fields []string
	}{
		{"ok", &signupBody{Login: "neo_1", Email: "neo@example.com", Password: "secret1"}, nil},
		{"all bad", &signupBody{Login: "n", Email: "nope", Password: "123"}, []string{"login", "email", "password"}},
		{"login chars", &signupBody{Login: "neo!!", Email: "neo@example.com", Password: "secret1"}, []string{"login"}},
		{"login too long", &signupBody{Login: "abcdefghijk", Email: "neo@example.com", Password: "secret1"}, []string{"login"}},
		{"like ok", &likeBody{LikeStatus: "Dislike"}, nil},
		{"like bad", &likeBody{LikeStatus: "Love"}, []string{"likeStatus"}},
		{"site ok", &siteBody{WebsiteURL: "https://blog.example.com/neo"}, nil},
		{"site http", &siteBody{WebsiteURL: "http://blog.example.com"}, []string{"websiteUrl"}},
	}
	for _, tc := range cases {
		errs := v.Validate(tc.in)
		if len(errs) != len(tc.fields) {
			t.Fatalf("%s: Validate()=%v want fields=%v", tc.name, errs, tc.fields)
		}
		for i, f := range tc.fields {
			if errs[i].Field != f || errs[i].Message == "" {
				t.Fatalf("%s: errs[%d]=%+v want field=%q", tc.name, i, errs[i], f)
			}
		}
	}
}

func TestBind_TrimsAndReportsFields(t *testing.T) {
	t.Parallel()

	v := NewValidator()

	var ok signupBody
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"login":"  neo ","email":"neo@example.com","password":"secret1"}`))
	if !v.Bind(httptest.NewRecorder(), r, &ok) {
		t.Fatalf("Bind() rejected a valid body")
	}
	if ok.Login != "neo" {
		t.Fatalf("Login=%q want=%q", ok.Login, "neo")
	}

	var bad signupBody
	w := httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"login":"   ","email":"neo@example.com","password":"secret1"}`))
	if v.Bind(w, r, &bad) {
		t.Fatalf("Bind() accepted a blank login")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=%d", w.Code, http.StatusBadRequest)
	}
	var body ErrorsBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.ErrorsMessages) != 1 || body.ErrorsMessages[0].Field != "login" {
		t.Fatalf("errorsMessages=%+v", body.ErrorsMessages)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"login":`))
	if v.Bind(w, r, &bad) || w.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON: status=%d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remote, xff string
		trust       bool
		want        string
	}{
		{"10.0.0.1:1234", "", false, "10.0.0.1"},
		{"10.0.0.1:1234", "203.0.113.7, 10.0.0.1", false, "10.0.0.1"},
		{"10.0.0.1:1234", "203.0.113.7, 10.0.0.1", true, "203.0.113.7"},
		{"10.0.0.1:1234", "garbage", true, "10.0.0.1"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		if tc.xff != "" {
			r.Header.Set("X-Forwarded-For", tc.xff)
		}
		if got := ClientIP(r, tc.trust); got != tc.want {
			t.Fatalf("ClientIP(%q, xff=%q, trust=%v)=%q want=%q", tc.remote, tc.xff, tc.trust, got, tc.want)
		}
	}
}

type stubParser map[string]token.AccessClaims

func (s stubParser) ParseAccess(raw string) (token.AccessClaims, error) {
	c, ok := s[raw]
	if !ok {
		return token.AccessClaims{}, errors.New("bad token")
	}
	return c, nil
}

func TestBearerGuards(t *testing.T) {
	t.Parallel()

	tokens := stubParser{"good": {UserID: "u1", Login: "neo"}}
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		_, _ = w.Write([]byte(p.UserID))
	})

	cases := []struct {
		name     string
		guard    func(http.Handler) http.Handler
		header   string
		wantCode int
		wantBody string
	}{
		{"required ok", RequireBearer(tokens), "Bearer good", http.StatusOK, "u1"},
		{"required lowercase scheme", RequireBearer(tokens), "bearer good", http.StatusOK, "u1"},
		{"required bad", RequireBearer(tokens), "Bearer bad", http.StatusUnauthorized, ""},
		{"required missing", RequireBearer(tokens), "", http.StatusUnauthorized, ""},
		{"optional anonymous", OptionalBearer(tokens), "", http.StatusOK, ""},
		{"optional bad", OptionalBearer(tokens), "Bearer bad", http.StatusOK, ""},
		{"optional ok", OptionalBearer(tokens), "Bearer good", http.StatusOK, "u1"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		tc.guard(echo).ServeHTTP(w, r)
		if w.Code != tc.wantCode || w.Body.String() != tc.wantBody {
			t.Fatalf("%s: status=%d body=%q want=%d %q", tc.name, w.Code, w.Body.String(), tc.wantCode, tc.wantBody)
		}
	}
}

func TestRequireBasic(t *testing.T) {
	t.Parallel()

	h := RequireBasic("admin", "qwerty")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		user, pass string
		set        bool
		want       int
	}{
		{"admin", "qwerty", true, http.StatusNoContent},
		{"admin", "wrong", true, http.StatusUnauthorized},
		{"root", "qwerty", true, http.StatusUnauthorized},
		{"", "", false, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodDelete, "/", nil)
		if tc.set {
			r.SetBasicAuth(tc.user, tc.pass)
		}
		h.ServeHTTP(w, r)
		if w.Code != tc.want {
			t.Fatalf("basic(%q,%q)=%d want=%d", tc.user, tc.pass, w.Code, tc.want)
		}
	}
}
