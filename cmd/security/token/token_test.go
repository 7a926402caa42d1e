package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 500_000_000, time.UTC)

func newTestManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		AccessSecret:  []byte("access-secret-0123456789"),
		RefreshSecret: []byte("refresh-secret-0123456789"),
		Issuer:        "bloggers-test",
		AccessTTL:     10 * time.Second,
		RefreshTTL:    20 * time.Second,
	}, WithClock(now))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManager_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewManager(Config{
		AccessSecret:  []byte("short"),
		RefreshSecret: []byte("refresh-secret-0123456789"),
		AccessTTL:     time.Second,
		RefreshTTL:    time.Second,
	})
	if !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("NewManager err=%v want=%v", err, ErrSecretTooShort)
	}
}

func TestAccess_RoundTrip(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func() time.Time { return testNow.Add(time.Second) })

	s, err := m.IssueAccess("u1", "alice", testNow)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !s.ExpiresAt.Equal(testNow.Truncate(time.Second).Add(10 * time.Second)) {
		t.Fatalf("ExpiresAt=%v", s.ExpiresAt)
	}

	c, err := m.ParseAccess(s.Token)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if c.UserID != "u1" || c.Login != "alice" || c.Subject != "u1" {
		t.Fatalf("claims=%+v", c)
	}
}

func TestRefresh_RoundTripTruncatesIssuedAt(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func() time.Time { return testNow })

	s, err := m.IssueRefresh("u1", "dev-1", testNow)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	want := testNow.Truncate(time.Second)
	if !s.IssuedAt.Equal(want) {
		t.Fatalf("IssuedAt=%v want=%v", s.IssuedAt, want)
	}

	c, err := m.ParseRefresh(s.Token)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if c.DeviceID != "dev-1" || c.UserID != "u1" || !c.Issued().Equal(want) {
		t.Fatalf("claims=%+v issued=%v", c, c.Issued())
	}
}

func TestRefresh_FutureIssuedAtAccepted(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func() time.Time { return testNow })

	s, err := m.IssueRefresh("u1", "dev-1", testNow.Add(time.Second))
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := m.ParseRefresh(s.Token); err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func() time.Time { return testNow.Add(time.Minute) })

	a, _ := m.IssueAccess("u1", "alice", testNow)
	if _, err := m.ParseAccess(a.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("ParseAccess(expired) err=%v want=%v", err, ErrTokenExpired)
	}

	r, _ := m.IssueRefresh("u1", "dev-1", testNow)
	if _, err := m.ParseRefresh(r.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("ParseRefresh(expired) err=%v want=%v", err, ErrTokenExpired)
	}
}

func TestParse_KindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func() time.Time { return testNow })

	a, _ := m.IssueAccess("u1", "alice", testNow)
	r, _ := m.IssueRefresh("u1", "dev-1", testNow)

	if _, err := m.ParseRefresh(a.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("ParseRefresh(access) err=%v want=%v", err, ErrTokenInvalid)
	}
	if _, err := m.ParseAccess(r.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("ParseAccess(refresh) err=%v want=%v", err, ErrTokenInvalid)
	}
}

func TestParse_Tampered(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func() time.Time { return testNow })

	a, _ := m.IssueAccess("u1", "alice", testNow)
	cases := []string{
		"",
		"not.a.jwt",
		a.Token + "x",
		strings.Replace(a.Token, ".", ".e", 1),
	}
	for _, raw := range cases {
		if _, err := m.ParseAccess(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("ParseAccess(%q) err=%v want=%v", raw, err, ErrTokenInvalid)
		}
	}
}

func TestParse_WrongIssuer(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func() time.Time { return testNow })

	other, err := NewManager(Config{
		AccessSecret:  []byte("access-secret-0123456789"),
		RefreshSecret: []byte("refresh-secret-0123456789"),
		Issuer:        "someone-else",
		AccessTTL:     10 * time.Second,
		RefreshTTL:    20 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	a, _ := other.IssueAccess("u1", "alice", testNow)
	if _, err := m.ParseAccess(a.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("ParseAccess(foreign) err=%v want=%v", err, ErrTokenInvalid)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	if Fingerprint("") != "" {
		t.Fatalf("Fingerprint(empty) should be empty")
	}
	a, b := Fingerprint("a"), Fingerprint("b")
	if len(a) != 16 || a == b {
		t.Fatalf("Fingerprint(a)=%q Fingerprint(b)=%q", a, b)
	}
}
