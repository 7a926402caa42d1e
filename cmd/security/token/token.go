package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// MinSecretBytes is the smallest accepted HMAC secret.
	MinSecretBytes = 16

	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Login  string `json:"login"`
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
}

// Issued returns the token's iat. Zero when absent.
func (c RefreshClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.UTC()
}

// Signed is a freshly minted token.
type Signed struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Manager struct {
	cfg Config
	now func() time.Time
}

type Option func(*Manager)

// WithClock overrides the clock used to validate exp.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if len(cfg.AccessSecret) < MinSecretBytes || len(cfg.RefreshSecret) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token: ttl must be positive (access=%s refresh=%s)", cfg.AccessTTL, cfg.RefreshTTL)
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	m := &Manager{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// IssueAccess signs an access token for userID valid from now.
func (m *Manager) IssueAccess(userID, login string, now time.Time) (Signed, error) {
	iat := now.UTC().Truncate(time.Second)
	exp := iat.Add(m.cfg.AccessTTL)

	claims := AccessClaims{
		RegisteredClaims: m.registered(userID, audienceAccess, iat, exp),
		UserID:           userID,
		Login:            login,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.AccessSecret)
	if err != nil {
		return Signed{}, fmt.Errorf("sign access token: %w", err)
	}
	return Signed{Token: s, IssuedAt: iat, ExpiresAt: exp}, nil
}

// IssueRefresh signs a refresh token for the device. issuedAt is truncated to
// whole seconds and becomes the token's iat.
func (m *Manager) IssueRefresh(userID, deviceID string, issuedAt time.Time) (Signed, error) {
	iat := issuedAt.UTC().Truncate(time.Second)
	exp := iat.Add(m.cfg.RefreshTTL)

	claims := RefreshClaims{
		RegisteredClaims: m.registered(userID, audienceRefresh, iat, exp),
		UserID:           userID,
		DeviceID:         deviceID,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.RefreshSecret)
	if err != nil {
		return Signed{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Signed{Token: s, IssuedAt: iat, ExpiresAt: exp}, nil
}

func (m *Manager) registered(subject, audience string, iat, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    m.cfg.Issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

// ParseAccess verifies an access token and returns its claims.
func (m *Manager) ParseAccess(raw string) (AccessClaims, error) {
	var claims AccessClaims
	if err := m.parse(raw, &claims, audienceAccess, m.cfg.AccessSecret); err != nil {
		return AccessClaims{}, err
	}
	if claims.UserID == "" {
		return AccessClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (m *Manager) ParseRefresh(raw string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := m.parse(raw, &claims, audienceRefresh, m.cfg.RefreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	if claims.UserID == "" || claims.DeviceID == "" || claims.IssuedAt == nil {
		return RefreshClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

// iat is not checked against the clock: a rotated refresh token may carry an
// iat up to a second ahead of wall time.
func (m *Manager) parse(raw string, claims jwt.Claims, audience string, secret []byte) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrTokenInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}

	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

// Fingerprint returns a short, non-reversible identifier for a token that is
// safe to log.
func Fingerprint(raw string) string {
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}
