package authapi

import (
	"net/http"
	"strings"
	"time"
)

// Config controls the auth API transport: refresh cookie attributes, proxy
// trust and rate limiting of the public auth endpoints.
type Config struct {
	RefreshCookieName string
	CookiePath        string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	TrustProxy bool

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// DefaultConfig returns the defaults: a Secure, SameSite=Strict
// "refreshToken" cookie and 5 requests per 10 seconds per IP and route.
func DefaultConfig() Config {
	return Config{
		RefreshCookieName: "refreshToken",
		CookiePath:        "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteStrictMode,
		RateLimitMax:      5,
		RateLimitWindow:   10 * time.Second,
	}
}

// Normalize fills zero values with defaults and enforces cookie guardrails.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.RefreshCookieName) == "" {
		c.RefreshCookieName = def.RefreshCookieName
	}
	if strings.TrimSpace(c.CookiePath) == "" {
		c.CookiePath = def.CookiePath
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = def.CookieSameSite
	}
	// Browsers drop SameSite=None cookies that are not Secure.
	if c.CookieSameSite == http.SameSiteNoneMode {
		c.CookieSecure = true
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = def.RateLimitWindow
	}
	return c
}

// ParseSameSite maps a config string to a cookie SameSite mode.
// Unknown values fall back to Lax.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}
