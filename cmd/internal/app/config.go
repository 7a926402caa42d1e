package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	devAccessSecret  = "dev-access-secret-change-me"
	devRefreshSecret = "dev-refresh-secret-change-me"
)

// Config is the runtime configuration, read from the environment and an
// optional .env file.
type Config struct {
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	Env       string `mapstructure:"APP_ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	ReadHeaderTimeout time.Duration `mapstructure:"HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"HTTP_IDLE_TIMEOUT"`
	MaxHeaderBytes    int           `mapstructure:"HTTP_MAX_HEADER_BYTES"`

	MongoURI string `mapstructure:"MONGO_URI"`
	MongoDB  string `mapstructure:"MONGO_DB"`

	// SessionStore is memory, mongo or postgres. Empty picks mongo when
	// MONGO_URI is set and memory otherwise.
	SessionStore string `mapstructure:"SESSION_STORE"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32  `mapstructure:"DB_MAX_CONNS"`

	RedisURL        string `mapstructure:"REDIS_URL"`
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`

	JWTAccessSecret  string        `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	JWTIssuer        string        `mapstructure:"JWT_ISSUER"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`

	RefreshCookieName  string `mapstructure:"REFRESH_COOKIE_NAME"`
	CookieSecure       bool   `mapstructure:"COOKIE_SECURE"`
	CookieSameSite     string `mapstructure:"COOKIE_SAMESITE"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	TrustProxy         bool   `mapstructure:"TRUST_PROXY"`

	AdminLogin    string `mapstructure:"ADMIN_LOGIN"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	SMTPHost      string `mapstructure:"SMTP_HOST"`
	SMTPPort      int    `mapstructure:"SMTP_PORT"`
	SMTPUsername  string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword  string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom      string `mapstructure:"SMTP_FROM"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	AuthRateLimitMax      int           `mapstructure:"AUTH_RATE_LIMIT_MAX"`
	AuthRateLimitWindow   time.Duration `mapstructure:"AUTH_RATE_LIMIT_WINDOW"`
	RequireEmailConfirmed bool          `mapstructure:"REQUIRE_EMAIL_CONFIRMED"`
	TestingEndpoints      bool          `mapstructure:"TESTING_ENDPOINTS"`

	PasswordMinLen    int    `mapstructure:"PASSWORD_MIN_LEN"`
	PasswordMaxLen    int    `mapstructure:"PASSWORD_MAX_LEN"`
	Argon2MemoryKiB   uint32 `mapstructure:"ARGON2_MEMORY_KIB"`
	Argon2Iterations  uint32 `mapstructure:"ARGON2_ITERATIONS"`
	Argon2Parallelism uint32 `mapstructure:"ARGON2_PARALLELISM"`
}

// LoadConfig reads .env (if present), then the environment. Environment
// variables win over .env.
func LoadConfig() (Config, error) {
	return loadConfig(".env")
}

func loadConfig(envFile string) (Config, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	v.SetDefault("HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("HTTP_MAX_HEADER_BYTES", 1<<20)
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DB", "bloggers")
	v.SetDefault("SESSION_STORE", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "bloggers.auth.audit")
	v.SetDefault("JWT_ACCESS_SECRET", devAccessSecret)
	v.SetDefault("JWT_REFRESH_SECRET", devRefreshSecret)
	v.SetDefault("JWT_ISSUER", "bloggers")
	v.SetDefault("ACCESS_TOKEN_TTL", 10*time.Second)
	v.SetDefault("REFRESH_TOKEN_TTL", 20*time.Second)
	v.SetDefault("REFRESH_COOKIE_NAME", "refreshToken")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_SAMESITE", "strict")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("ADMIN_LOGIN", "admin")
	v.SetDefault("ADMIN_PASSWORD", "qwerty")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("AUTH_RATE_LIMIT_MAX", 5)
	v.SetDefault("AUTH_RATE_LIMIT_WINDOW", 10*time.Second)
	v.SetDefault("REQUIRE_EMAIL_CONFIRMED", true)
	v.SetDefault("PASSWORD_MIN_LEN", 0)
	v.SetDefault("PASSWORD_MAX_LEN", 0)
	v.SetDefault("ARGON2_MEMORY_KIB", 0)
	v.SetDefault("ARGON2_ITERATIONS", 0)
	v.SetDefault("ARGON2_PARALLELISM", 0)

	// Testing endpoints default on everywhere except production.
	env := strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV")))
	v.SetDefault("TESTING_ENDPOINTS", env != "production")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.Env = env
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether APP_ENV is production.
func (c Config) Production() bool { return c.Env == "production" }

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}

	switch c.SessionStore {
	case "", "memory":
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("config: SESSION_STORE=mongo requires MONGO_URI")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: SESSION_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_STORE %q", c.SessionStore)
	}

	if c.Production() {
		if c.JWTAccessSecret == devAccessSecret || c.JWTRefreshSecret == devRefreshSecret {
			return errors.New("config: default JWT secrets must not be used when APP_ENV=production")
		}
		if len(c.JWTAccessSecret) < 32 || len(c.JWTRefreshSecret) < 32 {
			return errors.New("config: JWT secrets must be at least 32 bytes when APP_ENV=production")
		}
		if c.TestingEndpoints {
			return errors.New("config: TESTING_ENDPOINTS must not be enabled when APP_ENV=production")
		}
	}
	return nil
}

// SessionBackend resolves the empty SESSION_STORE to a concrete backend.
func (c Config) SessionBackend() string {
	if c.SessionStore != "" {
		return c.SessionStore
	}
	if c.MongoURI != "" {
		return "mongo"
	}
	return "memory"
}

// KafkaBrokerList splits KAFKA_BROKERS on commas.
func (c Config) KafkaBrokerList() []string { return splitList(c.KafkaBrokers) }

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string { return splitList(c.CORSAllowedOrigins) }

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
