package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Env         string `env:"APP_ENV" envDefault:"dev"`
	Port        int    `env:"PORT" envDefault:"8080"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"plansync-api"`
	Timezone    string `env:"APP_TIMEZONE" envDefault:"UTC"`

	// storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"` // postgres | memory
	DBURL         string `env:"DATABASE_URL"`
	DBHost        string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort        string `env:"DB_PORT" envDefault:"5432"`
	DBUser        string `env:"DB_USER" envDefault:"plansync"`
	DBPassword    string `env:"DB_PASSWORD" envDefault:"plansync"`
	DBName        string `env:"DB_NAME" envDefault:"plansync"`
	DBSSLMode     string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"5"`

	// tokens
	JWTSecret           string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLDays   int    `env:"JWT_REFRESH_TTL_DAYS" envDefault:"7"`
	BcryptCost          int    `env:"BCRYPT_COST" envDefault:"10"`

	Mail      MailConfig
	Superuser SuperuserConfig

	// redis backs the auth rate limiter when set
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AuthRateLimit       int `env:"AUTH_RATE_LIMIT" envDefault:"20"`
	AuthRateLimitWindow int `env:"AUTH_RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`

	// reminders email every user, so they are limited per caller; 0 disables
	RemindRateLimit       int `env:"REMIND_RATE_LIMIT" envDefault:"5"`
	RemindRateLimitWindow int `env:"REMIND_RATE_LIMIT_WINDOW_SECONDS" envDefault:"3600"`

	// empty trusts no proxy: the client ip is the socket peer
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
	MaxBodyBytes       int64    `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	OTLPEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio float64 `env:"OTEL_TRACES_SAMPLE_RATIO" envDefault:"1"`
}

// MailConfig holds the outgoing mail credentials. Missing credentials
// disable notifications without failing requests.
type MailConfig struct {
	Provider       string `env:"EMAIL_PROVIDER" envDefault:"smtp"` // smtp | resend | log
	Host           string `env:"EMAIL_HOST" envDefault:"smtp.gmail.com"`
	Port           int    `env:"EMAIL_PORT" envDefault:"587"`
	User           string `env:"EMAIL_HOST_USER"`
	Password       string `env:"EMAIL_HOST_PASSWORD"`
	From           string `env:"DEFAULT_FROM_EMAIL"`
	ResendAPIKey   string `env:"RESEND_API_KEY"`
	TimeoutSeconds int    `env:"EMAIL_TIMEOUT_SECONDS" envDefault:"10"`
}

// SenderAddress returns the from-address notifications go out with, or ""
// when the configured provider lacks the credentials it needs.
func (m MailConfig) SenderAddress() string {
	from := m.From
	if from == "" {
		from = m.User
	}

	switch m.Provider {
	case "resend":
		if m.ResendAPIKey == "" || from == "" {
			return ""
		}
	case "log":
		if from == "" {
			return "noreply@localhost"
		}
	default:
		if m.User == "" || m.Password == "" || from == "" {
			return ""
		}
	}

	return from
}

func (m MailConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// SuperuserConfig drives the startup bootstrap of the first privileged account.
type SuperuserConfig struct {
	Username string `env:"SUPERUSER_USERNAME"`
	Email    string `env:"SUPERUSER_EMAIL"`
	Password string `env:"SUPERUSER_PASSWORD"`
	Strict   string `env:"SUPERUSER_STRICT" envDefault:"false"`
}

func (s SuperuserConfig) IsStrict() bool {
	switch strings.ToLower(strings.TrimSpace(s.Strict)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DBURL == "" {
		cfg.DBURL = cfg.buildDBURL()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Env != "dev" && c.Env != "test" && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set outside dev")
	}

	switch c.StorageDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.Mail.Provider {
	case "smtp", "resend", "log":
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Mail.Provider)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	return nil
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

// Location is the server timezone used when rendering dates in emails.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) buildDBURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

// WithTimeout bounds a store call. A nil parent means a background context.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}
