// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// HTTP server, logging, the document store, Firebase, sessions, Gemini,
// rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS" envDefault:"false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" envDefault:"4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"nemo-backend"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Backend string `env:"STORE_BACKEND" envDefault:"firestore"` // firestore|sqlite
	DBPath  string `env:"DB_PATH" envDefault:"nemo.db"`         // SQLite path
}

// FirebaseConfig holds the service-account credentials. Either a credentials
// file or the client email/private key pair is used; with neither, Application
// Default Credentials apply.
type FirebaseConfig struct {
	ProjectID       string `env:"FIREBASE_PROJECT_ID"`
	ClientEmail     string `env:"FIREBASE_CLIENT_EMAIL"`
	PrivateKey      string `env:"FIREBASE_PRIVATE_KEY"`
	CredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
	StorageBucket   string `env:"FIREBASE_STORAGE_BUCKET"`
	// NotificationLink is opened when a web push is clicked. Defaults to the
	// first CORS origin.
	NotificationLink string `env:"FCM_NOTIFICATION_LINK"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET" envDefault:"nemo-development-session-secret"`
	CookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"session"`
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
	SameSite     string        `env:"SESSION_COOKIE_SAMESITE" envDefault:"none"` // none|lax|strict
}

// RedisConfig is optional; an empty Addr keeps session revocations in memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// OAuthConfig enables the Google OAuth code flow when ClientID is set.
type OAuthConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:8080/auth/callback"`
}

// GeminiConfig configures the generative backend. APIKey selects the Gemini
// API; otherwise Project/Location select Vertex AI.
type GeminiConfig struct {
	APIKey      string `env:"GEMINI_API_KEY"`
	Project     string `env:"GEMINI_PROJECT"`
	Location    string `env:"GEMINI_LOCATION" envDefault:"us-central1"`
	ChatModel   string `env:"GEMINI_CHAT_MODEL" envDefault:"gemini-2.5-flash"`
	ImageModel  string `env:"GEMINI_IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`
	SpeechModel string `env:"GEMINI_SPEECH_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`
	Voice       string `env:"GEMINI_VOICE" envDefault:"Zephyr"`
}

// Enabled reports whether enough settings exist to build a client.
func (g GeminiConfig) Enabled() bool {
	return g.APIKey != "" || g.Project != ""
}

// AssistantConfig tunes chat turns.
type AssistantConfig struct {
	AnalyzeEvery      int           `env:"ANALYZE_EVERY" envDefault:"3"`
	ContextMessages   int           `env:"CONTEXT_MESSAGES" envDefault:"10"`
	MemoryPromptLimit int           `env:"MEMORY_PROMPT_LIMIT" envDefault:"20"`
	AnalysisTimeout   time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"30s"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"` // debug|release|test

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED" envDefault:"false"`
	APIBasePath    string `env:"API_BASE_PATH" envDefault:"/api"`

	Store     StoreConfig
	Firebase  FirebaseConfig
	Session   SessionConfig
	Redis     RedisConfig
	OAuth     OAuthConfig
	Gemini    GeminiConfig
	Assistant AssistantConfig

	// Rate limiting
	RateRPS   float64 `env:"RATE_RPS" envDefault:"5"`
	RateBurst int     `env:"RATE_BURST" envDefault:"10"`

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	var cfg Config
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(true): parseBool,
		},
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// --- normalization ---
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Session.SameSite = strings.ToLower(strings.TrimSpace(cfg.Session.SameSite))
	cfg.CORS.AllowedOrigins = cleanList(cfg.CORS.AllowedOrigins)
	// Keys pasted into env files usually carry literal "\n" sequences.
	cfg.Firebase.PrivateKey = strings.ReplaceAll(cfg.Firebase.PrivateKey, `\n`, "\n")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.Store.Backend {
	case BackendFirestore:
	case BackendSQLite:
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: firestore, sqlite")
	}
	if len(cfg.Session.Secret) < 16 {
		return cfg, errors.New("SESSION_SECRET must be at least 16 bytes")
	}
	if cfg.Session.TTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		return cfg, errors.New("SESSION_COOKIE_NAME must not be empty")
	}
	switch cfg.Session.SameSite {
	case "none", "lax", "strict":
	default:
		return cfg, errors.New("SESSION_COOKIE_SAMESITE must be one of: none, lax, strict")
	}
	if cfg.Assistant.AnalyzeEvery < 0 {
		return cfg, errors.New("ANALYZE_EVERY must be >= 0")
	}
	if cfg.Assistant.ContextMessages < 1 {
		return cfg, errors.New("CONTEXT_MESSAGES must be >= 1")
	}
	if cfg.Assistant.MemoryPromptLimit < 1 {
		return cfg, errors.New("MEMORY_PROMPT_LIMIT must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// parseBool accepts the usual spellings of on/off used in .env files.
func parseBool(v string) (interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off", "":
		return false, nil
	}
	return nil, fmt.Errorf("invalid boolean %q", v)
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
