package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Valkey     ValkeyConfig
	Scheduler  SchedulerConfig
	AutoReply  AutoReplyConfig
	Tokens     TokensConfig
	Instagram  InstagramConfig
	YouTube    YouTubeConfig
	AI         AIConfig
	WorkerPool WorkerPoolConfig
	Security   SecurityConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB Name for Postgres
}

type ValkeyConfig struct {
	Enabled   bool
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	SourceTTL time.Duration
}

type SchedulerConfig struct {
	TickInterval        time.Duration
	BatchSize           int
	MaxConcurrency      int
	ActionTimeout       time.Duration
	StaleAfter          time.Duration
	CommentPollInterval time.Duration
}

type AutoReplyConfig struct {
	DefaultMinSeconds int
	DefaultMaxSeconds int
	AuditSkipped      bool
	FallbackMessage   string
	KnownIDsWindow    int
}

type TokensConfig struct {
	RefreshWindow time.Duration
}

type InstagramConfig struct {
	GraphBaseURL      string
	GraphVersion      string
	RefreshBaseURL    string
	AppSecret         string
	VerifyToken       string
	PublishGrace      time.Duration
	// StatusPollEvery paces Reel container checks; the number of checks is
	// bounded by SCHEDULER_ACTION_TIMEOUT.
	StatusPollEvery   time.Duration
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
}

type YouTubeConfig struct {
	ClientID          string
	ClientSecret      string
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
}

type AIConfig struct {
	Provider     string // openai | gemini | none
	OpenAIKey    string
	OpenAIModel  string
	GeminiKey    string
	GeminiModel  string
	Timeout      time.Duration
	SystemPrompt string
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type SecurityConfig struct {
	// SecretKey seals platform tokens at rest. Empty stores them as plain text.
	SecretKey string
}

// LoadConfig loads configuration from a .env file, Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.New())
}

// LoadConfigFrom is LoadConfig over a caller-provided viper instance,
// typically one with cobra flags bound under their env key names.
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load()

	v.AutomaticEnv()
	env := envReader{v: v}

	cfg := &Config{
		App: AppConfig{
			Version:            "v1.0.0",
			Port:               env.str("APP_PORT", "3000"),
			Debug:              env.boolean("APP_DEBUG", false),
			Environment:        env.str("APP_ENV", "development"),
			BasicAuth:          env.list("APP_BASIC_AUTH", nil),
			BasePath:           env.str("APP_BASE_PATH", ""),
			TrustedProxies:     env.list("APP_TRUSTED_PROXIES", nil),
			BaseUrl:            env.str("APP_BASE_URL", "http://localhost:3000"),
			CorsAllowedOrigins: env.list("APP_CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Driver:   env.str("DB_DRIVER", "sqlite"),
			Host:     env.str("DB_HOST", "localhost"),
			Port:     env.integer("DB_PORT", 5432),
			User:     env.str("DB_USER", "postgres"),
			Password: env.str("DB_PASSWORD", ""),
			Name:     env.str("DB_NAME", "storages/social.db"),
		},
		Valkey: ValkeyConfig{
			Enabled:   env.boolean("VALKEY_ENABLED", false),
			Address:   env.str("VALKEY_ADDRESS", "localhost:6379"),
			Password:  env.str("VALKEY_PASSWORD", ""),
			DB:        env.integer("VALKEY_DB", 0),
			KeyPrefix: env.str("VALKEY_KEY_PREFIX", "azsocial:"),
			SourceTTL: env.duration("VALKEY_SOURCE_TTL", 7*24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			TickInterval:        env.duration("SCHEDULER_TICK_INTERVAL", time.Minute),
			BatchSize:           env.integer("SCHEDULER_BATCH_SIZE", 10),
			MaxConcurrency:      env.integer("SCHEDULER_MAX_CONCURRENCY", 5),
			ActionTimeout:       env.duration("SCHEDULER_ACTION_TIMEOUT", 30*time.Second),
			StaleAfter:          env.duration("SCHEDULER_STALE_AFTER", 10*time.Minute),
			CommentPollInterval: env.duration("COMMENT_POLL_INTERVAL", 2*time.Minute),
		},
		AutoReply: AutoReplyConfig{
			DefaultMinSeconds: env.integer("AUTOREPLY_DELAY_MIN_SECONDS", 30),
			DefaultMaxSeconds: env.integer("AUTOREPLY_DELAY_MAX_SECONDS", 180),
			AuditSkipped:      env.boolean("AUTOREPLY_AUDIT_SKIPPED", false),
			FallbackMessage:   env.str("AUTOREPLY_FALLBACK_MESSAGE", ""),
			KnownIDsWindow:    env.integer("AUTOREPLY_KNOWN_IDS_WINDOW", 500),
		},
		Tokens: TokensConfig{
			RefreshWindow: env.duration("TOKEN_REFRESH_WINDOW", 10*time.Minute),
		},
		Instagram: InstagramConfig{
			GraphBaseURL:      env.str("INSTAGRAM_GRAPH_BASE_URL", "https://graph.facebook.com"),
			GraphVersion:      env.str("INSTAGRAM_GRAPH_VERSION", "v21.0"),
			RefreshBaseURL:    env.str("INSTAGRAM_REFRESH_BASE_URL", "https://graph.instagram.com"),
			AppSecret:         env.str("INSTAGRAM_APP_SECRET", ""),
			VerifyToken:       env.str("INSTAGRAM_VERIFY_TOKEN", ""),
			PublishGrace:      env.duration("INSTAGRAM_PUBLISH_GRACE", 2*time.Second),
			StatusPollEvery:   env.duration("INSTAGRAM_STATUS_POLL_EVERY", 3*time.Second),
			RequestsPerSecond: env.float("INSTAGRAM_REQUESTS_PER_SECOND", 5),
			HTTPTimeout:       env.duration("INSTAGRAM_HTTP_TIMEOUT", 20*time.Second),
		},
		YouTube: YouTubeConfig{
			ClientID:          env.str("YOUTUBE_CLIENT_ID", ""),
			ClientSecret:      env.str("YOUTUBE_CLIENT_SECRET", ""),
			RequestsPerSecond: env.float("YOUTUBE_REQUESTS_PER_SECOND", 3),
			HTTPTimeout:       env.duration("YOUTUBE_HTTP_TIMEOUT", 20*time.Second),
		},
		AI: AIConfig{
			Provider:     strings.ToLower(env.str("AI_PROVIDER", "none")),
			OpenAIKey:    env.str("OPENAI_API_KEY", ""),
			OpenAIModel:  env.str("OPENAI_MODEL", "gpt-4o-mini"),
			GeminiKey:    env.str("GEMINI_API_KEY", ""),
			GeminiModel:  env.str("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:      env.duration("AI_TIMEOUT", 15*time.Second),
			SystemPrompt: env.str("AI_SYSTEM_PROMPT", ""),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      env.integer("MESSAGE_WORKER_POOL_SIZE", 8),
			QueueSize: env.integer("MESSAGE_WORKER_QUEUE_SIZE", 250),
		},
		Security: SecurityConfig{SecretKey: env.str("APP_SECRET_KEY", "")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the automation core cannot run with.
func (c *Config) Validate() error {
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("SCHEDULER_TICK_INTERVAL must be positive")
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("SCHEDULER_BATCH_SIZE must be positive")
	}
	if c.Scheduler.MaxConcurrency <= 0 {
		return fmt.Errorf("SCHEDULER_MAX_CONCURRENCY must be positive")
	}
	if c.Scheduler.ActionTimeout <= 0 || c.Scheduler.ActionTimeout >= c.Scheduler.StaleAfter {
		return fmt.Errorf("SCHEDULER_ACTION_TIMEOUT must be positive and shorter than SCHEDULER_STALE_AFTER")
	}
	if c.AutoReply.DefaultMinSeconds < 0 || c.AutoReply.DefaultMaxSeconds < c.AutoReply.DefaultMinSeconds {
		return fmt.Errorf("AUTOREPLY_DELAY_MIN_SECONDS/MAX_SECONDS must form a non-negative window")
	}
	switch c.AI.Provider {
	case "openai", "gemini", "none", "":
	default:
		return fmt.Errorf("unsupported AI_PROVIDER: %s", c.AI.Provider)
	}
	return nil
}
