package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	NATS    NATSConfig
	Gemini  GeminiConfig
	Groq    GroqConfig
	News    NewsConfig
	Indexer IndexerConfig
	Tracker TrackerConfig
	Admin   AdminConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int

	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32

	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

// GeminiConfig configures the primary completion and embedding provider.
// Models is an ordered fallback chain: each model is tried in sequence
// until one succeeds.
type GeminiConfig struct {
	APIKey         string
	Models         []string
	EmbeddingModel string
	Timeout        time.Duration
}

// GroqConfig configures the secondary, OpenAI-compatible completion provider.
type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type NewsConfig struct {
	APIKey   string
	BaseURL  string
	CacheTTL time.Duration
}

type IndexerConfig struct {
	StartupDelay   time.Duration
	PostInterval   time.Duration
	CommentOffset  time.Duration
	BatchSize      int
	ReprocessLimit int
}

type TrackerConfig struct {
	TopK           int
	CooldownWindow time.Duration
	RateLimitReqs  int
	RateLimitSecs  int
}

type AdminConfig struct {
	APIKey string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),

			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Gemini: GeminiConfig{
			APIKey:         k.String("gemini.api.key"),
			EmbeddingModel: k.String("gemini.embedding.model"),
		},
		Groq: GroqConfig{
			APIKey:  k.String("groq.api.key"),
			BaseURL: k.String("groq.base.url"),
			Model:   k.String("groq.model"),
		},
		News: NewsConfig{
			APIKey:  k.String("news.api.key"),
			BaseURL: k.String("news.base.url"),
		},
		Indexer: IndexerConfig{
			BatchSize:      k.Int("indexer.batch.size"),
			ReprocessLimit: k.Int("indexer.reprocess.limit"),
		},
		Tracker: TrackerConfig{
			TopK:          k.Int("tracker.top.k"),
			RateLimitReqs: k.Int("tracker.ratelimit.reqs"),
			RateLimitSecs: k.Int("tracker.ratelimit.secs"),
		},
		Admin: AdminConfig{
			APIKey: k.String("admin.api.key"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("server.cors.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSAllowedOrigins = append(cfg.Server.CORSAllowedOrigins, o)
			}
		}
	}

	if models := k.String("gemini.models"); models != "" {
		for _, m := range strings.Split(models, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.Gemini.Models = append(cfg.Gemini.Models, m)
			}
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "newstracker"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "newstracker"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if len(cfg.Gemini.Models) == 0 {
		cfg.Gemini.Models = []string{"gemini-2.0-flash", "gemini-1.5-flash"}
	}
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = "text-embedding-004"
	}
	if cfg.Groq.BaseURL == "" {
		cfg.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Groq.Model == "" {
		cfg.Groq.Model = "llama-3.3-70b-versatile"
	}
	if cfg.News.BaseURL == "" {
		cfg.News.BaseURL = "https://gnews.io/api/v4"
	}
	if cfg.Indexer.BatchSize == 0 {
		cfg.Indexer.BatchSize = 50
	}
	if cfg.Indexer.ReprocessLimit == 0 {
		cfg.Indexer.ReprocessLimit = 500
	}
	if cfg.Tracker.TopK == 0 {
		cfg.Tracker.TopK = 5
	}
	if cfg.Tracker.RateLimitReqs == 0 {
		cfg.Tracker.RateLimitReqs = 20
	}
	if cfg.Tracker.RateLimitSecs == 0 {
		cfg.Tracker.RateLimitSecs = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	if cfg.Gemini.Timeout, err = parseDuration(k, "gemini.timeout", "8s"); err != nil {
		return nil, err
	}
	if cfg.Groq.Timeout, err = parseDuration(k, "groq.timeout", "8s"); err != nil {
		return nil, err
	}
	if cfg.News.CacheTTL, err = parseDuration(k, "news.cache.ttl", "10m"); err != nil {
		return nil, err
	}
	if cfg.Indexer.StartupDelay, err = parseDuration(k, "indexer.startup.delay", "30s"); err != nil {
		return nil, err
	}
	if cfg.Indexer.PostInterval, err = parseDuration(k, "indexer.post.interval", "1h"); err != nil {
		return nil, err
	}
	if cfg.Indexer.CommentOffset, err = parseDuration(k, "indexer.comment.offset", "30m"); err != nil {
		return nil, err
	}
	if cfg.Tracker.CooldownWindow, err = parseDuration(k, "tracker.cooldown.window", "60s"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
