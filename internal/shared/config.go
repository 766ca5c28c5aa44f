package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	DBPoolSize  int
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration
	AMQPURL     string

	// inventory feed
	FeedBase  string
	FeedKeyID string
	FeedKey   string
	FeedRPS   int

	// reconciliation
	ImageSize      string
	FuzzyMatch     bool
	MatchWeights   MatchWeights
	MatchThreshold float64

	// bulk sync
	Sync SyncConfig

	// Warnings collects problems found while loading; callers log them once
	// their logger is configured.
	Warnings []string
}

type MatchWeights struct {
	Name, Address, City float64
}

type SyncConfig struct {
	Input          string
	CheckpointPath string
	FailurePath    string
	RulesPath      string
	BatchSize      int
	Concurrency    int
	GroupDelay     time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	MinStars       int
	SkipClosed     bool
}

func Load() Config {
	var warnings []string
	// .env is optional; real environment wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		warnings = append(warnings, ".env could not be loaded ("+err.Error()+"); continuing with environment variables")
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/catalog?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		DBPoolSize:  atoi("DB_POOL_SIZE", 5),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		AMQPURL:     env("AMQP_URL", ""),

		FeedBase:  env("RATEHAWK_BASE_URL", "https://api.worldota.net/api/b2b/v3"),
		FeedKeyID: env("RATEHAWK_KEY_ID", ""),
		FeedKey:   env("RATEHAWK_API_KEY", ""),
		FeedRPS:   atoi("RATEHAWK_RPS", 5),

		ImageSize:  env("IMAGE_SIZE", "240x240"),
		FuzzyMatch: boolean("LEGACY_FUZZY_MATCH", false),
		MatchWeights: MatchWeights{
			Name:    atof("MATCH_WEIGHT_NAME", 0.6),
			Address: atof("MATCH_WEIGHT_ADDRESS", 0.3),
			City:    atof("MATCH_WEIGHT_CITY", 0.1),
		},
		MatchThreshold: atof("MATCH_THRESHOLD", 0.3),

		Sync: SyncConfig{
			Input:          env("SYNC_INPUT", "hotels.jsonl"),
			CheckpointPath: env("SYNC_CHECKPOINT", "sync-progress.json"),
			FailurePath:    env("SYNC_FAILURES", "sync-failures.json"),
			RulesPath:      env("SYNC_RULES", ""),
			BatchSize:      atoi("SYNC_BATCH_SIZE", 100),
			Concurrency:    atoi("SYNC_CONCURRENCY", 3),
			GroupDelay:     dur("SYNC_GROUP_DELAY", 500*time.Millisecond),
			MaxAttempts:    atoi("SYNC_MAX_ATTEMPTS", 3),
			RetryBaseDelay: dur("SYNC_RETRY_BASE_DELAY", time.Second),
			MinStars:       atoi("SYNC_MIN_STARS", 3),
			SkipClosed:     boolean("SYNC_SKIP_CLOSED", true),
		},
	}
	if c.FeedKey == "" {
		warnings = append(warnings, "RATEHAWK_API_KEY is empty; search will serve fallback data")
	}
	c.Warnings = warnings
	return c
}

// LogWarnings emits Warnings through the global logger.
func (c Config) LogWarnings() {
	for _, w := range c.Warnings {
		log.Warn().Msg(w)
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolean(k string, def bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// dur accepts Go durations ("750ms") or plain milliseconds ("750").
func dur(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
