package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Weights are the hand-tuned constants of the balance scoring function.
type Weights struct {
	Base            int
	Keyword         int
	EmphasisContext int
	Heading         int
	Strong          int
	PromoPenalty    int
	MaxValueBonus   int
	Threshold       int
	High            int
	Medium          int
	MinValue        int
	MaxValue        int
}

type Config struct {
	DBPath       string
	OutputDir    string
	ProgramsFile string

	BackendBaseURL      string
	BackendClientID     string
	BackendToken        string
	BackendTimeoutMs    int
	BackendRateLimitRPS int
	BackendMaxAttempts  int

	ServerAddr           string
	ServerEnv            string
	ServerRequestsPerSec int
	ServerBurst          int
	SyncCooldownSec      int
	SessionTTLHours      int
	SyncRequireAuth      bool
	AuthSecret           string
	AuthIssuer           string

	FetchTimeoutMs int
	FetchUserAgent string

	LogLevel  string
	LogFormat string

	Weights Weights
}

func DefaultWeights() Weights {
	return Weights{
		Base:            50,
		Keyword:         30,
		EmphasisContext: 20,
		Heading:         15,
		Strong:          10,
		PromoPenalty:    40,
		MaxValueBonus:   15,
		Threshold:       50,
		High:            100,
		Medium:          70,
		MinValue:        100,
		MaxValue:        10_000_000,
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	def := DefaultWeights()
	cfg := Config{
		DBPath:       getEnv("DB_PATH", filepath.Join(cwd, "data", "milesync.db")),
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		ProgramsFile: getEnv("PROGRAMS_FILE", ""),

		BackendBaseURL:      getEnv("BACKEND_BASE_URL", "http://127.0.0.1:8787"),
		BackendClientID:     getEnv("BACKEND_CLIENT_ID", "cli"),
		BackendToken:        getEnv("BACKEND_TOKEN", ""),
		BackendTimeoutMs:    getEnvInt("BACKEND_TIMEOUT_MS", 15000),
		BackendRateLimitRPS: getEnvInt("BACKEND_RATE_LIMIT_RPS", 5),
		BackendMaxAttempts:  getEnvInt("BACKEND_MAX_ATTEMPTS", 3),

		ServerAddr:           getEnv("SERVER_ADDR", ":8787"),
		ServerEnv:            getEnv("SERVER_ENV", "development"),
		ServerRequestsPerSec: getEnvInt("SERVER_REQUESTS_PER_SEC", 5),
		ServerBurst:          getEnvInt("SERVER_BURST", 10),
		SyncCooldownSec:      getEnvInt("SYNC_COOLDOWN_SEC", 300),
		SessionTTLHours:      getEnvInt("SESSION_TTL_HOURS", 720),
		SyncRequireAuth:      getEnvBool("SYNC_REQUIRE_AUTH", true),
		AuthSecret:           getEnv("AUTH_SECRET", ""),
		AuthIssuer:           getEnv("AUTH_ISSUER", "milesyncd"),

		FetchTimeoutMs: getEnvInt("FETCH_TIMEOUT_MS", 20000),
		FetchUserAgent: getEnv("FETCH_USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) milesync/1.0"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Weights: Weights{
			Base:            getEnvInt("SCORE_BASE", def.Base),
			Keyword:         getEnvInt("SCORE_KEYWORD", def.Keyword),
			EmphasisContext: getEnvInt("SCORE_EMPHASIS_CONTEXT", def.EmphasisContext),
			Heading:         getEnvInt("SCORE_HEADING", def.Heading),
			Strong:          getEnvInt("SCORE_STRONG", def.Strong),
			PromoPenalty:    getEnvInt("SCORE_PROMO_PENALTY", def.PromoPenalty),
			MaxValueBonus:   getEnvInt("SCORE_MAX_VALUE_BONUS", def.MaxValueBonus),
			Threshold:       getEnvInt("SCORE_THRESHOLD", def.Threshold),
			High:            getEnvInt("SCORE_HIGH", def.High),
			Medium:          getEnvInt("SCORE_MEDIUM", def.Medium),
			MinValue:        getEnvInt("VALUE_MIN", def.MinValue),
			MaxValue:        getEnvInt("VALUE_MAX", def.MaxValue),
		},
	}

	if cfg.Weights.MinValue >= cfg.Weights.MaxValue {
		return Config{}, fmt.Errorf("VALUE_MIN (%d) must be below VALUE_MAX (%d)", cfg.Weights.MinValue, cfg.Weights.MaxValue)
	}
	if cfg.Weights.Medium > cfg.Weights.High {
		return Config{}, fmt.Errorf("SCORE_MEDIUM (%d) must not exceed SCORE_HIGH (%d)", cfg.Weights.Medium, cfg.Weights.High)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.ReplaceAll(value, "_", ""))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
