package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowOrigins   []string
	StoreDriver    string
	DatabaseDSN    string
	JWTSecret      string
	JWTTTL         time.Duration
	AdminEmail     string
	AdminPassword  string
	AdminName      string
	LogRetention   int
	AIProvider     string
	AILocale       string
	AlgorithmTag   string
	GeminiKey      string
	GeminiBaseURL  string
	GeminiModel    string
	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAILlmModel string
	ReqTimeoutSec  int
	RateLimitRPS   float64
	RateLimitBurst int
	MaxImageMB     int64
	RedisAddr      string
	RedisPassword  string
	KafkaBrokers   []string
	KafkaTopic     string
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func atof(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvList(key, def string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from the environment. A missing JWT secret is a
// fatal configuration error.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:         getenv("APP_ENV", "production"),
		Port:           getenv("PORT", "8080"),
		AllowOrigins:   getenvList("ALLOW_ORIGINS", "http://localhost:5173"),
		StoreDriver:    getenv("STORE_DRIVER", "postgres"),
		DatabaseDSN:    getenv("DATABASE_URL", ""),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         getenvDuration("JWT_TTL", 7*24*time.Hour),
		AdminEmail:     getenv("ADMIN_EMAIL", ""),
		AdminPassword:  getenv("ADMIN_PASSWORD", ""),
		AdminName:      getenv("ADMIN_NAME", "System Administrator"),
		LogRetention:   atoi("LOG_RETENTION", 1000),
		AIProvider:     getenv("AI_PROVIDER", "gemini"),
		AILocale:       getenv("AI_LOCALE", "fa"),
		AlgorithmTag:   getenv("ALGORITHM_VERSION", "SASKA-4.0"),
		GeminiKey:      getenv("GEMINI_API_KEY", ""),
		GeminiBaseURL:  getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:    getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIKey:      getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAILlmModel: getenv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		ReqTimeoutSec:  atoi("REQUEST_TIMEOUT_SECONDS", 30),
		RateLimitRPS:   atof("RATE_LIMIT_RPS", 5),
		RateLimitBurst: atoi("RATE_LIMIT_BURST", 10),
		MaxImageMB:     int64(atoi("MAX_IMAGE_MB", 8)),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		KafkaBrokers:   getenvList("KAFKA_BROKERS", ""),
		KafkaTopic:     getenv("KAFKA_TOPIC", "saska.system-logs"),
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = dsnFromParts()
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	return cfg, nil
}

// dsnFromParts builds a postgres URL from the discrete DB_* variables.
func dsnFromParts() string {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	return "postgres://" + os.Getenv("DB_USER") + ":" + os.Getenv("DB_PASSWORD") +
		"@" + host + ":" + getenv("DB_PORT", "5432") + "/" + os.Getenv("DB_NAME") +
		"?sslmode=" + getenv("DB_SSLMODE", "disable")
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.ReqTimeoutSec) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
