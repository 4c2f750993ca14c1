// Package config loads gateway configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sweetpotato0/raggate/errors"
)

// Config aggregates every tunable of the gateway process.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	RAG    RAGConfig
	Cache  CacheConfig
	Redis  RedisConfig
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Port        int
	Env         string
	CORSOrigins []string
	APIPrefix   string
}

// AIConfig holds LLM and embedding provider settings.
type AIConfig struct {
	Provider           string // openai | gemini | claude
	OpenAIAPIKey       string
	OpenAIOrgID        string
	GeminiAPIKey       string
	AnthropicAPIKey    string
	DefaultModel       string
	DefaultTemperature float64
	DefaultMaxTokens   int
	RequestTimeout     time.Duration
	MaxRetries         int
	EmbeddingModel     string
	EmbeddingDimension int
}

// RAGConfig holds retrieval tunables.
type RAGConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	TopK          int
	MinSimilarity float64
	MaxDocuments  int
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	MaxSize    int
	DefaultTTL time.Duration
}

// RedisConfig enables the optional Redis response-cache backend when Addr is
// non-empty.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from the environment, applying documented defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 3001),
			Env:         getEnv("NODE_ENV", "development"),
			CORSOrigins: splitAndTrim(getEnv("CORS_ORIGIN", "*")),
			APIPrefix:   getEnv("API_PREFIX", "/api"),
		},
		AI: AIConfig{
			Provider:           getEnv("AI_PROVIDER", "openai"),
			OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
			OpenAIOrgID:        os.Getenv("OPENAI_ORG_ID"),
			GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
			AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			DefaultModel:       getEnv("DEFAULT_AI_MODEL", "gpt-4o-mini"),
			DefaultTemperature: getEnvFloat("DEFAULT_AI_TEMPERATURE", 0.7),
			DefaultMaxTokens:   getEnvInt("DEFAULT_AI_MAX_TOKENS", 1000),
			RequestTimeout:     time.Duration(getEnvInt("AI_REQUEST_TIMEOUT", 30000)) * time.Millisecond,
			MaxRetries:         getEnvInt("AI_MAX_RETRIES", 3),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		},
		RAG: RAGConfig{
			ChunkSize:     getEnvInt("RAG_CHUNK_SIZE", 600),
			ChunkOverlap:  getEnvInt("RAG_CHUNK_OVERLAP", 100),
			TopK:          getEnvInt("RAG_TOP_K", 5),
			MinSimilarity: getEnvFloat("RAG_MIN_SIMILARITY", 0.3),
			MaxDocuments:  getEnvInt("RAG_MAX_DOCUMENTS", 10),
		},
		Cache: CacheConfig{
			MaxSize:    getEnvInt("CACHE_MAX_SIZE", 1000),
			DefaultTTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AI.Provider {
	case "openai", "gemini", "claude":
	default:
		return errors.Newf(errors.CodeConfig, "unsupported AI_PROVIDER %q", c.AI.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf(errors.CodeConfig, "invalid PORT %d", c.Server.Port)
	}
	if c.AI.DefaultTemperature < 0 || c.AI.DefaultTemperature > 1 {
		return errors.Newf(errors.CodeConfig, "DEFAULT_AI_TEMPERATURE must be in [0,1], got %v", c.AI.DefaultTemperature)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return errors.Newf(errors.CodeConfig, "chunk overlap %d must be smaller than chunk size %d", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	return nil
}

// IsProduction reports whether the process runs with production error
// redaction.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
