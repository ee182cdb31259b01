// Package config loads data vault configuration from the process
// environment, following spec.md §6. Unlike a CLI tool that reads a
// dotfile, the vault is a long-running service, so its configuration
// surface is environment variables rather than a JSON file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ixoworld/datavault/internal/vaulterr"
)

// Config holds the vault's runtime configuration.
type Config struct {
	// RedisURL is the required backend connection string. The vault's
	// external configuration contract names this REDIS_URL per spec.md §6;
	// see DESIGN.md for why the wired backend is in-process rather than a
	// real Redis connection.
	RedisURL string

	// MaxInlineRows is the row-count threshold (R) above which ShouldOffload
	// returns true.
	MaxInlineRows int

	// MaxInlineTokens is the estimated-token threshold (K).
	MaxInlineTokens int

	// MaxInlineBytes is the serialized-byte threshold (B).
	MaxInlineBytes int

	// TTL is the absolute lifetime of a fresh vault entry.
	TTL time.Duration

	// GracePeriod is the shortened lifetime applied after first retrieval.
	GracePeriod time.Duration

	// AnthropicAPIKey authenticates the AnalysisAgent's LLM calls.
	AnthropicAPIKey string

	// AnalysisModel is the model identifier used for analysis calls.
	AnalysisModel string
}

// Defaults per spec.md §4.2 and §6.
const (
	DefaultMaxInlineRows   = 100
	DefaultMaxInlineTokens = 10000
	DefaultMaxInlineBytes  = 51200
	DefaultTTLSeconds      = 1800
	DefaultGraceSeconds    = 300
	DefaultAnalysisModel   = "claude-sonnet-4-5-20250929"
)

// Load reads configuration from the environment. REDIS_URL is required;
// its absence is a ValidationError per spec.md §7 ("invalid config at
// startup (missing store URL)").
func Load() (*Config, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, vaulterr.NewValidationError("REDIS_URL is required")
	}

	cfg := &Config{
		RedisURL:        redisURL,
		MaxInlineRows:   intEnv("DATA_VAULT_MAX_INLINE_ROWS", DefaultMaxInlineRows),
		MaxInlineTokens: intEnv("DATA_VAULT_MAX_INLINE_TOKENS", DefaultMaxInlineTokens),
		MaxInlineBytes:  intEnv("DATA_VAULT_MAX_INLINE_BYTES", DefaultMaxInlineBytes),
		TTL:             time.Duration(intEnv("DATA_VAULT_TTL_SECONDS", DefaultTTLSeconds)) * time.Second,
		GracePeriod:     time.Duration(intEnv("DATA_VAULT_GRACE_PERIOD_SECONDS", DefaultGraceSeconds)) * time.Second,
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnalysisModel:   stringEnv("DATA_VAULT_ANALYSIS_MODEL", DefaultAnalysisModel),
	}

	return cfg, nil
}

func intEnv(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func stringEnv(name, fallback string) string {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	return v
}
