package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Document loaded for every new session when present on disk.
	DefaultPDFPath string

	// Model provider. The API key is supplied per session through the UI.
	ModelProvider  string
	ModelName      string
	ModelMaxTokens int // 0 leaves the provider's own limit
	OpenAIBaseURL  string
	ModelRetries   int // total attempts per call; 1 disables retry

	// Rasterization
	RenderScale float64

	// Upload limits
	MaxUploadBytes int64

	// Session state
	SessionTTL time.Duration

	// Prompt wording
	TutorRole       string
	TutorLanguage   string
	IncludePageText bool

	// LLM latency window
	StatsWindow time.Duration
}

const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

var defaultModels = map[string]string{
	ProviderGemini: "gemini-2.5-flash",
	ProviderClaude: "claude-sonnet-4-5-20250929",
	ProviderOpenAI: "gpt-4o-mini",
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8501"),

		DefaultPDFPath: envOr("DEFAULT_PDF_PATH", "beckmann_and_lings_obstetrics_and_gynecology_9th_edition.pdf"),

		ModelProvider:  envOr("MODEL_PROVIDER", ProviderGemini),
		ModelName:      os.Getenv("MODEL_NAME"),
		ModelMaxTokens: envInt("MODEL_MAX_TOKENS", 0),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		ModelRetries:   envInt("MODEL_RETRIES", 1),

		RenderScale: envFloat("RENDER_SCALE", 2.0),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 209715200), // 200MB

		SessionTTL: envDuration("SESSION_TTL", 2*time.Hour),

		TutorRole:       envOr("TUTOR_ROLE", "Gynecology Professor"),
		TutorLanguage:   envOr("TUTOR_LANGUAGE", "Hebrew"),
		IncludePageText: envBool("INCLUDE_PAGE_TEXT", false),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),
	}

	if cfg.ModelName == "" {
		cfg.ModelName = defaultModels[cfg.ModelProvider]
	}
	if cfg.ModelMaxTokens < 0 {
		cfg.ModelMaxTokens = 0
	}
	if cfg.ModelRetries < 1 {
		cfg.ModelRetries = 1
	}
	if cfg.RenderScale <= 0 {
		cfg.RenderScale = 2.0
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 209715200
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if _, ok := defaultModels[c.ModelProvider]; !ok {
		return fmt.Errorf("unknown MODEL_PROVIDER %q (want gemini, claude or openai)", c.ModelProvider)
	}
	if c.ModelName == "" {
		return fmt.Errorf("MODEL_NAME is required")
	}
	if c.RenderScale > 8 {
		return fmt.Errorf("RENDER_SCALE %.1f is too large (max 8)", c.RenderScale)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
