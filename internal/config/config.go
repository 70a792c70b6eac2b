package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wandernest-backend/internal/models"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase access tokens
	JWTSecret string

	// AI relay
	AIProvider       string
	AIDemoFallback   bool
	AITimeoutSeconds int
	FallbackLocale   string
	DefaultCurrency  string
	ChatRateLimit    int

	GroqAPIKey string
	GroqModel  string
	GroqURL    string

	XAIAPIKey string
	XAIModel  string
	XAIURL    string

	GeminiAPIKey string
	GeminiModel  string

	OllamaBaseURL  string
	OllamaModel    string
	OllamaFallback bool

	// Usage workers
	UsageWorkers int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:             getEnvOrDefault("PORT", "5000"),
		Env:              getEnvOrDefault("ENV", "development"),
		DatabaseURL:      getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:         getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:        getEnvOrDefault("SUPABASE_JWT_SECRET", ""),
		AIProvider:       strings.ToLower(getEnvOrDefault("AI_PROVIDER", "groq")),
		AIDemoFallback:   getEnvAsBoolOrDefault("AI_DEMO_FALLBACK", true),
		AITimeoutSeconds: getEnvAsIntOrDefault("AI_TIMEOUT_SECONDS", 30),
		FallbackLocale:   getEnvOrDefault("AI_FALLBACK_LOCALE", "en-IN"),
		DefaultCurrency:  strings.ToUpper(getEnvOrDefault("AI_DEFAULT_CURRENCY", "INR")),
		ChatRateLimit:    getEnvAsIntOrDefault("AI_CHAT_RATE_LIMIT", 30),
		GroqAPIKey:       getEnvOrDefault("GROQ_API_KEY", ""),
		GroqModel:        getEnvOrDefault("GROQ_MODEL", "llama-3.1-8b-instant"),
		GroqURL:          getEnvOrDefault("GROQ_API_URL", "https://api.groq.com/openai/v1/chat/completions"),
		XAIAPIKey:        getEnvOrDefault("XAI_API_KEY", getEnvOrDefault("GROK_API_KEY", "")),
		XAIModel:         getEnvOrDefault("XAI_MODEL", "grok-4-latest"),
		XAIURL:           getEnvOrDefault("XAI_API_URL", "https://api.x.ai/v1/chat/completions"),
		GeminiAPIKey:     getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:      getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaBaseURL:    strings.TrimRight(getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		OllamaModel:      getEnvOrDefault("OLLAMA_MODEL", "llama3.1"),
		OllamaFallback:   getEnvAsBoolOrDefault("OLLAMA_FALLBACK", true),
		UsageWorkers:     getEnvAsIntOrDefault("USAGE_WORKERS", 2),
		FrontendURL:      getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	// Unauthenticated AI routes are only acceptable outside production.
	if cfg.Env == "production" {
		cfg.JWTSecret = mustGetEnv("SUPABASE_JWT_SECRET")
	}

	return cfg
}

// ProviderConfigs returns the per-provider settings in a fixed order.
func (c *Config) ProviderConfigs() []models.ProviderConfig {
	return []models.ProviderConfig{
		{Name: "groq", Endpoint: c.GroqURL, Model: c.GroqModel, Credential: c.GroqAPIKey},
		{Name: "xai", Endpoint: c.XAIURL, Model: c.XAIModel, Credential: c.XAIAPIKey},
		{Name: "gemini", Model: c.GeminiModel, Credential: c.GeminiAPIKey},
		{Name: "ollama", Endpoint: c.OllamaBaseURL, Model: c.OllamaModel},
	}
}

// AITimeout is the per-provider call budget; zero or negative disables it.
func (c *Config) AITimeout() time.Duration {
	if c.AITimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
