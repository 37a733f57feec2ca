package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"wish-backend/internal/llm"
)

// defaultProviders is the fallback chain in priority order. Each one reads
// its credential and endpoint from LLM_<NAME>_* variables.
var defaultProviders = []providerDefaults{
	{"deepseek", "https://api.deepseek.com/v1/chat/completions", "deepseek-chat"},
	{"kimi", "https://api.moonshot.cn/v1/chat/completions", "moonshot-v1-8k"},
	{"qwen", "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions", "qwen-plus"},
}

type providerDefaults struct {
	name     string
	endpoint string
	model    string
}

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string
	Env             string

	LLMMode       string
	LLMProviders  []llm.Provider
	TotalDeadline time.Duration

	WeChatAppID     string
	WeChatAppSecret string

	TokenTTL   time.Duration
	AnalyzeCap int
	UnlockCap  int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		Env:             env,

		LLMMode:       getEnv("LLM_PROVIDER", llm.ModeAuto),
		LLMProviders:  loadProviders(),
		TotalDeadline: getDuration("LLM_TOTAL_DEADLINE_MS", 90*time.Second),

		WeChatAppID:     getEnv("WECHAT_APP_ID", ""),
		WeChatAppSecret: getEnv("WECHAT_APP_SECRET", ""),

		TokenTTL:   getDuration("UNLOCK_TOKEN_TTL_MS", 5*time.Minute),
		AnalyzeCap: getInt("ANALYZE_HOURLY_CAP", 20),
		UnlockCap:  getInt("UNLOCK_HOURLY_CAP", 10),
	}
}

// loadProviders builds the provider chain. A provider with no API key stays
// in the list; the registry decides whether it is usable.
func loadProviders() []llm.Provider {
	out := make([]llm.Provider, 0, len(defaultProviders))
	for _, d := range defaultProviders {
		prefix := "LLM_" + strings.ToUpper(d.name) + "_"
		out = append(out, llm.Provider{
			Name:     d.name,
			Endpoint: getEnv(prefix+"ENDPOINT", d.endpoint),
			APIKey:   os.Getenv(prefix + "API_KEY"),
			Model:    getEnv(prefix+"MODEL", d.model),
			Timeout:  getDuration(prefix+"TIMEOUT_MS", 0),
		})
	}
	return out
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: ignoring invalid %s=%q", key, raw)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		log.Printf("config: ignoring invalid %s=%q", key, raw)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
