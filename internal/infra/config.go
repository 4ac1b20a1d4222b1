package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Materialization backends.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

var llmProviders = []string{"static", "openai", "anthropic", "bedrock"}

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv     string
	LogLevel   string
	Port       string
	RuntimeDir string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string

	// Audit
	PageSpeedAPIKey string
	AxeScriptURL    string
	ChromePath      string
	ChromeNoSandbox bool
	RenderTimeout   time.Duration

	// Synthesis
	LLMProvider       string
	LLMModel          string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AnthropicAPIKey   string
	AWSRegion         string
	AWSProfile        string
	AgentMaxIter      int
	StyleCriteriaPath string
	SynthesisTimeout  time.Duration

	// Materialization
	MaterializeBackend    string
	LocalBuildVerify      bool
	LocalAgent            bool
	BuildTimeout          time.Duration
	DevServerAPIKey       string
	DevServerBaseURL      string
	DevServerRepoID       string
	DevServerTemplateRepo string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Port:             getEnv("PORT", "8080"),
		RuntimeDir:       getEnv("RUNTIME_DIR", "runtime"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSOrigins:      getEnvList("CORS_ORIGINS", []string{"*"}),

		PageSpeedAPIKey: os.Getenv("PAGESPEED_API_KEY"),
		AxeScriptURL:    os.Getenv("AXE_SCRIPT_URL"),
		ChromePath:      os.Getenv("CHROME_PATH"),
		ChromeNoSandbox: getEnvBool("CHROME_NO_SANDBOX", false),
		RenderTimeout:   time.Second * time.Duration(getEnvInt("RENDER_TIMEOUT_SECONDS", 30)),

		LLMModel:          os.Getenv("LLM_MODEL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AWSRegion:         os.Getenv("AWS_REGION"),
		AWSProfile:        os.Getenv("AWS_PROFILE"),
		AgentMaxIter:      getEnvInt("AGENT_MAX_ITERATIONS", 12),
		StyleCriteriaPath: os.Getenv("STYLE_CRITERIA_PATH"),
		SynthesisTimeout:  time.Second * time.Duration(getEnvInt("SYNTHESIS_TIMEOUT_SECONDS", 0)),

		MaterializeBackend:    strings.ToLower(getEnv("MATERIALIZE_BACKEND", BackendLocal)),
		LocalBuildVerify:      getEnvBool("LOCAL_BUILD_VERIFY", false),
		LocalAgent:            getEnvBool("LOCAL_AGENT", false),
		BuildTimeout:          time.Second * time.Duration(getEnvInt("BUILD_TIMEOUT_SECONDS", 0)),
		DevServerAPIKey:       os.Getenv("DEVSERVER_API_KEY"),
		DevServerBaseURL:      os.Getenv("DEVSERVER_BASE_URL"),
		DevServerRepoID:       os.Getenv("DEVSERVER_REPO_ID"),
		DevServerTemplateRepo: os.Getenv("DEVSERVER_TEMPLATE_REPO"),
	}
	cfg.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", defaultProvider(cfg)))

	switch cfg.MaterializeBackend {
	case BackendLocal:
	case BackendRemote:
		if cfg.DevServerAPIKey == "" {
			return nil, fmt.Errorf("DEVSERVER_API_KEY is required when MATERIALIZE_BACKEND=remote")
		}
	default:
		return nil, fmt.Errorf("MATERIALIZE_BACKEND must be %q or %q, got %q", BackendLocal, BackendRemote, cfg.MaterializeBackend)
	}

	if !contains(llmProviders, cfg.LLMProvider) {
		return nil, fmt.Errorf("LLM_PROVIDER must be one of %s, got %q", strings.Join(llmProviders, ", "), cfg.LLMProvider)
	}
	if cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
	}
	if cfg.LLMProvider == "anthropic" && cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
	}

	return cfg, nil
}

// defaultProvider picks the first provider with credentials, falling back to
// the offline synthesizer.
func defaultProvider(cfg *Config) string {
	switch {
	case cfg.AnthropicAPIKey != "":
		return "anthropic"
	case cfg.OpenAIAPIKey != "":
		return "openai"
	default:
		return "static"
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
