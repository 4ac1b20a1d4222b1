package infra

import (
	"strings"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "RUNTIME_DIR", "CORS_ORIGINS", "RATE_LIMIT_PER_MINUTE",
		"LLM_PROVIDER", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"MATERIALIZE_BACKEND", "DEVSERVER_API_KEY", "LOCAL_BUILD_VERIFY",
		"SYNTHESIS_TIMEOUT_SECONDS", "BUILD_TIMEOUT_SECONDS", "RENDER_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" || cfg.RuntimeDir != "runtime" || cfg.AppEnv != "development" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LLMProvider != "static" || cfg.MaterializeBackend != BackendLocal {
		t.Fatalf("provider=%q backend=%q", cfg.LLMProvider, cfg.MaterializeBackend)
	}
	if cfg.LocalBuildVerify || cfg.SynthesisTimeout != 0 || cfg.BuildTimeout != 0 {
		t.Fatalf("verification and deadlines should be off by default: %+v", cfg)
	}
	if cfg.RenderTimeout != 30*time.Second {
		t.Fatalf("RenderTimeout = %s", cfg.RenderTimeout)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("CORSOrigins = %#v", cfg.CORSOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("LOCAL_BUILD_VERIFY", "true")
	t.Setenv("BUILD_TIMEOUT_SECONDS", "600")
	t.Setenv("CORS_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("MATERIALIZE_BACKEND", "Remote")
	t.Setenv("DEVSERVER_API_KEY", "dev-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LLMProvider != "anthropic" {
		t.Fatalf("provider should follow configured key, got %q", cfg.LLMProvider)
	}
	if !cfg.LocalBuildVerify || cfg.BuildTimeout != 10*time.Minute {
		t.Fatalf("verify=%v timeout=%s", cfg.LocalBuildVerify, cfg.BuildTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.test" {
		t.Fatalf("CORSOrigins = %#v", cfg.CORSOrigins)
	}
	if cfg.MaterializeBackend != BackendRemote {
		t.Fatalf("backend = %q", cfg.MaterializeBackend)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown backend", map[string]string{"MATERIALIZE_BACKEND": "cloud"}, "MATERIALIZE_BACKEND"},
		{"remote without key", map[string]string{"MATERIALIZE_BACKEND": "remote"}, "DEVSERVER_API_KEY"},
		{"unknown provider", map[string]string{"LLM_PROVIDER": "gemini"}, "LLM_PROVIDER"},
		{"openai without key", map[string]string{"LLM_PROVIDER": "openai"}, "OPENAI_API_KEY"},
		{"anthropic without key", map[string]string{"LLM_PROVIDER": "anthropic"}, "ANTHROPIC_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestGetEnvBoolIgnoresGarbage(t *testing.T) {
	t.Setenv("UXFORGE_FLAG", "maybe")
	if !getEnvBool("UXFORGE_FLAG", true) {
		t.Fatalf("expected fallback for unparsable value")
	}
	t.Setenv("UXFORGE_FLAG", "0")
	if getEnvBool("UXFORGE_FLAG", true) {
		t.Fatalf("expected false")
	}
}
