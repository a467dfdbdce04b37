package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearOverlayEnv blanks every variable applyEnv reads so tests see only
// what they set themselves.
func clearOverlayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SCRIBE_PROVIDER", "SCRIBE_MODEL", "SCRIBE_SYSTEM_PROMPT",
		"SCRIBE_ARCHIVE_DIR", "SCRIBE_ARCHIVE_BACKEND", "SCRIBE_MAX_SESSIONS",
		"SCRIBE_MCP_CONFIG", "SCRIBE_TOOL_POLICY",
		"LLM_MAX_TOKENS", "LLM_TEMPERATURE", "GEMINI_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearOverlayEnv(t)

	settings, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if settings.LLM.Provider != "gemini" {
		t.Errorf("provider = %q, want gemini", settings.LLM.Provider)
	}
	if settings.LLM.Model != "gemini-3-flash" {
		t.Errorf("model = %q, want default", settings.LLM.Model)
	}
	if settings.LLM.MaxTokens != 4096 {
		t.Errorf("maxTokens = %d, want 4096", settings.LLM.MaxTokens)
	}
	if settings.Archive.Backend != "file" || settings.Archive.MaxSessions != 50 {
		t.Errorf("archive = %+v", settings.Archive)
	}
	if settings.Tools.DefaultPolicy != "ask" {
		t.Errorf("default policy = %q, want ask", settings.Tools.DefaultPolicy)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearOverlayEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: claude
  model: claude-opus-4-5-20251101
  temperature: 0.2
chat:
  systemPrompt: Answer tersely.
  searchGrounding: true
archive:
  backend: sqlite
  dir: /tmp/scribe-test
tools:
  defaultPolicy: always
  policies:
    write_file: never
mcpConfig: /tmp/mcp.json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if settings.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic (normalized from claude)", settings.LLM.Provider)
	}
	if settings.LLM.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", settings.LLM.Temperature)
	}
	if settings.LLM.MaxTokens != 4096 {
		t.Errorf("maxTokens = %d, want default 4096 (unset in file)", settings.LLM.MaxTokens)
	}
	if settings.Chat.SystemPrompt != "Answer tersely." || !settings.Chat.SearchGrounding {
		t.Errorf("chat = %+v", settings.Chat)
	}
	if settings.Archive.Backend != "sqlite" || settings.Archive.Dir != "/tmp/scribe-test" {
		t.Errorf("archive = %+v", settings.Archive)
	}
	if settings.Archive.MaxSessions != 50 {
		t.Errorf("maxSessions = %d, want default 50", settings.Archive.MaxSessions)
	}
	if settings.Tools.DefaultPolicy != "always" || settings.Tools.Policies["write_file"] != "never" {
		t.Errorf("tools = %+v", settings.Tools)
	}
	if settings.MCPConfigPath != "/tmp/mcp.json" {
		t.Errorf("mcpConfig = %q", settings.MCPConfigPath)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearOverlayEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  provider: openai\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("SCRIBE_PROVIDER", "claude")
	t.Setenv("SCRIBE_MAX_SESSIONS", "7")

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q, want env override", settings.LLM.Provider)
	}
	if settings.Archive.MaxSessions != 7 {
		t.Errorf("maxSessions = %d, want 7", settings.Archive.MaxSessions)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearOverlayEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable config file")
	}
}

func TestLoadUnknownProvider(t *testing.T) {
	clearOverlayEnv(t)
	t.Setenv("SCRIBE_PROVIDER", "unknown_provider")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestLoadUnknownBackend(t *testing.T) {
	clearOverlayEnv(t)
	t.Setenv("SCRIBE_ARCHIVE_BACKEND", "redis")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for unknown archive backend")
	}
}

func TestLoadInvalidEnvNumber(t *testing.T) {
	clearOverlayEnv(t)
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for invalid LLM_MAX_TOKENS")
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := APIKeyFor("openai"); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	if _, err := APIKeyFor("unknown"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "")

	model, err := ModelFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == "" {
		t.Error("expected non-empty model")
	}

	t.Setenv("OPENAI_MODEL", "gpt-custom")
	model, err = ModelFor("gpt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "gpt-custom" {
		t.Errorf("model = %q, want env override via alias", model)
	}
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) == 0 {
		t.Error("expected at least one supported provider")
	}
}

func TestApplyProviderOverride(t *testing.T) {
	t.Setenv("ANTHROPIC_MODEL", "")

	s := Defaults()
	s.LLM.Provider = "openai"
	s.LLM.Model = "gpt-5.2"

	if err := s.ApplyProviderOverride("claude"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q, want alias normalized to anthropic", s.LLM.Provider)
	}
	if s.LLM.Model == "gpt-5.2" {
		t.Error("expected model re-resolved for the new provider")
	}

	if err := s.ApplyProviderOverride("unknown_provider"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if s.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q, failed override must not change settings", s.LLM.Provider)
	}
}
