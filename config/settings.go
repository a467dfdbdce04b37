// Package config provides application settings loaded from a YAML file
// and environment variables.
//
// Settings are created via Load() which handles:
// - YAML config file parsing (a missing file falls back to defaults)
// - Environment variable overlay with validation
// - Provider alias normalization and provider-specific lookup
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds all application configuration.
type Settings struct {
	LLM           LLMConfig     `yaml:"llm"`
	Chat          ChatConfig    `yaml:"chat"`
	Archive       ArchiveConfig `yaml:"archive"`
	Tools         ToolsConfig   `yaml:"tools"`
	MCPConfigPath string        `yaml:"mcpConfig"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   uint32  `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

// ChatConfig holds conversation configuration.
type ChatConfig struct {
	SystemPrompt    string `yaml:"systemPrompt"`
	SearchGrounding bool   `yaml:"searchGrounding"`
}

// ArchiveConfig holds session archive configuration.
type ArchiveConfig struct {
	Dir         string `yaml:"dir"`
	Backend     string `yaml:"backend"` // "file" or "sqlite"
	MaxSessions int    `yaml:"maxSessions"`
}

// ToolsConfig holds tool execution configuration. Policy values are
// "ask", "always", or "never".
type ToolsConfig struct {
	Policies         map[string]string `yaml:"policies"`
	DefaultPolicy    string            `yaml:"defaultPolicy"`
	WorkDir          string            `yaml:"workDir"`
	MaxFileSize      int64             `yaml:"maxFileSize"`
	FetchTimeoutSecs uint64            `yaml:"fetchTimeoutSecs"`
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-5.2", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-opus-4-5-20251101", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-v3.2", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-3-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// Defaults returns the built-in settings used when no config file exists.
func Defaults() Settings {
	return Settings{
		LLM: LLMConfig{
			Provider:    "gemini",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Archive: ArchiveConfig{
			Dir:         defaultArchiveDir(),
			Backend:     "file",
			MaxSessions: 50,
		},
		Tools: ToolsConfig{
			DefaultPolicy:    "ask",
			MaxFileSize:      1024 * 1024,
			FetchTimeoutSecs: 30,
		},
	}
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".scribe", "config.yaml")
	}
	return filepath.Join(home, ".scribe", "config.yaml")
}

func defaultArchiveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".scribe", "sessions")
	}
	return filepath.Join(home, ".scribe", "sessions")
}

// Load reads settings from the YAML file at path (DefaultConfigPath when
// empty), overlays environment variables, and validates the result. A
// missing config file is not an error.
func Load(path string) (Settings, error) {
	settings := Defaults()

	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := settings.applyEnv(); err != nil {
		return Settings{}, err
	}

	settings.LLM.Provider = normalizeProvider(settings.LLM.Provider)
	if err := settings.validate(); err != nil {
		return Settings{}, err
	}

	if settings.LLM.Model == "" {
		model, err := ModelFor(settings.LLM.Provider)
		if err != nil {
			return Settings{}, err
		}
		settings.LLM.Model = model
	}

	return settings, nil
}

// applyEnv overlays environment variables onto the settings.
func (s *Settings) applyEnv() error {
	if v := os.Getenv("SCRIBE_PROVIDER"); v != "" {
		s.LLM.Provider = v
	}
	if v := os.Getenv("SCRIBE_MODEL"); v != "" {
		s.LLM.Model = v
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens)
	if err != nil {
		return err
	}
	s.LLM.MaxTokens = maxTokens

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature)
	if err != nil {
		return err
	}
	s.LLM.Temperature = temperature

	if v := os.Getenv("SCRIBE_SYSTEM_PROMPT"); v != "" {
		s.Chat.SystemPrompt = v
	}
	if v := os.Getenv("SCRIBE_ARCHIVE_DIR"); v != "" {
		s.Archive.Dir = v
	}
	if v := os.Getenv("SCRIBE_ARCHIVE_BACKEND"); v != "" {
		s.Archive.Backend = v
	}

	maxSessions, err := getEnvInt("SCRIBE_MAX_SESSIONS", s.Archive.MaxSessions)
	if err != nil {
		return err
	}
	s.Archive.MaxSessions = maxSessions

	if v := os.Getenv("SCRIBE_MCP_CONFIG"); v != "" {
		s.MCPConfigPath = v
	}
	if v := os.Getenv("SCRIBE_TOOL_POLICY"); v != "" {
		s.Tools.DefaultPolicy = v
	}
	return nil
}

// validate rejects settings no component can run with.
func (s *Settings) validate() error {
	if _, err := getProviderInfo(s.LLM.Provider); err != nil {
		return err
	}
	switch s.Archive.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown archive backend: %q (supported: file, sqlite)", s.Archive.Backend)
	}
	if s.Archive.MaxSessions < 0 {
		return fmt.Errorf("archive maxSessions must not be negative, got %d", s.Archive.MaxSessions)
	}
	return nil
}

// ApplyProviderOverride switches the active provider and re-resolves the
// model from the new provider's model env var and default. The --provider
// flag replaces the whole provider stanza, so a model configured for the
// previous provider is not carried over.
func (s *Settings) ApplyProviderOverride(provider string) error {
	canonical := normalizeProvider(provider)
	if _, err := getProviderInfo(canonical); err != nil {
		return err
	}
	model, err := ModelFor(canonical)
	if err != nil {
		return err
	}
	s.LLM.Provider = canonical
	s.LLM.Model = model
	return nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
