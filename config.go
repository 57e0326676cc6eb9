package sprig

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	defaults "github.com/Paranoid-AF/sprig/default"
)

// Config represents the user's sprig configuration.
type Config struct {
	Version    int              `toml:"version"`
	Generation GenerationConfig `toml:"generation"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Shell      ShellConfig      `toml:"shell"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Log        LogConfig        `toml:"log"`
}

// GenerationConfig holds settings for the completion API.
type GenerationConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"` // registry key, see Models
	MaxTokens         int     `toml:"max_tokens"`
	Temperature       float64 `toml:"temperature"`
	TimeoutMS         int     `toml:"timeout_ms"`
	DebounceMS        int     `toml:"debounce_ms"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	ContextLines      int     `toml:"context_lines"`
	CacheTTLSeconds   int     `toml:"cache_ttl_seconds"`
}

// EmbeddingConfig holds settings for the embedding API used by the history index.
type EmbeddingConfig struct {
	BaseURL            string `toml:"base_url"`
	APIKey             string `toml:"api_key"`
	Model              string `toml:"model"`
	TTLMinutes         int    `toml:"ttl_minutes"`
	MaxHistoryCommands int    `toml:"max_history_commands"`
}

// ShellConfig holds settings for the wrapped shell process.
type ShellConfig struct {
	// Command overrides the shell argv. Empty means the platform default.
	Command           []string `toml:"command"`
	DeliveryTimeoutMS int      `toml:"delivery_timeout_ms"`
}

// TelemetryConfig holds telemetry settings.
type TelemetryConfig struct {
	OpenRouter *bool `toml:"openrouter"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// ConfigDir returns the config directory path.
// Resolution order: $SPRIG_CONFIG_DIR > $XDG_CONFIG_HOME/sprig > ~/.config/sprig
func ConfigDir() string {
	if dir := os.Getenv("SPRIG_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "sprig")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sprig-config")
	}
	return filepath.Join(home, ".config", "sprig")
}

// StateDir returns the directory for logs and caches.
// Resolution order: $SPRIG_STATE_DIR > $XDG_STATE_HOME/sprig > ~/.local/state/sprig
func StateDir() string {
	if dir := os.Getenv("SPRIG_STATE_DIR"); dir != "" {
		return dir
	}
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, "sprig")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sprig-state")
	}
	return filepath.Join(home, ".local", "state", "sprig")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// PromptPath returns the custom prompt template path.
func PromptPath() string {
	return filepath.Join(ConfigDir(), "prompt.md")
}

// LogPath returns the rotating log file path.
func LogPath() string {
	if dir := os.Getenv("SPRIG_LOG_DIR"); dir != "" {
		return filepath.Join(dir, "sprig.log")
	}
	return filepath.Join(StateDir(), "sprig.log")
}

// EmbeddingCachePath returns where the history embedding cache is persisted.
func EmbeddingCachePath() string {
	return filepath.Join(StateDir(), "embeddings.json")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(string(defaults.DefaultConfigTOML), &cfg); err != nil {
		panic("sprig: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path, filling missing fields from the defaults.
func LoadConfigFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = defaults.Generation.BaseURL
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = defaults.Generation.Model
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = defaults.Generation.MaxTokens
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = defaults.Generation.Temperature
	}
	if cfg.Generation.TimeoutMS == 0 {
		cfg.Generation.TimeoutMS = defaults.Generation.TimeoutMS
	}
	if cfg.Generation.DebounceMS == 0 {
		cfg.Generation.DebounceMS = defaults.Generation.DebounceMS
	}
	if cfg.Generation.RequestsPerSecond == 0 {
		cfg.Generation.RequestsPerSecond = defaults.Generation.RequestsPerSecond
	}
	if cfg.Generation.ContextLines == 0 {
		cfg.Generation.ContextLines = defaults.Generation.ContextLines
	}
	if cfg.Generation.CacheTTLSeconds == 0 {
		cfg.Generation.CacheTTLSeconds = defaults.Generation.CacheTTLSeconds
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaults.Embedding.Model
	}
	if cfg.Embedding.TTLMinutes == 0 {
		cfg.Embedding.TTLMinutes = defaults.Embedding.TTLMinutes
	}
	if cfg.Embedding.MaxHistoryCommands == 0 {
		cfg.Embedding.MaxHistoryCommands = defaults.Embedding.MaxHistoryCommands
	}
	if cfg.Shell.DeliveryTimeoutMS == 0 {
		cfg.Shell.DeliveryTimeoutMS = defaults.Shell.DeliveryTimeoutMS
	}
	if cfg.Telemetry.OpenRouter == nil {
		cfg.Telemetry.OpenRouter = defaults.Telemetry.OpenRouter
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if _, ok := Models[cfg.Generation.Model]; !ok {
		warnings = append(warnings, "generation.model "+cfg.Generation.Model+" is not a known model; "+DefaultModel+" will be used")
	}
	if cfg.Generation.MaxTokens > 50 {
		warnings = append(warnings, "generation.max_tokens above 50 makes inline suggestions slow and long")
	}
	if cfg.Embedding.BaseURL != "" && ResolveEmbeddingAPIKey(cfg) == "" {
		warnings = append(warnings, "embedding.base_url is set but no embedding API key is configured; related-command search is disabled")
	}
	return warnings
}

// ResolveGenerationBaseURL returns the completion API base URL.
// Priority: $SPRIG_BASE_URL env > config value.
func ResolveGenerationBaseURL(cfg *Config) string {
	if url := os.Getenv("SPRIG_BASE_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	if cfg != nil {
		return strings.TrimRight(cfg.Generation.BaseURL, "/")
	}
	return ""
}

// ResolveGenerationAPIKey returns the completion API key.
// Priority: $SPRIG_API_KEY env > $OPENROUTER_API_KEY env > config value.
func ResolveGenerationAPIKey(cfg *Config) string {
	if key := os.Getenv("SPRIG_API_KEY"); key != "" {
		return key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Generation.APIKey
	}
	return ""
}

// ResolveModel returns the selected model.
// Priority: flag value > $SPRIG_MODEL env > config value > DefaultModel.
func ResolveModel(cfg *Config, flagValue string) (Model, error) {
	if flagValue != "" {
		return LookupModel(flagValue)
	}
	if name := os.Getenv("SPRIG_MODEL"); name != "" {
		return LookupModel(name)
	}
	if cfg != nil {
		if _, ok := Models[cfg.Generation.Model]; ok {
			return LookupModel(cfg.Generation.Model)
		}
	}
	return LookupModel(DefaultModel)
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $SPRIG_EMBEDDING_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	if url := os.Getenv("SPRIG_EMBEDDING_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Embedding.BaseURL
	}
	return ""
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $SPRIG_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	if key := os.Getenv("SPRIG_EMBEDDING_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Embedding.APIKey
	}
	return ""
}

// EmbeddingEnabled returns true when both base_url and api_key are configured for embedding.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return ResolveEmbeddingBaseURL(cfg) != "" && ResolveEmbeddingAPIKey(cfg) != ""
}

// ResolveLogLevel returns the log level name.
// Priority: $SPRIG_LOG_LEVEL env > config value.
func ResolveLogLevel(cfg *Config) string {
	if level := os.Getenv("SPRIG_LOG_LEVEL"); level != "" {
		return level
	}
	if cfg != nil {
		return cfg.Log.Level
	}
	return "info"
}

// OpenRouterTelemetryEnabled returns whether OpenRouter attribution headers should be sent.
func OpenRouterTelemetryEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Telemetry.OpenRouter == nil {
		return true // default true
	}
	return *cfg.Telemetry.OpenRouter
}

// RequestTimeout returns the connect and idle-read timeout for completion requests.
func (g GenerationConfig) RequestTimeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

// Debounce returns the delay before a completion request is sent.
func (g GenerationConfig) Debounce() time.Duration {
	return time.Duration(g.DebounceMS) * time.Millisecond
}

// CacheTTL returns how long completed suggestions are reused.
func (g GenerationConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLSeconds) * time.Second
}

// DeliveryTimeout returns the bound on handing one output line to the UI.
func (s ShellConfig) DeliveryTimeout() time.Duration {
	return time.Duration(s.DeliveryTimeoutMS) * time.Millisecond
}
