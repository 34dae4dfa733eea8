// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub GitHubConfig
	LLM    LLMConfig
	Batch  BatchConfig
	Jira   JiraConfig
	Server ServerConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token     string
	Domain    string
	Username  string
	EarlyExit bool
	Timeout   time.Duration
}

// LLMConfig holds the language-model provider configuration.
type LLMConfig struct {
	Provider        string
	Model           string
	BaseURL         string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	MaxTokens       int
	MaxRetries      int
	Concurrency     int
	Timeout         time.Duration
}

// APIKey returns the key matching the configured provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// BatchConfig controls how pull requests are split into summarization calls.
type BatchConfig struct {
	// Strategy is "per-label" (one call per repository and label) or "single".
	Strategy string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL      string
	Username string
	Token    string
}

// Enabled reports whether all JIRA settings are present.
func (c JiraConfig) Enabled() bool {
	return c.URL != "" && c.Username != "" && c.Token != ""
}

// ServerConfig holds settings for the HTTP backend.
type ServerConfig struct {
	Port           int
	Username       string
	Password       string
	StaticDir      string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

var envBindings = map[string]string{
	"github.token":           "GITHUB_TOKEN",
	"github.domain":          "GITHUB_DOMAIN",
	"github.username":        "GITHUB_USERNAME",
	"github.early_exit":      "GITHUB_EARLY_EXIT",
	"github.timeout":         "GITHUB_TIMEOUT",
	"llm.provider":           "LLM_PROVIDER",
	"llm.model":              "LLM_MODEL",
	"llm.base_url":           "LLM_BASE_URL",
	"llm.openai_api_key":     "OPENAI_API_KEY",
	"llm.anthropic_api_key":  "ANTHROPIC_API_KEY",
	"llm.max_tokens":         "LLM_MAX_TOKENS",
	"llm.max_retries":        "LLM_MAX_RETRIES",
	"llm.concurrency":        "LLM_CONCURRENCY",
	"llm.timeout":            "LLM_TIMEOUT",
	"batch.strategy":         "BATCH_STRATEGY",
	"jira.url":               "JIRA_URL",
	"jira.username":          "JIRA_USERNAME",
	"jira.token":             "JIRA_TOKEN",
	"server.port":            "PORT",
	"server.username":        "APP_USERNAME",
	"server.password":        "APP_PASSWORD",
	"server.static_dir":      "STATIC_DIR",
	"server.request_timeout": "REQUEST_TIMEOUT",
	"server.allowed_origins": "ALLOWED_ORIGINS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.domain", "github.com")
	v.SetDefault("github.early_exit", false)
	v.SetDefault("github.timeout", 30*time.Second)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-5.2")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.concurrency", 10)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("batch.strategy", "per-label")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.request_timeout", 10*time.Minute)
	v.SetDefault("server.allowed_origins", []string{"*"})
}

// LoadConfig loads configuration from environment variables and, when path is
// not empty, from a json, yaml or toml config file. Environment variables win.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config := &Config{
		GitHub: GitHubConfig{
			Token:     v.GetString("github.token"),
			Domain:    v.GetString("github.domain"),
			Username:  v.GetString("github.username"),
			EarlyExit: v.GetBool("github.early_exit"),
			Timeout:   v.GetDuration("github.timeout"),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(v.GetString("llm.provider")),
			Model:           v.GetString("llm.model"),
			BaseURL:         v.GetString("llm.base_url"),
			OpenAIAPIKey:    v.GetString("llm.openai_api_key"),
			AnthropicAPIKey: v.GetString("llm.anthropic_api_key"),
			MaxTokens:       v.GetInt("llm.max_tokens"),
			MaxRetries:      v.GetInt("llm.max_retries"),
			Concurrency:     v.GetInt("llm.concurrency"),
			Timeout:         v.GetDuration("llm.timeout"),
		},
		Batch: BatchConfig{
			Strategy: strings.ToLower(v.GetString("batch.strategy")),
		},
		Jira: JiraConfig{
			URL:      v.GetString("jira.url"),
			Username: v.GetString("jira.username"),
			Token:    v.GetString("jira.token"),
		},
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			Username:       v.GetString("server.username"),
			Password:       v.GetString("server.password"),
			StaticDir:      v.GetString("server.static_dir"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			AllowedOrigins: splitList(v.GetStringSlice("server.allowed_origins")),
		},
	}

	if config.GitHub.Domain == "" {
		config.GitHub.Domain = "github.com"
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// splitList accepts both space and comma separated values.
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

// validateConfig checks values that are invalid regardless of which command runs.
func validateConfig(config *Config) error {
	var problems []string

	if config.LLM.MaxRetries < 1 {
		problems = append(problems, "llm.max_retries must be at least 1")
	}
	if config.LLM.Concurrency < 1 {
		problems = append(problems, "llm.concurrency must be at least 1")
	}
	if config.LLM.MaxTokens < 1 {
		problems = append(problems, "llm.max_tokens must be at least 1")
	}
	switch config.Batch.Strategy {
	case "per-label", "single":
	default:
		problems = append(problems, fmt.Sprintf("batch.strategy %q must be per-label or single", config.Batch.Strategy))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateGitHubConfig validates the settings needed to fetch pull requests from the CLI.
func ValidateGitHubConfig(config *Config) error {
	var missingVars []string

	if config.GitHub.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateLLMConfig validates the provider selection and its API key.
func ValidateLLMConfig(config *Config) error {
	switch config.LLM.Provider {
	case "openai":
		if config.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("missing required environment variables: [OPENAI_API_KEY]")
		}
	case "anthropic":
		if config.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("missing required environment variables: [ANTHROPIC_API_KEY]")
		}
	default:
		return fmt.Errorf("unknown llm provider: %s", config.LLM.Provider)
	}

	if config.LLM.Model == "" {
		return fmt.Errorf("missing required environment variables: [LLM_MODEL]")
	}

	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateServerConfig validates the settings needed to serve the HTTP API.
func ValidateServerConfig(config *Config) error {
	var missingVars []string

	if config.Server.Username == "" {
		missingVars = append(missingVars, "APP_USERNAME")
	}
	if config.Server.Password == "" {
		missingVars = append(missingVars, "APP_PASSWORD")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	return nil
}
