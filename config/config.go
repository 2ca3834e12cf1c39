// Package config loads process configuration from an optional YAML file and
// the environment. Credentials are validated up front so a misconfigured run
// fails before any email is touched.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/hupe1980/mailflow/core"
)

// Provider selects the generation backend.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the full process configuration.
type Config struct {
	// Provider is "openai" or "anthropic".
	Provider string `mapstructure:"provider"`
	// LLMModel is the generation model identifier.
	LLMModel string `mapstructure:"llm_model"`
	// EmbeddingModel is the embedding model identifier (always OpenAI).
	EmbeddingModel string `mapstructure:"embedding_model"`

	// OpenAIAPIKey and AnthropicAPIKey come from the environment only.
	OpenAIAPIKey    string `mapstructure:"-"`
	AnthropicAPIKey string `mapstructure:"-"`

	// CredentialsFile and TokenFile drive the Google OAuth flow.
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`

	// SlackEnabled toggles notifications; SlackWebhookURL is the endpoint.
	SlackEnabled    bool   `mapstructure:"slack_enabled"`
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`

	// TimezoneOverride is used when the calendar reports no usable
	// timezone; FallbackTimezone applies when neither is available.
	TimezoneOverride string `mapstructure:"timezone_override"`
	FallbackTimezone string `mapstructure:"fallback_timezone"`

	// PolicyDir holds one policy document per file; EmbedCachePath persists
	// chunk embeddings between runs (empty disables the cache).
	PolicyDir      string `mapstructure:"policy_dir"`
	EmbedCachePath string `mapstructure:"embed_cache_path"`
	RAGTopK        int    `mapstructure:"rag_top_k"`

	// MaxAlternatives caps suggested slots; MaxResults caps the inbox fetch.
	MaxAlternatives int `mapstructure:"max_alternatives"`
	MaxResults      int `mapstructure:"max_results"`
}

// Load reads path (optional, YAML) plus MAILFLOW_* environment variables and
// validates the result. A missing config file is fine; missing credentials
// are not.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mailflow")
		v.AddConfigPath(".")
	}

	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("embedding_model", "text-embedding-3-small")
	v.SetDefault("credentials_file", "credentials.json")
	v.SetDefault("token_file", "token.json")
	v.SetDefault("slack_enabled", true)
	v.SetDefault("fallback_timezone", "Asia/Kathmandu")
	v.SetDefault("policy_dir", "policies")
	v.SetDefault("embed_cache_path", ".embed_cache.json")
	v.SetDefault("rag_top_k", 3)
	v.SetDefault("max_alternatives", 3)
	v.SetDefault("max_results", 10)

	v.SetEnvPrefix("mailflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	if tz := os.Getenv("USER_TZ"); tz != "" {
		cfg.TimezoneOverride = tz
	}
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		cfg.SlackWebhookURL = url
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &core.ConfigError{Field: "OPENAI_API_KEY", Err: fmt.Errorf("not set")}
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return &core.ConfigError{Field: "ANTHROPIC_API_KEY", Err: fmt.Errorf("not set")}
		}
		// Embeddings always go through OpenAI.
		if c.OpenAIAPIKey == "" {
			return &core.ConfigError{Field: "OPENAI_API_KEY", Err: fmt.Errorf("required for embeddings")}
		}
	default:
		return &core.ConfigError{Field: "provider", Err: fmt.Errorf("unknown provider %q", c.Provider)}
	}

	if _, err := os.Stat(c.CredentialsFile); err != nil {
		return &core.ConfigError{Field: "credentials_file", Err: err}
	}
	return nil
}
