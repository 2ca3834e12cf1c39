package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mailflow/core"
)

func writeCredentials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"installed":{}}`), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("USER_TZ", "")
	t.Setenv("SLACK_WEBHOOK_URL", "")

	creds := writeCredentials(t)
	path := filepath.Join(t.TempDir(), "mailflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials_file: "+creds+"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "Asia/Kathmandu", cfg.FallbackTimezone)
	assert.Equal(t, "policies", cfg.PolicyDir)
	assert.Equal(t, 3, cfg.RAGTopK)
	assert.Equal(t, 3, cfg.MaxAlternatives)
	assert.Equal(t, 10, cfg.MaxResults)
	assert.True(t, cfg.SlackEnabled)
}

func TestLoadFileOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("USER_TZ", "")
	t.Setenv("SLACK_WEBHOOK_URL", "")

	creds := writeCredentials(t)
	content := "credentials_file: " + creds + `
llm_model: gpt-4-turbo
timezone_override: Australia/Sydney
max_alternatives: 5
slack_enabled: false
`
	path := filepath.Join(t.TempDir(), "mailflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo", cfg.LLMModel)
	assert.Equal(t, "Australia/Sydney", cfg.TimezoneOverride)
	assert.Equal(t, 5, cfg.MaxAlternatives)
	assert.False(t, cfg.SlackEnabled)
}

func TestLoadEnvWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("USER_TZ", "Europe/Berlin")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.example/T123")

	creds := writeCredentials(t)
	content := "credentials_file: " + creds + "\ntimezone_override: Australia/Sydney\n"
	path := filepath.Join(t.TempDir(), "mailflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Europe/Berlin", cfg.TimezoneOverride)
	assert.Equal(t, "https://hooks.slack.example/T123", cfg.SlackWebhookURL)
}

func TestLoadMissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	creds := writeCredentials(t)
	path := filepath.Join(t.TempDir(), "mailflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials_file: "+creds+"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Field)
}

func TestLoadAnthropicStillNeedsEmbeddingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	creds := writeCredentials(t)
	content := "credentials_file: " + creds + "\nprovider: anthropic\n"
	path := filepath.Join(t.TempDir(), "mailflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Field)
}

func TestLoadMissingCredentialsFileIsFatal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	content := "credentials_file: " + filepath.Join(t.TempDir(), "nope.json") + "\n"
	path := filepath.Join(t.TempDir(), "mailflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "credentials_file", cfgErr.Field)
}
