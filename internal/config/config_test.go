package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "openai", cfg.Backend.Provider)
	assert.Equal(t, "${OPENAI_API_KEY}", cfg.Backend.Providers["openai"].APIKey)
	assert.Equal(t, "gpt-4-turbo", cfg.Backend.Providers["openai"].Model)
	require.NotNil(t, cfg.Agent.Temperature)
	assert.InDelta(t, 0.5, *cfg.Agent.Temperature, 1e-9)
	assert.Equal(t, 1000, cfg.Agent.MaxInputChars)
	assert.Equal(t, 300, cfg.Agent.VisionMaxTokens)
	assert.Equal(t, "Sorry, I'm not available right now.", cfg.Agent.Apology)
	assert.Equal(t, 18790, cfg.Gateway.Port)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)
	assert.True(t, cfg.GatewayEnabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Nil(t, cfg.Channels.Telegram)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults with secrets expanded
	assert.Equal(t, 18790, cfg.Gateway.Port)
	assert.Equal(t, "sk-test", cfg.Backend.Providers["openai"].APIKey)
	assert.Empty(t, Validate(&cfg))
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("TG_TOKEN", "123:abc")
	t.Setenv("GEMINI_API_KEY", "g-key")

	yaml := `
backend:
  provider: gemini
  fallbacks: [openai]
  providers:
    openai:
      apiKey: sk-inline
      model: gpt-4o
agent:
  temperature: 0.9
  maxInputChars: 500
gateway:
  port: 9999
  bind: lan
  auth:
    token: secret123
logging:
  level: debug
  consoleStyle: json
session:
  store: memory
channels:
  telegram:
    token: ${TG_TOKEN}
  irc:
    server: irc.libera.chat
    nick: cupidbot
    useTLS: true
  web:
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Backend.Provider)
	assert.Equal(t, []string{"gemini", "openai"}, cfg.ProviderNames())
	assert.Equal(t, "g-key", cfg.Backend.Providers["gemini"].APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Backend.Providers["gemini"].Model)
	assert.Equal(t, "sk-inline", cfg.Backend.Providers["openai"].APIKey)
	assert.Equal(t, "gpt-4o", cfg.Backend.Providers["openai"].Model)
	assert.InDelta(t, 0.9, *cfg.Agent.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.Agent.MaxInputChars)
	assert.Equal(t, 300, cfg.Agent.VisionMaxTokens)

	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "secret123", cfg.Gateway.Auth.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	assert.Equal(t, "memory", cfg.Session.Store)

	require.NotNil(t, cfg.Channels.Telegram)
	assert.Equal(t, "123:abc", cfg.Channels.Telegram.Token)
	assert.Equal(t, 60, cfg.Channels.Telegram.PollTimeout)
	assert.InDelta(t, 1.0, cfg.Channels.Telegram.SendsPerSecond, 1e-9)

	require.NotNil(t, cfg.Channels.IRC)
	assert.Equal(t, "irc.libera.chat", cfg.Channels.IRC.Server)
	assert.Equal(t, 6697, cfg.Channels.IRC.Port)

	require.NotNil(t, cfg.Channels.Web)
	assert.EqualValues(t, 5<<20, cfg.Channels.Web.MaxUploadBytes)

	assert.Empty(t, Validate(&cfg))
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CUPID_GATEWAY_PORT", "12345")
	t.Setenv("CUPID_LOG_LEVEL", "TRACE")
	t.Setenv("CUPID_BACKEND_PROVIDER", "Claude")
	t.Setenv("TELEGRAM_BOT_TOKEN", "42:xyz")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Gateway.Port)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "claude", cfg.Backend.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Backend.Providers["claude"].Model)
	require.NotNil(t, cfg.Channels.Telegram)
	assert.Equal(t, "42:xyz", cfg.Channels.Telegram.Token)
	assert.Equal(t, 60, cfg.Channels.Telegram.PollTimeout)
}

func TestLoadCupidTelegramTokenWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  telegram:\n    token: from-file\n"), 0o600))
	t.Setenv("TELEGRAM_BOT_TOKEN", "ignored")
	t.Setenv("CUPID_TELEGRAM_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Channels.Telegram.Token)
}

func TestUnresolvedSecretIsReported(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "backend.providers.openai.apiKey", issues[0].Path)
	assert.Contains(t, issues[0].Message, "OPENAI_API_KEY")
}

func TestGatewayEnabled(t *testing.T) {
	cfg := Defaults()
	assert.True(t, cfg.GatewayEnabled())

	off := false
	cfg.Gateway.Enabled = &off
	assert.False(t, cfg.GatewayEnabled())
}

func TestFromRaw(t *testing.T) {
	cfg, err := FromRaw(map[string]any{
		"agent":   map[string]any{"maxTokens": 512},
		"gateway": map[string]any{"bind": "lan"},
	})
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Agent.MaxTokens)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "Cupid", cfg.Agent.Name, "defaults still apply")

	_, err = FromRaw(map[string]any{"gateway": map[string]any{"port": "not a number"}})
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"gateway": map[string]any{
			"port": 9999,
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := GetValueAtPath(loaded, []string{"gateway", "port"})
	assert.True(t, ok)
	assert.Equal(t, 9999, val)
}
