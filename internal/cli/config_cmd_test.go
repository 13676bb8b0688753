package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/cupid/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command against a config file in a temp home.
func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CUPID_HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath, "--log-level", "silent"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"1", 1},
		{"-20", -20},
		{"0.7", 0.7},
		{"t", "t"},
		{"gpt-4o", "gpt-4o"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestRedact(t *testing.T) {
	in := map[string]any{
		"backend": map[string]any{
			"providers": map[string]any{
				"openai": map[string]any{"apiKey": "sk-live", "model": "gpt-4o"},
			},
		},
		"gateway": map[string]any{"auth": map[string]any{"token": ""}},
		"hooks":   []any{map[string]any{"password": "hunter2"}},
	}

	out := redact(in).(map[string]any)
	openai := out["backend"].(map[string]any)["providers"].(map[string]any)["openai"].(map[string]any)
	assert.Equal(t, redacted, openai["apiKey"])
	assert.Equal(t, "gpt-4o", openai["model"])
	assert.Equal(t, "", out["gateway"].(map[string]any)["auth"].(map[string]any)["token"], "empty secrets stay empty")
	assert.Equal(t, redacted, out["hooks"].([]any)[0].(map[string]any)["password"])

	// the input is untouched
	assert.Equal(t, "sk-live", in["backend"].(map[string]any)["providers"].(map[string]any)["openai"].(map[string]any)["apiKey"])
}

func TestConfigSetAndGet(t *testing.T) {
	path := writeConfig(t, "agent:\n  name: Cupid\n")

	out, err := runCLI(t, path, "config", "set", "agent.maxTokens", "512")
	require.NoError(t, err)
	assert.Contains(t, out, "Set agent.maxTokens = 512")

	out, err = runCLI(t, path, "config", "get", "agent.maxTokens")
	require.NoError(t, err)
	assert.Equal(t, "512\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Agent.MaxTokens)
	assert.Equal(t, "Cupid", cfg.Agent.Name)
}

func TestConfigSet_RefusesInvalidValue(t *testing.T) {
	path := writeConfig(t, "agent:\n  temperature: 0.5\n")

	_, err := runCLI(t, path, "config", "set", "agent.temperature", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.temperature")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, *cfg.Agent.Temperature, 1e-9, "file must be unchanged")

	_, err = runCLI(t, path, "config", "set", "--force", "agent.temperature", "3")
	require.NoError(t, err)
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, *cfg.Agent.Temperature, 1e-9)
}

func TestConfigGet_HidesSecrets(t *testing.T) {
	path := writeConfig(t, "channels:\n  telegram:\n    token: \"123:abc\"\n")

	out, err := runCLI(t, path, "config", "get", "channels.telegram.token")
	require.NoError(t, err)
	assert.Equal(t, redacted+"\n", out)

	out, err = runCLI(t, path, "config", "get", "channels.telegram")
	require.NoError(t, err)
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "123:abc")

	out, err = runCLI(t, path, "config", "get", "--reveal", "channels.telegram.token")
	require.NoError(t, err)
	assert.Equal(t, "123:abc\n", out)
}

func TestConfigShow_HidesSecrets(t *testing.T) {
	path := writeConfig(t, "backend:\n  providers:\n    openai:\n      apiKey: sk-live\n")

	out, err := runCLI(t, path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4-turbo")
	assert.NotContains(t, out, "sk-live")
}

func TestConfigUnset(t *testing.T) {
	path := writeConfig(t, "agent:\n  name: Valentino\n")

	_, err := runCLI(t, path, "config", "unset", "agent.name")
	require.NoError(t, err)

	_, err = runCLI(t, path, "config", "unset", "agent.name")
	assert.Error(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Cupid", cfg.Agent.Name)
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	out, err := runCLI(t, writeConfig(t, "gateway:\n  port: 8080\n"), "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Config is valid.")

	out, err = runCLI(t, writeConfig(t, "gateway:\n  bind: everywhere\n"), "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "gateway.bind")
}
