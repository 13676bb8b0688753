package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultGatewayPort     = 18790
	DefaultTemperature     = 0.5
	DefaultMaxInputChars   = 1000
	DefaultVisionMaxTokens = 300
	DefaultMaxTokens       = 1024
	DefaultApology         = "Sorry, I'm not available right now."
)

// defaultModels holds the conversation and vision model per known provider.
var defaultModels = map[string][2]string{
	"openai": {"gpt-4-turbo", "gpt-4o"},
	"gemini": {"gemini-2.5-flash", "gemini-2.5-flash"},
	"claude": {"claude-sonnet-4-5", "claude-sonnet-4-5"},
}

// defaultKeyEnv names the environment variable each provider key defaults to.
var defaultKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	temp := DefaultTemperature
	return Config{
		Backend: BackendConfig{
			Provider: "openai",
			Providers: map[string]ProviderEntry{
				"openai": {
					APIKey:      "${OPENAI_API_KEY}",
					Model:       defaultModels["openai"][0],
					VisionModel: defaultModels["openai"][1],
				},
			},
		},
		Agent: AgentConfig{
			Name:            "Cupid",
			Temperature:     &temp,
			MaxTokens:       DefaultMaxTokens,
			MaxInputChars:   DefaultMaxInputChars,
			VisionMaxTokens: DefaultVisionMaxTokens,
			Apology:         DefaultApology,
		},
		Gateway: GatewayConfig{
			Port: DefaultGatewayPort,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleLevel: "info",
			ConsoleStyle: "pretty",
		},
		Session: SessionConfig{
			Store: "sqlite",
		},
	}
}

// GatewayEnabled reports whether the status server should run.
func (c *Config) GatewayEnabled() bool {
	return c.Gateway.Enabled == nil || *c.Gateway.Enabled
}

// ProviderNames returns the primary provider followed by its fallbacks.
func (c *Config) ProviderNames() []string {
	names := []string{c.Backend.Provider}
	for _, f := range c.Backend.Fallbacks {
		if f != c.Backend.Provider {
			names = append(names, f)
		}
	}
	return names
}
