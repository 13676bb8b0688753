package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// unresolved reports whether s still carries a ${VAR} reference.
func unresolved(s string) bool {
	return envVarPattern.MatchString(s)
}

// expandSensitiveFields processes environment variable references in
// credential fields so passwords and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
	if cfg.Channels.Telegram != nil {
		cfg.Channels.Telegram.Token = expandEnvVars(cfg.Channels.Telegram.Token)
	}
	for name, provider := range cfg.Backend.Providers {
		provider.APIKey = expandEnvVars(provider.APIKey)
		provider.BaseURL = expandEnvVars(provider.BaseURL)
		cfg.Backend.Providers[name] = provider
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// FromRaw decodes a generic config map the way Load decodes a file, without
// environment overrides. It lets edits be checked before they are saved.
func FromRaw(raw map[string]any) (Config, error) {
	cfg := Defaults()
	data, err := yaml.Marshal(raw)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "invalid config: " + err.Error()}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Backend.Provider == "" {
		cfg.Backend.Provider = "openai"
	}
	if cfg.Backend.Providers == nil {
		cfg.Backend.Providers = map[string]ProviderEntry{}
	}
	for _, name := range cfg.ProviderNames() {
		if _, ok := cfg.Backend.Providers[name]; !ok {
			cfg.Backend.Providers[name] = ProviderEntry{}
		}
	}
	for name, p := range cfg.Backend.Providers {
		if p.APIKey == "" {
			if env, ok := defaultKeyEnv[name]; ok {
				p.APIKey = "${" + env + "}"
			}
		}
		if models, ok := defaultModels[name]; ok {
			if p.Model == "" {
				p.Model = models[0]
			}
			if p.VisionModel == "" {
				p.VisionModel = models[1]
			}
		}
		if p.VisionModel == "" {
			p.VisionModel = p.Model
		}
		cfg.Backend.Providers[name] = p
	}

	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "Cupid"
	}
	if cfg.Agent.Temperature == nil {
		t := DefaultTemperature
		cfg.Agent.Temperature = &t
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Agent.MaxInputChars == 0 {
		cfg.Agent.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.Agent.VisionMaxTokens == 0 {
		cfg.Agent.VisionMaxTokens = DefaultVisionMaxTokens
	}
	if cfg.Agent.Apology == "" {
		cfg.Agent.Apology = DefaultApology
	}

	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultGatewayPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}

	if tg := cfg.Channels.Telegram; tg != nil {
		if tg.PollTimeout == 0 {
			tg.PollTimeout = 60
		}
		if tg.SendsPerSecond == 0 {
			tg.SendsPerSecond = 1
		}
		if tg.SendBurst == 0 {
			tg.SendBurst = 3
		}
	}
	if irc := cfg.Channels.IRC; irc != nil && irc.Port == 0 {
		if irc.UseTLS {
			irc.Port = 6697
		} else {
			irc.Port = 6667
		}
	}
	if web := cfg.Channels.Web; web != nil && web.MaxUploadBytes == 0 {
		web.MaxUploadBytes = 5 << 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleLevel == "" {
		cfg.Logging.ConsoleLevel = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "sqlite"
	}
}

// applyEnvOverrides reads CUPID_* environment variables and overrides config values.
// A bare TELEGRAM_BOT_TOKEN enables the Telegram channel when none is configured.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CUPID_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("CUPID_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("CUPID_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CUPID_BACKEND_PROVIDER"); v != "" {
		cfg.Backend.Provider = strings.ToLower(v)
		applyDefaults(cfg)
	}

	token := os.Getenv("CUPID_TELEGRAM_TOKEN")
	if token == "" && cfg.Channels.Telegram == nil {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if token != "" {
		if cfg.Channels.Telegram == nil {
			cfg.Channels.Telegram = &TelegramConfig{}
		}
		cfg.Channels.Telegram.Token = token
		applyDefaults(cfg)
	}
}
