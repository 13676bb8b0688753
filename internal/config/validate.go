package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// KnownProviders lists the backend providers cupid can talk to.
var KnownProviders = []string{"openai", "gemini", "claude"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Backend validation
	for i, name := range cfg.ProviderNames() {
		path := "backend.provider"
		if i > 0 {
			path = fmt.Sprintf("backend.fallbacks[%d]", i-1)
		}
		if !slices.Contains(KnownProviders, name) {
			add(path, "must be one of %v, got %q", KnownProviders, name)
			continue
		}
		p, ok := cfg.Backend.Providers[name]
		if !ok {
			add("backend.providers."+name, "provider %q is selected but not configured", name)
			continue
		}
		switch {
		case p.APIKey == "":
			add("backend.providers."+name+".apiKey", "api key is required")
		case unresolved(p.APIKey):
			add("backend.providers."+name+".apiKey", "references an unset environment variable: %s", p.APIKey)
		}
		if p.Model == "" {
			add("backend.providers."+name+".model", "model is required")
		}
	}

	// Agent validation
	if t := cfg.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("agent.temperature", "must be between 0 and 2, got %v", *t)
	}
	if cfg.Agent.MaxInputChars < 0 {
		add("agent.maxInputChars", "must be positive, got %d", cfg.Agent.MaxInputChars)
	}
	if cfg.Agent.VisionMaxTokens < 0 {
		add("agent.visionMaxTokens", "must be positive, got %d", cfg.Agent.VisionMaxTokens)
	}
	if cfg.Agent.BackendTimeoutSeconds < 0 {
		add("agent.backendTimeoutSeconds", "must not be negative, got %d", cfg.Agent.BackendTimeoutSeconds)
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	if cfg.Logging.ConsoleLevel != "" && !slices.Contains(validLogLevels, cfg.Logging.ConsoleLevel) {
		add("logging.consoleLevel", "must be one of %v, got %q", validLogLevels, cfg.Logging.ConsoleLevel)
	}
	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Session validation
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		add("session.store", "must be one of %v, got %q", validStores, cfg.Session.Store)
	}

	// Telegram validation (only if configured)
	if tg := cfg.Channels.Telegram; tg != nil {
		switch {
		case tg.Token == "":
			add("channels.telegram.token", "token is required")
		case unresolved(tg.Token):
			add("channels.telegram.token", "references an unset environment variable: %s", tg.Token)
		}
		if tg.SendsPerSecond < 0 {
			add("channels.telegram.sendsPerSecond", "must not be negative, got %v", tg.SendsPerSecond)
		}
		if tg.PollTimeout < 0 {
			add("channels.telegram.pollTimeout", "must not be negative, got %d", tg.PollTimeout)
		}
	}

	// IRC validation (only if configured)
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
	}

	if web := cfg.Channels.Web; web != nil && web.Enabled && !cfg.GatewayEnabled() {
		add("channels.web.enabled", "the web console needs the gateway to be enabled")
	}

	return issues
}
