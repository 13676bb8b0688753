package config

// Config is the root configuration for cupid.
type Config struct {
	Backend  BackendConfig  `yaml:"backend,omitempty"`
	Agent    AgentConfig    `yaml:"agent,omitempty"`
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Hooks    HooksConfig    `yaml:"hooks,omitempty"`
}

// BackendConfig selects the generative model providers.
type BackendConfig struct {
	Provider  string                   `yaml:"provider,omitempty"`  // "openai" | "gemini" | "claude"
	Fallbacks []string                 `yaml:"fallbacks,omitempty"` // tried in order on retryable provider errors
	Providers map[string]ProviderEntry `yaml:"providers,omitempty"`
}

// ProviderEntry configures one backend provider.
type ProviderEntry struct {
	APIKey      string `yaml:"apiKey,omitempty"`
	BaseURL     string `yaml:"baseUrl,omitempty"`
	Model       string `yaml:"model,omitempty"`       // conversation model
	VisionModel string `yaml:"visionModel,omitempty"` // picture descriptions; falls back to Model
}

// AgentConfig tunes the conversation.
type AgentConfig struct {
	Name            string   `yaml:"name,omitempty"`
	Temperature     *float64 `yaml:"temperature,omitempty"`
	MaxTokens       int      `yaml:"maxTokens,omitempty"`
	MaxInputChars   int      `yaml:"maxInputChars,omitempty"`
	VisionMaxTokens int      `yaml:"visionMaxTokens,omitempty"`
	ExtraPrompt     string   `yaml:"extraPrompt,omitempty"`
	Apology         string   `yaml:"apology,omitempty"`
	// BackendTimeoutSeconds bounds each backend call. Zero waits forever.
	BackendTimeoutSeconds int `yaml:"backendTimeoutSeconds,omitempty"`
}

// GatewayConfig controls the status HTTP/WebSocket server.
type GatewayConfig struct {
	Enabled        *bool       `yaml:"enabled,omitempty"`
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"` // CORS and web console origins
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// ChannelsConfig defines channel-specific configurations.
type ChannelsConfig struct {
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	IRC      *IRCConfig      `yaml:"irc,omitempty"`
	Web      *WebConfig      `yaml:"web,omitempty"`
}

// TelegramConfig defines Telegram bot settings.
type TelegramConfig struct {
	Token          string  `yaml:"token"`
	PollTimeout    int     `yaml:"pollTimeout,omitempty"`    // long-poll seconds
	SendsPerSecond float64 `yaml:"sendsPerSecond,omitempty"` // per chat
	SendBurst      int     `yaml:"sendBurst,omitempty"`
	DownloadDir    string  `yaml:"downloadDir,omitempty"`
	Debug          bool    `yaml:"debug,omitempty"`
}

// IRCConfig defines IRC settings. Only private messages start conversations.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels,omitempty"` // joined for presence only
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// WebConfig enables the browser console served by the gateway.
type WebConfig struct {
	Enabled        bool  `yaml:"enabled"`
	MaxUploadBytes int64 `yaml:"maxUploadBytes,omitempty"`
}

// SessionConfig defines where session bookkeeping is kept.
type SessionConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
	Path  string `yaml:"path,omitempty"`  // database file, defaults under the data dir
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig defines shell commands run on lifecycle events.
type HooksConfig struct {
	SessionStart    []HookEntry `yaml:"sessionStart,omitempty"`
	SessionEnd      []HookEntry `yaml:"sessionEnd,omitempty"`
	MessageReceived []HookEntry `yaml:"messageReceived,omitempty"`
	MessageSending  []HookEntry `yaml:"messageSending,omitempty"`
	IdeasDelivered  []HookEntry `yaml:"ideasDelivered,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
