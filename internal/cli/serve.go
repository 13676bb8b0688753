package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/soyeahso/cupid/internal/agent"
	"github.com/soyeahso/cupid/internal/channel"
	"github.com/soyeahso/cupid/internal/channel/irc"
	"github.com/soyeahso/cupid/internal/channel/telegram"
	"github.com/soyeahso/cupid/internal/channel/web"
	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/gateway"
	"github.com/soyeahso/cupid/internal/hooks"
	"github.com/soyeahso/cupid/internal/llm"
	"github.com/soyeahso/cupid/internal/logging"
	"github.com/soyeahso/cupid/internal/routing"
	"github.com/soyeahso/cupid/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	staleMediaAge   = time.Hour
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect the configured channels and start chatting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			logger, closer, err := serveLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer closer.Close()

			if n, err := paths.CleanMedia(staleMediaAge); err != nil {
				logger.Warn().Err(err).Msg("cleaning media directory")
			} else if n > 0 {
				logger.Info().Int("files", n).Msg("removed leftover photo downloads")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	registry, err := llm.NewRegistryFromConfig(ctx, cfg.Backend, logger)
	if err != nil {
		return fmt.Errorf("building backend providers: %w", err)
	}
	backend := agent.NewFailoverClient(registry, cfg.ProviderNames(), logger)
	logger.Info().Strs("providers", registry.List()).Str("primary", backend.Name()).Msg("backend ready")

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if n, err := db.Ledger().CloseOpen("restart"); err != nil {
		logger.Warn().Err(err).Msg("closing sessions left open by a previous run")
	} else if n > 0 {
		logger.Info().Int64("sessions", n).Msg("closed sessions left open by a previous run")
	}

	hookMgr := hooks.NewManager(logger)
	if n := hookMgr.RegisterConfig(cfg.Hooks); n > 0 {
		logger.Info().Int("hooks", n).Msg("command hooks registered")
	}

	channels, webCh := buildChannels(cfg, logger)
	if channels.Count() == 0 {
		logger.Warn().Msg("no channels configured, nobody can reach cupid")
	}

	router := routing.NewRouter(channels, backend, routerOptions(cfg, db, hookMgr), logger)
	members := []func(context.Context) error{channels.Run}

	if cfg.GatewayEnabled() {
		opts := []gateway.ServerOption{
			gateway.WithChannels(channels),
			gateway.WithHooks(hookMgr),
			gateway.WithSessions(router),
			gateway.WithLedger(db.Ledger()),
			gateway.WithNotes(db.Notes()),
		}
		if webCh != nil {
			opts = append(opts, gateway.WithWeb(webCh))
		}
		srv := gateway.New(cfg.Gateway, logger, opts...)
		members = append(members, srv.Start)
	} else if webCh != nil {
		logger.Warn().Msg("web chat is enabled but the gateway is disabled, browsers cannot connect")
	}

	logger.Info().Strs("channels", channels.List()).Msg("message routing active")
	err = runServices(ctx, router, members...)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	channels.StopAll(stopCtx)
	router.Wait()
	hookMgr.Wait()
	logger.Info().Msg("cupid stopped")
	return err
}

// runServices wires the router and runs every member until one fails or ctx
// ends. Conversations share the group context, so a failing member also ends
// them.
func runServices(ctx context.Context, router *routing.Router, members ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	router.Wire(gctx)
	for _, run := range members {
		g.Go(func() error { return run(gctx) })
	}
	return g.Wait()
}

// buildChannels registers every configured channel. The web channel is also
// returned so the gateway can mount it.
func buildChannels(cfg config.Config, logger *logging.Logger) (*channel.Registry, *web.Channel) {
	channels := channel.NewRegistry(logger)

	if tc := cfg.Channels.Telegram; tc != nil {
		tcfg := *tc
		if tcfg.DownloadDir == "" {
			tcfg.DownloadDir = paths.Media
		}
		channels.Register(telegram.New(tcfg, logger))
	}
	if cfg.Channels.IRC != nil {
		channels.Register(irc.New(*cfg.Channels.IRC, logger))
	}

	var webCh *web.Channel
	if wc := cfg.Channels.Web; wc != nil && wc.Enabled {
		webCh = web.New(*wc, cfg.Gateway.AllowedOrigins, logger)
		channels.Register(webCh)
	}
	return channels, webCh
}

func routerOptions(cfg config.Config, db *store.DB, hookMgr *hooks.Manager) routing.Options {
	return routing.Options{
		Agent:           conversationConfig(cfg.Agent),
		VisionMaxTokens: cfg.Agent.VisionMaxTokens,
		Apology:         cfg.Agent.Apology,
		Ledger:          db.Ledger(),
		Notes:           db.Notes(),
		Hooks:           hookMgr,
	}
}

// conversationConfig maps the agent section onto a conversation. Per-user
// fields are left for the caller.
func conversationConfig(ac config.AgentConfig) agent.ConversationConfig {
	return agent.ConversationConfig{
		AgentName:      ac.Name,
		ExtraPrompt:    ac.ExtraPrompt,
		Temperature:    ac.Temperature,
		MaxTokens:      ac.MaxTokens,
		MaxInputChars:  ac.MaxInputChars,
		BackendTimeout: time.Duration(ac.BackendTimeoutSeconds) * time.Second,
	}
}

// serveLogger builds the long-running logger from config. The --log-level
// flag overrides both configured levels.
func serveLogger(lc config.LoggingConfig) (*logging.Logger, io.Closer, error) {
	opts := logging.Options{
		Level:        lc.Level,
		ConsoleLevel: lc.ConsoleLevel,
		ConsoleStyle: lc.ConsoleStyle,
		File:         lc.File,
	}
	if logLevel != "" {
		opts.Level = logLevel
		opts.ConsoleLevel = logLevel
	}
	logger, closer, err := logging.NewWithOptions(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}
	return logger, closer, nil
}

func loadValidConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// databasePath returns the ledger file, or the in-memory path for the memory store.
func databasePath(cfg config.Config) string {
	if cfg.Session.Store == "memory" {
		return store.MemoryPath
	}
	if cfg.Session.Path != "" {
		return cfg.Session.Path
	}
	return paths.Database
}

func openStore(cfg config.Config, logger *logging.Logger) (*store.DB, error) {
	path := databasePath(cfg)
	db, err := store.Open(path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Info().Str("path", path).Msg("session ledger opened")
	return db, nil
}
