package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/store"
	"github.com/soyeahso/cupid/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cupid status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Cupid %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Println("Config:  not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			gw := "disabled"
			if cfg.GatewayEnabled() {
				token := "unset"
				if cfg.Gateway.Auth.Token != "" || os.Getenv("CUPID_GATEWAY_TOKEN") != "" {
					token = "set"
				}
				gw = fmt.Sprintf("port=%d bind=%s token=%s", cfg.Gateway.Port, cfg.Gateway.Bind, token)
			}
			fmt.Printf("Gateway: %s\n", gw)
			fmt.Printf("Backend: %s\n", strings.Join(cfg.ProviderNames(), " -> "))
			fmt.Printf("Agent:   name=%s maxInputChars=%d visionMaxTokens=%d\n",
				cfg.Agent.Name, cfg.Agent.MaxInputChars, cfg.Agent.VisionMaxTokens)

			if tc := cfg.Channels.Telegram; tc != nil {
				fmt.Printf("Telegram: pollTimeout=%ds sendsPerSecond=%g\n", tc.PollTimeout, tc.SendsPerSecond)
			} else {
				fmt.Println("Telegram: (not configured)")
			}
			if ic := cfg.Channels.IRC; ic != nil {
				fmt.Printf("IRC:     server=%s nick=%s tls=%v\n", ic.Server, ic.Nick, ic.UseTLS)
			} else {
				fmt.Println("IRC:     (not configured)")
			}
			if wc := cfg.Channels.Web; wc != nil && wc.Enabled {
				fmt.Printf("Web:     enabled maxUploadBytes=%d\n", wc.MaxUploadBytes)
			} else {
				fmt.Println("Web:     (disabled)")
			}

			printLedgerStats(cfg)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s\n", issue)
				}
			}

			return nil
		},
	}

	return cmd
}

func printLedgerStats(cfg config.Config) {
	path := databasePath(cfg)
	if path == store.MemoryPath {
		fmt.Printf("Session: store=memory\n")
		return
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("Session: store=sqlite path=%s (not created yet)\n", path)
		return
	}

	db, err := store.Open(path, log)
	if err != nil {
		fmt.Printf("Session: error opening %s: %v\n", path, err)
		return
	}
	defer db.Close()

	st, err := db.Ledger().Stats()
	if err != nil {
		fmt.Printf("Session: error reading ledger: %v\n", err)
		return
	}
	schema, err := db.SchemaVersion()
	if err != nil {
		fmt.Printf("Session: error reading schema version: %v\n", err)
		return
	}
	fmt.Printf("Session: store=sqlite path=%s schema=v%d\n", path, schema)
	fmt.Printf("Ledger:  sessions=%d active=%d ended=%d userMessages=%d botMessages=%d notes=%d\n",
		st.Sessions, st.Active, st.Ended, st.UserMessages, st.BotMessages, st.Notes)
}
