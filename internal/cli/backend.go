package cli

import (
	"fmt"

	"github.com/soyeahso/cupid/internal/config"
	"github.com/spf13/cobra"
)

func newBackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Inspect the configured backend providers",
	}

	cmd.AddCommand(newBackendListCmd())
	return cmd
}

func newBackendListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers in failover order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			for i, name := range cfg.ProviderNames() {
				role := "fallback"
				if i == 0 {
					role = "primary"
				}
				entry, ok := cfg.Backend.Providers[name]
				if !ok {
					fmt.Printf("  %-8s %-9s (not configured)\n", name, role)
					continue
				}
				vision := entry.VisionModel
				if vision == "" {
					vision = entry.Model
				}
				key := "set"
				if entry.APIKey == "" {
					key = "missing"
				}
				fmt.Printf("  %-8s %-9s model=%s vision=%s key=%s\n", name, role, entry.Model, vision, key)
			}
			return nil
		},
	}
}
