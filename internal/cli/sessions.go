package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, err := db.Ledger().List(limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions recorded.")
				return nil
			}
			for _, s := range sessions {
				fmt.Println(formatSession(s))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum sessions to list")
	return cmd
}

func newNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Browse delivered valentine notes",
	}
	cmd.AddCommand(newNotesSearchCmd())
	cmd.AddCommand(newNotesRecentCmd())
	return cmd
}

func newNotesSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over delivered notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()

			notes, err := db.Notes().Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			printNotes(notes)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum notes to show")
	return cmd
}

func newNotesRecentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recently delivered notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()

			notes, err := db.Notes().Recent(limit)
			if err != nil {
				return err
			}
			printNotes(notes)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum notes to show")
	return cmd
}

// openLedger opens the on-disk ledger read by the inspection commands.
func openLedger() (*store.DB, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}
	path := databasePath(cfg)
	if path == store.MemoryPath {
		return nil, fmt.Errorf("session store is memory, nothing is kept between runs")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no ledger at %s, run cupid serve first", path)
	}
	return store.Open(path, log)
}

func formatSession(s domain.SessionSummary) string {
	state := "active"
	if s.Ended {
		state = "ended"
		if s.EndReason != "" {
			state += " (" + s.EndReason + ")"
		}
	}
	return fmt.Sprintf("%-36s  %-24s  %-16s  user=%-3d bot=%-3d  last=%s  %s",
		s.ID, s.Key.String(), s.DisplayName, s.UserMessages, s.BotMessages,
		s.LastMessageAt.Local().Format("2006-01-02 15:04"), state)
}

func printNotes(notes []domain.Note) {
	if len(notes) == 0 {
		fmt.Println("No notes found.")
		return
	}
	for _, n := range notes {
		fmt.Printf("[%s] %s #%d\n", n.CreatedAt.Local().Format("2006-01-02 15:04"), n.ChatKey, n.Position)
		fmt.Printf("  %s\n", n.Text)
		if n.Signature != "" {
			fmt.Printf("  - %s\n", n.Signature)
		}
		fmt.Println()
	}
}
