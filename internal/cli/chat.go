package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/soyeahso/cupid/internal/agent"
	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/llm"
	"github.com/soyeahso/cupid/internal/routing"
	"github.com/spf13/cobra"
)

const photoCommand = "/photo "

func newChatCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to cupid in the terminal",
		Long: "Starts one conversation on stdin and stdout. Type \"/photo <path>\" to send a picture; " +
			"end the conversation with Ctrl-D.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry, err := llm.NewRegistryFromConfig(ctx, cfg.Backend, log)
			if err != nil {
				return fmt.Errorf("building backend providers: %w", err)
			}
			backend := agent.NewFailoverClient(registry, cfg.ProviderNames(), log)

			return runTerminalChat(ctx, cfg, backend, name, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&name, "name", os.Getenv("USER"), "name cupid uses for you")
	return cmd
}

// runTerminalChat runs a single conversation fed line by line from in.
func runTerminalChat(ctx context.Context, cfg config.Config, backend llm.Client, name string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	say := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	convCfg := conversationConfig(cfg.Agent)
	convCfg.UserName = name
	convCfg.ChannelID = "terminal"

	conv := agent.NewConversation(convCfg, agent.Deps{
		Backend:    backend,
		Visionaire: agent.NewVisionaire(backend, fileSource{}, cfg.Agent.VisionMaxTokens, log),
		Send: func(ctx context.Context, text string) error {
			say("%s> %s\n\n", cfg.Agent.Name, text)
			return nil
		},
		Log: log,
	})

	apology := cfg.Agent.Apology
	if apology == "" {
		apology = routing.DefaultApology
	}

	// done carries the error that ended the conversation, or nil when it was
	// cancelled.
	done := make(chan error, 1)
	started := false
	seq := 0

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		seq++
		msg := terminalMessage(seq, name, line)

		if !started {
			started = true
			go func() {
				_, err := conv.Run(ctx, msg)
				if ctx.Err() != nil {
					err = nil
				} else if err != nil {
					say("%s> %s\n", cfg.Agent.Name, apology)
				}
				done <- err
			}()
			continue
		}

		select {
		case err := <-done:
			conv.Wait()
			return err
		default:
		}
		conv.Receive(ctx, msg)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if !started {
		return nil
	}

	cancel()
	err := <-done
	conv.Wait()
	return err
}

// terminalMessage turns one input line into an inbound message. A line of
// the form "/photo <path> [caption]" attaches a local picture.
func terminalMessage(seq int, name, line string) domain.InboundMessage {
	msg := domain.InboundMessage{
		ID:        strconv.Itoa(seq),
		ChannelID: "terminal",
		From:      "terminal",
		FromName:  name,
		ChatID:    "terminal",
		ChatType:  domain.ChatTypeDM,
		Body:      line,
		Timestamp: time.Now(),
	}

	rest, ok := strings.CutPrefix(line, photoCommand)
	if !ok {
		return msg
	}
	path, caption, _ := strings.Cut(strings.TrimSpace(rest), " ")
	msg.Body = ""
	msg.Caption = strings.TrimSpace(caption)
	msg.Media = []domain.Attachment{{ID: path, Kind: domain.MediaPhoto}}
	return msg
}

// fileSource resolves photo references that are local file paths. Download
// copies the file because the caller removes what it gets back.
type fileSource struct{}

func (fileSource) Download(ctx context.Context, ref string) (string, error) {
	src, err := os.Open(ref)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "cupid-photo-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
