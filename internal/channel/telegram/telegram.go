// Package telegram implements the Telegram messaging channel over the Bot API
// with long polling.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/logging"
	"golang.org/x/time/rate"
)

// botAPI is the part of *tgbotapi.BotAPI the channel uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Channel implements domain.Channel, domain.MediaSource and
// domain.TypingNotifier for Telegram.
type Channel struct {
	cfg  config.TelegramConfig
	http *http.Client
	log  *logging.Logger

	mu       sync.RWMutex
	bot      botAPI
	handler  func(msg domain.InboundMessage)
	running  bool
	lastErr  string
	limiters map[int64]*rate.Limiter
	stopOnce sync.Once
}

// New creates a Telegram channel. The bot connects on Start.
func New(cfg config.TelegramConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg:      cfg,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      log.Sub("telegram"),
		limiters: make(map[int64]*rate.Limiter),
	}
}

func newWithBot(cfg config.TelegramConfig, bot botAPI, log *logging.Logger) *Channel {
	c := New(cfg, log)
	c.bot = bot
	return c
}

func (c *Channel) ID() string { return "telegram" }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM},
		Media:     true,
		Markdown:  true,
		Typing:    true,
	}
}

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "telegram",
		Connected: c.bot != nil && c.running,
		Running:   c.running,
		LastError: c.lastErr,
	}
}

func (c *Channel) connect() (botAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return c.bot, nil
	}

	if err := tgbotapi.SetLogger(botLogger{log: c.log}); err != nil {
		c.log.Warn().Err(err).Msg("could not install bot api logger")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(c.cfg.Token, tgbotapi.APIEndpoint, c.http)
	if err != nil {
		c.lastErr = err.Error()
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	bot.Debug = c.cfg.Debug
	c.log.Info().Str("username", bot.Self.UserName).Msg("authorized on telegram")
	c.bot = bot
	return bot, nil
}

// Start long-polls for updates until ctx is cancelled or Stop is called.
func (c *Channel) Start(ctx context.Context) error {
	bot, err := c.connect()
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.cfg.PollTimeout
	updates := bot.GetUpdatesChan(u)

	c.mu.Lock()
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			c.stopPolling()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			c.handleUpdate(upd)
		}
	}
}

// Stop ends long polling.
func (c *Channel) Stop(_ context.Context) error {
	c.stopPolling()
	return nil
}

func (c *Channel) stopPolling() {
	c.mu.RLock()
	bot := c.bot
	c.mu.RUnlock()
	if bot == nil {
		return
	}
	c.stopOnce.Do(func() {
		c.log.Info().Msg("stopping telegram polling")
		bot.StopReceivingUpdates()
	})
}

func (c *Channel) handleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := inbound(upd.Message)

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}
}

// Send delivers a text message, waiting on the chat's send limiter first.
// A markdown body Telegram cannot parse is resent as plain text.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	bot, chatID, err := c.target(msg.To)
	if err != nil {
		return err
	}
	if err := c.limiter(chatID).Wait(ctx); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(chatID, msg.Body)
	if msg.Format == domain.FormatMarkdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err = bot.Send(out)
	if err != nil && out.ParseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
		c.log.Debug().Err(err).Int64("chatId", chatID).Msg("markdown rejected, resending as plain text")
		out.ParseMode = ""
		_, err = bot.Send(out)
	}
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	c.log.Debug().Int64("chatId", chatID).Int("len", len(msg.Body)).Msg("sent telegram message")
	return nil
}

// SendTyping shows the typing indicator in a chat.
func (c *Channel) SendTyping(_ context.Context, to string) error {
	bot, chatID, err := c.target(to)
	if err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("telegram chat action: %w", err)
	}
	return nil
}

// Download fetches a file by id into the download directory and returns its
// path. The caller removes the file.
func (c *Channel) Download(ctx context.Context, ref string) (string, error) {
	c.mu.RLock()
	bot := c.bot
	c.mu.RUnlock()
	if bot == nil {
		return "", fmt.Errorf("telegram: not connected")
	}

	url, err := bot.GetFileDirectURL(ref)
	if err != nil {
		return "", fmt.Errorf("resolving file %s: %w", ref, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading file %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading file %s: status %d", ref, resp.StatusCode)
	}

	f, err := os.CreateTemp(c.cfg.DownloadDir, "photo-*")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing file %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (c *Channel) target(to string) (botAPI, int64, error) {
	c.mu.RLock()
	bot := c.bot
	c.mu.RUnlock()
	if bot == nil {
		return nil, 0, fmt.Errorf("telegram: not connected")
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("telegram: invalid chat id %q", to)
	}
	return bot, chatID, nil
}

func (c *Channel) limiter(chatID int64) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[chatID]
	if !ok {
		perSecond := c.cfg.SendsPerSecond
		if perSecond <= 0 {
			perSecond = 1
		}
		burst := c.cfg.SendBurst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(perSecond), burst)
		c.limiters[chatID] = l
	}
	return l
}

// inbound converts a Telegram message into the channel-neutral form.
func inbound(m *tgbotapi.Message) domain.InboundMessage {
	msg := domain.InboundMessage{
		ID:        strconv.Itoa(m.MessageID),
		ChannelID: "telegram",
		Body:      m.Text,
		Caption:   m.Caption,
		Timestamp: time.Unix(int64(m.Date), 0),
		Raw:       m,
	}
	if m.Chat != nil {
		msg.ChatID = strconv.FormatInt(m.Chat.ID, 10)
		msg.ChatType = chatType(m.Chat)
	}
	if m.From != nil {
		msg.From = strconv.FormatInt(m.From.ID, 10)
		msg.FromName = m.From.FirstName
	}

	for _, p := range m.Photo {
		msg.Media = append(msg.Media, domain.Attachment{
			ID:     p.FileID,
			Kind:   domain.MediaPhoto,
			Size:   int64(p.FileSize),
			Width:  p.Width,
			Height: p.Height,
		})
	}
	if m.Video != nil {
		msg.Media = append(msg.Media, domain.Attachment{ID: m.Video.FileID, Kind: domain.MediaVideo, MimeType: m.Video.MimeType})
	}
	if m.VideoNote != nil {
		msg.Media = append(msg.Media, domain.Attachment{ID: m.VideoNote.FileID, Kind: domain.MediaVideo})
	}
	if m.Voice != nil {
		msg.Media = append(msg.Media, domain.Attachment{ID: m.Voice.FileID, Kind: domain.MediaVoice, MimeType: m.Voice.MimeType})
	}
	if m.Document != nil {
		msg.Media = append(msg.Media, domain.Attachment{
			ID:       m.Document.FileID,
			Kind:     domain.MediaDocument,
			MimeType: m.Document.MimeType,
			Filename: m.Document.FileName,
		})
	}
	return msg
}

func chatType(chat *tgbotapi.Chat) domain.ChatType {
	if chat.IsPrivate() {
		return domain.ChatTypeDM
	}
	return domain.ChatTypeGroup
}

// botLogger routes the Bot API library's logging into zerolog.
type botLogger struct {
	log *logging.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}
