package web

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

type harness struct {
	ch       *Channel
	srv      *httptest.Server
	received chan domain.InboundMessage
}

func newHarness(t *testing.T, cfg config.WebConfig, origins ...string) *harness {
	t.Helper()
	ch := New(cfg, origins, testLogger())
	received := make(chan domain.InboundMessage, 4)
	ch.OnMessage(func(msg domain.InboundMessage) { received <- msg })

	srv := httptest.NewServer(ch)
	t.Cleanup(func() {
		ch.Stop(context.Background())
		srv.Close()
	})
	return &harness{ch: ch, srv: srv, received: received}
}

func (h *harness) dial(t *testing.T, query string, header http.Header) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	hello := readFrame(t, conn)
	require.Equal(t, FrameHello, hello.Type)
	require.NotEmpty(t, hello.ChatID)
	return conn, hello.ChatID
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func (h *harness) next(t *testing.T) domain.InboundMessage {
	t.Helper()
	select {
	case msg := <-h.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound message")
		return domain.InboundMessage{}
	}
}

func TestChannel_Identity(t *testing.T) {
	ch := New(config.WebConfig{}, nil, testLogger())
	assert.Equal(t, "web", ch.ID())
	assert.Equal(t, []domain.ChatType{domain.ChatTypeDM}, ch.Capabilities().ChatTypes)
	assert.Equal(t, int64(defaultMaxUpload), ch.cfg.MaxUploadBytes)
	assert.Implements(t, (*domain.MediaSource)(nil), ch)
	assert.Implements(t, (*domain.TypingNotifier)(nil), ch)
}

func TestInboundText(t *testing.T) {
	h := newHarness(t, config.WebConfig{Enabled: true})
	conn, chatID := h.dial(t, "?name=Alex", nil)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameMessage, Text: "hello cupid"}))
	msg := h.next(t)

	assert.Equal(t, "web", msg.ChannelID)
	assert.Equal(t, chatID, msg.ChatID)
	assert.Equal(t, chatID, msg.From)
	assert.Equal(t, "Alex", msg.FromName)
	assert.Equal(t, domain.ChatTypeDM, msg.ChatType)
	assert.Equal(t, "hello cupid", msg.Body)
	assert.Empty(t, msg.Media)
	assert.Equal(t, 1, h.ch.Chats())
}

func TestNonMessageFramesIgnored(t *testing.T) {
	h := newHarness(t, config.WebConfig{})
	conn, _ := h.dial(t, "", nil)

	require.NoError(t, conn.WriteJSON(Frame{Type: "ping"}))
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameMessage, Text: "real"}))
	assert.Equal(t, "real", h.next(t).Body)
}

func TestSendAndTyping(t *testing.T) {
	h := newHarness(t, config.WebConfig{})
	conn, chatID := h.dial(t, "", nil)

	require.NoError(t, h.ch.SendTyping(context.Background(), chatID))
	assert.Equal(t, FrameTyping, readFrame(t, conn).Type)

	err := h.ch.Send(context.Background(), domain.OutboundMessage{To: chatID, Body: "1. **Hi**", Format: domain.FormatMarkdown})
	require.NoError(t, err)
	f := readFrame(t, conn)
	assert.Equal(t, FrameMessage, f.Type)
	assert.Equal(t, "1. **Hi**", f.Text)
	assert.Equal(t, "markdown", f.Format)
}

func TestSend_UnknownChat(t *testing.T) {
	ch := New(config.WebConfig{}, nil, testLogger())
	err := ch.Send(context.Background(), domain.OutboundMessage{To: "gone", Body: "hi"})
	assert.ErrorIs(t, err, ErrChatGone)
	assert.ErrorIs(t, ch.SendTyping(context.Background(), "gone"), ErrChatGone)
}

func TestImageUploadAndDownload(t *testing.T) {
	h := newHarness(t, config.WebConfig{})
	conn, _ := h.dial(t, "", nil)

	img := []byte("\x89PNG\r\n\x1a\nrest-of-image")
	require.NoError(t, conn.WriteJSON(Frame{
		Type:    FrameMessage,
		Caption: "us",
		Image:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
	}))
	msg := h.next(t)

	assert.Equal(t, "us", msg.Caption)
	refs := msg.PhotoRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "image/png", msg.Media[0].MimeType)

	path, err := h.ch.Download(context.Background(), refs[0])
	require.NoError(t, err)
	defer os.Remove(path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, img, data)

	_, err = h.ch.Download(context.Background(), refs[0])
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestImageRejected(t *testing.T) {
	tests := []struct {
		name  string
		image string
		want  string
	}{
		{"too large", base64.StdEncoding.EncodeToString(make([]byte, 64)), errUploadTooLarge.Error()},
		{"not base64", "%%%", errUnreadableImage.Error()},
		{"data uri without payload", "data:image/png;base64", errUnreadableImage.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, config.WebConfig{MaxUploadBytes: 16})
			conn, _ := h.dial(t, "", nil)

			require.NoError(t, conn.WriteJSON(Frame{Type: FrameMessage, Image: tt.image}))
			f := readFrame(t, conn)
			assert.Equal(t, FrameError, f.Type)
			assert.Equal(t, tt.want, f.Text)
			assert.Empty(t, h.received)
		})
	}
}

func TestOriginCheck(t *testing.T) {
	h := newHarness(t, config.WebConfig{}, "https://cupid.example")

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.dial(t, "", http.Header{"Origin": {"https://cupid.example"}})
}

func TestStartStopClosesChats(t *testing.T) {
	h := newHarness(t, config.WebConfig{})
	conn, _ := h.dial(t, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ch.Start(ctx) }()
	require.Eventually(t, func() bool { return h.ch.Status().Running }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, h.ch.Status().Running)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Eventually(t, func() bool { return h.ch.Chats() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBrowserCloseReportsDisconnect(t *testing.T) {
	h := newHarness(t, config.WebConfig{})
	gone := make(chan string, 1)
	h.ch.OnDisconnect(func(chatID string) { gone <- chatID })

	conn, id := h.dial(t, "", nil)
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	select {
	case got := <-gone:
		assert.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was not reported")
	}
	assert.Zero(t, h.ch.Chats())
}

func TestStopDoesNotReportDisconnect(t *testing.T) {
	h := newHarness(t, config.WebConfig{})
	gone := make(chan string, 1)
	h.ch.OnDisconnect(func(chatID string) { gone <- chatID })

	conn, _ := h.dial(t, "", nil)
	require.NoError(t, h.ch.Stop(context.Background()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Never(t, func() bool { return len(gone) > 0 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestDecodeImage(t *testing.T) {
	data, err := decodeImage(base64.StdEncoding.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = decodeImage("")
	assert.ErrorIs(t, err, errUnreadableImage)
}
