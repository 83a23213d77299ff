// Package whatsapp adapts the whatsmeow WhatsApp multi-device client to
// the shared channels.Channel capability set (spec §4.E). Pairing is a
// one-time out-of-band step (Pair) separate from steady-state Connect.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

const (
	typingRefreshInterval = 8 * time.Second
	typingTimeout         = 5 * time.Minute
)

// slogLogger adapts whatsmeow's logger interface to log/slog, matching
// the structured-logging idiom used by every other adapter in this tree.
type slogLogger struct{ module string }

func (l slogLogger) Errorf(msg string, args ...interface{}) { slog.Error(fmt.Sprintf(msg, args...), "module", l.module) }
func (l slogLogger) Warnf(msg string, args ...interface{})  { slog.Warn(fmt.Sprintf(msg, args...), "module", l.module) }
func (l slogLogger) Infof(msg string, args ...interface{})  { slog.Info(fmt.Sprintf(msg, args...), "module", l.module) }
func (l slogLogger) Debugf(msg string, args ...interface{}) {}
func (l slogLogger) Sub(module string) waLog.Logger         { return slogLogger{module: module} }

// Channel connects to WhatsApp via whatsmeow's multi-device protocol. A
// device must already be paired (see Pair) before Connect will succeed.
type Channel struct {
	*channels.BaseChannel
	client    *whatsmeow.Client
	container *sqlstore.Container
	cfg       config.PlatformConfig

	typingMu   sync.Mutex
	typingStop map[string]chan struct{}
}

// New creates a WhatsApp adapter. cfg.Extras["db_path"] names the SQLite
// file whatsmeow uses for device/session state (shared with Pair).
func New(cfg config.PlatformConfig, msgBus *bus.MessageBus) (*Channel, error) {
	dbPath := cfg.Extras["db_path"]
	if dbPath == "" {
		return nil, fmt.Errorf("whatsapp db_path is required")
	}

	var allow []string
	if v := cfg.Extras["allow_from"]; v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				allow = append(allow, id)
			}
		}
	}
	base := channels.NewBaseChannel("whatsapp", msgBus, allow, 5, 5)

	return &Channel{
		BaseChannel: base,
		cfg:         cfg,
		typingStop:  make(map[string]chan struct{}),
	}, nil
}

func (c *Channel) Platform() string { return "whatsapp" }

// Connect opens the paired device's session and begins receiving events.
// Returns an error instructing the operator to run Pair first if no
// device has completed QR pairing yet.
func (c *Channel) Connect(ctx context.Context) error {
	slog.Info("starting whatsapp adapter")

	dbPath := c.cfg.Extras["db_path"]
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return fmt.Errorf("create whatsapp db directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", slogLogger{module: "whatsapp-store"})
	if err != nil {
		return fmt.Errorf("open whatsapp device store: %w", err)
	}
	c.container = container

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load whatsapp device: %w", err)
	}

	client := whatsmeow.NewClient(device, slogLogger{module: "whatsapp"})
	if client.Store.ID == nil {
		return fmt.Errorf("whatsapp device not paired: run the pairing command first")
	}
	c.client = client

	client.AddEventHandler(c.handleEvent)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp client: %w", err)
	}

	c.SetRunning(true)
	slog.Info("whatsapp adapter connected", "user", client.Store.ID.User)
	return nil
}

// Disconnect stops all typing-presence loops and closes the connection.
func (c *Channel) Disconnect(_ context.Context) error {
	slog.Info("stopping whatsapp adapter")
	c.SetRunning(false)
	c.stopAllTyping()
	if c.client != nil {
		c.client.Disconnect()
	}
	return nil
}

// GetChatInfo returns best-effort chat metadata for the Channel Directory.
// whatsmeow has no direct "get chat" call for arbitrary JIDs outside of
// what's already been synced, so this reports only what's derivable from
// the JID itself.
func (c *Channel) GetChatInfo(_ context.Context, chatID string) (channels.ChatInfo, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return channels.ChatInfo{}, fmt.Errorf("parse whatsapp jid %q: %w", chatID, err)
	}
	kind := "dm"
	if jid.Server == types.GroupServer {
		kind = "group"
	}
	return channels.ChatInfo{Name: jid.User, Type: kind}, nil
}

func (c *Channel) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected, *events.PushNameSetting:
		if err := c.client.SendPresence(context.Background(), types.PresenceAvailable); err != nil {
			slog.Warn("whatsapp: failed to send available presence", "error", err)
		}
		_ = v
	case *events.Message:
		c.handleMessage(v)
	}
}

func (c *Channel) handleMessage(msg *events.Message) {
	if msg.Info.IsFromMe {
		return
	}

	senderID := msg.Info.Sender.User
	if !c.IsAllowed(senderID) {
		slog.Debug("whatsapp message rejected by allowlist", "user_id", senderID)
		return
	}

	_ = c.client.MarkRead(context.Background(), []types.MessageID{msg.Info.ID}, msg.Info.Timestamp, msg.Info.Chat, msg.Info.Sender)

	content := extractText(msg)
	if content == "" {
		return
	}
	content = strings.TrimSpace(content)
	chatID := msg.Info.Chat.String()

	slog.Debug("whatsapp message received",
		"sender_id", senderID, "chat_id", chatID, "is_group", msg.Info.IsGroup,
		"preview", channels.Truncate(content, 50))

	c.startTyping(msg.Info.Chat)

	peerKind := session.ChatDM
	if msg.Info.IsGroup {
		peerKind = session.ChatGroup
	}

	event := bus.InboundMessage{
		Text: content,
		Kind: bus.KindText,
		Source: session.Source{
			Platform: config.PlatformWhatsApp,
			ChatID:   chatID,
			ChatType: peerKind,
			UserID:   senderID,
		},
		MessageID: msg.Info.ID,
		Timestamp: msg.Info.Timestamp,
	}
	if err := c.Publish(context.Background(), event); err != nil {
		slog.Warn("whatsapp: failed to publish inbound message", "error", err)
	}
}

func extractText(msg *events.Message) string {
	content := ""
	switch {
	case msg.Message.GetConversation() != "":
		content = msg.Message.GetConversation()
	case msg.Message.GetExtendedTextMessage().GetText() != "":
		content = msg.Message.GetExtendedTextMessage().GetText()
	}

	if img := msg.Message.GetImageMessage(); img != nil {
		if img.GetCaption() != "" {
			content = img.GetCaption()
		}
		content = strings.TrimSpace(content + "\n[image attachment]")
	}
	if doc := msg.Message.GetDocumentMessage(); doc != nil {
		if doc.GetCaption() != "" {
			content = doc.GetCaption()
		}
		content = strings.TrimSpace(fmt.Sprintf("%s\n[document: %s]", content, doc.GetFileName()))
	}
	return content
}

// startTyping begins (or resets) a continuous "composing" presence for a
// chat; it expires on its own after typingTimeout or on stopTyping.
func (c *Channel) startTyping(jid types.JID) {
	key := jid.String()
	c.typingMu.Lock()
	if stop, ok := c.typingStop[key]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	c.typingStop[key] = stop
	c.typingMu.Unlock()

	go func() {
		ctx := context.Background()
		_ = c.client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)

		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		timeout := time.NewTimer(typingTimeout)
		defer timeout.Stop()

		for {
			select {
			case <-stop:
				_ = c.client.SendChatPresence(ctx, jid, types.ChatPresencePaused, types.ChatPresenceMediaText)
				return
			case <-timeout.C:
				return
			case <-ticker.C:
				_ = c.client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
			}
		}
	}()
}

func (c *Channel) stopTyping(chatID string) {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if stop, ok := c.typingStop[chatID]; ok {
		close(stop)
		delete(c.typingStop, chatID)
	}
}

func (c *Channel) stopAllTyping() {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	for _, stop := range c.typingStop {
		close(stop)
	}
	c.typingStop = make(map[string]chan struct{})
}

// Pair runs the one-time QR-code device pairing flow, writing the QR code
// to qrOutPath as a PNG for the operator to scan from WhatsApp's
// Settings > Linked Devices > Link a Device. Blocks until pairing
// completes, times out, or ctx is cancelled.
func Pair(ctx context.Context, dbPath, qrOutPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return fmt.Errorf("create whatsapp db directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", slogLogger{module: "whatsapp-pair"})
	if err != nil {
		return fmt.Errorf("open whatsapp device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load whatsapp device: %w", err)
	}

	client := whatsmeow.NewClient(device, slogLogger{module: "whatsapp-pair"})
	if client.Store.ID != nil {
		slog.Info("whatsapp already paired", "user", client.Store.ID.User)
		return nil
	}

	connected := make(chan struct{}, 1)
	client.AddEventHandler(func(evt interface{}) {
		if _, ok := evt.(*events.Connected); ok {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})

	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("open whatsapp qr channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp client: %w", err)
	}
	defer client.Disconnect()

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 256, qrOutPath); err != nil {
				return fmt.Errorf("write whatsapp qr code: %w", err)
			}
			slog.Info("whatsapp pairing QR code written, scan it from a linked phone", "path", qrOutPath)
		case "success":
			slog.Info("whatsapp pairing succeeded, finishing device sync")
		case "timeout":
			return fmt.Errorf("whatsapp pairing QR code timed out")
		}
	}

	select {
	case <-connected:
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for whatsapp connection after pairing")
	case <-ctx.Done():
		return ctx.Err()
	}

	// Give WhatsApp time to finish the initial sync with the phone before
	// the caller proceeds to Connect/Disconnect this same store.
	time.Sleep(15 * time.Second)

	if client.Store.ID != nil {
		slog.Info("whatsapp pairing complete", "user", client.Store.ID.User)
	}
	return nil
}
