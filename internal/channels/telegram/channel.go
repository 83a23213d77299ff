// Package telegram adapts the Telegram Bot API to the shared
// channels.Channel capability set (spec §4.E).
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

const (
	telegramMaxMessageLen = 4096
	telegramCaptionMaxLen = 1024

	thinkingPlaceholder = "Thinking…"
)

// Extras are the well-known Telegram extras keys, parsed out of
// config.PlatformConfig.Extras.
type Extras struct {
	AllowFrom      []string
	RequireMention bool
}

// ParseExtras reads the Telegram-specific keys out of a generic extras map.
func ParseExtras(extras map[string]string) Extras {
	var e Extras
	if v := extras["allow_from"]; v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				e.AllowFrom = append(e.AllowFrom, id)
			}
		}
	}
	if v := extras["require_mention"]; v != "" {
		e.RequireMention, _ = strconv.ParseBool(v)
	}
	return e
}

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot       *telego.Bot
	cfg       config.PlatformConfig
	extras    Extras
	botUserID int64
	botName   string

	placeholders sync.Map // localKey string → messageID int

	retryCfg channels.RetryConfig
	cancel   context.CancelFunc
}

// New creates a Telegram adapter from its resolved platform config.
func New(cfg config.PlatformConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	extras := ParseExtras(cfg.Extras)
	base := channels.NewBaseChannel("telegram", msgBus, extras.AllowFrom, 5, 5)

	return &Channel{
		BaseChannel: base,
		bot:         bot,
		cfg:         cfg,
		extras:      extras,
		retryCfg:    channels.DefaultRetryConfig(),
	}, nil
}

func (c *Channel) Platform() string { return "telegram" }

// Connect starts long-polling for updates and begins dispatching them.
func (c *Channel) Connect(ctx context.Context) error {
	slog.Info("starting telegram adapter")

	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("fetch telegram bot identity: %w", err)
	}
	c.botUserID = me.ID
	c.botName = me.Username

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	updates, err := c.bot.UpdatesViaLongPolling(runCtx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start telegram long polling: %w", err)
	}

	go c.consume(runCtx, updates)

	c.SetRunning(true)
	slog.Info("telegram adapter connected", "username", me.Username, "id", me.ID)
	return nil
}

// Disconnect stops long polling.
func (c *Channel) Disconnect(_ context.Context) error {
	slog.Info("stopping telegram adapter")
	c.SetRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Channel) consume(ctx context.Context, updates <-chan telego.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if upd.Message != nil {
				c.handleMessage(ctx, upd.Message)
			}
		}
	}
}

// GetChatInfo returns best-effort chat metadata for the Channel Directory.
func (c *Channel) GetChatInfo(ctx context.Context, chatID string) (channels.ChatInfo, error) {
	id, err := parseRawChatID(chatID)
	if err != nil {
		return channels.ChatInfo{}, err
	}
	chat, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(id)})
	if err != nil {
		return channels.ChatInfo{}, fmt.Errorf("fetch telegram chat info: %w", err)
	}
	kind := "group"
	if chat.Type == "private" {
		kind = "dm"
	}
	name := chat.Title
	if name == "" {
		name = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	return channels.ChatInfo{Name: name, Type: kind}, nil
}

func (c *Channel) handleMessage(_ context.Context, m *telego.Message) {
	if m.From == nil || m.From.ID == c.botUserID || m.From.IsBot {
		return
	}

	senderID := strconv.FormatInt(m.From.ID, 10)
	senderName := strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	if m.From.Username != "" {
		senderName = m.From.Username
	}

	isDM := m.Chat.Type == "private"
	chatID := strconv.FormatInt(m.Chat.ID, 10)

	if !c.IsAllowed(senderID) {
		slog.Debug("telegram message rejected by allowlist", "user_id", senderID)
		return
	}

	mentioned := m.Text != "" && c.botName != "" && strings.Contains(strings.ToLower(m.Text), "@"+strings.ToLower(c.botName))
	if !channels.ResponseGate(isDM, mentioned, chatID, nil, c.extras.RequireMention) {
		slog.Debug("telegram message suppressed: mention required", "chat_id", chatID)
		return
	}

	content := m.Text
	if content == "" {
		content = m.Caption
	}

	peerKind := session.ChatGroup
	if isDM {
		peerKind = session.ChatDM
	}
	if m.MessageThreadID != 0 {
		peerKind = session.ChatForum
	}

	slog.Debug("telegram message received",
		"sender_id", senderID, "chat_id", chatID, "is_dm", isDM,
		"preview", channels.Truncate(content, 50))

	if placeholder, err := c.bot.SendMessage(context.Background(), &telego.SendMessageParams{
		ChatID: tu.ID(m.Chat.ID),
		Text:   thinkingPlaceholder,
	}); err == nil {
		c.placeholders.Store(placeholderKey(chatID, strconv.Itoa(m.MessageThreadID)), placeholder.MessageID)
	}

	event := bus.InboundMessage{
		Text: content,
		Kind: bus.KindText,
		Source: session.Source{
			Platform: config.PlatformTelegram,
			ChatID:   chatID,
			ChatType: peerKind,
			UserID:   senderID,
			UserName: senderName,
			ThreadID: strconv.Itoa(m.MessageThreadID),
		},
		MessageID: strconv.Itoa(m.MessageID),
	}
	if err := c.Publish(context.Background(), event); err != nil {
		slog.Warn("telegram: failed to publish inbound message", "error", err)
	}
}

// parseRawChatID parses a numeric Telegram chat ID.
func parseRawChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse telegram chat id %q: %w", chatID, err)
	}
	return id, nil
}

// resolveThreadIDForSend omits Telegram's implicit "General" topic (ID 1),
// which must never be set explicitly on outbound params.
func resolveThreadIDForSend(threadID int) int {
	if threadID <= 1 {
		return 0
	}
	return threadID
}

// placeholderKey composes the sync.Map key under which a chat's
// "Thinking…" placeholder message ID is tracked. Distinct forum topics
// within the same chat get distinct placeholders.
func placeholderKey(chatID, threadID string) string {
	if threadID == "" || threadID == "0" {
		return chatID
	}
	return chatID + ":" + threadID
}

// parseThreadID parses a session.Source/OutboundMessage thread ID string
// (empty means no forum topic) into telego's int thread ID.
func parseThreadID(threadID string) int {
	if threadID == "" {
		return 0
	}
	n, _ := strconv.Atoi(threadID)
	return n
}
