// Package discord adapts the Discord Bot API to the shared channels.Channel
// capability set (spec §4.E).
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

// thinkingPlaceholder is the transient message posted on receipt, later
// edited (or superseded) by the real response — spec supplement #2.
const thinkingPlaceholder = "Thinking…"

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	cfg       config.PlatformConfig
	extras    config.DiscordExtras
	botUserID string

	placeholders sync.Map // channelID string → messageID string
	retryCfg     channels.RetryConfig
}

// New creates a Discord adapter from its resolved platform config.
func New(cfg config.PlatformConfig, extras config.DiscordExtras, msgBus *bus.MessageBus) (*Channel, error) {
	sess, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	sess.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	base := channels.NewBaseChannel("discord", msgBus, nil, 5, 5)

	return &Channel{
		BaseChannel: base,
		session:     sess,
		cfg:         cfg,
		extras:      extras,
		retryCfg:    channels.DefaultRetryConfig(),
	}, nil
}

func (c *Channel) Platform() string { return "discord" }

// Connect opens the Discord gateway connection and begins receiving events.
func (c *Channel) Connect(_ context.Context) error {
	slog.Info("starting discord adapter")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord adapter connected", "username", user.Username, "id", user.ID)
	return nil
}

// Disconnect closes the Discord gateway connection.
func (c *Channel) Disconnect(_ context.Context) error {
	slog.Info("stopping discord adapter")
	c.SetRunning(false)
	return c.session.Close()
}

// SendText delivers text to a Discord channel, trying to edit the
// "Thinking…" placeholder first and falling back to a fresh chunked send.
func (c *Channel) SendText(ctx context.Context, msg bus.OutboundMessage) (channels.SendResult, error) {
	if !c.IsRunning() {
		return channels.SendResult{}, fmt.Errorf("%w: discord adapter not connected", channels.ErrAdapterTransport)
	}
	channelID := msg.ChatID
	if channelID == "" {
		return channels.SendResult{}, fmt.Errorf("empty chat ID for discord send")
	}

	if pID, ok := c.placeholders.Load(channelID); ok {
		c.placeholders.Delete(channelID)
		msgID := pID.(string)

		editContent := msg.Content
		if len(editContent) > channels.DiscordMaxMessageLen {
			editContent = editContent[:channels.DiscordMaxMessageLen-3] + "..."
		}
		if _, err := c.session.ChannelMessageEdit(channelID, msgID, editContent); err == nil {
			return channels.SendResult{Success: true}, nil
		}
		// Fall through to a fresh send if the edit failed (message deleted, etc).
	}

	return c.sendChunked(ctx, channelID, msg.Content)
}

func (c *Channel) sendChunked(ctx context.Context, channelID, content string) (channels.SendResult, error) {
	var lastID string
	for _, chunk := range channels.Chunk(content, channels.DiscordMaxMessageLen) {
		if err := c.WaitForSend(ctx); err != nil {
			return channels.SendResult{}, err
		}
		m, err := channels.RetryDo(ctx, c.retryCfg, func() (*discordgo.Message, error) {
			return c.session.ChannelMessageSend(channelID, chunk)
		})
		if err != nil {
			return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send discord message: %w", err)
		}
		lastID = m.ID
	}
	return channels.SendResult{Success: true, MessageID: lastID}, nil
}

// SendImage uploads an image natively by streaming it from url; if the
// fetch fails it falls back to posting the URL as plain text.
func (c *Channel) SendImage(ctx context.Context, chatID, url, caption, replyTo string) (channels.SendResult, error) {
	if err := c.WaitForSend(ctx); err != nil {
		return channels.SendResult{}, err
	}
	resp, err := channels.RetryDo(ctx, c.retryCfg, func() (*discordgo.Message, error) {
		data := &discordgo.MessageSend{
			Content: caption,
			Embed:   &discordgo.MessageEmbed{Image: &discordgo.MessageEmbedImage{URL: url}},
		}
		return c.session.ChannelMessageSendComplex(chatID, data)
	})
	if err != nil {
		// Fallback: post the URL as text rather than dropping the attachment.
		return c.sendChunked(ctx, chatID, strings.TrimSpace(caption+"\n"+url))
	}
	return channels.SendResult{Success: true, MessageID: resp.ID}, nil
}

// SendDocument sends a local file as a Discord attachment. The caller
// (internal/delivery) is responsible for the trusted-root check before
// this is ever invoked — this method assumes path is already validated.
func (c *Channel) SendDocument(ctx context.Context, chatID, path, caption string) (channels.SendResult, error) {
	if err := c.WaitForSend(ctx); err != nil {
		return channels.SendResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("open document %s: %w", path, err)
	}
	defer f.Close()

	resp, err := channels.RetryDo(ctx, c.retryCfg, func() (*discordgo.Message, error) {
		return c.session.ChannelMessageSendComplex(chatID, &discordgo.MessageSend{
			Content: caption,
			Files:   []*discordgo.File{{Name: fileName(path), Reader: f}},
		})
	})
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send discord document: %w", err)
	}
	return channels.SendResult{Success: true, MessageID: resp.ID}, nil
}

// SendTyping pings the Discord typing indicator once (expires after ~10s
// server-side; the turn scheduler's typing-refresh task calls this on a
// 2s cadence per spec §4.F step 3).
func (c *Channel) SendTyping(_ context.Context, chatID string) error {
	return c.session.ChannelTyping(chatID)
}

// GetChatInfo returns best-effort channel metadata for the Channel Directory.
func (c *Channel) GetChatInfo(_ context.Context, chatID string) (channels.ChatInfo, error) {
	ch, err := c.session.Channel(chatID)
	if err != nil {
		return channels.ChatInfo{}, fmt.Errorf("fetch discord channel info: %w", err)
	}
	kind := "channel"
	if ch.GuildID == "" {
		kind = "dm"
	}
	return channels.ChatInfo{Name: ch.Name, Type: kind}, nil
}

func (c *Channel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == c.botUserID || m.Author.Bot {
		return
	}

	senderID := m.Author.ID
	senderName := m.Author.Username
	channelID := m.ChannelID
	isDM := m.GuildID == ""

	if !c.IsAllowed(senderID) {
		slog.Debug("discord message rejected by allowlist", "user_id", senderID)
		return
	}

	mentioned := false
	for _, u := range m.Mentions {
		if u.ID == c.botUserID {
			mentioned = true
			break
		}
	}

	freeResponse := make(map[string]struct{}, len(c.extras.FreeResponseChannels))
	for _, id := range c.extras.FreeResponseChannels {
		freeResponse[id] = struct{}{}
	}
	if !channels.ResponseGate(isDM, mentioned, channelID, freeResponse, c.extras.RequireMention) {
		slog.Debug("discord message suppressed: mention required and channel not free-response", "channel_id", channelID)
		return
	}

	content := stripBotMention(m.Content, c.botUserID)
	for _, att := range m.Attachments {
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("[attachment: %s]", att.URL)
	}
	if content == "" {
		content = "[empty message]"
	}

	slog.Debug("discord message received",
		"sender_id", senderID, "channel_id", channelID, "is_dm", isDM,
		"preview", channels.Truncate(content, 50))

	_ = c.session.ChannelTyping(channelID)

	if placeholder, err := c.session.ChannelMessageSend(channelID, thinkingPlaceholder); err == nil {
		c.placeholders.Store(channelID, placeholder.ID)
	}

	peerKind := session.ChatGroup
	if isDM {
		peerKind = session.ChatDM
	}
	if peerKind == session.ChatGroup && senderName != "" {
		content = fmt.Sprintf("[From: %s]\n%s", senderName, content)
	}

	event := bus.InboundMessage{
		Text: content,
		Kind: bus.KindText,
		Source: session.Source{
			Platform: config.PlatformDiscord,
			ChatID:   channelID,
			ChatType: peerKind,
			UserID:   senderID,
			UserName: senderName,
		},
		MessageID: m.ID,
	}
	if err := c.Publish(context.Background(), event); err != nil {
		slog.Warn("discord: failed to publish inbound message", "error", err)
	}
}

func stripBotMention(content, botID string) string {
	if botID == "" {
		return strings.TrimSpace(content)
	}
	content = strings.ReplaceAll(content, "<@"+botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	return strings.TrimSpace(content)
}

func fileName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
