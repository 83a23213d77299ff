// Package slack adapts the Slack Events API (via Socket Mode) to the
// shared channels.Channel capability set (spec §4.E).
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

const thinkingPlaceholder = "Thinking…"

// Extras are the well-known Slack extras keys, parsed out of
// config.PlatformConfig.Extras. Socket Mode needs a second, app-level
// token in addition to the bot token carried in PlatformConfig.Token.
type Extras struct {
	AppToken             string
	FreeResponseChannels []string
	RequireMention       bool
}

// ParseExtras reads the Slack-specific keys out of a generic extras map.
func ParseExtras(extras map[string]string) Extras {
	var e Extras
	e.AppToken = extras["app_token"]
	if v := extras["free_response_channels"]; v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				e.FreeResponseChannels = append(e.FreeResponseChannels, id)
			}
		}
	}
	e.RequireMention = extras["require_mention"] != "false"
	return e
}

// Channel connects to Slack over Socket Mode (no public webhook endpoint
// required, matching the other adapters' outbound-only deployment model).
type Channel struct {
	*channels.BaseChannel
	api    *slack.Client
	client *socketmode.Client
	cfg    config.PlatformConfig
	extras Extras
	botID  string

	placeholders sync.Map // channelID string → timestamp string

	retryCfg channels.RetryConfig
	cancel   context.CancelFunc
}

// New creates a Slack adapter from its resolved platform config.
func New(cfg config.PlatformConfig, msgBus *bus.MessageBus) (*Channel, error) {
	extras := ParseExtras(cfg.Extras)
	if cfg.Token == "" || extras.AppToken == "" {
		return nil, fmt.Errorf("slack bot token and app_token (Socket Mode) are both required")
	}

	api := slack.New(cfg.Token, slack.OptionAppLevelToken(extras.AppToken))
	client := socketmode.New(api)

	base := channels.NewBaseChannel("slack", msgBus, nil, 5, 5)

	return &Channel{
		BaseChannel: base,
		api:         api,
		client:      client,
		cfg:         cfg,
		extras:      extras,
		retryCfg:    channels.DefaultRetryConfig(),
	}, nil
}

func (c *Channel) Platform() string { return "slack" }

// Connect opens the Socket Mode connection and begins dispatching events.
func (c *Channel) Connect(ctx context.Context) error {
	slog.Info("starting slack adapter")

	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.botID = auth.UserID

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.dispatch(runCtx)
	go func() {
		if err := c.client.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("slack socket mode connection ended", "error", err)
		}
	}()

	c.SetRunning(true)
	slog.Info("slack adapter connected", "bot_id", auth.UserID, "team", auth.Team)
	return nil
}

// Disconnect closes the Socket Mode connection.
func (c *Channel) Disconnect(_ context.Context) error {
	slog.Info("stopping slack adapter")
	c.SetRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Channel) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.client.Events:
			if !ok {
				return
			}
			c.handleEvent(evt)
		}
	}
}

func (c *Channel) handleEvent(evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	c.client.Ack(*evt.Request)

	inner, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	c.handleMessage(inner)
}

func (c *Channel) handleMessage(m *slackevents.MessageEvent) {
	if m.User == "" || m.User == c.botID || m.BotID != "" || m.SubType != "" {
		return
	}

	if !c.IsAllowed(m.User) {
		slog.Debug("slack message rejected by allowlist", "user_id", m.User)
		return
	}

	isDM := strings.HasPrefix(m.Channel, "D")
	mentioned := c.botID != "" && strings.Contains(m.Text, "<@"+c.botID+">")

	free := make(map[string]struct{}, len(c.extras.FreeResponseChannels))
	for _, id := range c.extras.FreeResponseChannels {
		free[id] = struct{}{}
	}
	if !channels.ResponseGate(isDM, mentioned, m.Channel, free, c.extras.RequireMention) {
		slog.Debug("slack message suppressed: mention required and channel not free-response", "channel_id", m.Channel)
		return
	}

	content := stripBotMention(m.Text, c.botID)
	if content == "" {
		content = "[empty message]"
	}

	slog.Debug("slack message received",
		"user_id", m.User, "channel_id", m.Channel, "is_dm", isDM,
		"preview", channels.Truncate(content, 50))

	if _, ts, err := c.api.PostMessage(m.Channel, slack.MsgOptionText(thinkingPlaceholder, false)); err == nil {
		c.placeholders.Store(m.Channel, ts)
	}

	peerKind := session.ChatGroup
	if isDM {
		peerKind = session.ChatDM
	}
	if m.ThreadTimeStamp != "" {
		peerKind = session.ChatThread
	}

	event := bus.InboundMessage{
		Text: content,
		Kind: bus.KindText,
		Source: session.Source{
			Platform: config.PlatformSlack,
			ChatID:   m.Channel,
			ChatType: peerKind,
			UserID:   m.User,
			ThreadID: m.ThreadTimeStamp,
		},
		MessageID: m.TimeStamp,
	}
	if err := c.Publish(context.Background(), event); err != nil {
		slog.Warn("slack: failed to publish inbound message", "error", err)
	}
}

func stripBotMention(text, botID string) string {
	if botID == "" {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+botID+">", ""))
}
