package slack

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/slack-go/slack"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
)

// SendText delivers text to a Slack channel, trying to update the
// "Thinking…" placeholder first and falling back to a fresh chunked send.
func (c *Channel) SendText(ctx context.Context, msg bus.OutboundMessage) (channels.SendResult, error) {
	if !c.IsRunning() {
		return channels.SendResult{}, fmt.Errorf("%w: slack adapter not connected", channels.ErrAdapterTransport)
	}
	if msg.ChatID == "" {
		return channels.SendResult{}, fmt.Errorf("empty chat ID for slack send")
	}

	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if msg.ThreadID != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadID))
	}

	if ts, ok := c.placeholders.Load(msg.ChatID); ok {
		c.placeholders.Delete(msg.ChatID)
		tsStr := ts.(string)
		if len(msg.Content) <= channels.SlackMaxMessageLen {
			if _, _, _, err := c.api.UpdateMessageContext(ctx, msg.ChatID, tsStr, opts...); err == nil {
				return channels.SendResult{Success: true, MessageID: tsStr}, nil
			}
		}
		_, _, _ = c.api.DeleteMessageContext(ctx, msg.ChatID, tsStr)
	}

	var lastTS string
	for _, chunk := range channels.Chunk(msg.Content, channels.SlackMaxMessageLen) {
		if err := c.WaitForSend(ctx); err != nil {
			return channels.SendResult{}, err
		}
		chunkOpts := []slack.MsgOption{slack.MsgOptionText(chunk, false)}
		if msg.ThreadID != "" {
			chunkOpts = append(chunkOpts, slack.MsgOptionTS(msg.ThreadID))
		}
		ts, err := channels.RetryDo(ctx, c.retryCfg, func() (string, error) {
			_, timestamp, sendErr := c.api.PostMessageContext(ctx, msg.ChatID, chunkOpts...)
			return timestamp, sendErr
		})
		if err != nil {
			return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send slack message: %w", err)
		}
		lastTS = ts
	}
	return channels.SendResult{Success: true, MessageID: lastTS}, nil
}

// SendImage posts the caption and the image URL as a plain text message
// (threaded under replyTo when set); the image is not uploaded to Slack.
func (c *Channel) SendImage(ctx context.Context, chatID, url, caption, replyTo string) (channels.SendResult, error) {
	if err := c.WaitForSend(ctx); err != nil {
		return channels.SendResult{}, err
	}
	opts := []slack.MsgOption{slack.MsgOptionText(caption + "\n" + url, false)}
	if replyTo != "" {
		opts = append(opts, slack.MsgOptionTS(replyTo))
	}
	ts, err := channels.RetryDo(ctx, c.retryCfg, func() (string, error) {
		_, timestamp, sendErr := c.api.PostMessageContext(ctx, chatID, opts...)
		return timestamp, sendErr
	})
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send slack image link: %w", err)
	}
	return channels.SendResult{Success: true, MessageID: ts}, nil
}

// SendDocument uploads a local file as a Slack file share. The caller
// (internal/delivery) is responsible for the trusted-root check before
// this is ever invoked.
func (c *Channel) SendDocument(ctx context.Context, chatID, path, caption string) (channels.SendResult, error) {
	if err := c.WaitForSend(ctx); err != nil {
		return channels.SendResult{}, err
	}

	file, err := channels.RetryDo(ctx, c.retryCfg, func() (*slack.FileSummary, error) {
		return c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			Channel:  chatID,
			File:     path,
			Filename: filepath.Base(path),
			Title:    caption,
		})
	})
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send slack document: %w", err)
	}
	return channels.SendResult{Success: true, MessageID: file.ID}, nil
}

// SendTyping has no direct Slack equivalent outside the legacy RTM API;
// Socket Mode / Events API apps signal activity implicitly by posting the
// placeholder message instead, so this is a deliberate no-op.
func (c *Channel) SendTyping(_ context.Context, _ string) error {
	return nil
}

// GetChatInfo returns best-effort channel metadata for the Channel Directory.
func (c *Channel) GetChatInfo(ctx context.Context, chatID string) (channels.ChatInfo, error) {
	ch, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: chatID})
	if err != nil {
		return channels.ChatInfo{}, fmt.Errorf("fetch slack channel info: %w", err)
	}
	kind := "channel"
	if ch.IsIM {
		kind = "dm"
	}
	return channels.ChatInfo{Name: ch.Name, Type: kind}, nil
}
