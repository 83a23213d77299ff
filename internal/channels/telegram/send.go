package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
)

// Error patterns for graceful handling of Telegram API quirks.
var (
	parseErrRe           = regexp.MustCompile(`(?i)can't parse entities|parse entities|find end of the entity`)
	messageNotModifiedRe = regexp.MustCompile(`(?i)message is not modified`)
)

// SendText delivers text to a Telegram chat. It first tries to edit the
// "Thinking…" placeholder posted on receipt; if that fails (too long,
// already deleted) it falls through to a fresh chunked send.
func (c *Channel) SendText(ctx context.Context, msg bus.OutboundMessage) (channels.SendResult, error) {
	if !c.IsRunning() {
		return channels.SendResult{}, fmt.Errorf("%w: telegram adapter not connected", channels.ErrAdapterTransport)
	}

	chatID, err := parseRawChatID(msg.ChatID)
	if err != nil {
		return channels.SendResult{}, err
	}
	threadID := resolveThreadIDForSend(parseThreadID(msg.ThreadID))

	var replyToMsgID int
	if msg.ReplyTo != "" {
		fmt.Sscanf(msg.ReplyTo, "%d", &replyToMsgID)
	}

	htmlContent := markdownToTelegramHTML(msg.Content)

	pKey := placeholderKey(msg.ChatID, msg.ThreadID)
	if pID, ok := c.placeholders.Load(pKey); ok {
		c.placeholders.Delete(pKey)
		msgID := pID.(int)
		if len(htmlContent) <= telegramMaxMessageLen {
			if err := c.editMessage(ctx, chatID, msgID, htmlContent); err == nil {
				return channels.SendResult{Success: true}, nil
			}
		}
		_ = c.deleteMessage(ctx, chatID, msgID)
	}

	chunks := chunkHTML(htmlContent, telegramMaxMessageLen)
	var lastID int
	for i, chunk := range chunks {
		rt := 0
		if i == 0 {
			rt = replyToMsgID
		}
		if err := c.WaitForSend(ctx); err != nil {
			return channels.SendResult{}, err
		}
		id, err := c.sendHTML(ctx, chatID, chunk, rt, threadID)
		if err != nil {
			return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send telegram message: %w", err)
		}
		lastID = id
	}
	return channels.SendResult{Success: true, MessageID: fmt.Sprintf("%d", lastID)}, nil
}

// SendImage uploads an image by streaming it from url; on failure it falls
// back to posting the URL as plain text rather than dropping the attachment.
func (c *Channel) SendImage(ctx context.Context, chatID, url, caption, replyTo string) (channels.SendResult, error) {
	id, err := parseRawChatID(chatID)
	if err != nil {
		return channels.SendResult{}, err
	}
	var replyToMsgID int
	if replyTo != "" {
		fmt.Sscanf(replyTo, "%d", &replyToMsgID)
	}

	if err := c.WaitForSend(ctx); err != nil {
		return channels.SendResult{}, err
	}

	head, followUp := splitCaption(caption)
	params := &telego.SendPhotoParams{
		ChatID: tu.ID(id),
		Photo:  telego.InputFile{URL: url},
	}
	if head != "" {
		params.Caption = head
		params.ParseMode = telego.ModeHTML
	}
	if replyToMsgID > 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyToMsgID}
	}

	m, err := channels.RetryDo(ctx, c.retryCfg, func() (*telego.Message, error) {
		return c.bot.SendPhoto(ctx, params)
	})
	if err != nil {
		// Fallback: post the URL as text rather than dropping the attachment.
		return c.sendChunkedText(ctx, id, strings.TrimSpace(caption+"\n"+url), 0)
	}
	if followUp != "" {
		if _, ferr := c.sendChunkedText(ctx, id, followUp, 0); ferr != nil {
			slog.Warn("telegram: failed to send caption overflow", "error", ferr)
		}
	}
	return channels.SendResult{Success: true, MessageID: fmt.Sprintf("%d", m.MessageID)}, nil
}

// SendDocument sends a local file as a Telegram document. The caller
// (internal/delivery) is responsible for the trusted-root check before
// this is ever invoked.
func (c *Channel) SendDocument(ctx context.Context, chatID, path, caption string) (channels.SendResult, error) {
	id, err := parseRawChatID(chatID)
	if err != nil {
		return channels.SendResult{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("open document %s: %w", path, err)
	}
	defer f.Close()

	if err := c.WaitForSend(ctx); err != nil {
		return channels.SendResult{}, err
	}

	params := &telego.SendDocumentParams{
		ChatID:   tu.ID(id),
		Document: telego.InputFile{File: f},
		Caption:  caption,
	}
	if caption != "" {
		params.ParseMode = telego.ModeHTML
	}

	m, err := channels.RetryDo(ctx, c.retryCfg, func() (*telego.Message, error) {
		return c.bot.SendDocument(ctx, params)
	})
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send telegram document: %w", err)
	}
	return channels.SendResult{Success: true, MessageID: fmt.Sprintf("%d", m.MessageID)}, nil
}

// SendTyping pings the Telegram typing indicator once (expires after ~5s
// server-side; the turn scheduler's typing-refresh task re-pings on a
// cadence per spec §4.F step 3).
func (c *Channel) SendTyping(ctx context.Context, chatID string) error {
	id, err := parseRawChatID(chatID)
	if err != nil {
		return err
	}
	return c.bot.SendChatAction(ctx, &telego.SendChatActionParams{
		ChatID: tu.ID(id),
		Action: telego.ChatActionTyping,
	})
}

// splitCaption trims caption to Telegram's 1024-char media-caption limit,
// returning the overflow as a separate follow-up text message.
func splitCaption(caption string) (head, overflow string) {
	if len(caption) <= telegramCaptionMaxLen {
		return caption, ""
	}
	return caption[:telegramCaptionMaxLen], caption[telegramCaptionMaxLen:]
}

func (c *Channel) sendChunkedText(ctx context.Context, chatID int64, content string, threadID int) (channels.SendResult, error) {
	htmlContent := markdownToTelegramHTML(content)
	var lastID int
	for _, chunk := range chunkHTML(htmlContent, telegramMaxMessageLen) {
		if err := c.WaitForSend(ctx); err != nil {
			return channels.SendResult{}, err
		}
		id, err := c.sendHTML(ctx, chatID, chunk, 0, threadID)
		if err != nil {
			return channels.SendResult{}, err
		}
		lastID = id
	}
	return channels.SendResult{Success: true, MessageID: fmt.Sprintf("%d", lastID)}, nil
}

// sendHTML sends a single HTML message, falling back to plain text if
// Telegram rejects the HTML (malformed entities from imperfect markdown
// conversion).
func (c *Channel) sendHTML(ctx context.Context, chatID int64, html string, replyTo, threadID int) (int, error) {
	tgMsg := tu.Message(tu.ID(chatID), html)
	tgMsg.ParseMode = telego.ModeHTML
	if threadID > 0 {
		tgMsg.MessageThreadID = threadID
	}
	if replyTo > 0 {
		tgMsg.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}

	m, err := channels.RetryDo(ctx, c.retryCfg, func() (*telego.Message, error) {
		return c.bot.SendMessage(ctx, tgMsg)
	})
	if err != nil {
		if parseErrRe.MatchString(err.Error()) {
			slog.Warn("telegram: HTML parse failed, falling back to plain text", "error", err)
			tgMsg.ParseMode = ""
			m, err = c.bot.SendMessage(ctx, tgMsg)
			if err != nil {
				return 0, err
			}
			return m.MessageID, nil
		}
		return 0, err
	}
	return m.MessageID, nil
}

// editMessage edits an existing message's text.
func (c *Channel) editMessage(ctx context.Context, chatID int64, messageID int, htmlText string) error {
	editMsg := tu.EditMessageText(tu.ID(chatID), messageID, htmlText)
	editMsg.ParseMode = telego.ModeHTML

	_, err := c.bot.EditMessageText(ctx, editMsg)
	if err != nil {
		if messageNotModifiedRe.MatchString(err.Error()) {
			return nil
		}
		return err
	}
	return nil
}

// deleteMessage deletes a message from the chat.
func (c *Channel) deleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
}
