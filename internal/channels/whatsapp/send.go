package whatsapp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
)

// whatsappMaxMessageLen is a conservative chunk size; WhatsApp's real
// limit is far larger (~65KB) but long messages read poorly on mobile.
const whatsappMaxMessageLen = 4096

// SendText delivers text to a WhatsApp chat, chunked to a mobile-friendly
// length. WhatsApp has no message-edit API reachable from a bot session,
// so unlike the other adapters there is no placeholder-then-edit step.
func (c *Channel) SendText(ctx context.Context, msg bus.OutboundMessage) (channels.SendResult, error) {
	if !c.IsRunning() {
		return channels.SendResult{}, fmt.Errorf("%w: whatsapp adapter not connected", channels.ErrAdapterTransport)
	}
	recipient, err := types.ParseJID(msg.ChatID)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("invalid whatsapp chat id %q: %w", msg.ChatID, err)
	}
	c.stopTyping(msg.ChatID)

	var lastID string
	for _, chunk := range channels.Chunk(msg.Content, whatsappMaxMessageLen) {
		if err := c.WaitForSend(ctx); err != nil {
			return channels.SendResult{}, err
		}
		resp, err := channels.RetryDo(ctx, channels.DefaultRetryConfig(), func() (whatsmeow.SendResponse, error) {
			return c.client.SendMessage(ctx, recipient, &waProto.Message{Conversation: proto.String(chunk)})
		})
		if err != nil {
			return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send whatsapp message: %w", err)
		}
		lastID = resp.ID
	}
	return channels.SendResult{Success: true, MessageID: lastID}, nil
}

// SendImage downloads url, re-uploads it to WhatsApp's media servers, and
// sends it as a native image message (WhatsApp never accepts a bare
// remote URL — every attachment is mediated through its own CDN).
func (c *Channel) SendImage(ctx context.Context, chatID, url, caption, _ string) (channels.SendResult, error) {
	recipient, err := types.ParseJID(chatID)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("invalid whatsapp chat id %q: %w", chatID, err)
	}
	data, mime, err := fetchURL(ctx, url)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("fetch image for whatsapp upload: %w", err)
	}

	if err := c.WaitForSend(ctx); err != nil {
		return channels.SendResult{}, err
	}
	uploaded, err := c.client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("upload image to whatsapp: %w", err)
	}

	resp, err := c.client.SendMessage(ctx, recipient, &waProto.Message{
		ImageMessage: &waProto.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mime),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	})
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send whatsapp image: %w", err)
	}
	return channels.SendResult{Success: true, MessageID: resp.ID}, nil
}

// SendDocument uploads a local file to WhatsApp's media servers and sends
// it as a native document message.
func (c *Channel) SendDocument(ctx context.Context, chatID, path, caption string) (channels.SendResult, error) {
	recipient, err := types.ParseJID(chatID)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("invalid whatsapp chat id %q: %w", chatID, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("read document %s: %w", path, err)
	}

	if err := c.WaitForSend(ctx); err != nil {
		return channels.SendResult{}, err
	}
	uploaded, err := c.client.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("upload document to whatsapp: %w", err)
	}

	resp, err := c.client.SendMessage(ctx, recipient, &waProto.Message{
		DocumentMessage: &waProto.DocumentMessage{
			Caption:       proto.String(caption),
			Title:         proto.String(filepath.Base(path)),
			FileName:      proto.String(filepath.Base(path)),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	})
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, fmt.Errorf("send whatsapp document: %w", err)
	}
	return channels.SendResult{Success: true, MessageID: resp.ID}, nil
}

// SendTyping triggers the same composing-presence loop used on receipt of
// an inbound message, keyed by the chat's JID.
func (c *Channel) SendTyping(_ context.Context, chatID string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid whatsapp chat id %q: %w", chatID, err)
	}
	c.startTyping(jid)
	return nil
}

func fetchURL(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}
