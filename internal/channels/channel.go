// Package channels defines the shared platform-adapter capability set
// (spec §4.E) and the behaviors every adapter gets for free: policy
// gating, chunking, attachment extraction, and outbound rate limiting.
// Platform-specific adapters (internal/channels/{discord,telegram,slack,
// whatsapp,local}) embed BaseChannel and implement the wire protocol.
package channels

import (
	"context"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
)

// ChatInfo is the result of a channel-directory style lookup.
type ChatInfo struct {
	Name string
	Type string
}

// Channel is the capability set every platform adapter exposes (spec §4.E).
type Channel interface {
	Platform() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	SendText(ctx context.Context, msg bus.OutboundMessage) (SendResult, error)
	SendImage(ctx context.Context, chatID, url, caption, replyTo string) (SendResult, error)
	SendDocument(ctx context.Context, chatID, path, caption string) (SendResult, error)
	SendTyping(ctx context.Context, chatID string) error

	GetChatInfo(ctx context.Context, chatID string) (ChatInfo, error)
}

// SendResult is the outcome of an outbound send call.
type SendResult struct {
	Success   bool
	MessageID string
	Error     error
}
