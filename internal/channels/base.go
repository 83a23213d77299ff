package channels

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
)

// BaseChannel is the embeddable core every platform adapter shares: a
// reference to the shared MessageBus, a running flag, an optional sender
// allowlist, and an outbound token-bucket limiter. Adapters embed it and
// call HandleMessage once they've normalized a platform event.
type BaseChannel struct {
	name    string
	msgBus  *bus.MessageBus
	running int32

	allowFrom map[string]struct{} // empty set == no allowlist restriction

	limiter *rate.Limiter

	mu sync.Mutex
}

// NewBaseChannel wires a channel named name to msgBus, with an optional
// sender allowlist (empty means unrestricted) and an outbound rate limit.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowFrom []string, ratePerSecond float64, burst int) *BaseChannel {
	allow := make(map[string]struct{}, len(allowFrom))
	for _, id := range allowFrom {
		allow[id] = struct{}{}
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	if burst <= 0 {
		burst = 5
	}
	return &BaseChannel{
		name:      name,
		msgBus:    msgBus,
		allowFrom: allow,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Name returns the adapter's platform name.
func (b *BaseChannel) Name() string { return b.name }

// SetRunning flips the connected flag; IsRunning reads it.
func (b *BaseChannel) SetRunning(v bool) {
	if v {
		atomic.StoreInt32(&b.running, 1)
	} else {
		atomic.StoreInt32(&b.running, 0)
	}
}

// IsRunning reports whether Connect has completed and Disconnect has not.
func (b *BaseChannel) IsRunning() bool { return atomic.LoadInt32(&b.running) == 1 }

// IsAllowed reports whether senderID may use this channel. An empty
// allowlist permits everyone.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	_, ok := b.allowFrom[senderID]
	return ok
}

// Publish hands a normalized inbound message to the shared bus, blocking
// only if the bus buffer is full.
func (b *BaseChannel) Publish(ctx context.Context, msg bus.InboundMessage) error {
	return b.msgBus.Publish(ctx, msg)
}

// WaitForSend blocks until the outbound rate limiter admits one more send,
// or ctx is cancelled. Adapters call this immediately before every
// platform-native send call.
func (b *BaseChannel) WaitForSend(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// ResponseGate decides whether a group/channel message should be answered:
// DMs always pass; otherwise the bot must be mentioned, unless the chat is
// on the free-response allowlist (which always wins — spec §9's resolution
// of the two-env-var ambiguity).
func ResponseGate(isDM, mentioned bool, chatID string, freeResponseChannels map[string]struct{}, requireMention bool) bool {
	if isDM {
		return true
	}
	if _, free := freeResponseChannels[chatID]; free {
		return true
	}
	if !requireMention {
		return true
	}
	return mentioned
}

// Truncate shortens s to at most n runes for log previews, appending an
// ellipsis when it cuts.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// BackoffSleep is a small helper shared by adapters retrying a connect
// attempt; it's intentionally simple since internal/channels/retry.go
// owns the real exponential-backoff policy for send calls.
func BackoffSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
