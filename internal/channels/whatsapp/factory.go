package whatsapp

import (
	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// Factory builds a WhatsApp adapter from its resolved platform config.
// The device must already be paired (see Pair) before Connect will succeed.
func Factory(cfg config.PlatformConfig, msgBus *bus.MessageBus) (channels.Channel, error) {
	return New(cfg, msgBus)
}
