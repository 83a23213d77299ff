package slack

import (
	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// Factory builds a Slack adapter from its resolved platform config.
func Factory(cfg config.PlatformConfig, msgBus *bus.MessageBus) (channels.Channel, error) {
	return New(cfg, msgBus)
}
