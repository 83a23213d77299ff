package local

import (
	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// Factory returns an adapter factory bound to outputDir, matching the
// (cfg, msgBus) -> (Channel, error) shape the other adapters' Factory
// functions use. Local needs outputDir (the supervisor's cron output
// directory) in addition to cfg/msgBus, so it's curried in at registration
// time rather than threaded through PlatformConfig.Extras.
func Factory(outputDir string) func(config.PlatformConfig, *bus.MessageBus) (channels.Channel, error) {
	return func(cfg config.PlatformConfig, msgBus *bus.MessageBus) (channels.Channel, error) {
		return New(cfg, msgBus, outputDir)
	}
}
