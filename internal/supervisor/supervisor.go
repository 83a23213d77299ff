// Package supervisor wires every other gateway package into one running
// process (spec §4.J): takes the loaded config, instantiates adapters, builds the
// turn scheduler's callback, and owns the shutdown sequence. Grounded on
// cmd/gateway_consumer.go's consumer-loop wiring shape, generalized from
// that file's per-agent/session-scope routing onto this gateway's
// single-agent, per-platform-adapter model.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/agent"
	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channeldir"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels/discord"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels/local"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels/slack"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels/telegram"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels/whatsapp"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/cron"
	"github.com/scarlettdetekelala/hermes-agent/internal/delivery"
	"github.com/scarlettdetekelala/hermes-agent/internal/scheduler"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
	"github.com/scarlettdetekelala/hermes-agent/internal/store/pg"
	"github.com/scarlettdetekelala/hermes-agent/internal/store/sqlite"
	"github.com/scarlettdetekelala/hermes-agent/internal/tracing"
)

// typingInterval matches every adapter's ~5s typing-status expiry with a
// safety margin (spec §4.F step 3: "pings the adapter every 2s").
const typingInterval = 2 * time.Second

// closableDirectory is satisfied by the two optional database-backed
// channel directory implementations (internal/store/sqlite, internal/store/pg)
// so Shutdown can release their connections; the in-process/file-seeded
// internal/channeldir.Directory needs no such step.
type closableDirectory interface {
	Close() error
}

// Supervisor owns every long-lived component of one gateway process.
type Supervisor struct {
	cfg *config.Config

	bus       *bus.MessageBus
	adapters  map[config.Platform]channels.Channel
	sessions  *session.Store
	scheduler *scheduler.Scheduler
	router    *delivery.Router
	cron      *cron.CronScheduler
	directory delivery.Directory
	dirCloser closableDirectory
}

// New constructs every component but starts nothing — call Run to begin
// consuming messages and ticking cron.
func New(ctx context.Context, cfg *config.Config, run agent.RunConversation) (*Supervisor, error) {
	msgBus := bus.NewMessageBus(256)

	directory, dirCloser, err := buildDirectory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("supervisor: building channel directory: %w", err)
	}

	adapters, err := buildAdapters(cfg, msgBus)
	if err != nil {
		return nil, fmt.Errorf("supervisor: building adapters: %w", err)
	}

	var mirror *delivery.S3Mirror
	if cfg.S3Bucket != "" {
		mirror, err = delivery.NewS3Mirror(ctx, cfg.S3Bucket)
		if err != nil {
			return nil, fmt.Errorf("supervisor: building S3 mirror: %w", err)
		}
	}

	sessions := session.NewStore(cfg.SessionsDir())
	invoker := agent.NewInvoker(run)
	router := delivery.NewRouter(cfg, withoutLocal(adapters), mirror)

	jobStore, err := buildJobStore(cfg, directory, dirCloser)
	if err != nil {
		return nil, fmt.Errorf("supervisor: building cron job store: %w", err)
	}
	cronScheduler := cron.NewCronScheduler(jobStore, invoker, router, cfg, directory)

	sup := &Supervisor{
		cfg:       cfg,
		bus:       msgBus,
		adapters:  adapters,
		sessions:  sessions,
		router:    router,
		cron:      cronScheduler,
		directory: directory,
		dirCloser: dirCloser,
	}
	sup.scheduler = scheduler.New(ctx, sup.turn(invoker))
	return sup, nil
}

// buildDirectory chooses the channel-directory backend per cfg.DatabaseURL
// (spec §9 "future migration to an embedded KV store is a drop-in swap"):
// Postgres DSN -> internal/store/pg, "sqlite:" DSN -> internal/store/sqlite,
// otherwise the in-process LRU directory seeded from channels.yaml.
func buildDirectory(ctx context.Context, cfg *config.Config) (delivery.Directory, closableDirectory, error) {
	switch {
	case strings.HasPrefix(cfg.DatabaseURL, "postgres://"), strings.HasPrefix(cfg.DatabaseURL, "postgresql://"):
		store, err := pg.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case strings.HasPrefix(cfg.DatabaseURL, "sqlite:"):
		store, err := sqlite.Open(strings.TrimPrefix(cfg.DatabaseURL, "sqlite:"))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		dir, err := channeldir.New(2048, time.Hour, nil)
		if err != nil {
			return nil, nil, err
		}
		if err := dir.LoadSeedFile(fmt.Sprintf("%s/channels.yaml", cfg.Root)); err != nil {
			return nil, nil, err
		}
		return dir, nil, nil
	}
}

// buildJobStore reuses the directory's database connection for the cron job
// index when one is configured, so a single DATABASE_URL swap (spec §9)
// moves both the channel directory and the job index off the filesystem
// together; otherwise it falls back to the file-backed store.
func buildJobStore(cfg *config.Config, directory delivery.Directory, dirCloser closableDirectory) (cron.JobStore, error) {
	switch backed := dirCloser.(type) {
	case *pg.Store:
		return backed, nil
	case *sqlite.Store:
		return backed, nil
	default:
		_ = directory
		return cron.NewFileJobStore(cfg.CronDir() + "/jobs.json"), nil
	}
}

func buildAdapters(cfg *config.Config, msgBus *bus.MessageBus) (map[config.Platform]channels.Channel, error) {
	adapters := make(map[config.Platform]channels.Channel)
	for _, platform := range cfg.GetConnectedPlatforms() {
		pc := cfg.Platforms[platform]
		var (
			ch  channels.Channel
			err error
		)
		switch platform {
		case config.PlatformLocal:
			ch, err = local.New(pc, msgBus, cfg.CronOutputDir())
		case config.PlatformTelegram:
			ch, err = telegram.New(pc, msgBus)
		case config.PlatformDiscord:
			ch, err = discord.New(pc, config.ParseDiscordExtras(pc), msgBus)
		case config.PlatformSlack:
			ch, err = slack.New(pc, msgBus)
		case config.PlatformWhatsApp:
			ch, err = whatsapp.New(pc, msgBus)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("building %s adapter: %w", platform, err)
		}
		adapters[platform] = ch
	}
	return adapters, nil
}

func withoutLocal(adapters map[config.Platform]channels.Channel) map[config.Platform]channels.Channel {
	out := make(map[config.Platform]channels.Channel, len(adapters))
	for p, ch := range adapters {
		if p == config.PlatformLocal {
			continue
		}
		out[p] = ch
	}
	return out
}

// Run connects every adapter, starts the inbound consumer loop, and ticks
// cron once per interval, blocking until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context, cronInterval time.Duration) error {
	for platform, ch := range s.adapters {
		if err := ch.Connect(ctx); err != nil {
			return fmt.Errorf("supervisor: connecting %s adapter: %w", platform, err)
		}
		slog.Info("supervisor: adapter connected", "platform", platform)
	}

	go s.consumeInbound(ctx)

	return s.cron.RunDaemon(ctx, cronInterval)
}

// Shutdown disconnects every adapter and releases the database-backed
// directory's connection (if any), best-effort — it collects and returns
// the first error but always attempts every component.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for platform, ch := range s.adapters {
		if err := ch.Disconnect(ctx); err != nil {
			slog.Error("supervisor: adapter disconnect failed", "platform", platform, "error", err)
			record(err)
		}
	}
	if s.dirCloser != nil {
		record(s.dirCloser.Close())
	}
	record(tracing.Shutdown(ctx))
	return firstErr
}

func (s *Supervisor) consumeInbound(ctx context.Context) {
	debounceMs := s.cfg.InboundDebounceMs
	debouncer := bus.NewInboundDebouncer(time.Duration(debounceMs)*time.Millisecond, s.scheduler.Submit)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.bus.Inbound():
			if !ok {
				return
			}
			debouncer.Submit(msg)
		}
	}
}
