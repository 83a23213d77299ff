package supervisor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/agent"
	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/scheduler"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Root = root
	cfg.TrustedRoots = []string{root}
	cfg.Platforms = map[config.Platform]config.PlatformConfig{
		config.PlatformLocal: {Enabled: true},
	}
	return cfg
}

func echoRun(response string) agent.RunConversation {
	return func(_ context.Context, prompt, _ string, _ []session.Entry, _ *scheduler.InterruptHandle) (agent.Response, error) {
		if response != "" {
			return agent.Response{FinalResponse: response, Completed: true}, nil
		}
		return agent.Response{FinalResponse: "echo: " + prompt, Completed: true}, nil
	}
}

func TestNewBuildsSupervisorWithLocalAdapterOnly(t *testing.T) {
	cfg := testConfig(t)

	sup, err := New(context.Background(), cfg, echoRun(""))
	require.NoError(t, err)
	require.Len(t, sup.adapters, 1)
	_, ok := sup.adapters[config.PlatformLocal]
	require.True(t, ok)
	require.NotNil(t, sup.scheduler)
	require.NotNil(t, sup.router)
	require.NotNil(t, sup.cron)
}

func TestTurnDeliversResponseToLocalSink(t *testing.T) {
	cfg := testConfig(t)
	sup, err := New(context.Background(), cfg, echoRun("hello back"))
	require.NoError(t, err)

	event := bus.InboundMessage{
		Text: "hi there",
		Source: session.Source{
			Platform: config.PlatformLocal,
			ChatID:   "test-chat",
			ChatType: session.ChatDM,
		},
		Timestamp: time.Now(),
	}

	turnFn := sup.turn(agent.NewInvoker(echoRun("hello back")))
	turnFn(context.Background(), event, scheduler.NewInterruptHandle())

	require.NotEmpty(t, writtenFiles(t, cfg.CronOutputDir()))
}

func TestTurnHandlesExplicitResetTrigger(t *testing.T) {
	cfg := testConfig(t)
	sup, err := New(context.Background(), cfg, echoRun(""))
	require.NoError(t, err)

	event := bus.InboundMessage{
		Text: "/reset",
		Source: session.Source{
			Platform: config.PlatformLocal,
			ChatID:   "test-chat-2",
			ChatType: session.ChatDM,
		},
		Timestamp: time.Now(),
	}

	turnFn := sup.turn(agent.NewInvoker(echoRun("")))
	turnFn(context.Background(), event, scheduler.NewInterruptHandle())

	require.NotEmpty(t, writtenFiles(t, cfg.CronOutputDir()))
}

// writtenFiles lists every regular file under dir, recursively. Returns
// nil (not an error) if dir doesn't exist yet.
func writtenFiles(t *testing.T, dir string) []string {
	t.Helper()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}
