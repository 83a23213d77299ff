package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// fakeAdapter is a minimal channels.Channel stub for router tests.
type fakeAdapter struct {
	platform  string
	failText  error
	sentTexts []string
}

func (f *fakeAdapter) Platform() string                        { return f.platform }
func (f *fakeAdapter) Connect(context.Context) error            { return nil }
func (f *fakeAdapter) Disconnect(context.Context) error         { return nil }
func (f *fakeAdapter) SendTyping(context.Context, string) error { return nil }
func (f *fakeAdapter) GetChatInfo(context.Context, string) (channels.ChatInfo, error) {
	return channels.ChatInfo{}, nil
}
func (f *fakeAdapter) SendText(_ context.Context, msg bus.OutboundMessage) (channels.SendResult, error) {
	if f.failText != nil {
		return channels.SendResult{}, f.failText
	}
	f.sentTexts = append(f.sentTexts, msg.Content)
	return channels.SendResult{Success: true, MessageID: "msg-1"}, nil
}
func (f *fakeAdapter) SendImage(context.Context, string, string, string, string) (channels.SendResult, error) {
	return channels.SendResult{Success: true, MessageID: "img-1"}, nil
}
func (f *fakeAdapter) SendDocument(context.Context, string, string, string) (channels.SendResult, error) {
	return channels.SendResult{Success: true, MessageID: "doc-1"}, nil
}

func TestDeliverFanOutPartialFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()

	telegram := &fakeAdapter{platform: "telegram", failText: errors.New("boom: adapter transport error")}
	router := NewRouter(cfg, map[config.Platform]channels.Channel{config.PlatformTelegram: telegram}, nil)

	targets := []Target{
		{Platform: config.PlatformTelegram, ChatID: "123"},
		{Platform: config.PlatformLocal},
	}
	results := router.Deliver(context.Background(), "hello world", targets, Options{})

	require.False(t, results["telegram:123"].Success)
	require.True(t, results["local"].Success)
	require.FileExists(t, results["local"].MessageID)
}

func TestDeliverLocalWritesMarkdownWithJobMetadata(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()
	router := NewRouter(cfg, nil, nil)

	results := router.Deliver(context.Background(), "job output", []Target{{Platform: config.PlatformLocal}}, Options{JobID: "job-7", JobName: "Nightly Report"})
	res := results["local"]
	require.True(t, res.Success)
	require.Contains(t, res.MessageID, "job-7")
}

func TestDeliverToPlatformMissingAdapterReportsUnresolved(t *testing.T) {
	cfg := config.Default()
	router := NewRouter(cfg, map[config.Platform]channels.Channel{}, nil)

	results := router.Deliver(context.Background(), "hi", []Target{{Platform: config.PlatformDiscord, ChatID: "1"}}, Options{})
	require.False(t, results["discord:1"].Success)
	require.True(t, errors.Is(results["discord:1"].Error, ErrDeliveryTargetUnresolved))
}
