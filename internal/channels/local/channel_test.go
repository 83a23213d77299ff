package local

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

func TestSendTextWritesMarkdownFile(t *testing.T) {
	dir := t.TempDir()
	c, err := New(config.PlatformConfig{}, nil, dir)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))

	res, err := c.SendText(context.Background(), bus.OutboundMessage{ChatID: "job-1", Content: "hello"})
	require.NoError(t, err)
	require.True(t, res.Success)

	data, err := os.ReadFile(res.MessageID)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, string(data), "Delivery Output")
}

func TestSendTextDefaultsToMiscSubdir(t *testing.T) {
	dir := t.TempDir()
	c, err := New(config.PlatformConfig{}, nil, dir)
	require.NoError(t, err)

	res, err := c.SendText(context.Background(), bus.OutboundMessage{Content: "no chat id"})
	require.NoError(t, err)
	require.Contains(t, res.MessageID, "/misc/")
}

func TestGetChatInfoEchoesChatID(t *testing.T) {
	c, err := New(config.PlatformConfig{}, nil, t.TempDir())
	require.NoError(t, err)
	info, err := c.GetChatInfo(context.Background(), "job-7")
	require.NoError(t, err)
	require.Equal(t, "job-7", info.Name)
	require.Equal(t, "local", info.Type)
}
