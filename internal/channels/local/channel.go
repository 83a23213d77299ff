// Package local implements the "local" member of the Platform Adapter
// variant set (spec §4.E): a pseudo-channel with no network transport,
// always enabled, that exists so `local` is addressable as a first-class
// delivery target and so development/testing can run the gateway without
// any real messaging credentials.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/bus"
	"github.com/scarlettdetekelala/hermes-agent/internal/channels"
	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// Channel is the local sink adapter. SendText/SendImage/SendDocument all
// write markdown files under cfg root rather than calling out to a
// platform; the actual file-naming/format contract is shared with
// internal/delivery's local sink so "local" looks the same whether it's
// reached as a delivery target or as a platform adapter directly.
type Channel struct {
	*channels.BaseChannel
	outputDir string
}

// New creates the local adapter. outputDir is typically config.Config's
// CronOutputDir(), i.e. "<root>/cron/output".
func New(cfg config.PlatformConfig, msgBus *bus.MessageBus, outputDir string) (*Channel, error) {
	return &Channel{
		BaseChannel: channels.NewBaseChannel("local", msgBus, nil, 0, 0),
		outputDir:   outputDir,
	}, nil
}

func (c *Channel) Platform() string { return "local" }

func (c *Channel) Connect(_ context.Context) error {
	c.SetRunning(true)
	return nil
}

func (c *Channel) Disconnect(_ context.Context) error {
	c.SetRunning(false)
	return nil
}

// SendText writes content to a timestamped markdown file. chatID, when
// non-empty, is used as a subdirectory so distinct local "chats" (e.g.
// separate cron jobs) don't collide.
func (c *Channel) SendText(_ context.Context, msg bus.OutboundMessage) (channels.SendResult, error) {
	path, err := c.writeFile(msg.ChatID, msg.Content, nil)
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, err
	}
	return channels.SendResult{Success: true, MessageID: path}, nil
}

// SendImage records the image reference as a markdown link rather than
// fetching binary content — there is no real chat surface to render it in.
func (c *Channel) SendImage(_ context.Context, chatID, url, caption, _ string) (channels.SendResult, error) {
	content := fmt.Sprintf("![%s](%s)", caption, url)
	path, err := c.writeFile(chatID, content, nil)
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, err
	}
	return channels.SendResult{Success: true, MessageID: path}, nil
}

// SendDocument copies the file alongside a markdown record referencing it.
func (c *Channel) SendDocument(_ context.Context, chatID, path, caption string) (channels.SendResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return channels.SendResult{}, fmt.Errorf("read document %s: %w", path, err)
	}
	dir := filepath.Join(c.outputDir, sinkSubdir(chatID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return channels.SendResult{}, fmt.Errorf("create local sink dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(path))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return channels.SendResult{}, fmt.Errorf("copy document to local sink: %w", err)
	}
	content := fmt.Sprintf("%s\n\nAttached: %s", caption, dest)
	mdPath, err := c.writeFile(chatID, content, nil)
	if err != nil {
		return channels.SendResult{Success: false, Error: err}, err
	}
	return channels.SendResult{Success: true, MessageID: mdPath}, nil
}

// SendTyping is a no-op: there is no presence concept for a file sink.
func (c *Channel) SendTyping(_ context.Context, _ string) error { return nil }

func (c *Channel) GetChatInfo(_ context.Context, chatID string) (channels.ChatInfo, error) {
	return channels.ChatInfo{Name: chatID, Type: "local"}, nil
}

func sinkSubdir(chatID string) string {
	if chatID == "" {
		return "misc"
	}
	return chatID
}

// writeFile is the shared local-sink writer: a timestamped markdown file
// under outputDir/<chatID|"misc">/<YYYYMMDD_HHMMSS>.md with a metadata
// header, using the same path layout and header shape as internal/delivery's
// local sink. The title here is always "Delivery Output" and there is no
// Job ID line; internal/delivery's sink titles the file with the job name
// and adds a Job ID line when it has them.
func (c *Channel) writeFile(chatID, content string, metadata map[string]string) (string, error) {
	dir := filepath.Join(c.outputDir, sinkSubdir(chatID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create local sink dir: %w", err)
	}
	now := time.Now()
	path := filepath.Join(dir, now.Format("20060102_150405")+".md")

	doc := fmt.Sprintf("# Delivery Output\n\n**Timestamp:** %s\n", now.Format("2006-01-02 15:04:05"))
	for k, v := range metadata {
		doc += fmt.Sprintf("**%s:** %s\n", k, v)
	}
	doc += "\n---\n\n" + content

	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("write local sink file: %w", err)
	}
	return path, nil
}
