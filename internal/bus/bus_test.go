package bus

import (
	"context"
	"testing"
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
	"github.com/stretchr/testify/require"
)

func TestMessageBusPublishAndDrain(t *testing.T) {
	b := NewMessageBus(2)
	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, InboundMessage{Text: "hi"}))

	msg := <-b.Inbound()
	require.Equal(t, "hi", msg.Text)
}

func TestInboundMessageCommandParsing(t *testing.T) {
	m := InboundMessage{Text: "/reset foo bar"}
	require.True(t, m.IsCommand())
	require.Equal(t, "reset", m.CommandName())
	require.Equal(t, []string{"foo", "bar"}, m.CommandArgs())

	plain := InboundMessage{Text: "hello"}
	require.False(t, plain.IsCommand())
	require.Equal(t, "", plain.CommandName())
	require.Nil(t, plain.CommandArgs())
}

func TestDedupeCacheSuppressesRepeats(t *testing.T) {
	d := NewDedupeCache(time.Minute, 10)
	require.False(t, d.SeenRecently("msg-1"))
	require.True(t, d.SeenRecently("msg-1"))
	require.False(t, d.SeenRecently("msg-2"))
}

func TestDedupeCacheEvictsOldestWhenFull(t *testing.T) {
	d := NewDedupeCache(time.Minute, 2)
	require.False(t, d.SeenRecently("a"))
	require.False(t, d.SeenRecently("b"))
	require.False(t, d.SeenRecently("c")) // evicts "a"
	require.False(t, d.SeenRecently("a")) // "a" was evicted, so it's new again
}

func TestInboundDebouncerMergesWithinWindow(t *testing.T) {
	flushed := make(chan InboundMessage, 1)
	d := NewInboundDebouncer(30*time.Millisecond, func(m InboundMessage) {
		flushed <- m
	})

	src := session.Source{Platform: config.PlatformTelegram, ChatID: "1"}
	d.Submit(InboundMessage{Text: "line one", Source: src})
	time.Sleep(5 * time.Millisecond)
	d.Submit(InboundMessage{Text: "line two", Source: src})

	select {
	case m := <-flushed:
		require.Equal(t, "line one\nline two", m.Text)
	case <-time.After(time.Second):
		t.Fatal("debouncer never flushed")
	}
}

func TestInboundDebouncerBypassesCommands(t *testing.T) {
	flushed := make(chan InboundMessage, 1)
	d := NewInboundDebouncer(time.Hour, func(m InboundMessage) {
		flushed <- m
	})
	d.Submit(InboundMessage{Text: "/new"})

	select {
	case m := <-flushed:
		require.Equal(t, "/new", m.Text)
	case <-time.After(time.Second):
		t.Fatal("command should bypass debounce window")
	}
}
