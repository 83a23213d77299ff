package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadOrCreateThenAppend(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	key := Key{Platform: config.PlatformTelegram, ChatID: "123"}
	source := Source{Platform: config.PlatformTelegram, ChatID: "123", ChatType: ChatDM}
	now := time.Now()

	ctx, err := s.LoadOrCreate(key, source, now)
	require.NoError(t, err)
	require.Empty(t, ctx.History)

	ctx2, err := s.Append(key, now.Add(time.Second), Entry{Role: "user", Content: "hi"})
	require.NoError(t, err)
	require.Len(t, ctx2.History, 1)
	require.Equal(t, 1, ctx2.TurnCount)

	reloaded, err := s.LoadOrCreate(key, source, now.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, reloaded.History, 1)
}

func TestStoreResetPreservesSource(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	key := Key{Platform: config.PlatformDiscord, ChatID: "456"}
	source := Source{Platform: config.PlatformDiscord, ChatID: "456", ChatType: ChatGroup}
	now := time.Now()

	_, err := s.LoadOrCreate(key, source, now)
	require.NoError(t, err)
	_, err = s.Append(key, now, Entry{Role: "user", Content: "hello"}, Entry{Role: "assistant", Content: "hi"})
	require.NoError(t, err)

	reset, err := s.Reset(key, now.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, reset.History)
	require.Equal(t, source, reset.Source)
}

func TestStoreCorruptFileRecreates(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	key := Key{Platform: config.PlatformSlack, ChatID: "789"}
	source := Source{Platform: config.PlatformSlack, ChatID: "789", ChatType: ChatChannel}

	path := s.pathFor(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	ctx, err := s.LoadOrCreate(key, source, time.Now())
	require.NoError(t, err)
	require.Empty(t, ctx.History)
}
