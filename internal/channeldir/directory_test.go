package channeldir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

type fakeLister struct {
	snapshot map[string]string
	calls    int
}

func (f *fakeLister) ListChannels(_ context.Context) (map[string]string, error) {
	f.calls++
	return f.snapshot, nil
}

func TestResolveFromSeed(t *testing.T) {
	dir, err := New(16, time.Minute, nil)
	require.NoError(t, err)

	dir.LoadSeed(config.PlatformTelegram, map[string]string{"ops-alerts": "-1001234567890"})

	id, err := dir.Resolve(context.Background(), config.PlatformTelegram, "ops-alerts")
	require.NoError(t, err)
	require.Equal(t, "-1001234567890", id)
}

func TestResolveFromSeedIsCaseInsensitive(t *testing.T) {
	dir, err := New(16, time.Minute, nil)
	require.NoError(t, err)

	dir.LoadSeed(config.PlatformDiscord, map[string]string{"General": "123"})

	id, err := dir.Resolve(context.Background(), config.PlatformDiscord, "general")
	require.NoError(t, err)
	require.Equal(t, "123", id)
}

func TestResolveUnknownNameReturnsErrNotFound(t *testing.T) {
	dir, err := New(16, time.Minute, nil)
	require.NoError(t, err)

	_, err = dir.Resolve(context.Background(), config.PlatformSlack, "nope")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveFallsBackToLiveListingAndCachesWholeSnapshot(t *testing.T) {
	dir, err := New(16, time.Minute, nil)
	require.NoError(t, err)

	lister := &fakeLister{snapshot: map[string]string{"eng": "42", "ops": "7"}}
	dir.RegisterLister(config.PlatformSlack, lister)

	id, err := dir.Resolve(context.Background(), config.PlatformSlack, "eng")
	require.NoError(t, err)
	require.Equal(t, "42", id)
	require.Equal(t, 1, lister.calls)

	id, err = dir.Resolve(context.Background(), config.PlatformSlack, "ops")
	require.NoError(t, err)
	require.Equal(t, "7", id)
	require.Equal(t, 1, lister.calls, "second name should be served from the cached snapshot, no second listing")
}

func TestResolveCachesIndividualLookups(t *testing.T) {
	dir, err := New(16, time.Minute, nil)
	require.NoError(t, err)

	dir.LoadSeed(config.PlatformTelegram, map[string]string{"eng": "1"})

	_, err = dir.Resolve(context.Background(), config.PlatformTelegram, "eng")
	require.NoError(t, err)

	id, ok := dir.ids.Get(cacheKey(config.PlatformTelegram, "eng"))
	require.True(t, ok)
	require.Equal(t, "1", id)
}

func TestLoadSeedFileMissingFileIsNotAnError(t *testing.T) {
	dir, err := New(16, time.Minute, nil)
	require.NoError(t, err)

	require.NoError(t, dir.LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLoadSeedFileParsesPlatformBlocks(t *testing.T) {
	dir, err := New(16, time.Minute, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "channels.yaml")
	content := "telegram:\n  ops-alerts: \"-100123\"\ndiscord:\n  general: \"999\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, dir.LoadSeedFile(path))

	id, err := dir.Resolve(context.Background(), config.PlatformTelegram, "ops-alerts")
	require.NoError(t, err)
	require.Equal(t, "-100123", id)

	id, err = dir.Resolve(context.Background(), config.PlatformDiscord, "general")
	require.NoError(t, err)
	require.Equal(t, "999", id)
}
