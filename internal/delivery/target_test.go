package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
	"github.com/scarlettdetekelala/hermes-agent/internal/session"
)

func TestParseTargetOrigin(t *testing.T) {
	origin := &session.Source{Platform: config.PlatformTelegram, ChatID: "123"}
	tgt := ParseTarget("origin", origin)
	require.Equal(t, config.PlatformTelegram, tgt.Platform)
	require.Equal(t, "123", tgt.ChatID)
	require.True(t, tgt.IsOrigin)
}

func TestParseTargetOriginDegradesToLocalWithoutOrigin(t *testing.T) {
	tgt := ParseTarget("origin", nil)
	require.Equal(t, config.PlatformLocal, tgt.Platform)
}

func TestParseTargetExplicitChat(t *testing.T) {
	tgt := ParseTarget("telegram:999", nil)
	require.Equal(t, config.PlatformTelegram, tgt.Platform)
	require.Equal(t, "999", tgt.ChatID)
	require.True(t, tgt.IsExplicit)
}

func TestParseTargetUnknownPlatformDegradesToLocal(t *testing.T) {
	tgt := ParseTarget("bogus", nil)
	require.Equal(t, config.PlatformLocal, tgt.Platform)
}

func TestParseTargetRoundTripsThroughToString(t *testing.T) {
	cases := []string{"origin", "local", "telegram", "telegram:999"}
	origin := &session.Source{Platform: config.PlatformTelegram, ChatID: "123"}
	for _, spec := range cases {
		t1 := ParseTarget(spec, origin)
		t2 := ParseTarget(t1.ToString(), origin)
		require.Equal(t, t1, t2, "round trip for %q", spec)
	}
}

func TestResolveTargetsDedupesAndAppendsLocal(t *testing.T) {
	cfg := config.Default()
	cfg.AlwaysLogLocal = true
	cfg.Platforms[config.PlatformTelegram] = config.PlatformConfig{
		Enabled:     true,
		Token:       "t",
		HomeChannel: &config.HomeChannel{Platform: config.PlatformTelegram, ChatID: "home-1"},
	}

	targets, dropped := ResolveTargets(context.Background(), cfg, nil, []string{"telegram", "telegram", "local"}, nil)
	require.Empty(t, dropped)
	require.Len(t, targets, 2) // telegram:home-1 + local, second "telegram" deduped
}

func TestResolveTargetsDropsUnhomedPlatform(t *testing.T) {
	cfg := config.Default()
	cfg.AlwaysLogLocal = false
	targets, dropped := ResolveTargets(context.Background(), cfg, nil, []string{"telegram"}, nil)
	require.Empty(t, targets)
	require.Contains(t, dropped, "telegram")
}

func TestResolveTargetsNonNumericNameWithoutDirectoryDrops(t *testing.T) {
	cfg := config.Default()
	cfg.AlwaysLogLocal = false
	targets, dropped := ResolveTargets(context.Background(), cfg, nil, []string{"telegram:general"}, nil)
	require.Empty(t, targets)
	require.Contains(t, dropped, "telegram:general")
}
