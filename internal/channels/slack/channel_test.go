package slack

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

func TestStripBotMention(t *testing.T) {
	require.Equal(t, "hello there", stripBotMention("<@U123> hello there", "U123"))
	require.Equal(t, "hello", stripBotMention("hello", ""))
}

func TestParseExtrasDefaultsRequireMentionTrue(t *testing.T) {
	e := ParseExtras(map[string]string{"app_token": "xapp-1"})
	require.Equal(t, "xapp-1", e.AppToken)
	require.True(t, e.RequireMention)
	require.Empty(t, e.FreeResponseChannels)
}

func TestParseExtrasFreeResponseChannels(t *testing.T) {
	e := ParseExtras(map[string]string{
		"free_response_channels": "C1, C2",
		"require_mention":        "false",
	})
	require.Equal(t, []string{"C1", "C2"}, e.FreeResponseChannels)
	require.False(t, e.RequireMention)
}

func TestNewRequiresBothTokens(t *testing.T) {
	_, err := New(config.PlatformConfig{Token: "xoxb-1"}, nil)
	require.Error(t, err)

	_, err = New(config.PlatformConfig{}, nil)
	require.Error(t, err)
}
