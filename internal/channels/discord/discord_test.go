package discord

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripBotMention(t *testing.T) {
	require.Equal(t, "hello there", stripBotMention("<@123> hello there", "123"))
	require.Equal(t, "hello there", stripBotMention("<@!123> hello there", "123"))
	require.Equal(t, "hello", stripBotMention("hello", ""))
}

func TestFileName(t *testing.T) {
	require.Equal(t, "report.pdf", fileName("/tmp/cron/report.pdf"))
	require.Equal(t, "report.pdf", fileName("report.pdf"))
}
