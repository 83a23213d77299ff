package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/require"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

func TestNewRequiresDBPath(t *testing.T) {
	_, err := New(config.PlatformConfig{}, nil)
	require.Error(t, err)

	c, err := New(config.PlatformConfig{Extras: map[string]string{"db_path": "/tmp/wa.db"}}, nil)
	require.NoError(t, err)
	require.Equal(t, "whatsapp", c.Platform())
}

func TestNewParsesAllowFrom(t *testing.T) {
	c, err := New(config.PlatformConfig{Extras: map[string]string{
		"db_path":    "/tmp/wa.db",
		"allow_from": "111, 222",
	}}, nil)
	require.NoError(t, err)
	require.True(t, c.IsAllowed("111"))
	require.True(t, c.IsAllowed("222"))
	require.False(t, c.IsAllowed("333"))
}

func TestExtractTextConversation(t *testing.T) {
	msg := &events.Message{
		Message: &waProto.Message{Conversation: proto.String("hello there")},
	}
	require.Equal(t, "hello there", extractText(msg))
}

func TestExtractTextExtendedText(t *testing.T) {
	msg := &events.Message{
		Message: &waProto.Message{
			ExtendedTextMessage: &waProto.ExtendedTextMessage{Text: proto.String("reply text")},
		},
	}
	require.Equal(t, "reply text", extractText(msg))
}

func TestExtractTextImageWithCaption(t *testing.T) {
	msg := &events.Message{
		Message: &waProto.Message{
			ImageMessage: &waProto.ImageMessage{Caption: proto.String("a photo")},
		},
	}
	require.Equal(t, "a photo\n[image attachment]", extractText(msg))
}

func TestExtractTextDocumentWithFileName(t *testing.T) {
	msg := &events.Message{
		Message: &waProto.Message{
			DocumentMessage: &waProto.DocumentMessage{FileName: proto.String("report.pdf")},
		},
	}
	require.Equal(t, "[document: report.pdf]", extractText(msg))
}

func TestGetChatInfoDetectsGroupVsDM(t *testing.T) {
	c, err := New(config.PlatformConfig{Extras: map[string]string{"db_path": "/tmp/wa.db"}}, nil)
	require.NoError(t, err)

	info, err := c.GetChatInfo(nil, "1234567890@s.whatsapp.net")
	require.NoError(t, err)
	require.Equal(t, "dm", info.Type)

	info, err = c.GetChatInfo(nil, "1234567890-12345@g.us")
	require.NoError(t, err)
	require.Equal(t, "group", info.Type)
}
