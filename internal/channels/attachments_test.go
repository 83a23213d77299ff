package channels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractAttachmentsMarkdownImage(t *testing.T) {
	content := "Here you go:\n![a cat](https://example.com/cat.png)\nEnjoy."
	atts, cleaned := ExtractAttachments(content)
	require.Len(t, atts, 1)
	require.True(t, atts[0].IsImage)
	require.Equal(t, "https://example.com/cat.png", atts[0].URL)
	require.NotContains(t, cleaned, "![")
}

func TestExtractAttachmentsHostAllowlistFallback(t *testing.T) {
	content := "![gen](https://v3.fal.media/files/abc123)"
	atts, _ := ExtractAttachments(content)
	require.Len(t, atts, 1)
	require.True(t, atts[0].IsImage)
}

func TestExtractAttachmentsDocumentSentinel(t *testing.T) {
	content := "Report attached.\nDOCUMENT:/tmp/report.pdf|Monthly report\nThanks."
	atts, cleaned := ExtractAttachments(content)
	require.Len(t, atts, 1)
	require.False(t, atts[0].IsImage)
	require.Equal(t, "/tmp/report.pdf", atts[0].URL)
	require.Equal(t, "Monthly report", atts[0].Alt)
	require.NotContains(t, cleaned, "DOCUMENT:")
}

func TestExtractAttachmentsPreservesSourceOrder(t *testing.T) {
	content := "DOCUMENT:/tmp/a.pdf\n![img](https://example.com/b.jpg)"
	atts, _ := ExtractAttachments(content)
	require.Len(t, atts, 2)
	require.False(t, atts[0].IsImage)
	require.True(t, atts[1].IsImage)
}

func TestExtractAttachmentsNoMatchesReturnsOriginal(t *testing.T) {
	content := "just plain text, no images here"
	atts, cleaned := ExtractAttachments(content)
	require.Nil(t, atts)
	require.Equal(t, content, cleaned)
}
