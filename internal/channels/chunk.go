package channels

import "strings"

// Chunk splits content into pieces no longer than maxLen, preferring to
// break at the last newline ≤ maxLen, then the last space, and only
// hard-cutting if neither is available (spec §4.E / §8 boundary case:
// content of exactly maxLen is never split).
func Chunk(content string, maxLen int) []string {
	if maxLen <= 0 {
		return []string{content}
	}
	if len(content) <= maxLen {
		if content == "" {
			return nil
		}
		return []string{content}
	}

	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}

		splitAt := strings.LastIndexByte(content[:maxLen], '\n')
		if splitAt <= 0 {
			splitAt = strings.LastIndexByte(content[:maxLen], ' ')
		}
		if splitAt <= 0 {
			splitAt = maxLen
		}

		chunks = append(chunks, content[:splitAt])
		rest := content[splitAt:]
		content = strings.TrimPrefix(rest, "\n")
		if content == rest {
			content = strings.TrimPrefix(rest, " ")
		}
	}
	return chunks
}

// Platform send-size limits (spec §4.E).
const (
	TelegramMaxMessageLen = 4096
	DiscordMaxMessageLen  = 2000
	SlackMaxMessageLen    = 4000
)
