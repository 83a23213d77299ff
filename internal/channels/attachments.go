package channels

import (
	"regexp"
	"strings"
)

// Attachment is one extracted image or document reference, in source order.
type Attachment struct {
	URL     string // image URL, or absolute path for documents
	Alt     string // markdown alt text / caption
	IsImage bool
}

var (
	mdImagePattern   = regexp.MustCompile(`!\[([^\]]*)\]\((https?://[^\s)]+)\)`)
	htmlImagePattern = regexp.MustCompile(`<img\s+src=["']?(https?://[^\s"'<>]+)["']?\s*/?>\s*(?:</img>)?`)
	documentPattern  = regexp.MustCompile(`(?m)^DOCUMENT:(\S+?)(?:\|(.*))?$`)
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// knownImageExtensions are checked as a URL suffix (case-insensitive).
var knownImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// knownImageHosts is the allowlist fallback for AI-image-gen CDNs that
// serve images from extensionless URLs (spec supplement — ported from the
// original's extract_images).
var knownImageHosts = []string{"fal.media", "fal-cdn", "replicate.delivery"}

func looksLikeImageURL(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range knownImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	for _, host := range knownImageHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// ExtractAttachments pulls image references (markdown + HTML <img>) and
// document sentinels (DOCUMENT:<path>[|<caption>]) out of agent response
// text, returning them in source order alongside the cleaned remainder.
// The ordering of extracted attachments matches source order (spec §4.E).
func ExtractAttachments(content string) ([]Attachment, string) {
	var attachments []Attachment

	type match struct {
		start, end int
		att        Attachment
	}
	var matches []match

	for _, m := range mdImagePattern.FindAllStringSubmatchIndex(content, -1) {
		alt := content[m[2]:m[3]]
		url := content[m[4]:m[5]]
		if looksLikeImageURL(url) {
			matches = append(matches, match{m[0], m[1], Attachment{URL: url, Alt: alt, IsImage: true}})
		}
	}
	for _, m := range htmlImagePattern.FindAllStringSubmatchIndex(content, -1) {
		url := content[m[2]:m[3]]
		matches = append(matches, match{m[0], m[1], Attachment{URL: url, IsImage: true}})
	}
	for _, m := range documentPattern.FindAllStringSubmatchIndex(content, -1) {
		path := content[m[2]:m[3]]
		caption := ""
		if m[4] != -1 {
			caption = content[m[4]:m[5]]
		}
		matches = append(matches, match{m[0], m[1], Attachment{URL: path, Alt: caption, IsImage: false}})
	}

	if len(matches) == 0 {
		return nil, content
	}

	// Sort by source position so callers see attachments in document order,
	// regardless of which pattern matched them.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].start < matches[j-1].start; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(content[last:m.start])
		last = m.end
		attachments = append(attachments, m.att)
	}
	b.WriteString(content[last:])

	cleaned := blankRunPattern.ReplaceAllString(b.String(), "\n\n")
	cleaned = strings.TrimSpace(cleaned)

	return attachments, cleaned
}
