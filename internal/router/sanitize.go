package router

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxCaptionBytes keeps "{seq}-{caption}.jpg" well under the common 255 byte name limit.
const maxCaptionBytes = 200

// SanitizeCaption makes caption safe to embed in a filename on Linux, macOS
// and Windows. Path separators, the Windows reserved set and control
// characters become '_', surrounding spaces and dots are trimmed and the result is
// truncated to maxCaptionBytes on a rune boundary. Ordinary captions such as
// "a dog sitting on a couch" pass through unchanged.
func SanitizeCaption(caption string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		case unicode.IsControl(r), r == utf8.RuneError:
			return '_'
		}
		return r
	}, caption)
	cleaned = trimName(cleaned)

	if len(cleaned) <= maxCaptionBytes {
		return cleaned
	}
	cut := maxCaptionBytes
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return trimName(cleaned[:cut])
}

// trimName strips whitespace and dots from both ends.
func trimName(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}
