package title

import (
	"strings"

	"github.com/ashureev/aice-relay/internal/domain"
)

// MaxLength is the longest title, in characters.
const MaxLength = 18

// stripped are removed from summarizer output. U+FE0F is the variation
// selector that trails some of the emoji.
var stripped = buildSet("\"'`“”‘’·•…~!?💬🔥⭐🌟✨💡🎯🚀⚡⛰🌊🧠💻📊📝\uFE0F")

// brackets are replaced by spaces in the local fallback.
var brackets = buildSet("[](){}\"'`<>")

func buildSet(chars string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range chars {
		set[r] = struct{}{}
	}
	return set
}

// Sanitize cleans a summarizer result: drops quotes, bullets and a fixed set
// of emoji, collapses whitespace, and truncates to MaxLength.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if _, ok := stripped[r]; ok {
			return -1
		}
		return r
	}, s)
	return truncate(collapseSpace(s), MaxLength)
}

// Fallback derives a title locally from the first line of message.
func Fallback(message string) string {
	first, _, _ := strings.Cut(normalizeNewlines(message), "\n")
	first = strings.Map(func(r rune) rune {
		if _, ok := brackets[r]; ok {
			return ' '
		}
		return r
	}, first)

	first = collapseSpace(first)
	if first == "" {
		return domain.DefaultRoomTitle
	}
	return truncate(first, MaxLength)
}

func normalizeNewlines(s string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u2028", "\n", "\u2029", "\n", "\u0085", "\n", "\v", "\n", "\f", "\n").Replace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
