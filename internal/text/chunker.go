package text

import (
	"strings"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap are tuned for transcript
	// prose: large enough to keep a topic together, overlapping enough
	// that a sentence split across chunks still retrieves.
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 400
)

// ChunkTranscript splits transcript text into overlapping chunks of at
// most size characters. Splits prefer sentence boundaries, then word
// boundaries; a single unbroken run longer than size is hard-split.
// Whitespace-only input yields no chunks.
func ChunkTranscript(text string, size, overlap int) []string {
	text = strings.TrimSpace(normalizeWhitespace(text))
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		cut := splitPoint(text, start, end)
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	// Drop empties produced by trimming.
	filtered := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// splitPoint finds the best cut position in text[start:end], scanning
// backwards for a sentence end, then any whitespace. Falls back to the
// hard limit when the window has no break at all.
func splitPoint(text string, start, end int) int {
	window := text[start:end]

	if idx := lastSentenceEnd(window); idx > 0 {
		return start + idx
	}
	if idx := strings.LastIndexAny(window, " \n\t"); idx > 0 {
		return start + idx
	}
	return end
}

func lastSentenceEnd(s string) int {
	best := -1
	for _, mark := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(s, mark); idx >= 0 && idx+len(mark) > best {
			best = idx + len(mark)
		}
	}
	return best
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
