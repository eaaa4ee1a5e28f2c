package textutil

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap size chunks for the embedding
	// model: ~1000 characters of content plus a 200-character tail carried
	// over from the previous chunk for retrieval continuity.
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk splits text into an ordered sequence of bounded chunks. Words are
// packed greedily: a word joins the current chunk while the joined length
// stays within size, otherwise it starts the next chunk. When overlap > 0 and
// more than one chunk was produced, each chunk after the first is prefixed
// with the last overlap characters of the previous output chunk and capped at
// size+overlap characters.
//
// Empty text yields nil; text that fits in a single chunk is returned as-is.
func Chunk(text string, size, overlap int) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	var chunks []string
	current := ""
	for _, word := range strings.Fields(text) {
		if len(current)+1+len(word) <= size {
			if current == "" {
				current = word
			} else {
				current += " " + word
			}
		} else {
			if current != "" {
				chunks = append(chunks, current)
			}
			current = word
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	if overlap <= 0 || len(chunks) <= 1 {
		return chunks
	}

	out := make([]string, 1, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := out[len(out)-1]
		tail := prev
		if len(prev) > overlap {
			// Back the cut off to a rune start so the tail never begins
			// mid-sequence in accented text.
			tail = prev[runeStart(prev, len(prev)-overlap):]
		}
		merged := tail + "\n" + chunks[i]
		if len(merged) > size+overlap {
			merged = merged[:runeStart(merged, size+overlap)]
		}
		out = append(out, merged)
	}
	return out
}

// runeStart walks i back to the nearest rune boundary in s.
func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
