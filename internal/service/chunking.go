package service

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ChunkConfig controls chunking for page embeddings.
type ChunkConfig struct {
	TargetChars int
	Overlap     int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetChars: 800,
		Overlap:     400,
	}
}

// PageText is one page's worth of parsed text with its absolute page number.
type PageText struct {
	Number int
	Text   string
}

// splitPages splits provider output on the `<<N>>` convention into ordered
// (pageNumber, pageText) pairs. A marker terminates the page with its number;
// a leading segment with no preceding marker is page 1; a trailing segment
// after the last marker belongs to the following page.
func splitPages(text string) []PageText {
	matches := rawPageMarkerPattern.FindAllStringSubmatchIndex(text, -1)

	var pages []PageText
	prev := 0
	lastPage := 0
	for _, m := range matches {
		page, _ := strconv.Atoi(text[m[2]:m[3]])
		if segment := text[prev:m[0]]; strings.TrimSpace(segment) != "" {
			pages = append(pages, PageText{Number: page, Text: segment})
		}
		prev = m[1]
		lastPage = page
	}
	if segment := text[prev:]; strings.TrimSpace(segment) != "" {
		pages = append(pages, PageText{Number: lastPage + 1, Text: segment})
	}
	return pages
}

var (
	tableSeparatorPattern = regexp.MustCompile(`(?m)^\s*\|?[\s:|-]+\|[\s:|-]*$`)
	markdownNoisePattern  = regexp.MustCompile("[#*`_>]+")
	whitespaceRunPattern  = regexp.MustCompile(`[ \t]+`)
	blankLineRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// cleanForEmbedding strips markdown-table syntax and collapses non-essential
// punctuation and whitespace. The original text is kept in chunk metadata, so
// this only affects what gets embedded.
func cleanForEmbedding(text string) string {
	clean := tableSeparatorPattern.ReplaceAllString(text, "")
	clean = strings.ReplaceAll(clean, "|", " ")
	clean = markdownNoisePattern.ReplaceAllString(clean, "")
	clean = whitespaceRunPattern.ReplaceAllString(clean, " ")
	clean = blankLineRunPattern.ReplaceAllString(clean, "\n\n")
	return strings.TrimSpace(clean)
}

// chunkText splits text into overlapping chunks of roughly cfg.TargetChars,
// cutting at a paragraph break when one falls in the tail of the window,
// otherwise at a sentence end, otherwise at a word boundary. Separators stay
// with the preceding chunk.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.TargetChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.TargetChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		end := start + cfg.TargetChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			end = findCut(runes, start, end)
		}

		if end <= start {
			break
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// findCut picks the best boundary at or before end, searching back no
// further than half the window.
func findCut(runes []rune, start, end int) int {
	minCut := start + (end-start)/2

	if cut := lastParagraphBreak(runes, minCut, end); cut > 0 {
		return cut
	}
	if cut := lastSentenceEnd(runes, minCut, end); cut > 0 {
		return cut
	}
	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func lastParagraphBreak(runes []rune, minCut, end int) int {
	for i := end; i > minCut+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	return 0
}

func lastSentenceEnd(runes []rune, minCut, end int) int {
	for i := end; i > minCut+1; i-- {
		if !unicode.IsSpace(runes[i-1]) {
			continue
		}
		switch runes[i-2] {
		case '.', '!', '?':
			return i
		}
	}
	return 0
}
