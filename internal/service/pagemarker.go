package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// pageMarkerInterval is the maximum token span between two human-readable
// page markers in processed text.
const pageMarkerInterval = 400

// rawPageMarkerPattern matches the provider's page-boundary convention. A
// marker terminates the page with its number.
var rawPageMarkerPattern = regexp.MustCompile(`<<(\d+)>>`)

type tokenCodec interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// PageMarkerProcessor rewrites provider output so a `--- Page N ---` line
// appears at the start of each page and at every token interval within a
// page. Any reasonably sized window of processed text then contains at least
// one resolvable page reference.
type PageMarkerProcessor struct {
	codec tokenCodec
	err   error
}

func NewPageMarkerProcessor() *PageMarkerProcessor {
	codec, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &PageMarkerProcessor{err: err}
	}
	return &PageMarkerProcessor{codec: codec}
}

func newPageMarkerProcessorWithCodec(codec tokenCodec) *PageMarkerProcessor {
	return &PageMarkerProcessor{codec: codec}
}

func pageMarkerLine(page int) string {
	return fmt.Sprintf("--- Page %d ---", page)
}

// AddPageMarkers enriches text with interval page markers. This is a
// best-effort step: if the tokenizer is unavailable or fails, the input is
// returned unmodified.
func (p *PageMarkerProcessor) AddPageMarkers(text string) (out string) {
	if p.err != nil || p.codec == nil {
		return text
	}
	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()

	matches := rawPageMarkerPattern.FindAllStringSubmatchIndex(text, -1)

	var b strings.Builder
	prev := 0
	lastPage := 0
	for _, m := range matches {
		page, _ := strconv.Atoi(text[m[2]:m[3]])
		p.writeSegment(&b, text[prev:m[0]], page)
		// Preserve the original numeric marker trail.
		b.WriteString("\n")
		b.WriteString(text[m[0]:m[1]])
		b.WriteString("\n")
		prev = m[1]
		lastPage = page
	}
	p.writeSegment(&b, text[prev:], lastPage+1)

	return b.String()
}

func (p *PageMarkerProcessor) writeSegment(b *strings.Builder, segment string, page int) {
	if strings.TrimSpace(segment) == "" {
		return
	}

	tokens := p.codec.Encode(segment, nil, nil)

	b.WriteString(pageMarkerLine(page))
	b.WriteString("\n")
	for start := 0; start < len(tokens); start += pageMarkerInterval {
		end := start + pageMarkerInterval
		if end > len(tokens) {
			end = len(tokens)
		}
		if start > 0 {
			b.WriteString("\n")
			b.WriteString(pageMarkerLine(page))
			b.WriteString("\n")
		}
		b.WriteString(p.codec.Decode(tokens[start:end]))
	}
}
