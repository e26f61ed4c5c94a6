package service

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strconv"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
)

// processedPageMarkerPattern matches the human-readable convention the
// page-marker post-processor emits.
var processedPageMarkerPattern = regexp.MustCompile(`---\s*Page\s+(\d+)\s*---`)

// CitationService maps retrieved snippets back to documents and page ranges.
type CitationService struct {
	docs DocumentRepositoryInterface
}

func NewCitationService(docs DocumentRepositoryInterface) *CitationService {
	return &CitationService{docs: docs}
}

type fileCitation struct {
	pages map[int]struct{}
	score float64
}

// ExtractCitations recovers a de-duplicated list of (document, page range,
// score) tuples from the snippets an assistant run retrieved. Snippets whose
// file identifier resolves to no document are skipped silently; they may
// belong to an unrelated subsystem. Snippets with no recognizable page marker
// contribute no pages.
func (s *CitationService) ExtractCitations(ctx context.Context, snippets []domain.RetrievedSnippet) ([]domain.SourceCitation, error) {
	byFile := make(map[string]*fileCitation)
	var fileOrder []string

	for _, snippet := range snippets {
		if snippet.ExternalFileID == "" {
			continue
		}
		entry, ok := byFile[snippet.ExternalFileID]
		if !ok {
			entry = &fileCitation{pages: make(map[int]struct{})}
			byFile[snippet.ExternalFileID] = entry
			fileOrder = append(fileOrder, snippet.ExternalFileID)
		}
		for _, page := range extractPageNumbers(snippet.Text) {
			entry.pages[page] = struct{}{}
		}
		if snippet.Score > entry.score {
			entry.score = snippet.Score
		}
	}

	var citations []domain.SourceCitation
	for _, fileID := range fileOrder {
		entry := byFile[fileID]
		if len(entry.pages) == 0 {
			// None of the file's snippets carried a resolvable page marker.
			continue
		}

		doc, err := s.docs.GetByExternalFileID(ctx, fileID)
		if err != nil {
			log.Printf("Skipping citation for unresolvable file id %s: %v", fileID, err)
			continue
		}

		pageStart, pageEnd := pageRange(entry.pages)
		citations = append(citations, domain.SourceCitation{
			DocumentID:     doc.ID,
			Filename:       doc.Filename,
			ExternalFileID: fileID,
			PageStart:      pageStart,
			PageEnd:        pageEnd,
			Score:          entry.score,
		})
	}

	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].Score > citations[j].Score
	})
	return citations, nil
}

// extractPageNumbers collects distinct page references from a snippet, in
// both recognized marker conventions.
func extractPageNumbers(text string) []int {
	seen := make(map[int]struct{})
	var pages []int
	for _, pattern := range []*regexp.Regexp{rawPageMarkerPattern, processedPageMarkerPattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			page, err := strconv.Atoi(m[1])
			if err != nil || page < 1 {
				continue
			}
			if _, ok := seen[page]; !ok {
				seen[page] = struct{}{}
				pages = append(pages, page)
			}
		}
	}
	return pages
}

func pageRange(pages map[int]struct{}) (int, int) {
	start, end := 0, 0
	for page := range pages {
		if start == 0 || page < start {
			start = page
		}
		if page > end {
			end = page
		}
	}
	return start, end
}
