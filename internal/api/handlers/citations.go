package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/DylanDHubert/edu-sub002/internal/api"
	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/DylanDHubert/edu-sub002/internal/service"
)

type CitationServiceInterface interface {
	ExtractCitations(ctx context.Context, snippets []domain.RetrievedSnippet) ([]domain.SourceCitation, error)
}

// CitationHandler extracts source citations from the snippets an assistant
// run retrieved. Extraction is deterministic per snippet set, so results are
// cached by (assistant id, content hash).
type CitationHandler struct {
	svc   CitationServiceInterface
	cache *service.AnswerCache
}

func NewCitationHandler(svc CitationServiceInterface, cache *service.AnswerCache) *CitationHandler {
	return &CitationHandler{svc: svc, cache: cache}
}

type SnippetRequest struct {
	ExternalFileID string  `json:"external_file_id"`
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
}

type CitationsRequest struct {
	AssistantID string           `json:"assistant_id"`
	Snippets    []SnippetRequest `json:"snippets"`
}

type CitationResponse struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	ExternalFileID string  `json:"external_file_id"`
	PageStart      int     `json:"page_start"`
	PageEnd        int     `json:"page_end"`
	Score          float64 `json:"score"`
}

// Extract resolves retrieved snippets into deduplicated source citations.
func (h *CitationHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req CitationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Snippets) == 0 {
		api.Success(w, http.StatusOK, []CitationResponse{})
		return
	}

	contentHash := hashSnippets(req.Snippets)
	if h.cache != nil {
		if cached, ok := h.cache.Get(req.AssistantID, contentHash); ok {
			w.Header().Set("X-Cache", "hit")
			var resp []CitationResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				api.Success(w, http.StatusOK, resp)
				return
			}
		}
	}

	snippets := make([]domain.RetrievedSnippet, 0, len(req.Snippets))
	for _, s := range req.Snippets {
		snippets = append(snippets, domain.RetrievedSnippet{
			ExternalFileID: s.ExternalFileID,
			Text:           s.Text,
			Score:          s.Score,
		})
	}

	citations, err := h.svc.ExtractCitations(r.Context(), snippets)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]CitationResponse, 0, len(citations))
	for _, c := range citations {
		resp = append(resp, CitationResponse{
			DocumentID:     c.DocumentID,
			Filename:       c.Filename,
			ExternalFileID: c.ExternalFileID,
			PageStart:      c.PageStart,
			PageEnd:        c.PageEnd,
			Score:          c.Score,
		})
	}

	if h.cache != nil {
		if payload, err := json.Marshal(resp); err == nil {
			h.cache.Put(req.AssistantID, contentHash, string(payload))
		} else {
			log.Printf("Failed to cache citations: %v", err)
		}
	}

	api.Success(w, http.StatusOK, resp)
}

func hashSnippets(snippets []SnippetRequest) string {
	hash := sha256.New()
	for _, s := range snippets {
		fmt.Fprintf(hash, "%s\x00%s\x00%f\x00", s.ExternalFileID, s.Text, s.Score)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
