package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/DylanDHubert/edu-sub002/internal/api"
	"github.com/DylanDHubert/edu-sub002/internal/service"
)

type SearchServiceInterface interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchServiceInterface
}

func NewSearchHandler(svc SearchServiceInterface) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query           string `json:"query"`
	GroupID         string `json:"group_id"`
	SubCollectionID string `json:"sub_collection_id"`
	Limit           int    `json:"limit"`
}

type SearchResultResponse struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	PageNumber int     `json:"page_number"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Summary    string  `json:"summary,omitempty"`
	Score      float64 `json:"score"`
	Relevance  int     `json:"relevance"`
}

// Search answers a query with ranked source passages directly from chunk
// storage.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:           req.Query,
		GroupID:         req.GroupID,
		SubCollectionID: req.SubCollectionID,
		Limit:           req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]SearchResultResponse, 0, len(results))
	for _, res := range results {
		resp = append(resp, SearchResultResponse{
			DocumentID: res.DocumentID,
			Filename:   res.Filename,
			PageNumber: res.PageNumber,
			ChunkIndex: res.ChunkIndex,
			Content:    res.Content,
			Summary:    res.Summary,
			Score:      res.Score,
			Relevance:  res.Relevance,
		})
	}
	api.Success(w, http.StatusOK, resp)
}
