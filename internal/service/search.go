package service

import (
	"context"
	"math"
	"strings"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
)

// maxSearchResults bounds a single search regardless of what the caller
// requested, to keep latency predictable.
const maxSearchResults = 10

// EmbeddingClient generates an embedding for a single text.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcherInterface performs nearest-neighbor search over stored chunks.
type ChunkSearcherInterface interface {
	SearchSimilar(ctx context.Context, embedding []float32, groupID, subCollectionID string, limit int) ([]domain.ChunkMatch, error)
}

// SearchInput is a safe-mode search request.
type SearchInput struct {
	Query           string
	GroupID         string
	SubCollectionID string
	Limit           int
}

// SearchResult is one ranked passage with its page attribution.
type SearchResult struct {
	DocumentID string
	Filename   string
	PageNumber int
	ChunkIndex int
	Content    string
	Summary    string
	Score      float64
	Relevance  int
}

// SearchService answers queries with ranked source passages directly from
// chunk storage, bypassing the assistant.
type SearchService struct {
	embedding EmbeddingClient
	chunks    ChunkSearcherInterface
}

func NewSearchService(embedding EmbeddingClient, chunks ChunkSearcherInterface) *SearchService {
	return &SearchService{embedding: embedding, chunks: chunks}
}

// Search embeds the query with the same model used for chunk storage and
// returns the closest passages, similarity descending.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]*SearchResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return []*SearchResult{}, nil
	}
	if input.GroupID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "group id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.chunks.SearchSimilar(ctx, embedding, input.GroupID, input.SubCollectionID, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, &SearchResult{
			DocumentID: m.Chunk.DocumentID,
			Filename:   m.Filename,
			PageNumber: m.Chunk.PageNumber,
			ChunkIndex: m.Chunk.ChunkIndex,
			Content:    m.Chunk.Content,
			Summary:    m.Chunk.Summary,
			Score:      m.Score,
			Relevance:  relevancePercent(m.Score),
		})
	}
	return results, nil
}

// relevancePercent turns a 0..1 similarity score into a display percentage.
func relevancePercent(score float64) int {
	pct := int(math.Round(score * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
