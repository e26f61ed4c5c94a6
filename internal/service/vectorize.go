package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/google/uuid"
)

// BatchEmbeddingClient generates embeddings for a batch of texts in one call.
type BatchEmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkRepositoryInterface defines chunk persistence operations.
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// VectorizeService turns a document's raw parsed text into page-attributed,
// embedded chunks for semantic search. It consumes the provider's `<<N>>`
// convention directly, not the marker-enriched assistant text.
type VectorizeService struct {
	embedding BatchEmbeddingClient
	txRunner  TxRunner
	chunkCfg  ChunkConfig
}

func NewVectorizeService(embedding BatchEmbeddingClient, txRunner TxRunner) *VectorizeService {
	return &VectorizeService{
		embedding: embedding,
		txRunner:  txRunner,
		chunkCfg:  DefaultChunkConfig(),
	}
}

// VectorizeDocument chunks, summarizes, embeds, and persists all of a
// document's pages. All chunks are embedded in a single provider call and
// written in a single transaction. Returns the number of chunks stored.
func (s *VectorizeService) VectorizeDocument(ctx context.Context, doc *domain.Document, rawText string) (int, error) {
	if doc == nil {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "document is required")
	}

	pages := splitPages(rawText)
	if len(pages) == 0 {
		return 0, nil
	}

	createdAt := time.Now().UTC()
	var chunks []domain.Chunk
	chunkIndex := 0
	for _, page := range pages {
		cleaned := cleanForEmbedding(page.Text)
		for _, content := range chunkText(cleaned, s.chunkCfg) {
			chunks = append(chunks, domain.Chunk{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				PageNumber: page.Number,
				ChunkIndex: chunkIndex,
				TokenCount: estimateTokens(content),
				Content:    content,
				Summary:    extractiveSummary(content),
				Metadata: domain.ChunkMetadata{
					OriginalPageText: page.Text,
					CreatedAt:        createdAt,
				},
				CreatedAt: createdAt,
			})
			chunkIndex++
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.embedding.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate chunk embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Chunks().ReplaceChunks(ctx, doc.ID, chunks)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to persist chunks: %w", err)
	}

	return len(chunks), nil
}

// estimateTokens approximates the token count of a chunk. Four characters per
// token is close enough for budgeting; exact counts are not needed here.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

const summaryMaxChars = 160

// extractiveSummary takes the first sentence of a chunk, truncated to a fixed
// length. Summary quality is not a correctness requirement for retrieval.
func extractiveSummary(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if idx := strings.IndexAny(clean, ".!?"); idx > 0 && idx < summaryMaxChars {
		return clean[:idx+1]
	}
	if len(clean) <= summaryMaxChars {
		return clean
	}
	return clean[:summaryMaxChars-3] + "..."
}
