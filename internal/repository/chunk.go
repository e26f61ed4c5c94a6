package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence of page-attributed document chunks and
// their embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts the new
// set. Callers run this inside a transaction so a document never exposes a
// partially written chunk set.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		_, err = r.db.Exec(ctx,
			`INSERT INTO chunks
				(id, document_id, page_number, chunk_index, token_count, content, summary, embedding, metadata, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID,
			c.DocumentID,
			c.PageNumber,
			c.ChunkIndex,
			c.TokenCount,
			c.Content,
			nullableString(c.Summary),
			pgvector.NewVector(c.Embedding),
			metadata,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// SearchSimilar returns the closest chunks to the query embedding within a
// group, highest score first. Score is 1.0 / (1.0 + cosine distance).
func (r *ChunkRepository) SearchSimilar(ctx context.Context, embedding []float32, groupID, subCollectionID string, limit int) ([]domain.ChunkMatch, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.document_id, c.page_number, c.chunk_index, c.token_count,
		        c.content, c.summary, c.metadata, c.created_at, d.filename,
		        1.0 / (1.0 + (c.embedding <=> $1)) AS score
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.group_id = $2 AND ($3::text IS NULL OR d.sub_collection_id = $3)
		 ORDER BY score DESC
		 LIMIT $4`,
		vec, groupID, nullableString(subCollectionID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.ChunkMatch
	for rows.Next() {
		var m domain.ChunkMatch
		var summary pgtype.Text
		var metadata []byte
		if err := rows.Scan(
			&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.PageNumber, &m.Chunk.ChunkIndex,
			&m.Chunk.TokenCount, &m.Chunk.Content, &summary, &metadata,
			&m.Chunk.CreatedAt, &m.Filename, &m.Score,
		); err != nil {
			return nil, err
		}
		if summary.Valid {
			m.Chunk.Summary = summary.String
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Chunk.Metadata); err != nil {
				return nil, err
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
