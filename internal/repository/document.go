package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(id, group_id, sub_collection_id, filename, content_type, status, strategy,
			 storage_path, processed_text_path, external_file_id, page_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		doc.ID,
		doc.GroupID,
		nullableString(doc.SubCollectionID),
		doc.Filename,
		doc.ContentType,
		doc.Status,
		doc.Strategy,
		doc.StoragePath,
		nullableString(doc.ProcessedTextPath),
		nullableString(doc.ExternalFileID),
		doc.PageCount,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, group_id, sub_collection_id, filename, content_type, status, strategy,
		        storage_path, processed_text_path, external_file_id, page_count, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// GetByExternalFileID resolves the assistant runtime's file identifier back to
// the owning document. Used by citation extraction.
func (r *DocumentRepository) GetByExternalFileID(ctx context.Context, externalFileID string) (*domain.Document, error) {
	doc, err := r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, group_id, sub_collection_id, filename, content_type, status, strategy,
		        storage_path, processed_text_path, external_file_id, page_count, created_at, updated_at
		 FROM documents WHERE external_file_id = $1`,
		externalFileID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByGroup(ctx context.Context, groupID, subCollectionID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, group_id, sub_collection_id, filename, content_type, status, strategy,
		        storage_path, processed_text_path, external_file_id, page_count, created_at, updated_at
		 FROM documents
		 WHERE group_id = $1 AND ($2::text IS NULL OR sub_collection_id = $2)
		 ORDER BY created_at ASC`,
		groupID, nullableString(subCollectionID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// SetProcessedArtifacts records the processed text location, the assistant
// runtime's file id, and the final page count once ingestion succeeds.
func (r *DocumentRepository) SetProcessedArtifacts(ctx context.Context, id, processedTextPath, externalFileID string, pageCount int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET processed_text_path = $1, external_file_id = $2, page_count = $3, updated_at = $4
		 WHERE id = $5`,
		nullableString(processedTextPath), nullableString(externalFileID), pageCount, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DocumentRepository) scanOne(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var subCollectionID, processedTextPath, externalFileID pgtype.Text
	err := row.Scan(
		&doc.ID, &doc.GroupID, &subCollectionID, &doc.Filename, &doc.ContentType,
		&doc.Status, &doc.Strategy, &doc.StoragePath, &processedTextPath,
		&externalFileID, &doc.PageCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if subCollectionID.Valid {
		doc.SubCollectionID = subCollectionID.String
	}
	if processedTextPath.Valid {
		doc.ProcessedTextPath = processedTextPath.String
	}
	if externalFileID.Valid {
		doc.ExternalFileID = externalFileID.String
	}
	return &doc, nil
}
