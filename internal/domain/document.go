package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the processing state of an uploaded document
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// IngestionStrategy selects how a document's text is obtained. The strategy
// is fixed at job creation and never re-branched downstream.
type IngestionStrategy string

const (
	// StrategyStandard parses through the external provider.
	StrategyStandard IngestionStrategy = "standard"
	// StrategyEnhanced parses through the external provider and also captures
	// per-page image artifacts when the provider exposes them.
	StrategyEnhanced IngestionStrategy = "enhanced"
	// StrategyLocal extracts text in-process (PDF/spreadsheet) without the
	// external provider.
	StrategyLocal IngestionStrategy = "local"
)

// Document represents an uploaded document tracked by the ingestion pipeline.
// The external file id is the assistant runtime's identifier for the
// registered processed text; it stays empty until registration succeeds and
// is deliberately separate from Status.
type Document struct {
	ID                string
	GroupID           string
	SubCollectionID   string
	Filename          string
	ContentType       string
	Status            DocumentStatus
	Strategy          IngestionStrategy
	StoragePath       string
	ProcessedTextPath string
	ExternalFileID    string
	PageCount         int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewDocument creates a new Document instance
func NewDocument(
	id, groupID, subCollectionID, filename, contentType string,
	strategy IngestionStrategy,
	storagePath string,
	createdAt time.Time,
) *Document {
	if strategy == "" {
		strategy = StrategyStandard
	}
	return &Document{
		ID:              id,
		GroupID:         groupID,
		SubCollectionID: subCollectionID,
		Filename:        filename,
		ContentType:     contentType,
		Status:          DocumentStatusUploaded,
		Strategy:        strategy,
		StoragePath:     storagePath,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.GroupID == "" {
		return fmt.Errorf("document GroupID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	if !isValidIngestionStrategy(d.Strategy) {
		return fmt.Errorf("document Strategy is invalid: %s", d.Strategy)
	}

	return nil
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusUploaded, DocumentStatusProcessing,
		DocumentStatusReady, DocumentStatusFailed:
		return true
	}
	return false
}

// isValidIngestionStrategy checks if an IngestionStrategy is valid
func isValidIngestionStrategy(s IngestionStrategy) bool {
	switch s {
	case StrategyStandard, StrategyEnhanced, StrategyLocal:
		return true
	}
	return false
}
