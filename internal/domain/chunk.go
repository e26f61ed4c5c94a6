package domain

import (
	"fmt"
	"time"
)

// ChunkMetadata carries free-form per-chunk context that is not needed for
// retrieval ranking but is useful for display and citation.
type ChunkMetadata struct {
	OriginalPageText string    `json:"original_page_text,omitempty"`
	ScreenshotPath   string    `json:"screenshot_path,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Chunk represents a retrievable unit of page text with its embedding.
// PageNumber is the page the text was physically drawn from; ChunkIndex is
// the global ordinal across the whole document.
type Chunk struct {
	ID         string
	DocumentID string
	PageNumber int
	ChunkIndex int
	TokenCount int
	Content    string
	Summary    string
	Embedding  []float32
	Metadata   ChunkMetadata
	CreatedAt  time.Time
}

// ChunkMatch is a similarity search hit joined with its owning document's
// filename.
type ChunkMatch struct {
	Chunk    Chunk
	Filename string
	Score    float64
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}

	if c.PageNumber < 1 {
		return fmt.Errorf("chunk PageNumber must be 1-based: %d", c.PageNumber)
	}

	if c.ChunkIndex < 0 {
		return fmt.Errorf("chunk ChunkIndex cannot be negative")
	}

	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}

	return nil
}
