package domain

import (
	"fmt"
	"time"
)

// IngestionJobStatus represents the status of an ingestion job
type IngestionJobStatus string

const (
	IngestionJobStatusPending    IngestionJobStatus = "pending"
	IngestionJobStatusProcessing IngestionJobStatus = "processing"
	IngestionJobStatusCompleted  IngestionJobStatus = "completed"
	IngestionJobStatusFailed     IngestionJobStatus = "failed"
)

// DefaultMaxRetries is the retry budget assigned to new ingestion jobs.
const DefaultMaxRetries int32 = 3

// Step labels persisted on the job so status polling can show fine-grained
// progress. provider_<state> labels are derived at runtime from the
// provider's reported state.
const (
	StepCheckingStatus          = "checking_status"
	StepDownloadingResult       = "downloading_result"
	StepAddingPageMarkers       = "adding_page_markers"
	StepDownloadingArtifacts    = "downloading_artifacts"
	StepUploadingArtifacts      = "uploading_artifacts"
	StepUploadingProcessedText  = "uploading_processed_text"
	StepRegisteringWithAssistant = "registering_with_assistant"
	StepVectorizing             = "vectorizing"
)

// BatchStatus aggregates job counts for a group/sub-collection. A batch with
// no pending or processing jobs is complete, including the vacuous case of
// zero jobs total.
type BatchStatus struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	IsComplete bool
}

// IngestionJob represents one parsing run for a document. Jobs are never
// deleted; they remain as an audit trail and a retry re-enters the same row
// as a logically new attempt.
type IngestionJob struct {
	ID              string
	DocumentID      string
	GroupID         string
	SubCollectionID string
	ProviderJobID   string
	Status          IngestionJobStatus
	Progress        int
	Step            string
	Error           string
	RetryCount      int32
	MaxRetries      int32
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// NewIngestionJob creates a new IngestionJob instance in pending state
func NewIngestionJob(
	id, documentID, groupID, subCollectionID, providerJobID string,
	createdAt time.Time,
) *IngestionJob {
	return &IngestionJob{
		ID:              id,
		DocumentID:      documentID,
		GroupID:         groupID,
		SubCollectionID: subCollectionID,
		ProviderJobID:   providerJobID,
		Status:          IngestionJobStatusPending,
		Progress:        0,
		RetryCount:      0,
		MaxRetries:      DefaultMaxRetries,
		CreatedAt:       createdAt,
	}
}

// Terminal reports whether the job is in a terminal state
func (j *IngestionJob) Terminal() bool {
	return j.Status == IngestionJobStatusCompleted || j.Status == IngestionJobStatusFailed
}

// CanRetry reports whether the job has retry budget left
func (j *IngestionJob) CanRetry() bool {
	return j.Status == IngestionJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ValidateIngestionJob validates an IngestionJob instance
func ValidateIngestionJob(j *IngestionJob) error {
	if j == nil {
		return fmt.Errorf("ingestion job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("ingestion job ID is required")
	}

	if j.DocumentID == "" {
		return fmt.Errorf("ingestion job DocumentID is required")
	}

	if j.GroupID == "" {
		return fmt.Errorf("ingestion job GroupID is required")
	}

	if !isValidIngestionJobStatus(j.Status) {
		return fmt.Errorf("ingestion job Status is invalid: %s", j.Status)
	}

	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("ingestion job Progress must be within 0-100: %d", j.Progress)
	}

	if j.RetryCount < 0 {
		return fmt.Errorf("ingestion job RetryCount cannot be negative")
	}

	if j.RetryCount > j.MaxRetries {
		return fmt.Errorf("ingestion job RetryCount exceeds MaxRetries")
	}

	if j.Status == IngestionJobStatusProcessing && j.StartedAt == nil {
		return fmt.Errorf("processing ingestion job must have StartedAt set")
	}

	if j.Terminal() && j.CompletedAt == nil {
		return fmt.Errorf("terminal ingestion job must have CompletedAt set")
	}

	return nil
}

// isValidIngestionJobStatus checks if an IngestionJobStatus is valid
func isValidIngestionJobStatus(s IngestionJobStatus) bool {
	switch s {
	case IngestionJobStatusPending, IngestionJobStatusProcessing,
		IngestionJobStatusCompleted, IngestionJobStatusFailed:
		return true
	}
	return false
}
