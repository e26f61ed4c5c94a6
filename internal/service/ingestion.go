package service

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/DylanDHubert/edu-sub002/internal/extract"
	"github.com/DylanDHubert/edu-sub002/internal/parser"
	"github.com/DylanDHubert/edu-sub002/internal/storage"
	"github.com/DylanDHubert/edu-sub002/internal/telemetry"
	"github.com/google/uuid"
)

// DocumentRepositoryInterface defines document persistence operations.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByExternalFileID(ctx context.Context, externalFileID string) (*domain.Document, error)
	ListByGroup(ctx context.Context, groupID, subCollectionID string) ([]*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error
	SetProcessedArtifacts(ctx context.Context, id, processedTextPath, externalFileID string, pageCount int) error
}

// IngestionJobRepositoryInterface defines job queue operations.
type IngestionJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestionJob, error)
	GetLatestByDocument(ctx context.Context, documentID string) (*domain.IngestionJob, error)
	GetRunnableJobs(ctx context.Context, limit int) ([]*domain.IngestionJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestionJobStatus, progress int, step, errMsg string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
	SetProviderJobID(ctx context.Context, id, providerJobID string) error
	Retry(ctx context.Context, id string) error
	GroupBatchStatus(ctx context.Context, groupID, subCollectionID string) (*domain.BatchStatus, error)
}

// ParsingProviderInterface is the external parsing provider contract.
type ParsingProviderInterface interface {
	Submit(ctx context.Context, content []byte, filename string) (string, error)
	PollStatus(ctx context.Context, providerJobID string) (*parser.JobStatus, error)
	FetchResult(ctx context.Context, providerJobID string) (*parser.Result, error)
	DownloadArtifact(ctx context.Context, url string) ([]byte, error)
}

// StorageClientInterface is the object storage contract.
type StorageClientInterface interface {
	Upload(ctx context.Context, key string, content []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// AssistantFileClientInterface registers processed text with the assistant
// runtime's retrieval backend.
type AssistantFileClientInterface interface {
	UploadRetrievableFile(ctx context.Context, filename string, content []byte) (string, error)
}

// VectorizerInterface populates chunk storage from raw parsed text.
type VectorizerInterface interface {
	VectorizeDocument(ctx context.Context, doc *domain.Document, rawText string) (int, error)
}

// PageMarkerInterface enriches parsed text with interval page markers.
type PageMarkerInterface interface {
	AddPageMarkers(text string) string
}

// AwaitOutcome is a strategy's answer to one poll cycle. When Done is false,
// Status carries the provider's reported state for progress reporting and the
// job stays in processing for the next cycle.
type AwaitOutcome struct {
	Done   bool
	Result *parser.Result
	Status *parser.JobStatus
}

// strategyHandler is the submit/await/artifacts contract each ingestion
// strategy implements. The strategy is selected once at job creation and
// never re-branched downstream.
type strategyHandler interface {
	Submit(ctx context.Context, doc *domain.Document, content []byte) (string, error)
	Await(ctx context.Context, doc *domain.Document, providerJobID string) (*AwaitOutcome, error)
	CollectsArtifacts() bool
	CollectArtifacts(ctx context.Context, doc *domain.Document, result *parser.Result) error
}

// IngestionService owns document submission and the per-job processing
// pipeline the worker drives.
type IngestionService struct {
	docs       DocumentRepositoryInterface
	jobs       IngestionJobRepositoryInterface
	txRunner   TxRunner
	storage    StorageClientInterface
	assistant  AssistantFileClientInterface
	vectorizer VectorizerInterface
	marker     PageMarkerInterface
	strategies map[domain.IngestionStrategy]strategyHandler
}

func NewIngestionService(
	docs DocumentRepositoryInterface,
	jobs IngestionJobRepositoryInterface,
	txRunner TxRunner,
	provider ParsingProviderInterface,
	storageClient StorageClientInterface,
	assistant AssistantFileClientInterface,
	vectorizer VectorizerInterface,
	marker PageMarkerInterface,
) *IngestionService {
	standard := &standardStrategy{provider: provider}
	return &IngestionService{
		docs:       docs,
		jobs:       jobs,
		txRunner:   txRunner,
		storage:    storageClient,
		assistant:  assistant,
		vectorizer: vectorizer,
		marker:     marker,
		strategies: map[domain.IngestionStrategy]strategyHandler{
			domain.StrategyStandard: standard,
			domain.StrategyEnhanced: &enhancedStrategy{standardStrategy: standard, provider: provider, storage: storageClient},
			domain.StrategyLocal:    &localStrategy{storage: storageClient},
		},
	}
}

// SubmitDocumentInput carries a new document upload.
type SubmitDocumentInput struct {
	GroupID         string
	SubCollectionID string
	Filename        string
	ContentType     string
	Strategy        domain.IngestionStrategy
	Content         []byte
}

// SubmitDocument stores the original file, submits it to the strategy's
// parsing path, and creates the document and its pending job atomically.
func (s *IngestionService) SubmitDocument(ctx context.Context, input SubmitDocumentInput) (*domain.Document, *domain.IngestionJob, error) {
	if input.GroupID == "" {
		return nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "group id is required")
	}
	if input.Filename == "" {
		return nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(input.Content) == 0 {
		return nil, nil, domain.NewDomainError(domain.ErrCodeValidation, "file content is empty")
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(
		uuid.NewString(), input.GroupID, input.SubCollectionID,
		input.Filename, input.ContentType, input.Strategy,
		storage.ObjectPath(input.GroupID, input.SubCollectionID, input.Filename),
		now,
	)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	handler, ok := s.strategies[doc.Strategy]
	if !ok {
		return nil, nil, domain.ErrInvalidStrategy
	}

	if err := s.storage.Upload(ctx, doc.StoragePath, input.Content, input.ContentType); err != nil {
		return nil, nil, fmt.Errorf("failed to store original document: %w", err)
	}

	providerJobID, err := handler.Submit(ctx, doc, input.Content)
	if err != nil {
		return nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "failed to submit document for parsing", err)
	}

	job := domain.NewIngestionJob(uuid.NewString(), doc.ID, doc.GroupID, doc.SubCollectionID, providerJobID, now)

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.Jobs().Create(ctx, job)
	})
	if err != nil {
		return nil, nil, err
	}

	return doc, job, nil
}

// RetryJob re-enters a failed job into processing as a fresh attempt from the
// top of the pipeline.
func (s *IngestionService) RetryJob(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	if err := s.jobs.Retry(ctx, jobID); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.docs.UpdateStatus(ctx, job.DocumentID, domain.DocumentStatusProcessing); err != nil {
		return nil, err
	}
	return job, nil
}

// ProcessJob drives one runnable job through the pipeline. A still-running
// provider job is left in processing for the next cycle. Any pipeline-essential
// failure marks both the job and its document failed; the error is returned so
// the worker can count it, but one job's failure never aborts its batch.
func (s *IngestionService) ProcessJob(ctx context.Context, job *domain.IngestionJob) error {
	spanCtx, span := telemetry.StartSpan(ctx, "ingestion.process_job", telemetry.SpanAttributes{
		GroupID:    job.GroupID,
		DocumentID: job.DocumentID,
		JobID:      job.ID,
	})
	defer span.End()
	ctx = spanCtx

	finished, err := s.runJob(ctx, job)
	if err != nil {
		log.Printf("Ingestion job %s failed: %v", job.ID, err)
		telemetry.CaptureError(ctx, err)
		if failErr := s.jobs.MarkFailed(ctx, job.ID, err.Error()); failErr != nil {
			log.Printf("Failed to mark job %s failed: %v", job.ID, failErr)
		}
		if docErr := s.docs.UpdateStatus(ctx, job.DocumentID, domain.DocumentStatusFailed); docErr != nil {
			log.Printf("Failed to mark document %s failed: %v", job.DocumentID, docErr)
		}
		return err
	}
	if finished {
		log.Printf("Ingestion job %s completed", job.ID)
	}
	return nil
}

func (s *IngestionService) runJob(ctx context.Context, job *domain.IngestionJob) (bool, error) {
	doc, err := s.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return false, fmt.Errorf("document lookup failed: %w", err)
	}

	handler, ok := s.strategies[doc.Strategy]
	if !ok {
		return false, domain.ErrInvalidStrategy
	}

	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 10, domain.StepCheckingStatus, ""); err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}
	if doc.Status != domain.DocumentStatusProcessing {
		if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing); err != nil {
			return false, fmt.Errorf("document status update failed: %w", err)
		}
	}

	outcome, err := handler.Await(ctx, doc, job.ProviderJobID)
	if err != nil {
		return false, err
	}
	if !outcome.Done {
		progress := 25
		step := "provider_processing"
		if outcome.Status != nil {
			if outcome.Status.Progress > 0 {
				progress = outcome.Status.Progress
			}
			step = "provider_" + strings.ToLower(string(outcome.Status.Status))
		}
		if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, progress, step, ""); err != nil {
			return false, fmt.Errorf("status update failed: %w", err)
		}
		return false, nil
	}

	result := outcome.Result
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return false, domain.ErrEmptyParseResult
	}
	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 50, domain.StepDownloadingResult, ""); err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}

	// Marker insertion is best-effort; the processor falls back to its input.
	markedText := s.marker.AddPageMarkers(result.Text)
	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 55, domain.StepAddingPageMarkers, ""); err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}

	if handler.CollectsArtifacts() && len(result.PageImageURLs) > 0 {
		if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 60, domain.StepDownloadingArtifacts, ""); err != nil {
			return false, fmt.Errorf("status update failed: %w", err)
		}
		if err := handler.CollectArtifacts(ctx, doc, result); err != nil {
			log.Printf("Artifact capture failed for document %s, continuing: %v", doc.ID, err)
		}
		if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 65, domain.StepUploadingArtifacts, ""); err != nil {
			return false, fmt.Errorf("status update failed: %w", err)
		}
	}

	processedPath := storage.ObjectPath(doc.GroupID, doc.SubCollectionID, processedTextName(doc))
	if err := s.storage.Upload(ctx, processedPath, []byte(markedText), "text/markdown"); err != nil {
		return false, fmt.Errorf("failed to upload processed text: %w", err)
	}
	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 70, domain.StepUploadingProcessedText, ""); err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}

	externalFileID, err := s.assistant.UploadRetrievableFile(ctx, processedTextName(doc), []byte(markedText))
	if err != nil {
		return false, fmt.Errorf("failed to register processed text with assistant: %w", err)
	}
	pageCount := result.PageCount
	if pageCount == 0 {
		pageCount = len(splitPages(result.Text))
	}
	if err := s.docs.SetProcessedArtifacts(ctx, doc.ID, processedPath, externalFileID, pageCount); err != nil {
		return false, fmt.Errorf("failed to record processed artifacts: %w", err)
	}
	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 90, domain.StepRegisteringWithAssistant, ""); err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}

	// Semantic search chunks from the raw provider text, not the
	// marker-enriched assistant copy. Vectorization is additive: a failure
	// here leaves assistant retrieval intact.
	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 95, domain.StepVectorizing, ""); err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}
	if count, err := s.vectorizer.VectorizeDocument(ctx, doc, result.Text); err != nil {
		log.Printf("Vectorization failed for document %s, continuing: %v", doc.ID, err)
	} else {
		log.Printf("Vectorized document %s into %d chunks", doc.ID, count)
	}

	if err := s.jobs.MarkCompleted(ctx, job.ID); err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusReady); err != nil {
		return false, fmt.Errorf("document status update failed: %w", err)
	}

	return true, nil
}

func processedTextName(doc *domain.Document) string {
	base := strings.TrimSuffix(doc.Filename, path.Ext(doc.Filename))
	return base + "_processed.md"
}

// standardStrategy parses through the external provider.
type standardStrategy struct {
	provider ParsingProviderInterface
}

func (s *standardStrategy) Submit(ctx context.Context, doc *domain.Document, content []byte) (string, error) {
	return s.provider.Submit(ctx, content, doc.Filename)
}

func (s *standardStrategy) Await(ctx context.Context, doc *domain.Document, providerJobID string) (*AwaitOutcome, error) {
	if providerJobID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "job has no provider job id")
	}

	status, err := s.provider.PollStatus(ctx, providerJobID)
	if err != nil {
		return nil, fmt.Errorf("provider status poll failed: %w", err)
	}

	switch status.Status {
	case parser.StatusFailed:
		msg := status.Error
		if msg == "" {
			msg = "parsing provider reported failure"
		}
		return nil, domain.NewDomainError(domain.ErrCodeProvider, msg)
	case parser.StatusSuccess:
		result, err := s.provider.FetchResult(ctx, providerJobID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch parse result: %w", err)
		}
		return &AwaitOutcome{Done: true, Result: result}, nil
	default:
		return &AwaitOutcome{Status: status}, nil
	}
}

func (s *standardStrategy) CollectsArtifacts() bool { return false }

func (s *standardStrategy) CollectArtifacts(ctx context.Context, doc *domain.Document, result *parser.Result) error {
	return nil
}

// enhancedStrategy parses through the provider and also captures per-page
// image artifacts when the provider rendered them.
type enhancedStrategy struct {
	*standardStrategy
	provider ParsingProviderInterface
	storage  StorageClientInterface
}

func (s *enhancedStrategy) CollectsArtifacts() bool { return true }

func (s *enhancedStrategy) CollectArtifacts(ctx context.Context, doc *domain.Document, result *parser.Result) error {
	for i, url := range result.PageImageURLs {
		content, err := s.provider.DownloadArtifact(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to download page image %d: %w", i+1, err)
		}
		key := storage.ObjectPath(doc.GroupID, doc.SubCollectionID,
			fmt.Sprintf("%s_page_%d.png", doc.ID, i+1))
		if err := s.storage.Upload(ctx, key, content, "image/png"); err != nil {
			return fmt.Errorf("failed to upload page image %d: %w", i+1, err)
		}
	}
	return nil
}

// localStrategy extracts text in-process without the external provider.
// Submit is a no-op; Await reads the stored original and extracts
// immediately.
type localStrategy struct {
	storage StorageClientInterface
}

func (s *localStrategy) Submit(ctx context.Context, doc *domain.Document, content []byte) (string, error) {
	return "", nil
}

func (s *localStrategy) Await(ctx context.Context, doc *domain.Document, providerJobID string) (*AwaitOutcome, error) {
	content, err := s.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to download original document: %w", err)
	}

	text, pageCount, err := extract.Text(content, doc.Filename)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "local extraction failed", err)
	}

	return &AwaitOutcome{
		Done:   true,
		Result: &parser.Result{Text: text, PageCount: pageCount},
	}, nil
}

func (s *localStrategy) CollectsArtifacts() bool { return false }

func (s *localStrategy) CollectArtifacts(ctx context.Context, doc *domain.Document, result *parser.Result) error {
	return nil
}
