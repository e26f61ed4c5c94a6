package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/api"
	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/DylanDHubert/edu-sub002/internal/service"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 50 * 1024 * 1024

type IngestionServiceInterface interface {
	SubmitDocument(ctx context.Context, input service.SubmitDocumentInput) (*domain.Document, *domain.IngestionJob, error)
	RetryJob(ctx context.Context, jobID string) (*domain.IngestionJob, error)
}

type StatusServiceInterface interface {
	DocumentStatus(ctx context.Context, documentID string) (*service.DocumentStatusView, error)
	GroupStatus(ctx context.Context, groupID, subCollectionID string) (*domain.BatchStatus, error)
	GroupDocuments(ctx context.Context, groupID, subCollectionID string) ([]*domain.Document, error)
}

type DownloadServiceInterface interface {
	DocumentDownloadURL(ctx context.Context, documentID string, kind service.DownloadKind) (*service.DownloadLink, error)
}

type DocumentHandler struct {
	ingestion IngestionServiceInterface
	status    StatusServiceInterface
	download  DownloadServiceInterface
}

func NewDocumentHandler(ingestion IngestionServiceInterface, status StatusServiceInterface, download DownloadServiceInterface) *DocumentHandler {
	return &DocumentHandler{ingestion: ingestion, status: status, download: download}
}

type DocumentResponse struct {
	ID              string `json:"id"`
	GroupID         string `json:"group_id"`
	SubCollectionID string `json:"sub_collection_id,omitempty"`
	Filename        string `json:"filename"`
	Status          string `json:"status"`
	Strategy        string `json:"strategy"`
	ExternalFileID  string `json:"external_file_id,omitempty"`
	PageCount       int    `json:"page_count,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type JobResponse struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Step        string `json:"step,omitempty"`
	Error       string `json:"error,omitempty"`
	RetryCount  int32  `json:"retry_count"`
	MaxRetries  int32  `json:"max_retries"`
	CreatedAt   string `json:"created_at"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type SubmitDocumentResponse struct {
	Document *DocumentResponse `json:"document"`
	Job      *JobResponse      `json:"job"`
}

type DocumentStatusResponse struct {
	Document *DocumentResponse `json:"document"`
	Job      *JobResponse      `json:"job,omitempty"`
}

type GroupStatusResponse struct {
	Total      int  `json:"total"`
	Pending    int  `json:"pending"`
	Processing int  `json:"processing"`
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	IsComplete bool `json:"is_complete"`
}

type GroupDocumentsResponse struct {
	Documents []*DocumentResponse `json:"documents"`
}

type DownloadLinkResponse struct {
	URL           string `json:"url"`
	ContentType   string `json:"content_type,omitempty"`
	ContentLength int64  `json:"content_length,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:              d.ID,
		GroupID:         d.GroupID,
		SubCollectionID: d.SubCollectionID,
		Filename:        d.Filename,
		Status:          string(d.Status),
		Strategy:        string(d.Strategy),
		ExternalFileID:  d.ExternalFileID,
		PageCount:       d.PageCount,
		CreatedAt:       d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func jobToResponse(j *domain.IngestionJob) *JobResponse {
	resp := &JobResponse{
		ID:         j.ID,
		DocumentID: j.DocumentID,
		Status:     string(j.Status),
		Progress:   j.Progress,
		Step:       j.Step,
		Error:      j.Error,
		RetryCount: j.RetryCount,
		MaxRetries: j.MaxRetries,
		CreatedAt:  j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		resp.StartedAt = j.StartedAt.UTC().Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Submit accepts a multipart document upload and queues it for ingestion.
func (h *DocumentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	groupID := r.FormValue("group_id")
	if groupID == "" {
		api.Error(w, http.StatusBadRequest, "group_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	doc, job, err := h.ingestion.SubmitDocument(r.Context(), service.SubmitDocumentInput{
		GroupID:         groupID,
		SubCollectionID: r.FormValue("sub_collection_id"),
		Filename:        header.Filename,
		ContentType:     header.Header.Get("Content-Type"),
		Strategy:        domain.IngestionStrategy(r.FormValue("strategy")),
		Content:         content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, SubmitDocumentResponse{
		Document: documentToResponse(doc),
		Job:      jobToResponse(job),
	})
}

// Status returns a document and its latest ingestion job.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	view, err := h.status.DocumentStatus(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := DocumentStatusResponse{Document: documentToResponse(view.Document)}
	if view.Job != nil {
		resp.Job = jobToResponse(view.Job)
	}
	api.Success(w, http.StatusOK, resp)
}

// Retry re-enters a document's latest failed job into the queue.
func (h *DocumentHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	view, err := h.status.DocumentStatus(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if view.Job == nil {
		api.HandleError(w, domain.ErrJobNotFound)
		return
	}

	job, err := h.ingestion.RetryJob(r.Context(), view.Job.ID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, jobToResponse(job))
}

// Download returns a presigned URL for a document's stored artifact. The
// kind query selects the original upload (default) or the processed text.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	link, err := h.download.DocumentDownloadURL(r.Context(), id, service.DownloadKind(r.URL.Query().Get("kind")))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadLinkResponse{
		URL:           link.URL,
		ContentType:   link.ContentType,
		ContentLength: link.ContentLength,
	})
}

// GroupDocuments lists a group's documents.
func (h *DocumentHandler) GroupDocuments(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		api.Error(w, http.StatusBadRequest, "group id is required")
		return
	}

	docs, err := h.status.GroupDocuments(r.Context(), groupID, r.URL.Query().Get("sub_collection_id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := GroupDocumentsResponse{Documents: make([]*DocumentResponse, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, documentToResponse(d))
	}
	api.Success(w, http.StatusOK, resp)
}

// GroupStatus returns aggregate ingestion counts for a group.
func (h *DocumentHandler) GroupStatus(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		api.Error(w, http.StatusBadRequest, "group id is required")
		return
	}

	batch, err := h.status.GroupStatus(r.Context(), groupID, r.URL.Query().Get("sub_collection_id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, GroupStatusResponse{
		Total:      batch.Total,
		Pending:    batch.Pending,
		Processing: batch.Processing,
		Completed:  batch.Completed,
		Failed:     batch.Failed,
		IsComplete: batch.IsComplete,
	})
}
