package service

import (
	"context"
	"errors"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
)

// DocumentStatusView is the read-only status projection exposed to polling
// clients: the document record plus its most recent job, if any.
type DocumentStatusView struct {
	Document *domain.Document
	Job      *domain.IngestionJob
}

// StatusService serves job status polling for documents and groups.
type StatusService struct {
	docs DocumentRepositoryInterface
	jobs IngestionJobRepositoryInterface
}

func NewStatusService(docs DocumentRepositoryInterface, jobs IngestionJobRepositoryInterface) *StatusService {
	return &StatusService{docs: docs, jobs: jobs}
}

// DocumentStatus returns the document and its latest job. A document with no
// job yet is still reported; Job is nil in that case.
func (s *StatusService) DocumentStatus(ctx context.Context, documentID string) (*DocumentStatusView, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.GetLatestByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return &DocumentStatusView{Document: doc}, nil
		}
		return nil, err
	}

	return &DocumentStatusView{Document: doc, Job: job}, nil
}

// GroupDocuments lists a group's documents, optionally narrowed to a
// sub-collection, oldest first.
func (s *StatusService) GroupDocuments(ctx context.Context, groupID, subCollectionID string) ([]*domain.Document, error) {
	if groupID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "group id is required")
	}
	return s.docs.ListByGroup(ctx, groupID, subCollectionID)
}

// GroupStatus returns aggregate job counts for a group/sub-collection.
func (s *StatusService) GroupStatus(ctx context.Context, groupID, subCollectionID string) (*domain.BatchStatus, error) {
	if groupID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "group id is required")
	}
	return s.jobs.GroupBatchStatus(ctx, groupID, subCollectionID)
}
