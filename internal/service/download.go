package service

import (
	"context"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/DylanDHubert/edu-sub002/internal/storage"
)

// StorageSigner issues presigned access to stored document artifacts.
type StorageSigner interface {
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
}

// DownloadKind selects which stored artifact of a document to link.
type DownloadKind string

const (
	DownloadKindOriginal  DownloadKind = "original"
	DownloadKindProcessed DownloadKind = "processed"
)

// DownloadLink is a time-limited URL to a stored artifact plus the object
// metadata a client needs to fetch it.
type DownloadLink struct {
	URL           string
	ContentType   string
	ContentLength int64
}

// DownloadService issues presigned download links for document artifacts.
type DownloadService struct {
	docs    DocumentRepositoryInterface
	storage StorageSigner
}

func NewDownloadService(docs DocumentRepositoryInterface, storage StorageSigner) *DownloadService {
	return &DownloadService{docs: docs, storage: storage}
}

// DocumentDownloadURL returns a presigned link to a document's original
// upload or its processed text. The object is verified to exist before the
// link is issued.
func (s *DownloadService) DocumentDownloadURL(ctx context.Context, documentID string, kind DownloadKind) (*DownloadLink, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var key string
	switch kind {
	case DownloadKindOriginal, "":
		key = doc.StoragePath
	case DownloadKindProcessed:
		key = doc.ProcessedTextPath
	default:
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "unknown download kind: "+string(kind))
	}
	if key == "" {
		return nil, domain.NewDomainError(domain.ErrCodeNotFound, "document has no stored artifact of that kind")
	}

	meta, err := s.storage.HeadObject(ctx, key)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "stored artifact is not available", err)
	}

	url, err := s.storage.GenerateDownloadURL(ctx, key)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, "failed to generate download URL", err)
	}

	return &DownloadLink{
		URL:           url,
		ContentType:   meta.ContentType,
		ContentLength: meta.ContentLength,
	}, nil
}
