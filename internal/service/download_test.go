package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/DylanDHubert/edu-sub002/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStorageSigner struct {
	mock.Mock
}

func (m *MockStorageSigner) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStorageSigner) HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.ObjectMetadata), args.Error(1)
}

func downloadableDoc() *domain.Document {
	doc := domain.NewDocument("doc-1", "group-1", "sub-1", "manual.pdf", "application/pdf",
		domain.StrategyStandard, "group-1/sub-1/manual.pdf", time.Now().UTC())
	doc.ProcessedTextPath = "group-1/sub-1/doc-1_processed.md"
	return doc
}

func TestDownloadService_DocumentDownloadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("links the original by default", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		signer := new(MockStorageSigner)
		svc := NewDownloadService(docs, signer)

		docs.On("GetByID", ctx, "doc-1").Return(downloadableDoc(), nil)
		signer.On("HeadObject", ctx, "group-1/sub-1/manual.pdf").
			Return(&storage.ObjectMetadata{ContentLength: 1024, ContentType: "application/pdf"}, nil)
		signer.On("GenerateDownloadURL", ctx, "group-1/sub-1/manual.pdf").
			Return("https://s3.local/manual.pdf?sig=abc", nil)

		link, err := svc.DocumentDownloadURL(ctx, "doc-1", "")
		require.NoError(t, err)
		assert.Equal(t, "https://s3.local/manual.pdf?sig=abc", link.URL)
		assert.Equal(t, "application/pdf", link.ContentType)
		assert.Equal(t, int64(1024), link.ContentLength)
		signer.AssertExpectations(t)
	})

	t.Run("links the processed text when asked", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		signer := new(MockStorageSigner)
		svc := NewDownloadService(docs, signer)

		docs.On("GetByID", ctx, "doc-1").Return(downloadableDoc(), nil)
		signer.On("HeadObject", ctx, "group-1/sub-1/doc-1_processed.md").
			Return(&storage.ObjectMetadata{ContentType: "text/markdown"}, nil)
		signer.On("GenerateDownloadURL", ctx, "group-1/sub-1/doc-1_processed.md").
			Return("https://s3.local/doc-1_processed.md?sig=abc", nil)

		link, err := svc.DocumentDownloadURL(ctx, "doc-1", DownloadKindProcessed)
		require.NoError(t, err)
		assert.Equal(t, "https://s3.local/doc-1_processed.md?sig=abc", link.URL)
	})

	t.Run("document without processed text is not found", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		signer := new(MockStorageSigner)
		svc := NewDownloadService(docs, signer)

		doc := downloadableDoc()
		doc.ProcessedTextPath = ""
		docs.On("GetByID", ctx, "doc-1").Return(doc, nil)

		_, err := svc.DocumentDownloadURL(ctx, "doc-1", DownloadKindProcessed)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeNotFound, domainErr.Code)
		signer.AssertNotCalled(t, "GenerateDownloadURL", mock.Anything, mock.Anything)
	})

	t.Run("rejects an unknown kind", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		svc := NewDownloadService(docs, new(MockStorageSigner))

		docs.On("GetByID", ctx, "doc-1").Return(downloadableDoc(), nil)

		_, err := svc.DocumentDownloadURL(ctx, "doc-1", "thumbnail")
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	})

	t.Run("missing object maps to not found", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		signer := new(MockStorageSigner)
		svc := NewDownloadService(docs, signer)

		docs.On("GetByID", ctx, "doc-1").Return(downloadableDoc(), nil)
		signer.On("HeadObject", ctx, "group-1/sub-1/manual.pdf").
			Return(nil, errors.New("NotFound: head object failed"))

		_, err := svc.DocumentDownloadURL(ctx, "doc-1", DownloadKindOriginal)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeNotFound, domainErr.Code)
		signer.AssertNotCalled(t, "GenerateDownloadURL", mock.Anything, mock.Anything)
	})

	t.Run("unknown document propagates", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		svc := NewDownloadService(docs, new(MockStorageSigner))

		docs.On("GetByID", ctx, "nope").Return(nil, domain.ErrDocumentNotFound)

		_, err := svc.DocumentDownloadURL(ctx, "nope", "")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}
