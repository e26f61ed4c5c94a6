package service

import (
	"context"
	"testing"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func snippetDoc(id, filename, externalFileID string) *domain.Document {
	doc := testDoc()
	doc.ID = id
	doc.Filename = filename
	doc.ExternalFileID = externalFileID
	return doc
}

func TestCitationService_ExtractCitations(t *testing.T) {
	ctx := context.Background()

	t.Run("groups snippets by file with page range and max score", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		docs.On("GetByExternalFileID", ctx, "file-a").
			Return(snippetDoc("doc-1", "stems.pdf", "file-a"), nil)
		svc := NewCitationService(docs)

		citations, err := svc.ExtractCitations(ctx, []domain.RetrievedSnippet{
			{ExternalFileID: "file-a", Text: "Stem offsets\n<<3>>\n", Score: 0.61},
			{ExternalFileID: "file-a", Text: "Stem materials\n<<5>>\n", Score: 0.84},
		})

		require.NoError(t, err)
		require.Len(t, citations, 1)
		assert.Equal(t, "doc-1", citations[0].DocumentID)
		assert.Equal(t, "stems.pdf", citations[0].Filename)
		assert.Equal(t, 3, citations[0].PageStart)
		assert.Equal(t, 5, citations[0].PageEnd)
		assert.InDelta(t, 0.84, citations[0].Score, 1e-9)
	})

	t.Run("recognizes both marker conventions", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		docs.On("GetByExternalFileID", ctx, "file-a").
			Return(snippetDoc("doc-1", "stems.pdf", "file-a"), nil)
		svc := NewCitationService(docs)

		citations, err := svc.ExtractCitations(ctx, []domain.RetrievedSnippet{
			{ExternalFileID: "file-a", Text: "--- Page 2 ---\nSizing table", Score: 0.5},
			{ExternalFileID: "file-a", Text: "Torque values\n<<7>>", Score: 0.4},
		})

		require.NoError(t, err)
		require.Len(t, citations, 1)
		assert.Equal(t, 2, citations[0].PageStart)
		assert.Equal(t, 7, citations[0].PageEnd)
	})

	t.Run("skips snippets whose file id resolves to no document", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		docs.On("GetByExternalFileID", ctx, "file-known").
			Return(snippetDoc("doc-1", "stems.pdf", "file-known"), nil)
		docs.On("GetByExternalFileID", ctx, "file-unknown").
			Return(nil, domain.ErrDocumentNotFound)
		svc := NewCitationService(docs)

		citations, err := svc.ExtractCitations(ctx, []domain.RetrievedSnippet{
			{ExternalFileID: "file-unknown", Text: "orphan\n<<1>>", Score: 0.9},
			{ExternalFileID: "file-known", Text: "kept\n<<4>>", Score: 0.3},
		})

		require.NoError(t, err)
		require.Len(t, citations, 1)
		assert.Equal(t, "doc-1", citations[0].DocumentID)
	})

	t.Run("drops files whose snippets carry no page marker", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		svc := NewCitationService(docs)

		citations, err := svc.ExtractCitations(ctx, []domain.RetrievedSnippet{
			{ExternalFileID: "file-a", Text: "no markers here", Score: 0.75},
			{ExternalFileID: "", Text: "anonymous\n<<2>>", Score: 0.8},
		})

		require.NoError(t, err)
		assert.Empty(t, citations)
		docs.AssertNotCalled(t, "GetByExternalFileID", mock.Anything, mock.Anything)
	})

	t.Run("orders citations by score descending", func(t *testing.T) {
		docs := new(MockDocumentRepo)
		docs.On("GetByExternalFileID", ctx, "file-a").
			Return(snippetDoc("doc-1", "stems.pdf", "file-a"), nil)
		docs.On("GetByExternalFileID", ctx, "file-b").
			Return(snippetDoc("doc-2", "trays.pdf", "file-b"), nil)
		svc := NewCitationService(docs)

		citations, err := svc.ExtractCitations(ctx, []domain.RetrievedSnippet{
			{ExternalFileID: "file-a", Text: "weak\n<<1>>", Score: 0.2},
			{ExternalFileID: "file-b", Text: "strong\n<<9>>", Score: 0.95},
		})

		require.NoError(t, err)
		require.Len(t, citations, 2)
		assert.Equal(t, "doc-2", citations[0].DocumentID)
		assert.Equal(t, "doc-1", citations[1].DocumentID)
	})
}

func TestExtractPageNumbers(t *testing.T) {
	assert.Empty(t, extractPageNumbers("plain text"))
	assert.Equal(t, []int{12}, extractPageNumbers("intro\n<<12>>\noutro"))
	assert.Equal(t, []int{4}, extractPageNumbers("--- Page 4 ---\nbody"))
	assert.Equal(t, []int{3}, extractPageNumbers("<<3>>\n--- Page 3 ---"))
	assert.Empty(t, extractPageNumbers("<<0>>"))
}
