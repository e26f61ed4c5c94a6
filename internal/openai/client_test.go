package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingAPI is a mock implementation of EmbeddingAPI
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockFileAPI is a mock implementation of FileAPI
type MockFileAPI struct {
	mock.Mock
}

func (m *MockFileAPI) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	args := m.Called(ctx, filename, content)
	return args.String(0), args.Error(1)
}

func testEmbedding(dims int) []float32 {
	embedding := make([]float32, dims)
	for i := range embedding {
		embedding[i] = float32(i) * 0.001
	}
	return embedding
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	embedding := testEmbedding(1536)

	mockAPI.On("CreateEmbeddings", ctx, []string{"hello"}).Return([][]float32{embedding}, nil)

	result, err := client.GenerateEmbedding(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, embedding, result)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := &Client{api: new(MockEmbeddingAPI), dimensions: DefaultEmbeddingDimensions}

	_, err := client.GenerateEmbedding(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestClient_GenerateEmbeddings_Batch(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	texts := []string{"chunk one", "chunk two", "chunk three"}
	embeddings := [][]float32{testEmbedding(1536), testEmbedding(1536), testEmbedding(1536)}

	mockAPI.On("CreateEmbeddings", ctx, texts).Return(embeddings, nil)

	result, err := client.GenerateEmbeddings(ctx, texts)
	require.NoError(t, err)
	assert.Len(t, result, 3)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbeddings_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"short"}).Return([][]float32{testEmbedding(3)}, nil)

	_, err := client.GenerateEmbeddings(ctx, []string{"short"})
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_GenerateEmbeddings_APIError(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := client.GenerateEmbeddings(ctx, []string{"text"})
	assert.ErrorContains(t, err, "rate limited")
}

func TestClient_UploadRetrievableFile(t *testing.T) {
	mockFiles := new(MockFileAPI)
	client := &Client{files: mockFiles, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	content := []byte("--- Page 1 ---\nprocessed text")

	mockFiles.On("UploadFile", ctx, "report.md", content).Return("file-abc", nil)

	fileID, err := client.UploadRetrievableFile(ctx, "report.md", content)
	require.NoError(t, err)
	assert.Equal(t, "file-abc", fileID)
	mockFiles.AssertExpectations(t)
}

func TestClient_UploadRetrievableFile_Empty(t *testing.T) {
	client := &Client{files: new(MockFileAPI), dimensions: DefaultEmbeddingDimensions}

	_, err := client.UploadRetrievableFile(context.Background(), "report.md", nil)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNewClientFromEnv_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewClientFromEnv()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
