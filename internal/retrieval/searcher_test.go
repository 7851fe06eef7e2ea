package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

// fakeEmbedder 固定向量的Embedder
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = f.vector
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }
func (f *fakeEmbedder) Ready() bool     { return true }

// fakeVectorStore 内存向量存储
type fakeVectorStore struct {
	matches   []SearchMatch
	searchErr error
	upserts   []VectorChunk
	deleted   []uint
	lastReq   VectorSearchRequest
}

func (f *fakeVectorStore) UpsertChunk(ctx context.Context, chunk VectorChunk) (string, error) {
	f.upserts = append(f.upserts, chunk)
	return "fake", nil
}

func (f *fakeVectorStore) DeleteDocument(ctx context.Context, ownerID uint, documentID uint) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	f.lastReq = req
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.matches, nil
}

func (f *fakeVectorStore) SupportsRanking() bool { return true }
func (f *fakeVectorStore) Ready() bool           { return true }

func staticResolver(cfg *EmbeddingConfig) EmbeddingConfigResolver {
	return &StaticConfigResolver{Config: cfg}
}

func embedderFactoryFor(embedder Embedder) EmbedderFactory {
	return func(cfg EmbeddingConfig) Embedder { return embedder }
}

func TestSearchVectorPath(t *testing.T) {
	gdb, mock := newMockDB(t)

	store := &fakeVectorStore{
		matches: []SearchMatch{
			{ChunkID: 2, DocumentID: 10, Content: "chunk two", Score: 0.9},
			{ChunkID: 1, DocumentID: 11, Content: "chunk one", Score: 0.8},
		},
	}
	searcher := NewSearcher(gdb, staticResolver(&EmbeddingConfig{APIKey: "k"}), store, nil)
	searcher.SetEmbedderFactory(embedderFactoryFor(&fakeEmbedder{vector: []float32{1, 0}}))

	mock.ExpectQuery(`SELECT "document_id","name","type" FROM "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "name", "type"}).
			AddRow(10, "Coding Standards", "coding_standards").
			AddRow(11, "API Spec", "api_spec"))

	chunks, err := searcher.Search(context.Background(), 1, "query", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// 结果顺序与向量存储返回一致，文档信息已补全
	assert.Equal(t, "chunk two", chunks[0].Content)
	assert.Equal(t, "Coding Standards", chunks[0].DocumentName)
	assert.Equal(t, "coding_standards", chunks[0].DocumentType)
	assert.InDelta(t, 0.9, chunks[0].Similarity, 1e-9)
	assert.Equal(t, "API Spec", chunks[1].DocumentName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchFallbackWithoutEmbeddingConfig(t *testing.T) {
	gdb, mock := newMockDB(t)

	searcher := NewSearcher(gdb, staticResolver(nil), &fakeVectorStore{}, nil)

	mock.ExpectQuery(`SELECT document_chunks.content, reference_documents.name, reference_documents.type FROM "document_chunks"`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "name", "type"}).
			AddRow("newest chunk", "DB Schema", "db_schema").
			AddRow("older chunk", "Other Doc", "other"))

	chunks, err := searcher.Search(context.Background(), 1, "query", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// 回退路径相似度统一为1.0，顺序保持查询排序
	assert.Equal(t, "newest chunk", chunks[0].Content)
	assert.Equal(t, 1.0, chunks[0].Similarity)
	assert.Equal(t, 1.0, chunks[1].Similarity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchFallbackOnVectorStoreError(t *testing.T) {
	gdb, mock := newMockDB(t)

	store := &fakeVectorStore{searchErr: errors.New("milvus unavailable")}
	searcher := NewSearcher(gdb, staticResolver(&EmbeddingConfig{APIKey: "k"}), store, nil)
	searcher.SetEmbedderFactory(embedderFactoryFor(&fakeEmbedder{vector: []float32{1, 0}}))

	mock.ExpectQuery(`SELECT document_chunks.content, reference_documents.name, reference_documents.type FROM "document_chunks"`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "name", "type"}).
			AddRow("fallback chunk", "Doc", "other"))

	chunks, err := searcher.Search(context.Background(), 1, "query", 5)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1.0, chunks[0].Similarity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchFallbackOnEmbeddingError(t *testing.T) {
	gdb, mock := newMockDB(t)

	searcher := NewSearcher(gdb, staticResolver(&EmbeddingConfig{APIKey: "k"}), &fakeVectorStore{}, nil)
	searcher.SetEmbedderFactory(embedderFactoryFor(&fakeEmbedder{err: errors.New("rate limited")}))

	mock.ExpectQuery(`SELECT document_chunks.content`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "name", "type"}))

	chunks, err := searcher.Search(context.Background(), 1, "query", 5)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchUsesConfiguredTopK(t *testing.T) {
	gdb, _ := newMockDB(t)

	store := &fakeVectorStore{}
	searcher := NewSearcher(gdb, staticResolver(&EmbeddingConfig{APIKey: "k"}), store, nil)
	searcher.SetEmbedderFactory(embedderFactoryFor(&fakeEmbedder{vector: []float32{1, 0}}))
	searcher.SetSearchTopK(7)

	// 调用方未指定topK时用配置值
	_, err := searcher.Search(context.Background(), 1, "query", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, store.lastReq.Limit)

	// 显式topK优先
	_, err = searcher.Search(context.Background(), 1, "query", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, store.lastReq.Limit)
}

func TestSearchEmptyVectorResult(t *testing.T) {
	gdb, _ := newMockDB(t)

	searcher := NewSearcher(gdb, staticResolver(&EmbeddingConfig{APIKey: "k"}), &fakeVectorStore{}, nil)
	searcher.SetEmbedderFactory(embedderFactoryFor(&fakeEmbedder{vector: []float32{1}}))

	chunks, err := searcher.Search(context.Background(), 1, "query", 5)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
