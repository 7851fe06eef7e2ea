package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestEmptyContent(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow(7))
	mock.ExpectCommit()

	ingestor := NewIngestor(gdb, NewChunker(1500, 200), staticResolver(nil), &fakeVectorStore{}, nil)

	meta, err := ingestor.Ingest(context.Background(), 1, "empty.md", "other", "   \n\n  ")
	require.NoError(t, err)

	// 空白内容建档但不产生分块
	assert.Equal(t, uint(7), meta.DocumentID)
	assert.Equal(t, 0, meta.ChunkCount)
	assert.False(t, meta.HasEmbeddings)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestWithEmbeddings(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow(3))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "document_chunks"`).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id"}).AddRow(31))
	mock.ExpectCommit()

	store := &fakeVectorStore{}
	ingestor := NewIngestor(gdb, NewChunker(1500, 200), staticResolver(&EmbeddingConfig{APIKey: "k"}), store, nil)
	ingestor.SetEmbedderFactory(embedderFactoryFor(&fakeEmbedder{vector: []float32{0.1, 0.2}}))

	meta, err := ingestor.Ingest(context.Background(), 1, "standards.md", "coding_standards", "短文档内容")
	require.NoError(t, err)

	assert.Equal(t, uint(3), meta.DocumentID)
	assert.Equal(t, 1, meta.ChunkCount)
	assert.True(t, meta.HasEmbeddings)

	// 事务提交后向量写入排序存储
	require.Len(t, store.upserts, 1)
	assert.Equal(t, uint(31), store.upserts[0].ChunkID)
	assert.Equal(t, uint(3), store.upserts[0].DocumentID)
	assert.Equal(t, []float32{0.1, 0.2}, store.upserts[0].Embedding)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestEmbeddingFailureIsAbsorbed(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow(4))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "document_chunks"`).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id"}).AddRow(41))
	mock.ExpectCommit()

	store := &fakeVectorStore{}
	ingestor := NewIngestor(gdb, NewChunker(1500, 200), staticResolver(&EmbeddingConfig{APIKey: "k"}), store, nil)
	ingestor.SetEmbedderFactory(embedderFactoryFor(&fakeEmbedder{err: errors.New("provider down")}))

	meta, err := ingestor.Ingest(context.Background(), 1, "doc.md", "other", "仍然入库的内容")
	require.NoError(t, err)

	// 嵌入失败吸收为无向量存储，分块照常落库
	assert.Equal(t, 1, meta.ChunkCount)
	assert.False(t, meta.HasEmbeddings)
	assert.Empty(t, store.upserts)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestWithoutEmbeddingConfig(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow(5))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "document_chunks"`).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id"}).AddRow(51))
	mock.ExpectCommit()

	ingestor := NewIngestor(gdb, NewChunker(1500, 200), staticResolver(nil), &fakeVectorStore{}, nil)

	meta, err := ingestor.Ingest(context.Background(), 1, "doc.md", "other", "没有嵌入配置的内容")
	require.NoError(t, err)

	assert.Equal(t, 1, meta.ChunkCount)
	assert.False(t, meta.HasEmbeddings)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbedChunksCountMismatch(t *testing.T) {
	gdb, _ := newMockDB(t)

	ingestor := NewIngestor(gdb, NewChunker(1500, 200), staticResolver(&EmbeddingConfig{APIKey: "k"}), nil, nil)
	ingestor.SetEmbedderFactory(func(cfg EmbeddingConfig) Embedder {
		return &truncatingEmbedder{}
	})

	vectors := ingestor.embedChunks(context.Background(), 1, []string{"a", "b", "c"})
	assert.Nil(t, vectors)
}

// truncatingEmbedder 返回数量不匹配的结果
type truncatingEmbedder struct{}

func (e *truncatingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func (e *truncatingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (e *truncatingEmbedder) Dimensions() int { return 1 }
func (e *truncatingEmbedder) Ready() bool     { return true }

func TestIngestNormalizesDocumentType(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow(6))
	mock.ExpectCommit()

	ingestor := NewIngestor(gdb, NewChunker(1500, 200), staticResolver(nil), nil, nil)

	meta, err := ingestor.Ingest(context.Background(), 1, "doc.md", "nonsense-type", strings.Repeat(" ", 3))
	require.NoError(t, err)
	assert.Equal(t, uint(6), meta.DocumentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
