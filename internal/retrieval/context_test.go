package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache 内存上下文缓存
type memoryCache struct {
	entries map[string]string
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, bool) {
	val, ok := c.entries[key]
	return val, ok
}

func (c *memoryCache) Set(ctx context.Context, key string, value string) {
	c.entries[key] = value
	c.sets++
}

func (c *memoryCache) Invalidate(ctx context.Context, ownerID uint) {
	prefix := ContextCacheKeyPrefix(ownerID)
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func expectDocumentCount(mock sqlmock.Sqlmock, count int) {
	mock.ExpectQuery(`SELECT count\(\*\) FROM "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestBuildContextNoDocuments(t *testing.T) {
	gdb, mock := newMockDB(t)

	expectDocumentCount(mock, 0)

	searcher := NewSearcher(gdb, staticResolver(nil), &fakeVectorStore{}, nil)

	result := searcher.BuildContext(context.Background(), 1, []string{"index.php"})
	assert.Equal(t, "", result)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildContextGroupsByDocument(t *testing.T) {
	gdb, mock := newMockDB(t)

	expectDocumentCount(mock, 2)

	store := &fakeVectorStore{
		matches: []SearchMatch{
			{ChunkID: 1, DocumentID: 10, Content: "use hooks", Score: 0.95},
			{ChunkID: 2, DocumentID: 11, Content: "users table", Score: 0.90},
			{ChunkID: 3, DocumentID: 10, Content: "no class components", Score: 0.85},
		},
	}
	searcher := NewSearcher(gdb, staticResolver(&EmbeddingConfig{APIKey: "k"}), store, nil)
	searcher.SetEmbedderFactory(embedderFactoryFor(&fakeEmbedder{vector: []float32{1}}))

	mock.ExpectQuery(`SELECT "document_id","name","type" FROM "reference_documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "name", "type"}).
			AddRow(10, "Standards", "coding_standards").
			AddRow(11, "Schema", "db_schema"))

	result := searcher.BuildContext(context.Background(), 1, []string{"index.php", "user.php"})

	require.NotEmpty(t, result)
	assert.True(t, strings.HasPrefix(result, "## Reference Documents (User-Provided Context)\n"))
	assert.Contains(t, result, "Follow these guidelines strictly:")

	// 同一文档的分块归入同一分组，以首次命中顺序排列
	standardsIdx := strings.Index(result, "### Standards (coding_standards)")
	schemaIdx := strings.Index(result, "### Schema (db_schema)")
	require.GreaterOrEqual(t, standardsIdx, 0)
	require.GreaterOrEqual(t, schemaIdx, 0)
	assert.Less(t, standardsIdx, schemaIdx)

	// 组内分块用分隔线连接
	assert.Contains(t, result, "use hooks\n\n---\n\nno class components")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildContextUsesCache(t *testing.T) {
	gdb, mock := newMockDB(t)

	cache := newMemoryCache()
	searcher := NewSearcher(gdb, staticResolver(nil), &fakeVectorStore{}, nil)
	searcher.SetContextCache(cache)

	// 第一次：回退检索，结果写入缓存
	expectDocumentCount(mock, 1)
	mock.ExpectQuery(`SELECT document_chunks.content`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "name", "type"}).
			AddRow("cached chunk", "Doc", "other"))

	first := searcher.BuildContext(context.Background(), 1, []string{"page.php"})
	require.NotEmpty(t, first)
	assert.Equal(t, 1, cache.sets)

	// 第二次：同样的查询命中缓存，不再检索
	expectDocumentCount(mock, 1)

	second := searcher.BuildContext(context.Background(), 1, []string{"page.php"})
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildContextAfterInvalidate(t *testing.T) {
	gdb, mock := newMockDB(t)

	cache := newMemoryCache()
	searcher := NewSearcher(gdb, staticResolver(nil), &fakeVectorStore{}, nil)
	searcher.SetContextCache(cache)

	expectDocumentCount(mock, 1)
	mock.ExpectQuery(`SELECT document_chunks.content`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "name", "type"}).
			AddRow("old chunk", "Doc", "other"))

	first := searcher.BuildContext(context.Background(), 1, []string{"page.php"})
	require.NotEmpty(t, first)
	require.Equal(t, 1, cache.sets)

	// 失效后同样的查询必须重新检索，不能返回陈旧上下文
	cache.Invalidate(context.Background(), 1)

	expectDocumentCount(mock, 1)
	mock.ExpectQuery(`SELECT document_chunks.content`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "name", "type"}).
			AddRow("new chunk", "Doc", "other"))

	second := searcher.BuildContext(context.Background(), 1, []string{"page.php"})
	assert.NotEqual(t, first, second)
	assert.Contains(t, second, "new chunk")
	assert.Equal(t, 2, cache.sets)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildContextEmptySearchResult(t *testing.T) {
	gdb, mock := newMockDB(t)

	expectDocumentCount(mock, 1)
	mock.ExpectQuery(`SELECT document_chunks.content`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "name", "type"}))

	searcher := NewSearcher(gdb, staticResolver(nil), &fakeVectorStore{}, nil)

	result := searcher.BuildContext(context.Background(), 1, []string{"a.php"})
	assert.Equal(t, "", result)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContextCacheKeyStable(t *testing.T) {
	key1 := contextCacheKey(1, "query")
	key2 := contextCacheKey(1, "query")
	key3 := contextCacheKey(2, "query")

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.True(t, strings.HasPrefix(key1, "refctx:1:"))
}
