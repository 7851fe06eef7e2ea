package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilvusCollectionName(t *testing.T) {
	store := &milvusVectorStore{collectionPrefix: "refdoc_vectors"}
	assert.Equal(t, "refdoc_vectors_7", store.collectionName(7))
}

func TestMilvusUpsertRejectsInvalidEmbedding(t *testing.T) {
	store := &milvusVectorStore{collectionPrefix: "refdoc_vectors", vectorSize: 4}

	_, err := store.UpsertChunk(context.Background(), VectorChunk{ChunkID: 1})
	require.Error(t, err)

	// 维度不符不允许补零或截断写入
	_, err = store.UpsertChunk(context.Background(), VectorChunk{
		ChunkID:   1,
		Embedding: []float32{1, 2, 3},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}
