package retrieval

import "context"

// VectorChunk 存储向量信息
type VectorChunk struct {
	ChunkID    uint
	DocumentID uint
	OwnerID    uint
	Text       string
	Embedding  []float32
}

// VectorSearchRequest 向量检索请求
type VectorSearchRequest struct {
	OwnerID        uint
	QueryEmbedding []float32
	Limit          int
}

// SearchMatch 向量检索结果
type SearchMatch struct {
	ChunkID    uint
	DocumentID uint
	Content    string
	Score      float64
}

// VectorStore 向量存储抽象
// SupportsRanking标识后端是否支持向量相似度排序，
// 不支持排序的后端由调用方走确定性回退路径
type VectorStore interface {
	UpsertChunk(ctx context.Context, chunk VectorChunk) (string, error)
	DeleteDocument(ctx context.Context, ownerID uint, documentID uint) error
	Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error)
	SupportsRanking() bool
	Ready() bool
}
