package retrieval

import (
	"context"

	"github.com/phpmigrate/backend-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RetrievedChunk 检索命中的分块
type RetrievedChunk struct {
	Content      string  `json:"content"`
	DocumentName string  `json:"document_name"`
	DocumentType string  `json:"document_type"`
	Similarity   float64 `json:"similarity"`
}

// Searcher 相似度检索器
// 优先走向量检索，向量不可用时退化为按文档时间的确定性排序
type Searcher struct {
	db              *gorm.DB
	resolver        EmbeddingConfigResolver
	vectorStore     VectorStore
	embedderFactory EmbedderFactory
	cache           ContextCache
	searchTopK      int
	contextTopK     int
	logger          *zap.Logger
}

// NewSearcher 创建检索器
func NewSearcher(db *gorm.DB, resolver EmbeddingConfigResolver, vectorStore VectorStore, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		db:              db,
		resolver:        resolver,
		vectorStore:     vectorStore,
		embedderFactory: defaultEmbedderFactory,
		searchTopK:      defaultSearchTopK,
		contextTopK:     defaultContextTopK,
		logger:          logger,
	}
}

// SetEmbedderFactory 替换Embedder构造方式（测试用）
func (s *Searcher) SetEmbedderFactory(factory EmbedderFactory) {
	if factory != nil {
		s.embedderFactory = factory
	}
}

// SetContextCache 设置上下文缓存
func (s *Searcher) SetContextCache(cache ContextCache) {
	s.cache = cache
}

// SetSearchTopK 设置调用方未指定topK时的默认检索条数
func (s *Searcher) SetSearchTopK(topK int) {
	if topK > 0 {
		s.searchTopK = topK
	}
}

// SetContextTopK 设置上下文组装时的检索条数
func (s *Searcher) SetContextTopK(topK int) {
	if topK > 0 {
		s.contextTopK = topK
	}
}

// Search 检索某用户最相关的topK个分块
// 向量路径任何一步失败都降级为回退路径，只有回退查询失败才返回错误
func (s *Searcher) Search(ctx context.Context, ownerID uint, query string, topK int) ([]RetrievedChunk, error) {
	if topK <= 0 {
		topK = s.searchTopK
	}

	if embedding := s.queryEmbedding(ctx, ownerID, query); embedding != nil &&
		s.vectorStore != nil && s.vectorStore.SupportsRanking() && s.vectorStore.Ready() {
		matches, err := s.vectorStore.Search(ctx, VectorSearchRequest{
			OwnerID:        ownerID,
			QueryEmbedding: embedding,
			Limit:          topK,
		})
		if err != nil {
			s.logger.Warn("vector search failed, falling back to recency order",
				zap.Uint("owner_id", ownerID), zap.Error(err))
		} else {
			searchesTotal.WithLabelValues("vector").Inc()
			return s.attachDocumentInfo(ctx, matches)
		}
	}

	searchesTotal.WithLabelValues("fallback").Inc()
	return s.recentChunks(ctx, ownerID, topK)
}

const (
	defaultSearchTopK  = 10
	defaultContextTopK = 15
)

// queryEmbedding 生成查询向量，失败返回nil
func (s *Searcher) queryEmbedding(ctx context.Context, ownerID uint, query string) []float32 {
	if s.resolver == nil {
		return nil
	}
	cfg, err := s.resolver.Resolve(ctx, ownerID)
	if err != nil {
		s.logger.Warn("embedding config lookup failed", zap.Uint("owner_id", ownerID), zap.Error(err))
		return nil
	}
	if cfg == nil {
		return nil
	}

	embedder := s.embedderFactory(*cfg)
	if !embedder.Ready() {
		return nil
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed", zap.Uint("owner_id", ownerID), zap.Error(err))
		return nil
	}
	return vector
}

// attachDocumentInfo 补全命中分块的文档名与类型
func (s *Searcher) attachDocumentInfo(ctx context.Context, matches []SearchMatch) ([]RetrievedChunk, error) {
	if len(matches) == 0 {
		return []RetrievedChunk{}, nil
	}

	docIDs := make([]uint, 0, len(matches))
	seen := make(map[uint]bool)
	for _, m := range matches {
		if !seen[m.DocumentID] {
			seen[m.DocumentID] = true
			docIDs = append(docIDs, m.DocumentID)
		}
	}

	var docs []models.ReferenceDocument
	err := s.db.WithContext(ctx).
		Select("document_id", "name", "type").
		Where("document_id IN ?", docIDs).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}

	docByID := make(map[uint]models.ReferenceDocument, len(docs))
	for _, d := range docs {
		docByID[d.DocumentID] = d
	}

	results := make([]RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		doc := docByID[m.DocumentID]
		results = append(results, RetrievedChunk{
			Content:      m.Content,
			DocumentName: doc.Name,
			DocumentType: doc.Type,
			Similarity:   m.Score,
		})
	}
	return results, nil
}

type recentChunkRecord struct {
	Content string
	Name    string
	Type    string
}

// recentChunks 回退路径：按文档创建时间降序、分块序号升序取topK，相似度统一置1.0
func (s *Searcher) recentChunks(ctx context.Context, ownerID uint, topK int) ([]RetrievedChunk, error) {
	var rows []recentChunkRecord
	err := s.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.content, reference_documents.name, reference_documents.type").
		Joins("JOIN reference_documents ON document_chunks.document_id = reference_documents.document_id").
		Where("reference_documents.user_id = ?", ownerID).
		Order("reference_documents.create_time DESC, document_chunks.chunk_index ASC").
		Limit(topK).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		results = append(results, RetrievedChunk{
			Content:      row.Content,
			DocumentName: row.Name,
			DocumentType: row.Type,
			Similarity:   1.0,
		})
	}
	return results, nil
}
