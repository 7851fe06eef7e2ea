package retrieval

import (
	"context"
	"encoding/json"
	"time"

	"github.com/phpmigrate/backend-go/internal/errors"
	"github.com/phpmigrate/backend-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentMeta 入库结果
type DocumentMeta struct {
	DocumentID    uint `json:"id"`
	ChunkCount    int  `json:"chunk_count"`
	HasEmbeddings bool `json:"has_embeddings"`
}

// EmbedderFactory 按用户配置构造Embedder
type EmbedderFactory func(cfg EmbeddingConfig) Embedder

func defaultEmbedderFactory(cfg EmbeddingConfig) Embedder {
	return NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
}

// Ingestor 文档入库管线：建档 → 分块 → 批量嵌入 → 事务写入分块
// 嵌入相关的任何失败都被吸收为无向量存储，只有建档/写分块失败才向调用方报错
type Ingestor struct {
	db              *gorm.DB
	chunker         *Chunker
	resolver        EmbeddingConfigResolver
	vectorStore     VectorStore
	embedderFactory EmbedderFactory
	logger          *zap.Logger
}

// NewIngestor 创建入库管线
func NewIngestor(db *gorm.DB, chunker *Chunker, resolver EmbeddingConfigResolver, vectorStore VectorStore, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		db:              db,
		chunker:         chunker,
		resolver:        resolver,
		vectorStore:     vectorStore,
		embedderFactory: defaultEmbedderFactory,
		logger:          logger,
	}
}

// SetEmbedderFactory 替换Embedder构造方式（测试用）
func (ing *Ingestor) SetEmbedderFactory(factory EmbedderFactory) {
	if factory != nil {
		ing.embedderFactory = factory
	}
}

// Ingest 入库一篇参考文档
func (ing *Ingestor) Ingest(ctx context.Context, ownerID uint, name, typeTag, content string) (*DocumentMeta, error) {
	doc := &models.ReferenceDocument{
		UserID:     ownerID,
		Name:       name,
		Type:       models.NormalizeDocumentType(typeTag),
		Content:    content,
		CreateTime: time.Now(),
	}
	if err := ing.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to create reference document").WithCause(err)
	}

	chunks := ing.chunker.SplitDocument(content)
	if len(chunks) == 0 {
		documentsIngestedTotal.Inc()
		return &DocumentMeta{DocumentID: doc.DocumentID, ChunkCount: 0, HasEmbeddings: false}, nil
	}

	vectors := ing.embedChunks(ctx, ownerID, chunks)

	// 同一文档的分块在一个事务中写入：要么全带向量，要么全不带
	rows := make([]models.DocumentChunk, len(chunks))
	err := ing.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, text := range chunks {
			row := models.DocumentChunk{
				DocumentID: doc.DocumentID,
				ChunkIndex: i,
				Content:    text,
				CreateTime: time.Now(),
			}
			if vectors != nil {
				embeddingJSON, err := json.Marshal(vectors[i])
				if err != nil {
					return err
				}
				row.Embedding = string(embeddingJSON)
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			rows[i] = row
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to persist document chunks").WithCause(err)
	}

	// 分块行已落库，向量索引失败只降级不回滚
	if vectors != nil && ing.vectorStore != nil && ing.vectorStore.SupportsRanking() {
		for i, row := range rows {
			_, err := ing.vectorStore.UpsertChunk(ctx, VectorChunk{
				ChunkID:    row.ChunkID,
				DocumentID: doc.DocumentID,
				OwnerID:    ownerID,
				Text:       row.Content,
				Embedding:  vectors[i],
			})
			if err != nil {
				ing.logger.Warn("vector store upsert failed",
					zap.Uint("document_id", doc.DocumentID),
					zap.Uint("chunk_id", row.ChunkID),
					zap.Error(err))
				break
			}
		}
	}

	documentsIngestedTotal.Inc()
	chunksIngestedTotal.Add(float64(len(chunks)))

	return &DocumentMeta{
		DocumentID:    doc.DocumentID,
		ChunkCount:    len(chunks),
		HasEmbeddings: vectors != nil,
	}, nil
}

// embedChunks 批量嵌入，任何失败（未配置、网络错误、响应异常）返回nil
func (ing *Ingestor) embedChunks(ctx context.Context, ownerID uint, chunks []string) [][]float32 {
	if ing.resolver == nil {
		return nil
	}
	cfg, err := ing.resolver.Resolve(ctx, ownerID)
	if err != nil {
		ing.logger.Warn("embedding config lookup failed", zap.Uint("owner_id", ownerID), zap.Error(err))
		return nil
	}
	if cfg == nil {
		return nil
	}

	embedder := ing.embedderFactory(*cfg)
	if !embedder.Ready() {
		return nil
	}

	vectors, err := embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		ing.logger.Warn("embedding generation failed, storing chunks without vectors",
			zap.Uint("owner_id", ownerID),
			zap.Int("chunks", len(chunks)),
			zap.Error(err))
		return nil
	}
	if len(vectors) != len(chunks) {
		ing.logger.Warn("embedding count mismatch, storing chunks without vectors",
			zap.Int("expected", len(chunks)),
			zap.Int("got", len(vectors)))
		return nil
	}
	return vectors
}
