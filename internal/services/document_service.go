package services

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/phpmigrate/backend-go/internal/errors"
	"github.com/phpmigrate/backend-go/internal/kafka"
	"github.com/phpmigrate/backend-go/internal/models"
	"github.com/phpmigrate/backend-go/internal/retrieval"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentService 参考文档服务
type DocumentService struct {
	db          *gorm.DB
	ingestor    *retrieval.Ingestor
	vectorStore retrieval.VectorStore
	producer    *kafka.Producer
	cache       retrieval.ContextCache
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewDocumentService 创建文档服务
func NewDocumentService(db *gorm.DB, ingestor *retrieval.Ingestor, vectorStore retrieval.VectorStore, producer *kafka.Producer, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		db:          db,
		ingestor:    ingestor,
		vectorStore: vectorStore,
		producer:    producer,
		validate:    validator.New(),
		logger:      logger,
	}
}

// SetContextCache 设置上下文缓存，文档集变更时失效对应用户的条目
func (s *DocumentService) SetContextCache(cache retrieval.ContextCache) {
	s.cache = cache
}

// DocumentUpload 单篇上传文档
type DocumentUpload struct {
	Name    string `json:"name" validate:"required,max=255"`
	Type    string `json:"type"`
	Content string `json:"content" validate:"required"`
}

// UploadDocumentsRequest 批量上传请求
type UploadDocumentsRequest struct {
	Documents []DocumentUpload `json:"documents" validate:"required,min=1,dive"`
}

// UploadResult 单篇上传结果，失败时Error非空
type UploadResult struct {
	Name          string `json:"name"`
	DocumentID    uint   `json:"document_id,omitempty"`
	ChunkCount    int    `json:"chunk_count"`
	HasEmbeddings bool   `json:"has_embeddings"`
	Error         string `json:"error,omitempty"`
}

// DocumentInfo 文档列表项
type DocumentInfo struct {
	DocumentID    uint      `json:"document_id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	ChunkCount    int       `json:"chunk_count"`
	HasEmbeddings bool      `json:"has_embeddings"`
	CreateTime    time.Time `json:"create_time"`
}

// Upload 批量上传参考文档
// 每篇文档独立入库，单篇失败不影响其余文档
func (s *DocumentService) Upload(ctx context.Context, userID uint, req UploadDocumentsRequest) ([]UploadResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid upload request").WithDetails(err.Error())
	}

	results := make([]UploadResult, 0, len(req.Documents))
	ingested := false
	for _, upload := range req.Documents {
		result := UploadResult{Name: upload.Name}

		meta, err := s.ingestor.Ingest(ctx, userID, upload.Name, upload.Type, upload.Content)
		if err != nil {
			s.logger.Error("document ingest failed",
				zap.Uint("user_id", userID),
				zap.String("name", upload.Name),
				zap.Error(err))
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		result.DocumentID = meta.DocumentID
		result.ChunkCount = meta.ChunkCount
		result.HasEmbeddings = meta.HasEmbeddings
		results = append(results, result)
		ingested = true

		if err := s.producer.SendDocumentEvent(&kafka.DocumentEvent{
			Event:      kafka.EventDocumentIngested,
			UserID:     userID,
			DocumentID: meta.DocumentID,
			Name:       upload.Name,
			Type:       models.NormalizeDocumentType(upload.Type),
			ChunkCount: meta.ChunkCount,
		}); err != nil {
			s.logger.Warn("document event publish failed", zap.Error(err))
		}
	}

	if ingested && s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	return results, nil
}

// List 列出用户的参考文档，按上传时间倒序
func (s *DocumentService) List(ctx context.Context, userID uint) ([]DocumentInfo, error) {
	var docs []models.ReferenceDocument
	err := s.db.WithContext(ctx).
		Select("document_id", "name", "type", "create_time").
		Where("user_id = ?", userID).
		Order("create_time DESC").
		Find(&docs).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list documents").WithCause(err)
	}
	if len(docs) == 0 {
		return []DocumentInfo{}, nil
	}

	docIDs := make([]uint, 0, len(docs))
	for _, d := range docs {
		docIDs = append(docIDs, d.DocumentID)
	}

	type chunkStat struct {
		DocumentID    uint
		ChunkCount    int
		EmbeddedCount int
	}
	var stats []chunkStat
	err = s.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_id, COUNT(*) AS chunk_count, COUNT(*) FILTER (WHERE embedding IS NOT NULL AND embedding::text <> '') AS embedded_count").
		Where("document_id IN ?", docIDs).
		Group("document_id").
		Find(&stats).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to count chunks").WithCause(err)
	}

	statByID := make(map[uint]chunkStat, len(stats))
	for _, st := range stats {
		statByID[st.DocumentID] = st
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		st := statByID[d.DocumentID]
		infos = append(infos, DocumentInfo{
			DocumentID:    d.DocumentID,
			Name:          d.Name,
			Type:          d.Type,
			ChunkCount:    st.ChunkCount,
			HasEmbeddings: st.ChunkCount > 0 && st.EmbeddedCount == st.ChunkCount,
			CreateTime:    d.CreateTime,
		})
	}
	return infos, nil
}

// Delete 删除用户的参考文档及其全部分块
// 关系库删除成功后清理向量索引，向量侧失败只记录不回滚
func (s *DocumentService) Delete(ctx context.Context, userID uint, documentID uint) error {
	var doc models.ReferenceDocument
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFoundError("document")
	}
	if err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load document").WithCause(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(&doc).Error
	})
	if err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to delete document").WithCause(err)
	}

	if s.vectorStore != nil && s.vectorStore.SupportsRanking() {
		if err := s.vectorStore.DeleteDocument(ctx, userID, documentID); err != nil {
			s.logger.Warn("vector store cleanup failed",
				zap.Uint("document_id", documentID),
				zap.Error(err))
		}
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}

	if err := s.producer.SendDocumentEvent(&kafka.DocumentEvent{
		Event:      kafka.EventDocumentDeleted,
		UserID:     userID,
		DocumentID: documentID,
		Name:       doc.Name,
		Type:       doc.Type,
	}); err != nil {
		s.logger.Warn("document event publish failed", zap.Error(err))
	}

	return nil
}
