package models

import (
	"time"
)

// 参考文档类型枚举
const (
	DocTypeCodingStandards = "coding_standards"
	DocTypeDBSchema        = "db_schema"
	DocTypeAPISpec         = "api_spec"
	DocTypeDesignGuide     = "design_guide"
	DocTypeOther           = "other"
)

// NormalizeDocumentType 归一化文档类型，未知类型归为other
func NormalizeDocumentType(t string) string {
	switch t {
	case DocTypeCodingStandards, DocTypeDBSchema, DocTypeAPISpec, DocTypeDesignGuide, DocTypeOther:
		return t
	default:
		return DocTypeOther
	}
}

// ReferenceDocument 参考文档（内容上传后不可变，修改需重新上传）
type ReferenceDocument struct {
	DocumentID uint      `gorm:"primaryKey;column:document_id" json:"document_id"`
	UserID     uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Type       string    `gorm:"size:50;not null" json:"type"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreateTime time.Time `gorm:"column:create_time;index" json:"create_time"`

	// 关系：删除文档时级联删除所有分块
	Chunks []DocumentChunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (ReferenceDocument) TableName() string {
	return "reference_documents"
}

// DocumentChunk 文档分块
// 同一文档的分块要么全部带向量，要么全部不带（批量嵌入失败时整体退化为纯文本存储）
type DocumentChunk struct {
	ChunkID    uint              `gorm:"primaryKey;column:chunk_id" json:"chunk_id"`
	DocumentID uint              `gorm:"column:document_id;not null;index" json:"document_id"`
	Document   ReferenceDocument `gorm:"foreignKey:DocumentID"`
	ChunkIndex int               `gorm:"column:chunk_index;not null;index" json:"chunk_index"`
	Content    string            `gorm:"type:text;not null" json:"content"`
	Embedding  string            `gorm:"type:json" json:"embedding"` // JSON数组，空表示无向量
	VectorID   string            `gorm:"column:vector_id;size:255" json:"vector_id"`
	CreateTime time.Time         `gorm:"column:create_time" json:"create_time"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
