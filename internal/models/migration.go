package models

import (
	"time"
)

// Migration PHP迁移任务
type Migration struct {
	MigrationID uint      `gorm:"primaryKey;column:migration_id" json:"migration_id"`
	UserID      uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Status      string    `gorm:"size:20;default:created" json:"status"`
	CreateTime  time.Time `gorm:"column:create_time" json:"create_time"`
	UpdateTime  time.Time `gorm:"column:update_time" json:"update_time"`

	// 关系
	Files     []MigrationFile     `gorm:"foreignKey:MigrationID"`
	Artifacts []GeneratedArtifact `gorm:"foreignKey:MigrationID"`
}

func (Migration) TableName() string {
	return "migrations"
}

// MigrationFile 上传的PHP源文件
type MigrationFile struct {
	FileID      uint      `gorm:"primaryKey;column:file_id" json:"file_id"`
	MigrationID uint      `gorm:"column:migration_id;not null;index" json:"migration_id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreateTime  time.Time `gorm:"column:create_time" json:"create_time"`
}

func (MigrationFile) TableName() string {
	return "migration_files"
}

// GeneratedArtifact LLM生成产物（分析报告或React组件）
type GeneratedArtifact struct {
	ArtifactID  uint      `gorm:"primaryKey;column:artifact_id" json:"artifact_id"`
	MigrationID uint      `gorm:"column:migration_id;not null;index" json:"migration_id"`
	Kind        string    `gorm:"size:20;not null" json:"kind"` // analysis | component
	Filename    string    `gorm:"size:255" json:"filename"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreateTime  time.Time `gorm:"column:create_time" json:"create_time"`
}

func (GeneratedArtifact) TableName() string {
	return "generated_artifacts"
}
