package models

import (
	"time"
)

// User 用户表
type User struct {
	UserID       uint      `gorm:"primaryKey;column:user_id" json:"user_id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:200;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	CreateTime   time.Time `gorm:"column:create_time" json:"create_time"`
	UpdateTime   time.Time `gorm:"column:update_time" json:"update_time"`

	// 关系
	LLMConfigs []LLMConfig         `gorm:"foreignKey:UserID"`
	Documents  []ReferenceDocument `gorm:"foreignKey:UserID"`
}

func (User) TableName() string {
	return "users"
}

// LLMConfig 用户级LLM提供商配置
type LLMConfig struct {
	ConfigID       uint      `gorm:"primaryKey;column:config_id" json:"config_id"`
	UserID         uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	User           User      `gorm:"foreignKey:UserID"`
	Provider       string    `gorm:"size:50;not null" json:"provider"` // openai/anthropic/google/ollama
	APIKey         string    `gorm:"column:api_key;size:500" json:"-"`
	Model          string    `gorm:"size:100" json:"model"`
	EmbeddingModel string    `gorm:"column:embedding_model;size:100" json:"embedding_model"`
	BaseURL        string    `gorm:"column:base_url;size:500" json:"base_url"`
	IsActive       bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreateTime     time.Time `gorm:"column:create_time" json:"create_time"`
	UpdateTime     time.Time `gorm:"column:update_time" json:"update_time"`
}

func (LLMConfig) TableName() string {
	return "llm_configs"
}
