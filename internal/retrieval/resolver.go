package retrieval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/phpmigrate/backend-go/internal/models"
	"gorm.io/gorm"
)

// EmbeddingConfig 嵌入提供商配置
type EmbeddingConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// EmbeddingConfigResolver 按用户解析嵌入提供商配置
// 未配置时返回(nil, nil)，调用方据此走无向量路径
type EmbeddingConfigResolver interface {
	Resolve(ctx context.Context, ownerID uint) (*EmbeddingConfig, error)
}

// databaseConfigResolver 从用户的llm_configs中查找可用于嵌入的OpenAI兼容配置
type databaseConfigResolver struct {
	db           *gorm.DB
	defaultModel string
}

// NewDatabaseConfigResolver 创建数据库配置解析器
func NewDatabaseConfigResolver(db *gorm.DB, defaultModel string) EmbeddingConfigResolver {
	if defaultModel == "" {
		defaultModel = "text-embedding-3-small"
	}
	return &databaseConfigResolver{db: db, defaultModel: defaultModel}
}

func (r *databaseConfigResolver) Resolve(ctx context.Context, ownerID uint) (*EmbeddingConfig, error) {
	var cfg models.LLMConfig
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND api_key <> '' AND is_active = ?", ownerID, "openai", true).
		Order("config_id ASC").
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.EmbeddingModel)
	if model == "" {
		model = r.defaultModel
	}

	return &EmbeddingConfig{
		APIKey:  cfg.APIKey,
		Model:   model,
		BaseURL: cfg.BaseURL,
	}, nil
}

// StaticConfigResolver 固定配置解析器（全局OPENAI_API_KEY场景及测试）
type StaticConfigResolver struct {
	Config *EmbeddingConfig
}

func (r *StaticConfigResolver) Resolve(ctx context.Context, ownerID uint) (*EmbeddingConfig, error) {
	return r.Config, nil
}
