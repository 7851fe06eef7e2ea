package services

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/phpmigrate/backend-go/internal/errors"
	"github.com/phpmigrate/backend-go/internal/models"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// LLMConfigService 用户级LLM提供商配置管理
type LLMConfigService struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewLLMConfigService 创建LLM配置服务
func NewLLMConfigService(db *gorm.DB) *LLMConfigService {
	return &LLMConfigService{db: db, validate: validator.New()}
}

// SaveLLMConfigRequest 保存配置请求
type SaveLLMConfigRequest struct {
	Provider       string `json:"provider" validate:"required,oneof=openai anthropic google ollama"`
	APIKey         string `json:"api_key" validate:"required"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embedding_model"`
	BaseURL        string `json:"base_url" validate:"omitempty,url"`
}

// Save 新增或更新某提供商的配置（每用户每提供商一条）
func (s *LLMConfigService) Save(ctx context.Context, userID uint, req SaveLLMConfigRequest) (*models.LLMConfig, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid llm config").WithDetails(err.Error())
	}

	var cfg models.LLMConfig
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, req.Provider).
		First(&cfg).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load llm config").WithCause(err)
	}

	cfg.UserID = userID
	cfg.Provider = req.Provider
	cfg.APIKey = req.APIKey
	cfg.Model = req.Model
	cfg.EmbeddingModel = req.EmbeddingModel
	cfg.BaseURL = req.BaseURL
	cfg.IsActive = true
	cfg.UpdateTime = time.Now()
	if cfg.ConfigID == 0 {
		cfg.CreateTime = time.Now()
	}

	if err := s.db.WithContext(ctx).Save(&cfg).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to save llm config").WithCause(err)
	}
	return &cfg, nil
}

// List 列出用户的所有提供商配置
func (s *LLMConfigService) List(ctx context.Context, userID uint) ([]models.LLMConfig, error) {
	var configs []models.LLMConfig
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("config_id ASC").
		Find(&configs).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list llm configs").WithCause(err)
	}
	return configs, nil
}

// Delete 删除配置
func (s *LLMConfigService) Delete(ctx context.Context, userID uint, configID uint) error {
	result := s.db.WithContext(ctx).
		Where("config_id = ? AND user_id = ?", configID, userID).
		Delete(&models.LLMConfig{})
	if result.Error != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to delete llm config").WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("llm config")
	}
	return nil
}
