package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phpmigrate/backend-go/internal/config"
	apperrors "github.com/phpmigrate/backend-go/internal/errors"
	"github.com/phpmigrate/backend-go/internal/models"
	"github.com/phpmigrate/backend-go/internal/retrieval"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 生成产物类型
const (
	ArtifactKindAnalysis  = "analysis"
	ArtifactKindComponent = "component"
)

// LLMProvider 聊天补全抽象
type LLMProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// openaiProvider 基于OpenAI兼容接口的补全实现
type openaiProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func newOpenAIProvider(apiKey, model, baseURL string, maxTokens int, temperature float64) LLMProvider {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &openaiProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

func (p *openaiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ProviderFactory 按用户LLM配置构造Provider（测试用注入点）
type ProviderFactory func(apiKey, model, baseURL string) LLMProvider

// GenerationService 代码分析与生成服务
type GenerationService struct {
	db              *gorm.DB
	searcher        *retrieval.Searcher
	providerFactory ProviderFactory
	logger          *zap.Logger
}

// NewGenerationService 创建生成服务
func NewGenerationService(db *gorm.DB, searcher *retrieval.Searcher, logger *zap.Logger) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &GenerationService{db: db, searcher: searcher, logger: logger}
	svc.providerFactory = func(apiKey, model, baseURL string) LLMProvider {
		maxTokens := 4000
		temperature := 0.2
		if config.AppConfig != nil {
			maxTokens = config.AppConfig.AI.MaxTokens
			temperature = config.AppConfig.AI.Temperature
		}
		return newOpenAIProvider(apiKey, model, baseURL, maxTokens, temperature)
	}
	return svc
}

// SetProviderFactory 替换Provider构造方式（测试用）
func (s *GenerationService) SetProviderFactory(factory ProviderFactory) {
	if factory != nil {
		s.providerFactory = factory
	}
}

const analysisSystemPrompt = "You are an expert in migrating legacy PHP applications to modern React frontends. " +
	"Analyze the provided PHP source files and produce a structured migration analysis: " +
	"page structure, data flow, database interactions, form handling, and a recommended React component breakdown."

const componentSystemPrompt = "You are an expert React engineer migrating a legacy PHP application. " +
	"Generate a complete, idiomatic React component (function component, hooks) that reproduces the behavior of the provided PHP file. " +
	"Return only the component source code."

// Analyze 分析迁移任务的PHP源文件，产出分析报告
func (s *GenerationService) Analyze(ctx context.Context, userID uint, migrationID uint) (*models.GeneratedArtifact, error) {
	migration, files, err := s.loadMigrationFiles(ctx, userID, migrationID)
	if err != nil {
		return nil, err
	}

	provider, err := s.resolveProvider(ctx, userID)
	if err != nil {
		return nil, err
	}

	filenames := make([]string, 0, len(files))
	for _, f := range files {
		filenames = append(filenames, f.Filename)
	}
	referenceContext := s.searcher.BuildContext(ctx, userID, filenames)

	var prompt strings.Builder
	if referenceContext != "" {
		prompt.WriteString(referenceContext)
	}
	prompt.WriteString("Analyze the following PHP application files:\n\n")
	for _, f := range files {
		prompt.WriteString(fmt.Sprintf("--- %s ---\n%s\n\n", f.Filename, f.Content))
	}

	output, err := provider.Complete(ctx, analysisSystemPrompt, prompt.String())
	if err != nil {
		return nil, apperrors.NewExternalError("analysis generation failed").WithCause(err)
	}

	artifact := &models.GeneratedArtifact{
		MigrationID: migrationID,
		Kind:        ArtifactKindAnalysis,
		Content:     output,
		CreateTime:  time.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(artifact).Error; err != nil {
			return err
		}
		return tx.Model(&models.Migration{}).
			Where("migration_id = ?", migration.MigrationID).
			Updates(map[string]interface{}{"status": MigrationStatusAnalyzed, "update_time": time.Now()}).Error
	})
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to store analysis").WithCause(err)
	}
	return artifact, nil
}

// GenerateComponent 为单个PHP文件生成React组件
func (s *GenerationService) GenerateComponent(ctx context.Context, userID uint, migrationID uint, fileID uint) (*models.GeneratedArtifact, error) {
	if _, _, err := s.loadMigrationFiles(ctx, userID, migrationID); err != nil {
		return nil, err
	}

	var file models.MigrationFile
	err := s.db.WithContext(ctx).
		Where("file_id = ? AND migration_id = ?", fileID, migrationID).
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("migration file")
	}
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load migration file").WithCause(err)
	}

	provider, err := s.resolveProvider(ctx, userID)
	if err != nil {
		return nil, err
	}

	referenceContext := s.searcher.BuildContext(ctx, userID, []string{file.Filename})

	var prompt strings.Builder
	if referenceContext != "" {
		prompt.WriteString(referenceContext)
	}
	prompt.WriteString(fmt.Sprintf("Convert the following PHP file to a React component:\n\n--- %s ---\n%s\n", file.Filename, file.Content))

	output, err := provider.Complete(ctx, componentSystemPrompt, prompt.String())
	if err != nil {
		return nil, apperrors.NewExternalError("component generation failed").WithCause(err)
	}

	artifact := &models.GeneratedArtifact{
		MigrationID: migrationID,
		Kind:        ArtifactKindComponent,
		Filename:    reactFilename(file.Filename),
		Content:     output,
		CreateTime:  time.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(artifact).Error; err != nil {
			return err
		}
		return tx.Model(&models.Migration{}).
			Where("migration_id = ?", migrationID).
			Updates(map[string]interface{}{"status": MigrationStatusGenerated, "update_time": time.Now()}).Error
	})
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to store component").WithCause(err)
	}
	return artifact, nil
}

// reactFilename index.php -> Index.jsx
func reactFilename(phpName string) string {
	base := phpName
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		base = base[:idx]
	}
	if base == "" {
		return "Component.jsx"
	}
	return strings.ToUpper(base[:1]) + base[1:] + ".jsx"
}

func (s *GenerationService) loadMigrationFiles(ctx context.Context, userID uint, migrationID uint) (*models.Migration, []models.MigrationFile, error) {
	var migration models.Migration
	err := s.db.WithContext(ctx).
		Where("migration_id = ? AND user_id = ?", migrationID, userID).
		First(&migration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.NewNotFoundError("migration")
	}
	if err != nil {
		return nil, nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load migration").WithCause(err)
	}

	var files []models.MigrationFile
	err = s.db.WithContext(ctx).
		Where("migration_id = ?", migrationID).
		Order("file_id ASC").
		Find(&files).Error
	if err != nil {
		return nil, nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load migration files").WithCause(err)
	}
	if len(files) == 0 {
		return nil, nil, apperrors.NewBusinessError(apperrors.ErrCodeOperationFailed, "migration has no uploaded files")
	}
	return &migration, files, nil
}

// resolveProvider 按用户配置选择LLM，未配置时回退到全局OpenAI配置
func (s *GenerationService) resolveProvider(ctx context.Context, userID uint) (LLMProvider, error) {
	var cfg models.LLMConfig
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND api_key <> '' AND is_active = ?", userID, true).
		Order("config_id ASC").
		First(&cfg).Error
	if err == nil {
		model := cfg.Model
		if model == "" && config.AppConfig != nil {
			model = config.AppConfig.AI.DefaultModel
		}
		return s.providerFactory(cfg.APIKey, model, cfg.BaseURL), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load llm config").WithCause(err)
	}

	if config.AppConfig != nil && config.AppConfig.AI.OpenAIAPIKey != "" {
		return s.providerFactory(config.AppConfig.AI.OpenAIAPIKey, config.AppConfig.AI.DefaultModel, ""), nil
	}
	return nil, apperrors.NewBusinessError(apperrors.ErrCodeOperationFailed, "no LLM provider configured")
}
