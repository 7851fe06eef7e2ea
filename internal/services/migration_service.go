package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/phpmigrate/backend-go/internal/errors"
	"github.com/phpmigrate/backend-go/internal/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 迁移任务状态
const (
	MigrationStatusCreated   = "created"
	MigrationStatusAnalyzed  = "analyzed"
	MigrationStatusGenerated = "generated"
)

// MigrationService 迁移任务服务
type MigrationService struct {
	db       *gorm.DB
	validate *validator.Validate
	logger   *zap.Logger
}

// NewMigrationService 创建迁移任务服务
func NewMigrationService(db *gorm.DB, logger *zap.Logger) *MigrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationService{db: db, validate: validator.New(), logger: logger}
}

// CreateMigrationRequest 创建迁移任务请求
type CreateMigrationRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// FileUpload 上传的PHP源文件
type FileUpload struct {
	Filename string `json:"filename" validate:"required,max=255"`
	Content  string `json:"content" validate:"required"`
}

// UploadFilesRequest 上传源文件请求
type UploadFilesRequest struct {
	Files []FileUpload `json:"files" validate:"required,min=1,dive"`
}

// Create 创建迁移任务
func (s *MigrationService) Create(ctx context.Context, userID uint, req CreateMigrationRequest) (*models.Migration, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid migration request").WithDetails(err.Error())
	}

	migration := &models.Migration{
		UserID:     userID,
		Name:       req.Name,
		Status:     MigrationStatusCreated,
		CreateTime: time.Now(),
		UpdateTime: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(migration).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create migration").WithCause(err)
	}
	return migration, nil
}

// UploadFiles 向迁移任务添加PHP源文件
func (s *MigrationService) UploadFiles(ctx context.Context, userID uint, migrationID uint, req UploadFilesRequest) ([]models.MigrationFile, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid file upload request").WithDetails(err.Error())
	}
	for _, f := range req.Files {
		if ext := strings.ToLower(filepath.Ext(f.Filename)); ext != ".php" && ext != ".inc" {
			return nil, apperrors.NewValidationError("only PHP source files are accepted").WithDetails(f.Filename)
		}
	}

	if _, err := s.loadOwned(ctx, userID, migrationID); err != nil {
		return nil, err
	}

	files := make([]models.MigrationFile, 0, len(req.Files))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, upload := range req.Files {
			file := models.MigrationFile{
				MigrationID: migrationID,
				Filename:    upload.Filename,
				Content:     upload.Content,
				CreateTime:  time.Now(),
			}
			if err := tx.Create(&file).Error; err != nil {
				return err
			}
			files = append(files, file)
		}
		return tx.Model(&models.Migration{}).
			Where("migration_id = ?", migrationID).
			Update("update_time", time.Now()).Error
	})
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to store migration files").WithCause(err)
	}
	return files, nil
}

// Get 获取迁移任务详情（含文件与生成产物）
func (s *MigrationService) Get(ctx context.Context, userID uint, migrationID uint) (*models.Migration, error) {
	var migration models.Migration
	err := s.db.WithContext(ctx).
		Preload("Files").
		Preload("Artifacts").
		Where("migration_id = ? AND user_id = ?", migrationID, userID).
		First(&migration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("migration")
	}
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load migration").WithCause(err)
	}
	return &migration, nil
}

// List 列出用户的迁移任务
func (s *MigrationService) List(ctx context.Context, userID uint) ([]models.Migration, error) {
	var migrations []models.Migration
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("create_time DESC").
		Find(&migrations).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list migrations").WithCause(err)
	}
	return migrations, nil
}

func (s *MigrationService) loadOwned(ctx context.Context, userID uint, migrationID uint) (*models.Migration, error) {
	var migration models.Migration
	err := s.db.WithContext(ctx).
		Where("migration_id = ? AND user_id = ?", migrationID, userID).
		First(&migration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("migration")
	}
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load migration").WithCause(err)
	}
	return &migration, nil
}
