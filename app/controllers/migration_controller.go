package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/phpmigrate/backend-go/internal/services"
)

// MigrationController 迁移任务管理与代码生成
type MigrationController struct {
	BaseController
	migrationService  *services.MigrationService
	generationService *services.GenerationService
}

// Prepare 懒构造服务
func (c *MigrationController) Prepare() {
	c.migrationService = newMigrationService()
	c.generationService = newGenerationService()
}

func (c *MigrationController) migrationID() (uint, bool) {
	id, err := strconv.ParseUint(c.Ctx.Input.Param(":id"), 10, 32)
	if err != nil {
		c.JSONError(http.StatusBadRequest, "invalid migration id")
		return 0, false
	}
	return uint(id), true
}

// Create 创建迁移任务
func (c *MigrationController) Create() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	var req services.CreateMigrationRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	migration, err := c.migrationService.Create(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(migration)
}

// List 列出迁移任务
func (c *MigrationController) List() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	migrations, err := c.migrationService.List(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(migrations)
}

// Get 迁移任务详情
func (c *MigrationController) Get() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}
	migrationID, ok := c.migrationID()
	if !ok {
		return
	}

	migration, err := c.migrationService.Get(c.Ctx.Request.Context(), userID, migrationID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(migration)
}

// UploadFiles 上传PHP源文件
func (c *MigrationController) UploadFiles() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}
	migrationID, ok := c.migrationID()
	if !ok {
		return
	}

	var req services.UploadFilesRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	files, err := c.migrationService.UploadFiles(c.Ctx.Request.Context(), userID, migrationID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(files)
}

// Analyze 生成迁移分析报告
func (c *MigrationController) Analyze() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}
	migrationID, ok := c.migrationID()
	if !ok {
		return
	}

	artifact, err := c.generationService.Analyze(c.Ctx.Request.Context(), userID, migrationID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(artifact)
}

// GenerateComponent 为单个PHP文件生成React组件
func (c *MigrationController) GenerateComponent() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}
	migrationID, ok := c.migrationID()
	if !ok {
		return
	}

	var req struct {
		FileID uint `json:"file_id"`
	}
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil || req.FileID == 0 {
		c.JSONError(http.StatusBadRequest, "invalid file id")
		return
	}

	artifact, err := c.generationService.GenerateComponent(c.Ctx.Request.Context(), userID, migrationID, req.FileID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(artifact)
}
