package controllers

import (
	"net/http"

	"github.com/phpmigrate/backend-go/internal/database"
)

// RootController 服务根路径
type RootController struct {
	BaseController
}

// Index 服务信息
func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "phpmigrate-backend",
		"status":  "running",
	})
}

// HealthController 健康检查
type HealthController struct {
	BaseController
}

// Health 数据库连通性检查
func (c *HealthController) Health() {
	dbStatus := "ok"
	if database.DB == nil {
		dbStatus = "down"
	} else if sqlDB, err := database.DB.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "down"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, map[string]interface{}{
		"status":   dbStatus,
		"database": dbStatus,
	})
}
