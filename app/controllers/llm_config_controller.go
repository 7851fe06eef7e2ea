package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/phpmigrate/backend-go/internal/services"
)

// LLMConfigController 用户LLM提供商配置
type LLMConfigController struct {
	BaseController
	configService *services.LLMConfigService
}

// Prepare 懒构造服务
func (c *LLMConfigController) Prepare() {
	c.configService = newLLMConfigService()
}

// Save 新增或更新配置
func (c *LLMConfigController) Save() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	var req services.SaveLLMConfigRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := c.configService.Save(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(cfg)
}

// List 列出配置
func (c *LLMConfigController) List() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	configs, err := c.configService.List(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(configs)
}

// Delete 删除配置
func (c *LLMConfigController) Delete() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	configID, err := strconv.ParseUint(c.Ctx.Input.Param(":id"), 10, 32)
	if err != nil {
		c.JSONError(http.StatusBadRequest, "invalid config id")
		return
	}

	if err := c.configService.Delete(c.Ctx.Request.Context(), userID, uint(configID)); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"deleted": configID})
}
