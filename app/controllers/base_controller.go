package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/phpmigrate/backend-go/internal/auth"
	"github.com/phpmigrate/backend-go/internal/config"
	apperrors "github.com/phpmigrate/backend-go/internal/errors"
	"github.com/phpmigrate/backend-go/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

var jwtService *auth.JWTService

// SetJWTService 注入JWT服务（bootstrap调用）
func SetJWTService(svc *auth.JWTService) {
	jwtService = svc
}

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError maps an application error to its HTTP status.
func (c *BaseController) JSONAppError(err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		c.JSON(appErr.HTTPCode, map[string]interface{}{
			"success": false,
			"error":   appErr.Message,
			"code":    appErr.Code,
		})
		return
	}
	c.JSONError(http.StatusInternalServerError, "internal server error")
}

// getAuthenticatedUserID 获取认证用户ID
// 优先验证Bearer JWT，开发环境允许X-User-Id等降级方式
func (c *BaseController) getAuthenticatedUserID() (uint, bool) {
	// 1. Authorization: Bearer {jwt}
	authHeader := c.Ctx.Input.Header("Authorization")
	if authHeader != "" && jwtService != nil {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			claims, err := jwtService.ValidateToken(parts[1])
			if err == nil {
				return claims.UserID, true
			}
			logger.Debug("JWT validation failed", zap.Error(err))
		}
	}

	env := "development"
	if config.AppConfig != nil {
		env = config.AppConfig.Server.Env
	}
	if env == "production" {
		return 0, false
	}

	// 2. 开发/测试环境：X-User-Id header
	if userIDHeader := c.Ctx.Input.Header("X-User-Id"); userIDHeader != "" {
		if userID, err := strconv.ParseUint(userIDHeader, 10, 32); err == nil {
			return uint(userID), true
		}
	}

	// 3. 开发/测试环境：查询参数
	if userIDParam := c.GetString("user_id"); userIDParam != "" {
		if userID, err := strconv.ParseUint(userIDParam, 10, 32); err == nil {
			return uint(userID), true
		}
	}

	return 0, false
}

// requireUser 获取用户ID，未认证时直接写401响应
func (c *BaseController) requireUser() (uint, bool) {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		c.JSONError(http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	return userID, true
}

// getClientIP 获取客户端真实IP地址
func (c *BaseController) getClientIP() string {
	xForwardedFor := c.Ctx.Input.Header("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}
	if xRealIP := c.Ctx.Input.Header("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}
	return c.Ctx.Input.IP()
}
