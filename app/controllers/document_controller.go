package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/phpmigrate/backend-go/internal/retrieval"
	"github.com/phpmigrate/backend-go/internal/services"
)

// DocumentController 参考文档管理与检索
type DocumentController struct {
	BaseController
	documentService *services.DocumentService
	searcher        *retrieval.Searcher
}

// Prepare 懒构造服务
func (c *DocumentController) Prepare() {
	c.documentService = newDocumentService()
	c.searcher = newSearcher()
}

// Upload 批量上传参考文档
func (c *DocumentController) Upload() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	var req services.UploadDocumentsRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := c.documentService.Upload(c.Ctx.Request.Context(), userID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(results)
}

// List 列出用户的参考文档
func (c *DocumentController) List() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	docs, err := c.documentService.List(c.Ctx.Request.Context(), userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(docs)
}

// Delete 删除参考文档
func (c *DocumentController) Delete() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	documentID, err := strconv.ParseUint(c.Ctx.Input.Param(":id"), 10, 32)
	if err != nil {
		c.JSONError(http.StatusBadRequest, "invalid document id")
		return
	}

	if err := c.documentService.Delete(c.Ctx.Request.Context(), userID, uint(documentID)); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"deleted": documentID})
}

// Search 相似度检索分块
func (c *DocumentController) Search() {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	query := c.GetString("q")
	if query == "" {
		c.JSONError(http.StatusBadRequest, "query parameter q is required")
		return
	}
	topK, _ := c.GetInt("top_k", 0)

	chunks, err := c.searcher.Search(c.Ctx.Request.Context(), userID, query, topK)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(chunks)
}
