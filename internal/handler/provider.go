package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Krosnoz/dialogue/internal/service"
)

// ProviderHandler Provider 目录处理器
type ProviderHandler struct {
	svc *service.ProviderService
}

// NewProviderHandler 创建 Provider 目录处理器
func NewProviderHandler(svc *service.ProviderService) *ProviderHandler {
	return &ProviderHandler{svc: svc}
}

// List 获取 Provider 列表
// @Summary      获取 Provider 列表
// @Description  requiresApiKey 为 true 表示服务端未配置该 Provider 的 key，需要在发送时携带 apiKey
// @Tags         Provider
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.ProvidersResponse
// @Router       /api/v1/providers [get]
func (h *ProviderHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.List())
}
