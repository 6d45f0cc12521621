package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/service"
)

// ConversationHandler 对话管理处理器
type ConversationHandler struct {
	svc *service.ConversationService
}

// NewConversationHandler 创建对话管理处理器
func NewConversationHandler(svc *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// ListConversationsQuery 列表查询参数
type ListConversationsQuery struct {
	ProjectID string `form:"project_id"`
	Limit     int64  `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset    int64  `form:"offset" binding:"omitempty,min=0"`
}

// ListConversationsResponse 对话列表响应
type ListConversationsResponse struct {
	Conversations []*model.Conversation `json:"conversations"`
	Total         int                   `json:"total"`
}

// ListMessagesResponse 消息列表响应
type ListMessagesResponse struct {
	Messages []model.Message `json:"messages"`
}

// Create 创建对话
// @Summary      创建对话
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.CreateConversationRequest  true  "创建请求"
// @Success      201      {object}  model.Conversation
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Router       /api/v1/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var req model.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	conv, err := h.svc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// List 获取对话列表
// @Summary      获取对话列表
// @Description  按最近更新时间倒序，可按 project_id 过滤
// @Tags         对话管理
// @Produce      json
// @Security     BearerAuth
// @Param        project_id  query     string  false  "项目ID"
// @Param        limit       query     int     false  "每页数量（默认20，最大100）"
// @Param        offset      query     int     false  "偏移量"
// @Success      200         {object}  ListConversationsResponse
// @Failure      401         {object}  ErrorResponse
// @Router       /api/v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var q ListConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	convs, err := h.svc.List(c.Request.Context(), userID, q.ProjectID, q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
	})
}

// Get 获取对话详情
// @Summary      获取对话详情
// @Tags         对话管理
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "对话ID"
// @Success      200  {object}  model.Conversation
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	conv, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Rename 重命名对话
// @Summary      重命名对话
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "对话ID"
// @Param        request  body      model.RenameConversationRequest  true  "新标题"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/conversations/{id} [patch]
func (h *ConversationHandler) Rename(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var req model.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.Rename(c.Request.Context(), userID, c.Param("id"), req.Title); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation renamed"})
}

// Delete 删除对话
// @Summary      删除对话
// @Description  同时删除对话下的全部消息
// @Tags         对话管理
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "对话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/conversations/{id} [delete]
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// Messages 获取对话消息
// @Summary      获取对话消息
// @Description  按创建顺序返回
// @Tags         对话管理
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "对话ID"
// @Success      200  {object}  ListMessagesResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	msgs, err := h.svc.Messages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListMessagesResponse{Messages: msgs})
}

// AddToProject 把对话移入项目
// @Summary      移入项目
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true  "对话ID"
// @Param        request  body      model.MoveConversationRequest  true  "目标项目"
// @Success      200      {object}  model.Conversation
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/conversations/{id}/project [put]
func (h *ConversationHandler) AddToProject(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var req model.MoveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	conv, err := h.svc.AddToProject(c.Request.Context(), userID, c.Param("id"), req.ProjectID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// RemoveFromProject 把对话移出项目
// @Summary      移出项目
// @Tags         对话管理
// @Produce      json
// @Security     BearerAuth
// @Param        id          path      string  true  "对话ID"
// @Param        project_id  path      string  true  "项目ID"
// @Success      200         {object}  model.Conversation
// @Failure      404         {object}  ErrorResponse
// @Router       /api/v1/conversations/{id}/project/{project_id} [delete]
func (h *ConversationHandler) RemoveFromProject(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	conv, err := h.svc.RemoveFromProject(c.Request.Context(), userID, c.Param("id"), c.Param("project_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// CreateProject 新建项目并移入对话
// @Summary      新建项目并移入对话
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "对话ID"
// @Param        request  body      model.CreateProjectRequest  true  "项目信息"
// @Success      201      {object}  model.ProjectWithConversationResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/conversations/{id}/project [post]
func (h *ConversationHandler) CreateProject(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var req model.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.svc.CreateProjectWithConversation(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}
