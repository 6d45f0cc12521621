package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Krosnoz/dialogue/internal/model"
	"github.com/Krosnoz/dialogue/internal/service"
)

// ProjectHandler 项目管理处理器
type ProjectHandler struct {
	svc *service.ProjectService
}

// NewProjectHandler 创建项目管理处理器
func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// ListProjectsQuery 项目列表查询参数
type ListProjectsQuery struct {
	IncludeArchived bool `form:"include_archived"`
}

// ListProjectsResponse 项目列表响应
type ListProjectsResponse struct {
	Projects []*model.Project `json:"projects"`
	Total    int              `json:"total"`
}

// Create 创建项目
// @Summary      创建项目
// @Tags         项目管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.CreateProjectRequest  true  "创建请求"
// @Success      201      {object}  model.Project
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var req model.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// List 获取项目列表
// @Summary      获取项目列表
// @Description  按最近更新时间倒序，默认不含已归档项目
// @Tags         项目管理
// @Produce      json
// @Security     BearerAuth
// @Param        include_archived  query     bool  false  "包含已归档项目"
// @Success      200               {object}  ListProjectsResponse
// @Router       /api/v1/projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var q ListProjectsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	projects, err := h.svc.List(c.Request.Context(), userID, q.IncludeArchived)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListProjectsResponse{Projects: projects, Total: len(projects)})
}

// ListRecent 最近项目
// @Summary      最近项目
// @Tags         项目管理
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ListProjectsResponse
// @Router       /api/v1/projects/recent [get]
func (h *ProjectHandler) ListRecent(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	projects, err := h.svc.ListRecent(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListProjectsResponse{Projects: projects, Total: len(projects)})
}

// Get 获取项目详情
// @Summary      获取项目详情
// @Tags         项目管理
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "项目ID"
// @Success      200  {object}  model.Project
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// Update 更新项目
// @Summary      更新项目
// @Description  重命名、修改描述或归档/取消归档
// @Tags         项目管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "项目ID"
// @Param        request  body      model.UpdateProjectRequest  true  "更新内容"
// @Success      200      {object}  model.Project
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/projects/{id} [patch]
func (h *ProjectHandler) Update(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	var req model.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.svc.Update(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// Delete 删除项目
// @Summary      删除项目
// @Description  同时删除项目下的全部对话
// @Tags         项目管理
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "项目ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}
