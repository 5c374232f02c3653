package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/middleware"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service"
)

// WorkspaceHandler 工作空间处理器
type WorkspaceHandler struct {
	service *service.WorkspaceService
}

func NewWorkspaceHandler(service *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *WorkspaceHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/workspaces", h.List)
	router.POST("/workspaces", h.Create)
	router.GET("/workspaces/:id", h.Get)
	router.PUT("/workspaces/:id", h.Update)
	router.DELETE("/workspaces/:id", h.Delete)
}

func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req service.WorkspaceRequest
	if !bindJSON(c, "CreateWorkspace", &req) {
		return
	}
	workspace, err := h.service.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "CreateWorkspace", err)
		return
	}
	c.JSON(http.StatusCreated, workspace)
}

func (h *WorkspaceHandler) Get(c *gin.Context) {
	workspace, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "GetWorkspace", err)
		return
	}
	c.JSON(http.StatusOK, workspace)
}

func (h *WorkspaceHandler) List(c *gin.Context) {
	workspaces, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, "ListWorkspaces", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": workspaces})
}

func (h *WorkspaceHandler) Update(c *gin.Context) {
	var req service.WorkspaceRequest
	if !bindJSON(c, "UpdateWorkspace", &req) {
		return
	}
	workspace, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, "UpdateWorkspace", err)
		return
	}
	c.JSON(http.StatusOK, workspace)
}

func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "DeleteWorkspace", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
