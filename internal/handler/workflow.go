package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/middleware"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service"
)

// WorkflowHandler 工作流处理器
type WorkflowHandler struct {
	service *service.WorkflowService
}

func NewWorkflowHandler(service *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *WorkflowHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/workflows", h.List)
	router.POST("/workflows", h.Create)
	router.GET("/workflows/:id", h.Get)
	router.PUT("/workflows/:id", h.Update)
	router.DELETE("/workflows/:id", h.Delete)
}

func (h *WorkflowHandler) Create(c *gin.Context) {
	var req service.WorkflowRequest
	if !bindJSON(c, "CreateWorkflow", &req) {
		return
	}
	workflow, err := h.service.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "CreateWorkflow", err)
		return
	}
	c.JSON(http.StatusCreated, workflow)
}

func (h *WorkflowHandler) Get(c *gin.Context) {
	workflow, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "GetWorkflow", err)
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *WorkflowHandler) List(c *gin.Context) {
	workflows, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, "ListWorkflows", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": workflows})
}

func (h *WorkflowHandler) Update(c *gin.Context) {
	var req service.WorkflowRequest
	if !bindJSON(c, "UpdateWorkflow", &req) {
		return
	}
	workflow, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, "UpdateWorkflow", err)
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *WorkflowHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "DeleteWorkflow", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
