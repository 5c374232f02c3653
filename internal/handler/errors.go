package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service"
	"k8s.io/klog/v2"
)

// respondError 将服务层错误映射为 HTTP 状态码
func respondError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrWorkspaceNotFound),
		errors.Is(err, service.ErrWorkflowNotFound),
		errors.Is(err, service.ErrChatNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrInvalidWorkspace),
		errors.Is(err, service.ErrInvalidWorkflowType):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		klog.Errorf("%s: failed: %v", op, err)
	} else {
		klog.V(6).Infof("%s: %v", op, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, op string, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		klog.V(6).Infof("%s: invalid request: %v", op, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
