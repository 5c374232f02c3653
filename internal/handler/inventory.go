package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/inventory"
)

// InventoryHandler 模型清单处理器
type InventoryHandler struct {
	inventory *inventory.Inventory
}

func NewInventoryHandler(inv *inventory.Inventory) *InventoryHandler {
	return &InventoryHandler{inventory: inv}
}

// RegisterRoutes 注册路由
func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/llm/inventory", h.List)
}

// List 返回脱敏后的模型列表
func (h *InventoryHandler) List(c *gin.Context) {
	models := h.inventory.List()
	masked := make([]inventory.ModelDescriptor, 0, len(models))
	for _, m := range models {
		masked = append(masked, m.Masked())
	}
	c.JSON(http.StatusOK, gin.H{
		"default_model_id": h.inventory.DefaultUUID(),
		"models":           masked,
	})
}
