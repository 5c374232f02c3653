package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/middleware"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service"
	"k8s.io/klog/v2"
)

// ChatHandler 会话处理器
type ChatHandler struct {
	service *service.ChatService
}

func NewChatHandler(service *service.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *ChatHandler) RegisterRoutes(router *gin.RouterGroup) {
	chats := router.Group("/chats")
	{
		chats.GET("", h.List)
		chats.POST("", h.Create)
		chats.GET("/:chatId", h.Get)
		chats.PUT("/:chatId", h.Update)
		chats.DELETE("/:chatId", h.Delete)
		chats.GET("/:chatId/messages", h.ListMessages)
		chats.POST("/:chatId/messages", h.CreateMessage)
		chats.GET("/:chatId/messages/:messageId/sources", h.ListSources)
	}
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req service.CreateChatRequest
	if !bindJSON(c, "CreateChat", &req) {
		return
	}
	chat, err := h.service.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "CreateChat", err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) Get(c *gin.Context) {
	chat, err := h.service.Get(c.Request.Context(), middleware.UserID(c), c.Param("chatId"))
	if err != nil {
		respondError(c, "GetChat", err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.service.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "ListChats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": chats})
}

func (h *ChatHandler) Update(c *gin.Context) {
	var req service.UpdateChatRequest
	if !bindJSON(c, "UpdateChat", &req) {
		return
	}
	chat, err := h.service.Update(c.Request.Context(), middleware.UserID(c), c.Param("chatId"), &req)
	if err != nil {
		respondError(c, "UpdateChat", err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.UserID(c), c.Param("chatId")); err != nil {
		respondError(c, "DeleteChat", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// ListMessages 获取会话消息，limit 默认不限制
func (h *ChatHandler) ListMessages(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	messages, err := h.service.ListMessages(c.Request.Context(), middleware.UserID(c), c.Param("chatId"), limit)
	if err != nil {
		respondError(c, "ListMessages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

func (h *ChatHandler) ListSources(c *gin.Context) {
	sources, err := h.service.ListSources(c.Request.Context(), middleware.UserID(c), c.Param("chatId"), c.Param("messageId"))
	if err != nil {
		respondError(c, "ListSources", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sources})
}

// CreateMessage 提问，执行失败时返回 503 和 error_message
func (h *ChatHandler) CreateMessage(c *gin.Context) {
	var req service.CreateMessageRequest
	if !bindJSON(c, "CreateMessage", &req) {
		return
	}
	resp, err := h.service.CreateMessage(c.Request.Context(), middleware.UserID(c), c.Param("chatId"), &req, service.MessageOptions{
		IncludeTrace: middleware.IsAdmin(c),
	})
	if err != nil {
		respondError(c, "CreateMessage", err)
		return
	}
	if resp.ErrorMessage != "" {
		klog.V(6).Infof("CreateMessage: chat=%s, error=%s", c.Param("chatId"), resp.ErrorMessage)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error_message": resp.ErrorMessage})
		return
	}
	c.JSON(http.StatusOK, resp)
}
