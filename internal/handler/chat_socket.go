package handler

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/eventbus"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/metrics"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/middleware"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service"
	"k8s.io/klog/v2"
)

const (
	socketPingInterval = 20 * time.Second
	socketReadTimeout  = 60 * time.Second
	socketWriteTimeout = 10 * time.Second
	socketReadLimit    = 64 * 1024
	socketBuffer       = 256
)

// 服务端推送的消息类型，status/chunk 直接使用 ChatEvent
const (
	socketMessageAnswer = "message"
	socketMessageError  = "error"
)

var errSocketClosed = errors.New("socket closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// socketRequest 客户端消息
type socketRequest struct {
	Question string `json:"question"`
}

type socketMessage struct {
	Type         string                   `json:"type"`
	ChatID       string                   `json:"chat_id"`
	Data         *service.MessageResponse `json:"data,omitempty"`
	ErrorMessage string                   `json:"error_message,omitempty"`
}

// ChatSocketHandler 通过 websocket 提问并接收执行进度与流式输出
type ChatSocketHandler struct {
	service *service.ChatService
	bus     *eventbus.ChatEventBus
}

func NewChatSocketHandler(service *service.ChatService, bus *eventbus.ChatEventBus) *ChatSocketHandler {
	return &ChatSocketHandler{service: service, bus: bus}
}

// RegisterRoutes 注册路由
func (h *ChatSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/chats/:chatId/ws", h.Serve)
}

func (h *ChatSocketHandler) Serve(c *gin.Context) {
	userID := middleware.UserID(c)
	chatID := c.Param("chatId")
	if _, err := h.service.Get(c.Request.Context(), userID, chatID); err != nil {
		respondError(c, "ChatSocket", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.V(6).Infof("ChatSocket: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	metrics.ActiveChatSockets.Inc()
	defer metrics.ActiveChatSockets.Dec()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := make(chan any, socketBuffer)
	send := func(v any) error {
		select {
		case out <- v:
			return nil
		case <-ctx.Done():
			return errSocketClosed
		}
	}

	unsubscribe := h.bus.Subscribe(chatID, func(_ context.Context, event eventbus.ChatEvent) error {
		return send(event)
	})
	defer unsubscribe()

	conn.SetReadLimit(socketReadLimit)
	conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
		return nil
	})

	opts := service.MessageOptions{IncludeTrace: middleware.IsAdmin(c)}
	var busy atomic.Bool
	go func() {
		defer cancel()
		for {
			var req socketRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Question == "" {
				send(socketMessage{Type: socketMessageError, ChatID: chatID, ErrorMessage: "question is required"})
				continue
			}
			if !busy.CompareAndSwap(false, true) {
				send(socketMessage{Type: socketMessageError, ChatID: chatID, ErrorMessage: "a question is already in progress"})
				continue
			}
			go func(question string) {
				defer busy.Store(false)
				h.ask(ctx, userID, chatID, question, opts, send)
			}(req.Question)
		}
	}()

	ticker := time.NewTicker(socketPingInterval)
	defer ticker.Stop()
	klog.V(6).Infof("ChatSocket: connected, chat=%s, user=%s", chatID, userID)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(socketWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *ChatSocketHandler) ask(ctx context.Context, userID, chatID, question string, opts service.MessageOptions, send func(any) error) {
	resp, err := h.service.CreateMessage(ctx, userID, chatID, &service.CreateMessageRequest{Question: question}, opts)
	switch {
	case err != nil:
		send(socketMessage{Type: socketMessageError, ChatID: chatID, ErrorMessage: err.Error()})
	case resp.ErrorMessage != "":
		send(socketMessage{Type: socketMessageError, ChatID: chatID, ErrorMessage: resp.ErrorMessage})
	default:
		send(socketMessage{Type: socketMessageAnswer, ChatID: chatID, Data: resp})
	}
}
