package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/eventbus"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/repository"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service/chatengine"
	"k8s.io/klog/v2"
)

const defaultChatTitle = "New Chat"

// CreateChatRequest 创建会话请求
type CreateChatRequest struct {
	Title        string `json:"title"`
	WorkflowID   string `json:"workflow_id" binding:"required"`
	WorkflowType string `json:"workflow_type"` // WORKFLOW, WORKSPACE
}

// UpdateChatRequest 更新会话请求
type UpdateChatRequest struct {
	Title string `json:"title" binding:"required"`
}

// CreateMessageRequest 提问请求
type CreateMessageRequest struct {
	Question string `json:"question" binding:"required"`
}

// MessageOptions 提问选项
type MessageOptions struct {
	// IncludeTrace 管理员请求时返回执行 trace
	IncludeTrace bool
}

// MessageResponse 提问结果，失败时只有 ErrorMessage
type MessageResponse struct {
	Question     *model.ChatMessage    `json:"question,omitempty"`
	Answer       *model.ChatMessage    `json:"answer,omitempty"`
	Sources      []model.MessageSource `json:"sources,omitempty"`
	TraceData    chatengine.TraceData  `json:"trace_data,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
}

// ChatEngineConfig 会话执行参数
type ChatEngineConfig struct {
	Compile      chatengine.CompileOptions
	HistoryLimit int
	// Streaming 有订阅者时对终止步骤启用流式输出
	Streaming bool
}

type ChatService struct {
	chats      repository.ChatRepository
	messages   repository.MessageRepository
	workflows  repository.WorkflowRepository
	workspaces repository.WorkspaceRepository
	builder    *WorkflowBuilder
	bus        *eventbus.ChatEventBus
	engine     ChatEngineConfig
}

func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	workflows repository.WorkflowRepository,
	workspaces repository.WorkspaceRepository,
	bus *eventbus.ChatEventBus,
	engine ChatEngineConfig,
) *ChatService {
	return &ChatService{
		chats:      chats,
		messages:   messages,
		workflows:  workflows,
		workspaces: workspaces,
		builder:    NewWorkflowBuilder(workspaces, workflows),
		bus:        bus,
		engine:     engine,
	}
}

func (s *ChatService) Create(ctx context.Context, userID string, req *CreateChatRequest) (*model.Chat, error) {
	targetType := req.WorkflowType
	if targetType == "" {
		targetType = model.ChatTargetWorkflow
	}
	if err := s.checkTarget(ctx, targetType, req.WorkflowID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultChatTitle
	}
	chat := &model.Chat{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        title,
		WorkflowID:   req.WorkflowID,
		WorkflowType: targetType,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		klog.Errorf("创建会话失败: %v", err)
		return nil, err
	}
	klog.V(6).Infof("创建会话: id=%s, user=%s, target=%s/%s", chat.ID, userID, targetType, req.WorkflowID)
	return chat, nil
}

func (s *ChatService) checkTarget(ctx context.Context, targetType, id string) error {
	var err error
	switch targetType {
	case model.ChatTargetWorkflow:
		_, err = s.workflows.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkflowNotFound
		}
	case model.ChatTargetWorkspace:
		_, err = s.workspaces.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkspaceNotFound
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidWorkflowType, targetType)
	}
	return err
}

func (s *ChatService) Get(ctx context.Context, userID, id string) (*model.Chat, error) {
	chat, err := s.chats.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: No chat found with id %s for user %s", ErrChatNotFound, id, userID)
		}
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) List(ctx context.Context, userID string) ([]model.Chat, error) {
	return s.chats.List(ctx, userID)
}

func (s *ChatService) Update(ctx context.Context, userID, id string, req *UpdateChatRequest) (*model.Chat, error) {
	chat, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	chat.Title = strings.TrimSpace(req.Title)
	if err := s.chats.Save(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// Delete 删除会话及全部消息
func (s *ChatService) Delete(ctx context.Context, userID, id string) error {
	if err := s.chats.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: No chat found with id %s for user %s", ErrChatNotFound, id, userID)
		}
		return err
	}
	klog.V(6).Infof("删除会话: id=%s, user=%s", id, userID)
	return nil
}

// ListMessages 按时间正序返回最近 limit 条消息
func (s *ChatService) ListMessages(ctx context.Context, userID, chatID string, limit int) ([]model.ChatMessage, error) {
	if _, err := s.Get(ctx, userID, chatID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByChat(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func (s *ChatService) ListSources(ctx context.Context, userID, chatID, messageID string) ([]model.MessageSource, error) {
	if _, err := s.Get(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.messages.ListSources(ctx, chatID, messageID)
}

// CreateMessage 在会话中提问
// 会话不存在时返回 ErrChatNotFound，其余失败转换为 MessageResponse.ErrorMessage
func (s *ChatService) CreateMessage(ctx context.Context, userID, chatID string, req *CreateMessageRequest, opts MessageOptions) (*MessageResponse, error) {
	chat, err := s.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	workflow, err := s.builder.Build(ctx, chat)
	if err != nil {
		klog.Errorf("构建会话工作流失败: chat=%s, err=%v", chatID, err)
		return &MessageResponse{ErrorMessage: err.Error()}, nil
	}

	session, err := chatengine.NewSession(ctx, chatengine.SessionOptions{
		ChatID:       chatID,
		UserID:       userID,
		Workflow:     workflow,
		Compile:      s.engine.Compile,
		History:      newMessageHistory(s.messages),
		HistoryLimit: s.engine.HistoryLimit,
		Streaming:    s.engine.Streaming && s.bus != nil && s.bus.HasSubscribers(chatID),
		Callbacks:    s.callbacks(chatID),
		IncludeTrace: opts.IncludeTrace,
	})
	if err != nil {
		klog.Errorf("编译会话工作流失败: chat=%s, err=%v", chatID, err)
		return &MessageResponse{ErrorMessage: err.Error()}, nil
	}

	resp, errResp := session.Query(ctx, req.Question)
	if errResp != nil {
		return &MessageResponse{ErrorMessage: errResp.ErrorMessage}, nil
	}

	out := &MessageResponse{
		Question:  fromTurnMessage(resp.Turn, resp.Turn.Human),
		Answer:    fromTurnMessage(resp.Turn, resp.Turn.AI),
		TraceData: resp.TraceData,
	}
	sources, err := s.messages.ListSources(ctx, chatID, resp.Turn.AI.ID)
	if err != nil {
		klog.Warningf("查询引用文档失败: chat=%s, message=%s, err=%v", chatID, resp.Turn.AI.ID, err)
	}
	out.Sources = sources
	out.Answer.Sources = sources
	return out, nil
}

// callbacks 将执行进度与流式输出发布到事件总线
func (s *ChatService) callbacks(chatID string) *chatengine.Callbacks {
	if s.bus == nil {
		return nil
	}
	return &chatengine.Callbacks{
		UpdateStatus: func(ctx context.Context, update chatengine.StatusUpdate) {
			event := eventbus.ChatEvent{
				Type:          eventbus.ChatEventStatus,
				ChatID:        chatID,
				Operation:     update.Operation,
				Status:        update.Status,
				Message:       update.Message,
				ExecutionTime: update.ExecutionTime.Milliseconds(),
			}
			if err := s.bus.Publish(ctx, chatID, event); err != nil {
				klog.V(6).Infof("[ChatService] 推送状态失败: chat=%s, err=%v", chatID, err)
			}
		},
		// 订阅者各自的推送失败不影响本次提问，只有调用方自身取消才中止
		StreamChunks: func(ctx context.Context, chunks []string) error {
			event := eventbus.ChatEvent{
				Type:   eventbus.ChatEventChunk,
				ChatID: chatID,
				Chunks: chunks,
			}
			if err := s.bus.Publish(ctx, chatID, event); err != nil {
				klog.V(6).Infof("[ChatService] 推送输出失败: chat=%s, err=%v", chatID, err)
			}
			return ctx.Err()
		},
	}
}

func fromTurnMessage(turn *chatengine.ChatTurn, msg chatengine.Message) *model.ChatMessage {
	return &model.ChatMessage{
		ID:        msg.ID,
		ChatID:    turn.ChatID,
		UserID:    turn.UserID,
		Type:      msg.Type,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
}
