package repository

import (
	"context"
	"errors"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type WorkspaceRepository interface {
	Create(ctx context.Context, workspace *model.Workspace) error
	Get(ctx context.Context, id string) (*model.Workspace, error)
	// GetMany 批量获取，结果顺序与 ids 一致，缺失的 id 会被跳过
	GetMany(ctx context.Context, ids []string) ([]model.Workspace, error)
	List(ctx context.Context) ([]model.Workspace, error)
	Save(ctx context.Context, workspace *model.Workspace) error
	Delete(ctx context.Context, id string) error
}

type WorkflowRepository interface {
	Create(ctx context.Context, workflow *model.Workflow) error
	Get(ctx context.Context, id string) (*model.Workflow, error)
	List(ctx context.Context) ([]model.Workflow, error)
	Save(ctx context.Context, workflow *model.Workflow) error
	Delete(ctx context.Context, id string) error
}

type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat) error
	// Get 获取指定用户的会话
	Get(ctx context.Context, userID, id string) (*model.Chat, error)
	List(ctx context.Context, userID string) ([]model.Chat, error)
	Save(ctx context.Context, chat *model.Chat) error
	// Delete 删除会话及其消息和引用文档
	Delete(ctx context.Context, userID, id string) error
}

type MessageRepository interface {
	// CreateTurn 在一个事务中写入一问一答及引用文档
	CreateTurn(ctx context.Context, human, ai *model.ChatMessage, sources []model.MessageSource) error
	// ListByChat 按时间倒序返回最近的 limit 条消息，limit <= 0 表示不限制
	ListByChat(ctx context.Context, chatID string, limit int) ([]model.ChatMessage, error)
	ListSources(ctx context.Context, chatID, messageID string) ([]model.MessageSource, error)
}
