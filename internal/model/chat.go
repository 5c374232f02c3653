package model

import "time"

// 会话目标类型
const (
	ChatTargetWorkflow  = "WORKFLOW"
	ChatTargetWorkspace = "WORKSPACE"
)

// 消息类型
const (
	MessageTypeHuman = "human"
	MessageTypeAI    = "ai"
)

// Chat 会话，绑定一个工作流或单个工作空间
type Chat struct {
	ID           string    `json:"id" gorm:"primaryKey;size:64"`
	UserID       string    `json:"user_id" gorm:"size:128;index;not null"`
	Title        string    `json:"title" gorm:"size:255"`
	WorkflowID   string    `json:"workflow_id" gorm:"size:64"`
	WorkflowType string    `json:"workflow_type" gorm:"size:32;default:WORKFLOW"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Chat) TableName() string {
	return "chats"
}

// ChatMessage 会话中的一条消息
type ChatMessage struct {
	ID        string          `json:"id" gorm:"primaryKey;size:64"`
	ChatID    string          `json:"chat_id" gorm:"size:64;index:idx_chat_messages_chat_created;not null"`
	UserID    string          `json:"user_id" gorm:"size:128;index"`
	Type      string          `json:"type" gorm:"size:16;not null"` // human, ai
	Text      string          `json:"text" gorm:"type:text"`
	Sources   []MessageSource `json:"sources,omitempty" gorm:"foreignKey:MessageID"`
	CreatedAt time.Time       `json:"created_at" gorm:"index:idx_chat_messages_chat_created"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// MessageSource AI 回复引用的文档
type MessageSource struct {
	ID          string         `json:"id" gorm:"primaryKey;size:64"`
	MessageID   string         `json:"message_id" gorm:"size:64;index;not null"`
	ChatID      string         `json:"chat_id" gorm:"size:64;index"`
	PageContent string         `json:"page_content" gorm:"type:text"`
	Metadata    map[string]any `json:"metadata" gorm:"serializer:json"`
	Score       *float64       `json:"score,omitempty"`
	SortOrder   int            `json:"sort_order" gorm:"default:0"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TableName 指定表名
func (MessageSource) TableName() string {
	return "message_sources"
}
