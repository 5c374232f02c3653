package model

import (
	"time"
)

// 工作空间类型
const (
	WorkspaceTypeData            = "DATA"
	WorkspaceTypeRequestResponse = "REQUEST_RESPONSE"
	WorkspaceTypeRouter          = "ROUTER"
)

// 数据导入状态
const (
	DataImportNotStarted = "NOT_STARTED"
	DataImportInProgress = "IN_PROGRESS"
	DataImportCompleted  = "COMPLETED"
	DataImportFailed     = "FAILED"
)

// Workspace 工作空间：绑定对话模型、提示词模板以及可选的检索数据源
type Workspace struct {
	ID               string            `json:"id" gorm:"primaryKey;size:64"`
	UserID           string            `json:"user_id" gorm:"size:128;index"`
	Name             string            `json:"name" gorm:"size:255;not null"`
	Description      string            `json:"description" gorm:"size:1000"`
	Type             string            `json:"type" gorm:"size:32;not null"`
	ChatModel        ChatModelRef      `json:"chat_model" gorm:"serializer:json"`
	Prompt           *PromptConfig     `json:"prompt,omitempty" gorm:"serializer:json"`
	Data             *DataConfig       `json:"data,omitempty" gorm:"serializer:json"`
	RouterDefinition *RouterDefinition `json:"router_definition,omitempty" gorm:"serializer:json"`
	DataImport       DataImport        `json:"data_import" gorm:"serializer:json"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TableName 指定表名
func (Workspace) TableName() string {
	return "workspaces"
}

type ChatModelRef struct {
	ModelID string `json:"model_id"`
	Name    string `json:"name,omitempty"`
}

type PromptConfig struct {
	PromptTemplate string `json:"prompt_template"`
}

type DataConfig struct {
	Indexing *IndexingConfig `json:"indexing,omitempty"`
}

type IndexingConfig struct {
	VectorStorage  string          `json:"vector_storage,omitempty"`
	EmbeddingModel *EmbeddingModel `json:"embedding_model,omitempty"`
}

type EmbeddingModel struct {
	ModelID    string `json:"model_id"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// RouterDefinition 路由工作空间可选择的目标
type RouterDefinition struct {
	Workspaces []RouteTarget `json:"workspaces"`
}

type RouteTarget struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type DataImport struct {
	Status string `json:"status"`
}

// EmbeddingModelRef 返回检索时使用的向量模型引用，没有配置时为空
func (w *Workspace) EmbeddingModelRef() string {
	if w.Data == nil || w.Data.Indexing == nil || w.Data.Indexing.EmbeddingModel == nil {
		return ""
	}
	return w.Data.Indexing.EmbeddingModel.ModelID
}

// PromptTemplate 返回自定义提示词，空字符串表示使用默认模板
func (w *Workspace) PromptTemplate() string {
	if w.Prompt == nil {
		return ""
	}
	return w.Prompt.PromptTemplate
}
