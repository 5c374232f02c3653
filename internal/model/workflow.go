package model

import "time"

// Workflow 工作流：按顺序执行的一组工作空间
type Workflow struct {
	ID          string             `json:"id" gorm:"primaryKey;size:64"`
	UserID      string             `json:"user_id" gorm:"size:128;index"`
	Name        string             `json:"name" gorm:"size:255;not null"`
	Description string             `json:"description" gorm:"size:1000"`
	Definition  WorkflowDefinition `json:"definition" gorm:"serializer:json"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TableName 指定表名
func (Workflow) TableName() string {
	return "workflows"
}

type WorkflowDefinition struct {
	WorkspaceIDs []string `json:"workspace_ids"`
}
