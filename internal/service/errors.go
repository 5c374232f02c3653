package service

import "errors"

var (
	ErrWorkspaceNotFound   = errors.New("workspace not found")
	ErrWorkflowNotFound    = errors.New("workflow not found")
	ErrChatNotFound        = errors.New("chat not found")
	ErrNameRequired        = errors.New("name is required")
	ErrInvalidWorkspace    = errors.New("invalid workspace definition")
	ErrInvalidWorkflowType = errors.New("invalid workflow type")
)
