package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/repository"
	"k8s.io/klog/v2"
)

// WorkspaceRequest 创建/更新工作空间请求
type WorkspaceRequest struct {
	Name             string                  `json:"name" binding:"required"`
	Description      string                  `json:"description"`
	Type             string                  `json:"type" binding:"required"`
	ChatModel        model.ChatModelRef      `json:"chat_model"`
	Prompt           *model.PromptConfig     `json:"prompt"`
	Data             *model.DataConfig       `json:"data"`
	RouterDefinition *model.RouterDefinition `json:"router_definition"`
}

type WorkspaceService struct {
	repo repository.WorkspaceRepository
}

func NewWorkspaceService(repo repository.WorkspaceRepository) *WorkspaceService {
	return &WorkspaceService{repo: repo}
}

func (s *WorkspaceService) Create(ctx context.Context, userID string, req *WorkspaceRequest) (*model.Workspace, error) {
	if err := validateWorkspace(req); err != nil {
		return nil, err
	}

	workspace := &model.Workspace{
		ID:         uuid.NewString(),
		UserID:     userID,
		DataImport: model.DataImport{Status: model.DataImportNotStarted},
	}
	applyWorkspaceRequest(workspace, req)

	if err := s.repo.Create(ctx, workspace); err != nil {
		klog.Errorf("创建工作空间失败: %v", err)
		return nil, err
	}
	klog.V(6).Infof("创建工作空间: id=%s, type=%s", workspace.ID, workspace.Type)
	return workspace, nil
}

func (s *WorkspaceService) Get(ctx context.Context, id string) (*model.Workspace, error) {
	workspace, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, err
	}
	return workspace, nil
}

func (s *WorkspaceService) List(ctx context.Context) ([]model.Workspace, error) {
	return s.repo.List(ctx)
}

func (s *WorkspaceService) Update(ctx context.Context, id string, req *WorkspaceRequest) (*model.Workspace, error) {
	if err := validateWorkspace(req); err != nil {
		return nil, err
	}
	workspace, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyWorkspaceRequest(workspace, req)
	if err := s.repo.Save(ctx, workspace); err != nil {
		klog.Errorf("更新工作空间失败: id=%s, err=%v", id, err)
		return nil, err
	}
	return workspace, nil
}

func (s *WorkspaceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkspaceNotFound
		}
		return err
	}
	klog.V(6).Infof("删除工作空间: id=%s", id)
	return nil
}

func applyWorkspaceRequest(workspace *model.Workspace, req *WorkspaceRequest) {
	workspace.Name = strings.TrimSpace(req.Name)
	workspace.Description = req.Description
	workspace.Type = req.Type
	workspace.ChatModel = req.ChatModel
	workspace.Prompt = req.Prompt
	workspace.Data = req.Data
	workspace.RouterDefinition = req.RouterDefinition
}

func validateWorkspace(req *WorkspaceRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return ErrNameRequired
	}
	switch req.Type {
	case model.WorkspaceTypeData, model.WorkspaceTypeRequestResponse:
	case model.WorkspaceTypeRouter:
		if req.RouterDefinition == nil || len(req.RouterDefinition.Workspaces) == 0 {
			return fmt.Errorf("%w: router workspace requires at least one target workspace", ErrInvalidWorkspace)
		}
		for _, target := range req.RouterDefinition.Workspaces {
			if target.ID == "" {
				return fmt.Errorf("%w: router target without id", ErrInvalidWorkspace)
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidWorkspace, req.Type)
	}
	return nil
}
