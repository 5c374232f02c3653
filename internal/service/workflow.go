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

// WorkflowRequest 创建/更新工作流请求
type WorkflowRequest struct {
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description"`
	WorkspaceIDs []string `json:"workspace_ids" binding:"required"`
}

type WorkflowService struct {
	repo       repository.WorkflowRepository
	workspaces repository.WorkspaceRepository
}

func NewWorkflowService(repo repository.WorkflowRepository, workspaces repository.WorkspaceRepository) *WorkflowService {
	return &WorkflowService{repo: repo, workspaces: workspaces}
}

func (s *WorkflowService) Create(ctx context.Context, userID string, req *WorkflowRequest) (*model.Workflow, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	workflow := &model.Workflow{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Definition:  model.WorkflowDefinition{WorkspaceIDs: req.WorkspaceIDs},
	}
	if err := s.repo.Create(ctx, workflow); err != nil {
		klog.Errorf("创建工作流失败: %v", err)
		return nil, err
	}
	klog.V(6).Infof("创建工作流: id=%s, steps=%d", workflow.ID, len(req.WorkspaceIDs))
	return workflow, nil
}

func (s *WorkflowService) Get(ctx context.Context, id string) (*model.Workflow, error) {
	workflow, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkflowNotFound
		}
		return nil, err
	}
	return workflow, nil
}

func (s *WorkflowService) List(ctx context.Context) ([]model.Workflow, error) {
	return s.repo.List(ctx)
}

func (s *WorkflowService) Update(ctx context.Context, id string, req *WorkflowRequest) (*model.Workflow, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	workflow, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.Name = strings.TrimSpace(req.Name)
	workflow.Description = req.Description
	workflow.Definition.WorkspaceIDs = req.WorkspaceIDs
	if err := s.repo.Save(ctx, workflow); err != nil {
		klog.Errorf("更新工作流失败: id=%s, err=%v", id, err)
		return nil, err
	}
	return workflow, nil
}

func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkflowNotFound
		}
		return err
	}
	return nil
}

// validate 工作流必须引用至少一个已存在的工作空间
func (s *WorkflowService) validate(ctx context.Context, req *WorkflowRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return ErrNameRequired
	}
	if len(req.WorkspaceIDs) == 0 {
		return fmt.Errorf("%w: workflow requires at least one workspace", ErrInvalidWorkspace)
	}
	found, err := s.workspaces.GetMany(ctx, req.WorkspaceIDs)
	if err != nil {
		return err
	}
	if missing := missingIDs(req.WorkspaceIDs, found); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, strings.Join(missing, ", "))
	}
	return nil
}

func missingIDs(ids []string, found []model.Workspace) []string {
	present := make(map[string]bool, len(found))
	for _, w := range found {
		present[w.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
