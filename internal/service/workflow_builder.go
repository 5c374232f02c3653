package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/repository"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service/chatengine"
	"k8s.io/klog/v2"
)

// WorkflowBuilder 将会话绑定的工作流或工作空间转换为步骤描述
type WorkflowBuilder struct {
	workspaces repository.WorkspaceRepository
	workflows  repository.WorkflowRepository
}

func NewWorkflowBuilder(workspaces repository.WorkspaceRepository, workflows repository.WorkflowRepository) *WorkflowBuilder {
	return &WorkflowBuilder{workspaces: workspaces, workflows: workflows}
}

// Build 生成会话的工作流配置
// WORKSPACE 类型的会话视为只有一个步骤的工作流
func (b *WorkflowBuilder) Build(ctx context.Context, chat *model.Chat) (*chatengine.WorkflowConfiguration, error) {
	var ids []string
	switch chat.WorkflowType {
	case model.ChatTargetWorkspace:
		ids = []string{chat.WorkflowID}
	case model.ChatTargetWorkflow, "":
		workflow, err := b.workflows.Get(ctx, chat.WorkflowID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, chat.WorkflowID)
			}
			return nil, err
		}
		ids = workflow.Definition.WorkspaceIDs
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidWorkflowType, chat.WorkflowType)
	}

	workspaces, err := b.loadWorkspaces(ctx, ids)
	if err != nil {
		return nil, err
	}

	cfg := &chatengine.WorkflowConfiguration{Steps: make([]*chatengine.WorkflowStep, 0, len(workspaces))}
	for i := range workspaces {
		step, err := b.step(ctx, &workspaces[i], map[string]bool{})
		if err != nil {
			return nil, err
		}
		cfg.Steps = append(cfg.Steps, step)
	}
	klog.V(6).Infof("[WorkflowBuilder] 构建工作流: chat=%s, steps=%d", chat.ID, len(cfg.Steps))
	return cfg, nil
}

func (b *WorkflowBuilder) loadWorkspaces(ctx context.Context, ids []string) ([]model.Workspace, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: workflow has no workspaces", ErrInvalidWorkspace)
	}
	workspaces, err := b.workspaces.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(ids, workspaces); len(missing) > 0 {
		return nil, fmt.Errorf("%w: Unable to locate all workspaces data for %s", ErrWorkspaceNotFound, strings.Join(missing, ", "))
	}

	return workspaces, nil
}

// step 转换单个工作空间，ROUTER 递归展开目标
func (b *WorkflowBuilder) step(ctx context.Context, ws *model.Workspace, visiting map[string]bool) (*chatengine.WorkflowStep, error) {
	step := &chatengine.WorkflowStep{
		Type:              stepType(ws.Type),
		WorkspaceID:       ws.ID,
		LLMModelID:        ws.ChatModel.ModelID,
		PromptTemplate:    ws.PromptTemplate(),
		EmbeddingModelRef: ws.EmbeddingModelRef(),
	}
	if step.Type != chatengine.StepRouter {
		return step, nil
	}

	if visiting[ws.ID] {
		return nil, fmt.Errorf("%w: router cycle at workspace %s", ErrInvalidWorkspace, ws.ID)
	}
	visiting[ws.ID] = true
	defer delete(visiting, ws.ID)

	if ws.RouterDefinition == nil || len(ws.RouterDefinition.Workspaces) == 0 {
		return nil, fmt.Errorf("%w: router workspace %s has no targets", ErrInvalidWorkspace, ws.ID)
	}

	ids := make([]string, 0, len(ws.RouterDefinition.Workspaces))
	descriptions := make([]map[string]any, 0, len(ws.RouterDefinition.Workspaces))
	for _, target := range ws.RouterDefinition.Workspaces {
		ids = append(ids, target.ID)
		descriptions = append(descriptions, map[string]any{
			"id":          target.ID,
			"description": target.Description,
		})
	}
	targets, err := b.loadWorkspaces(ctx, ids)
	if err != nil {
		return nil, err
	}

	step.ResponseRouteKey = chatengine.DefaultRouteKey
	step.AdditionalPromptSubstitutions = map[string]any{"workspaces": descriptions}
	step.Routes = make(map[string]*chatengine.WorkflowStep, len(targets))
	for i := range targets {
		route, err := b.step(ctx, &targets[i], visiting)
		if err != nil {
			return nil, err
		}
		step.Routes[targets[i].ID] = route
	}
	return step, nil
}

func stepType(workspaceType string) chatengine.StepType {
	switch workspaceType {
	case model.WorkspaceTypeData:
		return chatengine.StepDataSearch
	case model.WorkspaceTypeRouter:
		return chatengine.StepRouter
	default:
		return chatengine.StepRequestResponse
	}
}
