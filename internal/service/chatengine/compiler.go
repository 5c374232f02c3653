package chatengine

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/inventory"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/llm"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/prompt"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/search"
	"k8s.io/klog/v2"
)

// RetrieverFactory 为工作空间创建检索器
type RetrieverFactory func(cfg search.Config) retriever.Retriever

// CompileOptions 编译依赖
type CompileOptions struct {
	// Search 检索配置，WorkspaceID 与 ModelRefKey 按步骤填充
	Search       search.Config
	Models       inventory.Resolver
	ModelFactory llm.Factory
	NewRetriever RetrieverFactory
	MaxTokens    int
	Verbose      bool
}

func (o *CompileOptions) withDefaults() {
	if o.ModelFactory == nil {
		o.ModelFactory = llm.NewChatModel
	}
	if o.NewRetriever == nil {
		o.NewRetriever = func(cfg search.Config) retriever.Retriever {
			return search.NewRetriever(cfg)
		}
	}
}

type compiler struct {
	opts     CompileOptions
	invokers map[string]*ModelContext
}

// Compile 将步骤描述绑定为可执行工作流，路由递归编译
// 最后一个顶层步骤及其全部路由为终止步骤
func Compile(ctx context.Context, cfg *WorkflowConfiguration, opts CompileOptions) (*CompiledWorkflow, error) {
	if cfg == nil || len(cfg.Steps) == 0 {
		return nil, &CompilationError{Reason: "workflow has no steps"}
	}
	if opts.Models == nil {
		return nil, &CompilationError{Reason: "no model inventory configured"}
	}
	opts.withDefaults()

	c := &compiler{opts: opts, invokers: make(map[string]*ModelContext)}
	compiled := &CompiledWorkflow{
		Steps:   make([]*CompiledStep, 0, len(cfg.Steps)),
		verbose: opts.Verbose,
	}
	for i, step := range cfg.Steps {
		cs, err := c.compileStep(ctx, step, i == len(cfg.Steps)-1, 0)
		if err != nil {
			return nil, err
		}
		compiled.Steps = append(compiled.Steps, cs)
	}
	klog.V(6).Infof("[Compiler] 工作流编译完成: steps=%d", len(compiled.Steps))
	return compiled, nil
}

const maxRouteDepth = 16

func (c *compiler) compileStep(ctx context.Context, step *WorkflowStep, terminal bool, depth int) (*CompiledStep, error) {
	if step == nil {
		return nil, &CompilationError{Reason: "nil step"}
	}
	if !step.Type.Valid() {
		return nil, &CompilationError{StepType: step.Type, WorkspaceID: step.WorkspaceID, Reason: fmt.Sprintf("unknown step type %q", step.Type)}
	}
	if depth > maxRouteDepth {
		return nil, &CompilationError{StepType: step.Type, WorkspaceID: step.WorkspaceID, Reason: "routes nested too deeply"}
	}

	routeKey := step.ResponseRouteKey
	if step.Type == StepRouter {
		if len(step.Routes) == 0 {
			return nil, &CompilationError{StepType: step.Type, WorkspaceID: step.WorkspaceID, Reason: "router has no routes"}
		}
		if routeKey == "" {
			routeKey = DefaultRouteKey
		}
	}

	modelCtx, err := c.modelContext(ctx, step, routeKey)
	if err != nil {
		return nil, err
	}

	searchCfg := c.opts.Search
	searchCfg.WorkspaceID = step.WorkspaceID
	if step.EmbeddingModelRef != "" {
		searchCfg.ModelRefKey = step.EmbeddingModelRef
	}

	cs := &CompiledStep{
		Type:        step.Type,
		WorkspaceID: step.WorkspaceID,
		Retriever:   c.opts.NewRetriever(searchCfg),
		Model:       modelCtx,
		Terminal:    terminal,
	}

	if step.Type == StepRouter {
		cs.RouteKey = routeKey
		cs.Routes = make(map[string]*CompiledStep, len(step.Routes))
		for key, route := range step.Routes {
			compiledRoute, err := c.compileStep(ctx, route, terminal, depth+1)
			if err != nil {
				return nil, err
			}
			cs.Routes[key] = compiledRoute
		}
	}
	return cs, nil
}

func (c *compiler) modelContext(ctx context.Context, step *WorkflowStep, routeKey string) (*ModelContext, error) {
	desc, err := c.opts.Models.Resolve(ctx, step.LLMModelID)
	if err != nil {
		return nil, &CompilationError{StepType: step.Type, WorkspaceID: step.WorkspaceID, Reason: fmt.Sprintf("unable to resolve model %q", step.LLMModelID), Err: err}
	}

	mc, ok := c.invokers[step.LLMModelID]
	if !ok {
		chatModel, err := c.opts.ModelFactory(ctx, desc, c.opts.MaxTokens)
		if err != nil {
			return nil, &CompilationError{StepType: step.Type, WorkspaceID: step.WorkspaceID, Reason: fmt.Sprintf("unable to create model %q", desc.ModelID), Err: err}
		}
		mc = &ModelContext{Descriptor: desc, Invoker: llm.NewInvoker(chatModel, modelName(desc))}
		c.invokers[step.LLMModelID] = mc
	}

	kind, partials := promptDefaults(step.Type, routeKey)
	for k, v := range step.AdditionalPromptSubstitutions {
		partials[k] = v
	}
	return &ModelContext{
		Descriptor: mc.Descriptor,
		Invoker:    mc.Invoker,
		Renderer:   prompt.NewRenderer(kind, step.PromptTemplate, partials),
	}, nil
}

func promptDefaults(t StepType, routeKey string) (prompt.Kind, map[string]any) {
	switch t {
	case StepDataSearch:
		return prompt.KindQuestionAnswer, map[string]any{}
	case StepRouter:
		return prompt.KindRouter, map[string]any{prompt.VarRules: prompt.DefaultRouterRules(routeKey)}
	default:
		return prompt.KindCondense, map[string]any{}
	}
}

func modelName(desc *inventory.ModelDescriptor) string {
	if desc.Name != "" {
		return desc.Name
	}
	if desc.ModelID != "" {
		return desc.ModelID
	}
	return desc.UUID
}
