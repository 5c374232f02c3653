package chatengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/metrics"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/llm"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/prompt"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/search"
	"k8s.io/klog/v2"
)

// 步骤状态
const (
	StatusStarting = "STARTING"
	StatusSuccess  = "SUCCESS"
	StatusFailure  = "FAILURE"
)

// StatusUpdate 步骤进度通知
type StatusUpdate struct {
	Operation     string
	Status        string
	Message       string
	ExecutionTime time.Duration
}

// Callbacks 执行过程回调，均可为空
type Callbacks struct {
	UpdateStatus func(ctx context.Context, update StatusUpdate)
	// StreamChunks 仅在启用流式输出时对终止步骤调用，返回错误会中止查询
	StreamChunks func(ctx context.Context, chunks []string) error
}

// ExecuteOptions 单次执行选项
type ExecuteOptions struct {
	Callbacks *Callbacks
	Streaming bool
}

// Input 执行输入
type Input struct {
	Question    string
	ChatHistory []*schema.Message
}

// VisitedStep 执行过的步骤
type VisitedStep struct {
	Type        StepType `json:"type"`
	WorkspaceID string   `json:"workspace_id"`
	Route       string   `json:"route,omitempty"`
}

// Result 执行结果
type Result struct {
	Input           Input
	State           *ChainState
	Visited         []VisitedStep
	SourceDocuments []*schema.Document
}

// Answer 最终回答
func (r *Result) Answer() string {
	return r.State.Text
}

type execution struct {
	workflow *CompiledWorkflow
	opts     ExecuteOptions
	state    *ChainState
	visited  []VisitedStep
	docs     []*schema.Document
}

// Execute 依次执行步骤；ROUTER 把选中的路由插入到自身之后，由后续循环执行
func (w *CompiledWorkflow) Execute(ctx context.Context, input Input, opts ExecuteOptions) (*Result, error) {
	e := &execution{
		workflow: w,
		opts:     opts,
		state:    newChainState(input.Question, input.ChatHistory),
		docs:     []*schema.Document{},
	}

	steps := slices.Clone(w.Steps)
	for i := 0; i < len(steps); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := steps[i]
		start := time.Now()
		e.status(ctx, string(step.Type), StatusStarting, fmt.Sprintf("Calling %s step with question %q", step.Type, e.state.Question), 0)

		visit := VisitedStep{Type: step.Type, WorkspaceID: step.WorkspaceID}
		var err error
		switch step.Type {
		case StepRequestResponse:
			err = e.requestResponse(ctx, step)
		case StepDataSearch:
			err = e.dataSearch(ctx, step)
		case StepRouter:
			var route string
			var next *CompiledStep
			route, next, err = e.route(ctx, step)
			if err == nil {
				visit.Route = route
				steps = slices.Insert(steps, i+1, next)
			}
		default:
			err = fmt.Errorf("unknown step type %q", step.Type)
		}

		elapsed := time.Since(start)
		metrics.StepDuration.WithLabelValues(string(step.Type)).Observe(elapsed.Seconds())
		if err != nil {
			metrics.StepErrors.WithLabelValues(string(step.Type), errorReason(err)).Inc()
			e.status(ctx, string(step.Type), StatusFailure, err.Error(), elapsed)
			return nil, err
		}
		e.visited = append(e.visited, visit)
		e.status(ctx, string(step.Type), StatusSuccess, fmt.Sprintf("%s step finished", step.Type), elapsed)
		klog.V(6).Infof("[Chain] 步骤完成: index=%d, type=%s, workspace=%s, cost=%s", i, step.Type, step.WorkspaceID, elapsed)
	}

	return &Result{
		Input:           input,
		State:           e.state,
		Visited:         e.visited,
		SourceDocuments: e.docs,
	}, nil
}

func (e *execution) requestResponse(ctx context.Context, step *CompiledStep) error {
	outputKey := KeyQuestion
	if step.Terminal {
		outputKey = KeyText
	}
	out, err := e.invoke(ctx, step, e.state.Values(), outputKey, e.streamOptions(ctx, step)...)
	if err != nil {
		return err
	}
	e.state.Merge(out)
	return nil
}

func (e *execution) dataSearch(ctx context.Context, step *CompiledStep) error {
	docs, err := step.Retriever.Retrieve(ctx, e.state.Question)
	if err != nil {
		var retrievalErr *search.RetrievalError
		if errors.As(err, &retrievalErr) {
			return err
		}
		return &search.RetrievalError{URL: step.WorkspaceID, Err: err}
	}
	if docs == nil {
		docs = []*schema.Document{}
	}
	e.state.InputDocuments = docs
	e.docs = append(e.docs, docs...)

	vars := e.state.Values()
	vars[prompt.VarContext] = prompt.RenderDocuments(docs)
	out, err := e.invoke(ctx, step, vars, KeyText, e.streamOptions(ctx, step)...)
	if err != nil {
		return err
	}
	e.state.Merge(out)
	if text, ok := out[KeyText].(string); ok && text != "" {
		e.state.Question = text
	}
	return nil
}

func (e *execution) route(ctx context.Context, step *CompiledStep) (string, *CompiledStep, error) {
	previous := e.state.Question

	out, err := e.invoke(ctx, step, e.state.Values(), KeyRoutes, llm.WithOutputParser(llm.JSONObjectParser{}))
	if err != nil {
		var parseErr *llm.ParseError
		if errors.As(err, &parseErr) {
			return "", nil, &RoutingError{RouteKey: step.RouteKey, ValidRoutes: routeKeys(step), Err: parseErr}
		}
		return "", nil, err
	}

	parsed, _ := out[KeyRoutes].(map[string]any)
	value := ""
	if raw, ok := parsed[step.RouteKey]; ok && raw != nil {
		value = stringValue(raw)
	}
	if value == "" {
		return "", nil, &RoutingError{RouteKey: step.RouteKey, ValidRoutes: routeKeys(step)}
	}
	next, ok := step.Routes[value]
	if !ok {
		return "", nil, &RoutingError{RouteKey: step.RouteKey, Value: value, ValidRoutes: routeKeys(step)}
	}
	metrics.RoutingDecisions.WithLabelValues(value).Inc()
	klog.V(6).Infof("[Chain] 路由选择: workspace=%s, %s=%s", step.WorkspaceID, step.RouteKey, value)

	e.state.Merge(out)
	e.state.Question = previous
	return value, next, nil
}

func (e *execution) invoke(ctx context.Context, step *CompiledStep, vars map[string]any, outputKey string, opts ...llm.InvokeOption) (map[string]any, error) {
	messages, err := step.Model.Renderer.Render(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s step (workspace %q): %w", step.Type, step.WorkspaceID, err)
	}
	if e.workflow.verbose {
		for _, m := range messages {
			klog.Infof("[Chain] %s prompt (workspace %s):\n%s", step.Type, step.WorkspaceID, m.Content)
		}
	}

	out, err := step.Model.Invoker.Invoke(ctx, messages, outputKey, opts...)
	if err != nil {
		var parseErr *llm.ParseError
		if errors.As(err, &parseErr) {
			return nil, err
		}
		return nil, &ModelInvocationError{StepType: step.Type, WorkspaceID: step.WorkspaceID, Model: step.Model.Invoker.Name(), Err: err}
	}
	return out, nil
}

// streamOptions 只有终止步骤的输出会以流式返回
func (e *execution) streamOptions(ctx context.Context, step *CompiledStep) []llm.InvokeOption {
	if !e.opts.Streaming || !step.Terminal || e.opts.Callbacks == nil || e.opts.Callbacks.StreamChunks == nil {
		return nil
	}
	return []llm.InvokeOption{llm.WithStreaming(func(chunk string) error {
		return e.opts.Callbacks.StreamChunks(ctx, []string{chunk})
	})}
}

func (e *execution) status(ctx context.Context, operation, status, message string, elapsed time.Duration) {
	if e.opts.Callbacks == nil || e.opts.Callbacks.UpdateStatus == nil {
		return
	}
	e.opts.Callbacks.UpdateStatus(ctx, StatusUpdate{
		Operation:     operation,
		Status:        status,
		Message:       message,
		ExecutionTime: elapsed,
	})
}

func routeKeys(step *CompiledStep) []string {
	keys := make([]string, 0, len(step.Routes))
	for k := range step.Routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func errorReason(err error) string {
	var routingErr *RoutingError
	var modelErr *ModelInvocationError
	var retrievalErr *search.RetrievalError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &routingErr):
		return "routing"
	case errors.As(err, &modelErr):
		return "model"
	case errors.As(err, &retrievalErr):
		return "retrieval"
	default:
		return "other"
	}
}
