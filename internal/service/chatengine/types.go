package chatengine

import (
	"github.com/cloudwego/eino/components/retriever"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/inventory"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/llm"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/prompt"
)

// StepType 步骤类型
type StepType string

const (
	// StepRequestResponse 不检索，直接结合对话上下文调用模型
	StepRequestResponse StepType = "REQUEST_RESPONSE"
	// StepDataSearch 检索工作空间文档后调用模型
	StepDataSearch StepType = "DATA_SEARCH"
	// StepRouter 由模型输出选择下一步
	StepRouter StepType = "ROUTER"
)

// DefaultRouteKey 路由输出中默认的路由字段
const DefaultRouteKey = "workspaceId"

func (t StepType) Valid() bool {
	switch t {
	case StepRequestResponse, StepDataSearch, StepRouter:
		return true
	}
	return false
}

// WorkflowStep 工作流步骤描述，只包含引用，不含运行时对象
type WorkflowStep struct {
	Type                          StepType                 `json:"type"`
	WorkspaceID                   string                   `json:"workspace_id"`
	LLMModelID                    string                   `json:"llm_model_id"`
	PromptTemplate                string                   `json:"prompt_template"`
	AdditionalPromptSubstitutions map[string]any           `json:"additional_prompt_substitutions,omitempty"`
	EmbeddingModelRef             string                   `json:"embedding_model_ref,omitempty"`
	ResponseRouteKey              string                   `json:"response_route_key,omitempty"`
	Routes                        map[string]*WorkflowStep `json:"routes,omitempty"`
}

// WorkflowConfiguration 按顺序执行的步骤
type WorkflowConfiguration struct {
	Steps []*WorkflowStep `json:"steps"`
}

// ModelContext 步骤绑定的模型与提示词
type ModelContext struct {
	Descriptor *inventory.ModelDescriptor
	Invoker    *llm.Invoker
	Renderer   *prompt.Renderer
}

// CompiledStep 绑定了检索器与模型的步骤，编译后不可变
type CompiledStep struct {
	Type        StepType
	WorkspaceID string
	Retriever   retriever.Retriever
	Model       *ModelContext
	// RouteKey 与 Routes 只对 ROUTER 有效
	RouteKey string
	Routes   map[string]*CompiledStep
	// Terminal 输出写入 text 而不是 question，编译时确定
	Terminal bool
}

// CompiledWorkflow 可执行工作流
type CompiledWorkflow struct {
	Steps   []*CompiledStep
	verbose bool
}
