package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/inventory"
	"k8s.io/klog/v2"
)

var ErrUnsupportedFramework = errors.New("unsupported model framework")

// Factory 根据模型描述创建对话模型
type Factory func(ctx context.Context, desc *inventory.ModelDescriptor, maxTokens int) (model.BaseChatModel, error)

// NewChatModel 默认 Factory，目前支持 OpenAI 兼容接口
// modelKwargs 中的 maxTokens/temperature 优先于调用方给出的默认值
func NewChatModel(ctx context.Context, desc *inventory.ModelDescriptor, maxTokens int) (model.BaseChatModel, error) {
	framework := desc.Framework
	if framework == "" {
		framework = inventory.FrameworkOpenAI
	}
	if framework != inventory.FrameworkOpenAI {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFramework, framework)
	}

	if v, ok := intKwarg(desc.ModelKwargs, "maxTokens"); ok {
		maxTokens = v
	}
	temperature := float32(0)
	if v, ok := floatKwarg(desc.ModelKwargs, "temperature"); ok {
		temperature = float32(v)
	}

	klog.V(6).Infof("[LLM] 创建 OpenAI ChatModel: model=%s, baseURL=%s, maxTokens=%d", desc.ModelID, desc.Endpoint, maxTokens)

	config := &openai.ChatModelConfig{
		APIKey:      desc.APIKey,
		Model:       desc.ModelID,
		Temperature: &temperature,
	}
	if desc.Endpoint != "" {
		config.BaseURL = desc.Endpoint
	}
	if maxTokens > 0 {
		config.MaxTokens = &maxTokens
	}

	chatModel, err := openai.NewChatModel(ctx, config)
	if err != nil {
		klog.Errorf("[LLM] 创建 ChatModel 失败: %v", err)
		return nil, err
	}
	return chatModel, nil
}

func intKwarg(kwargs map[string]any, key string) (int, bool) {
	f, ok := floatKwarg(kwargs, key)
	return int(f), ok
}

func floatKwarg(kwargs map[string]any, key string) (float64, bool) {
	switch v := kwargs[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
