package prompt

import (
	"context"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"
)

// Renderer 使用 Go template 渲染提示词
// partials 为预置变量，调用时传入的同名变量优先
type Renderer struct {
	kind     Kind
	raw      string
	template einoprompt.ChatTemplate
	partials map[string]any
}

// NewRenderer 创建渲染器，tpl 为空时使用 kind 对应的默认模板
func NewRenderer(kind Kind, tpl string, partials map[string]any) *Renderer {
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultTemplate(kind)
	}
	merged := make(map[string]any, len(partials))
	for k, v := range partials {
		merged[k] = v
	}
	return &Renderer{
		kind:     kind,
		raw:      tpl,
		template: einoprompt.FromMessages(schema.GoTemplate, schema.UserMessage(tpl)),
		partials: merged,
	}
}

func (r *Renderer) Kind() Kind {
	return r.kind
}

// Template 原始模板文本
func (r *Renderer) Template() string {
	return r.raw
}

// Partials 返回预置变量副本
func (r *Renderer) Partials() map[string]any {
	out := make(map[string]any, len(r.partials))
	for k, v := range r.partials {
		out[k] = v
	}
	return out
}

// Variables 合并预置变量与调用变量，并补齐标准变量的空值
func (r *Renderer) Variables(vars map[string]any) map[string]any {
	merged := r.Partials()
	for k, v := range vars {
		merged[k] = v
	}
	defaults := map[string]any{
		VarQuestion:    "",
		VarChatHistory: []*schema.Message{},
		VarContext:     "",
		VarWorkspaces:  []map[string]any{},
		VarRules:       "",
	}
	for k, v := range defaults {
		if cur, ok := merged[k]; !ok || cur == nil {
			merged[k] = v
		}
	}
	return merged
}

// Render 渲染为消息列表
func (r *Renderer) Render(ctx context.Context, vars map[string]any) ([]*schema.Message, error) {
	messages, err := r.template.Format(ctx, r.Variables(vars))
	if err != nil {
		return nil, fmt.Errorf("render %s prompt: %w", r.kind, err)
	}
	if klog.V(8).Enabled() {
		for _, m := range messages {
			klog.V(8).Infof("[Prompt] %s: %s", r.kind, m.Content)
		}
	}
	return messages, nil
}
