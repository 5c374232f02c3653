package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/config"
	"k8s.io/klog/v2"
)

// FrameworkOpenAI OpenAI 兼容接口
const FrameworkOpenAI = "OpenAI"

// DefaultModelUUID 未配置模型清单时由 LLM 配置生成的默认模型
const DefaultModelUUID = "default"

var ErrModelNotFound = errors.New("model not found")

// ModelDescriptor 模型描述
type ModelDescriptor struct {
	UUID        string         `json:"uuid"`
	Name        string         `json:"name,omitempty"`
	Framework   string         `json:"framework"`
	ModelID     string         `json:"modelId"`
	Endpoint    string         `json:"endpoint,omitempty"`
	Region      string         `json:"region,omitempty"`
	APIKey      string         `json:"apiKey,omitempty"`
	ModelKwargs map[string]any `json:"modelKwargs,omitempty"`
}

// Masked 返回隐藏 API Key 的副本
func (d ModelDescriptor) Masked() ModelDescriptor {
	if len(d.APIKey) <= 7 {
		if d.APIKey != "" {
			d.APIKey = "***"
		}
		return d
	}
	d.APIKey = d.APIKey[:3] + "***" + d.APIKey[len(d.APIKey)-4:]
	return d
}

// Resolver 将模型引用解析为模型描述
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*ModelDescriptor, error)
}

// Inventory 基于配置的模型清单
type Inventory struct {
	models       []ModelDescriptor
	byUUID       map[string]ModelDescriptor
	defaultModel string
}

// New 创建模型清单，defaultUUID 为空时使用第一个模型
func New(models []ModelDescriptor, defaultUUID string) *Inventory {
	inv := &Inventory{
		models: models,
		byUUID: make(map[string]ModelDescriptor, len(models)),
	}
	for _, m := range models {
		inv.byUUID[m.UUID] = m
	}
	inv.defaultModel = defaultUUID
	if inv.defaultModel == "" && len(models) > 0 {
		inv.defaultModel = models[0].UUID
	}
	return inv
}

// NewFromConfig 根据 LLM 配置创建模型清单
func NewFromConfig(cfg config.LLMConfig) *Inventory {
	models := make([]ModelDescriptor, 0, len(cfg.Models)+1)
	for _, m := range cfg.Models {
		framework := m.Framework
		if framework == "" {
			framework = FrameworkOpenAI
		}
		models = append(models, ModelDescriptor{
			UUID:        m.UUID,
			Name:        m.Name,
			Framework:   framework,
			ModelID:     m.ModelID,
			Endpoint:    m.Endpoint,
			Region:      m.Region,
			APIKey:      m.APIKey,
			ModelKwargs: m.ModelKwargs,
		})
	}
	if len(models) == 0 {
		models = append(models, ModelDescriptor{
			UUID:      DefaultModelUUID,
			Name:      cfg.Model,
			Framework: FrameworkOpenAI,
			ModelID:   cfg.Model,
			Endpoint:  cfg.APIURL,
			APIKey:    cfg.APIKey,
		})
	}
	klog.V(6).Infof("[Inventory] 加载模型 %d 个，默认模型: %s", len(models), cfg.DefaultModel)
	return New(models, cfg.DefaultModel)
}

// List 返回全部模型
func (inv *Inventory) List() []ModelDescriptor {
	out := make([]ModelDescriptor, len(inv.models))
	copy(out, inv.models)
	return out
}

// DefaultUUID 默认模型
func (inv *Inventory) DefaultUUID() string {
	return inv.defaultModel
}

// Get 按 uuid 查找，uuid 为空时返回默认模型
func (inv *Inventory) Get(uuid string) (*ModelDescriptor, error) {
	if uuid == "" {
		uuid = inv.defaultModel
	}
	m, ok := inv.byUUID[uuid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, uuid)
	}
	m.ModelKwargs = cloneMap(m.ModelKwargs)
	return &m, nil
}

// APIKey 清单中模型的凭证，未知 uuid 返回空
func (inv *Inventory) APIKey(uuid string) string {
	return inv.byUUID[uuid].APIKey
}

// Resolve 解析模型引用
// ref 为空使用默认模型；以 "{" 开头时按 JSON 解析为自定义模型，
// 不含 uuid 的直接使用，含 uuid 的覆盖到清单中对应模型之上
func (inv *Inventory) Resolve(_ context.Context, ref string) (*ModelDescriptor, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "{") {
		return inv.Get(ref)
	}

	var overlay map[string]any
	if err := json.Unmarshal([]byte(ref), &overlay); err != nil {
		return nil, fmt.Errorf("invalid custom model definition: %w", err)
	}

	uuid, _ := overlay["uuid"].(string)
	if uuid == "" {
		var custom ModelDescriptor
		if err := json.Unmarshal([]byte(ref), &custom); err != nil {
			return nil, fmt.Errorf("invalid custom model definition: %w", err)
		}
		klog.V(6).Infof("[Inventory] 使用自定义模型: %s", custom.ModelID)
		return &custom, nil
	}

	base, err := inv.Get(uuid)
	if err != nil {
		return nil, err
	}
	return merge(base, overlay)
}

// merge 将 overlay 深度合并到 base
func merge(base *ModelDescriptor, overlay map[string]any) (*ModelDescriptor, error) {
	raw, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var target map[string]any
	if err := json.Unmarshal(raw, &target); err != nil {
		return nil, err
	}
	deepMerge(target, overlay)

	raw, err = json.Marshal(target)
	if err != nil {
		return nil, err
	}
	var merged ModelDescriptor
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		srcMap, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		dstMap, ok := dst[k].(map[string]any)
		if !ok {
			dstMap = make(map[string]any, len(srcMap))
			dst[k] = dstMap
		}
		deepMerge(dstMap, srcMap)
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
