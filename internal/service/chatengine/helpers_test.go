package chatengine

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/inventory"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/search"
)

// scriptedModel 按顺序返回预设输出，并记录收到的提示词
type scriptedModel struct {
	mu      sync.Mutex
	outputs []string
	err     error
	prompts []string
}

func (m *scriptedModel) next(input []*schema.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range input {
		m.prompts = append(m.prompts, msg.Content)
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.outputs) == 0 {
		return "", errors.New("no scripted output left")
	}
	out := m.outputs[0]
	m.outputs = m.outputs[1:]
	return out, nil
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := m.next(input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(out, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.next(input)
	if err != nil {
		return nil, err
	}
	half := len(out) / 2
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(out[:half], nil),
		schema.AssistantMessage(out[half:], nil),
	}), nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *scriptedModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// fakeRetriever 按工作空间返回预设文档
type fakeRetriever struct {
	workspaceID string
	docs        []*schema.Document
	err         error
	queries     *[]string
}

func (r *fakeRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	*r.queries = append(*r.queries, r.workspaceID+":"+query)
	if r.err != nil {
		return nil, r.err
	}
	return r.docs, nil
}

type fixture struct {
	models    map[string]*scriptedModel
	docs      map[string][]*schema.Document
	searchErr map[string]error
	queries   []string
}

func newFixture() *fixture {
	return &fixture{
		models:    map[string]*scriptedModel{},
		docs:      map[string][]*schema.Document{},
		searchErr: map[string]error{},
	}
}

func (f *fixture) model(uuid string, outputs ...string) *scriptedModel {
	m := &scriptedModel{outputs: outputs}
	f.models[uuid] = m
	return m
}

func (f *fixture) options() CompileOptions {
	descriptors := make([]inventory.ModelDescriptor, 0, len(f.models))
	for uuid := range f.models {
		descriptors = append(descriptors, inventory.ModelDescriptor{UUID: uuid, Framework: inventory.FrameworkOpenAI, ModelID: uuid})
	}
	return CompileOptions{
		Models: inventory.New(descriptors, ""),
		ModelFactory: func(ctx context.Context, desc *inventory.ModelDescriptor, maxTokens int) (model.BaseChatModel, error) {
			m, ok := f.models[desc.UUID]
			if !ok {
				return nil, errors.New("unknown test model")
			}
			return m, nil
		},
		NewRetriever: func(cfg search.Config) retriever.Retriever {
			return &fakeRetriever{
				workspaceID: cfg.WorkspaceID,
				docs:        f.docs[cfg.WorkspaceID],
				err:         f.searchErr[cfg.WorkspaceID],
				queries:     &f.queries,
			}
		},
		MaxTokens: 100,
	}
}

// memoryHistory 内存会话历史
type memoryHistory struct {
	history []*schema.Message
	saved   []*ChatTurn
	limit   int
}

func (h *memoryHistory) LoadHistory(ctx context.Context, chatID string, limit int) ([]*schema.Message, error) {
	h.limit = limit
	return h.history, nil
}

func (h *memoryHistory) SaveTurn(ctx context.Context, turn *ChatTurn) (*ChatTurn, error) {
	turn.Human.ID = "human-id"
	turn.AI.ID = "ai-id"
	h.saved = append(h.saved, turn)
	return turn, nil
}
