package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/glebarez/sqlite"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/eventbus"
	datamodel "github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/database"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/inventory"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/search"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/repository"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service/chatengine"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// cannedModel 依次返回预设回答
type cannedModel struct {
	mu      sync.Mutex
	outputs []string
	err     error
	inputs  [][]*schema.Message
}

func (m *cannedModel) next(input []*schema.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return "", m.err
	}
	if len(m.outputs) == 0 {
		return "", errors.New("no canned output")
	}
	out := m.outputs[0]
	m.outputs = m.outputs[1:]
	return out, nil
}

func (m *cannedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	out, err := m.next(input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(out, nil), nil
}

func (m *cannedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.next(input)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(out, nil)}), nil
}

func (m *cannedModel) lastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return nil
	}
	return m.inputs[len(m.inputs)-1]
}

type staticRetriever struct {
	docs []*schema.Document
}

func (r *staticRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	return r.docs, nil
}

type testEnv struct {
	workspaces *WorkspaceService
	workflows  *WorkflowService
	chats      *ChatService
	wsRepo     repository.WorkspaceRepository
	bus        *eventbus.ChatEventBus
	model      *cannedModel
	docs       map[string][]*schema.Document
}

func newTestEnv(t *testing.T, outputs ...string) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	wsRepo := repository.NewWorkspaceRepository(db)
	wfRepo := repository.NewWorkflowRepository(db)

	env := &testEnv{
		wsRepo: wsRepo,
		bus:    eventbus.NewChatEventBus(),
		model:  &cannedModel{outputs: outputs},
		docs:   map[string][]*schema.Document{},
	}
	compile := chatengine.CompileOptions{
		Models: inventory.New([]inventory.ModelDescriptor{
			{UUID: "m1", Framework: inventory.FrameworkOpenAI, ModelID: "gpt-test"},
		}, "m1"),
		ModelFactory: func(ctx context.Context, desc *inventory.ModelDescriptor, maxTokens int) (model.BaseChatModel, error) {
			return env.model, nil
		},
		NewRetriever: func(cfg search.Config) retriever.Retriever {
			return &staticRetriever{docs: env.docs[cfg.WorkspaceID]}
		},
	}

	env.workspaces = NewWorkspaceService(wsRepo)
	env.workflows = NewWorkflowService(wfRepo, wsRepo)
	env.chats = NewChatService(
		repository.NewChatRepository(db),
		repository.NewMessageRepository(db),
		wfRepo,
		wsRepo,
		env.bus,
		ChatEngineConfig{Compile: compile, HistoryLimit: 10},
	)
	return env
}

func (e *testEnv) createWorkspace(t *testing.T, req *WorkspaceRequest) *datamodel.Workspace {
	t.Helper()
	if req.ChatModel.ModelID == "" {
		req.ChatModel.ModelID = "m1"
	}
	ws, err := e.workspaces.Create(context.Background(), "alice", req)
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}
