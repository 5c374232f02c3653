package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/eventbus"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/middleware"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/database"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/inventory"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/search"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/repository"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service/chatengine"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type replyModel struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (m *replyModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *replyModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

type emptyRetriever struct{}

func (emptyRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	return nil, nil
}

type testServer struct {
	engine *gin.Engine
	model  *replyModel
}

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

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)

	wsRepo := repository.NewWorkspaceRepository(db)
	wfRepo := repository.NewWorkflowRepository(db)
	bus := eventbus.NewChatEventBus()
	llm := &replyModel{reply: "hello there"}
	inv := inventory.New([]inventory.ModelDescriptor{
		{UUID: "m1", Framework: inventory.FrameworkOpenAI, ModelID: "gpt-test", APIKey: "sk-1234567890"},
	}, "m1")

	chats := service.NewChatService(
		repository.NewChatRepository(db),
		repository.NewMessageRepository(db),
		wfRepo, wsRepo, bus,
		service.ChatEngineConfig{Compile: chatengine.CompileOptions{
			Models: inv,
			ModelFactory: func(ctx context.Context, desc *inventory.ModelDescriptor, maxTokens int) (model.BaseChatModel, error) {
				return llm, nil
			},
			NewRetriever: func(cfg search.Config) retriever.Retriever { return emptyRetriever{} },
		}},
	)

	r := gin.New()
	api := r.Group("/api", middleware.Identity())
	NewWorkspaceHandler(service.NewWorkspaceService(wsRepo)).RegisterRoutes(api)
	NewWorkflowHandler(service.NewWorkflowService(wfRepo, wsRepo)).RegisterRoutes(api)
	NewChatHandler(chats).RegisterRoutes(api)
	NewInventoryHandler(inv).RegisterRoutes(api)
	NewChatSocketHandler(chats, bus).RegisterRoutes(api)
	return &testServer{engine: r, model: llm}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// createChat 创建单工作空间会话，返回会话 ID
func (s *testServer) createChat(t *testing.T, user string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/workspaces", user, map[string]any{
		"name":       "qa",
		"type":       "REQUEST_RESPONSE",
		"chat_model": map[string]any{"model_id": "m1"},
	})
	if !assert.Equal(t, http.StatusCreated, w.Code, w.Body.String()) {
		t.FailNow()
	}
	wsID := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/api/chats", user, map[string]any{
		"workflow_id":   wsID,
		"workflow_type": "WORKSPACE",
	})
	if !assert.Equal(t, http.StatusCreated, w.Code, w.Body.String()) {
		t.FailNow()
	}
	return decode(t, w)["id"].(string)
}

func TestRequiresIdentity(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/workspaces", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWorkspaceHandler(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/workspaces", "alice", map[string]any{"type": "DATA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/workspaces", "alice", map[string]any{"name": "x", "type": "ROUTER"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/workspaces", "alice", map[string]any{"name": "docs", "type": "DATA"})
	assert.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodGet, "/api/workspaces/"+id, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "docs", decode(t, w)["name"])

	w = s.do(t, http.MethodGet, "/api/workspaces", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = s.do(t, http.MethodDelete, "/api/workspaces/"+id, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/workspaces/"+id, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkflowHandlerMissingWorkspace(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/workflows", "alice", map[string]any{"name": "flow", "workspace_ids": []string{"nope"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatHandlerCreateMessage(t *testing.T) {
	s := newTestServer(t)
	chatID := s.createChat(t, "alice")

	w := s.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", "alice", map[string]any{"question": "hi"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "hello there", body["answer"].(map[string]any)["text"])
	assert.Nil(t, body["trace_data"])

	w = s.do(t, http.MethodGet, "/api/chats/"+chatID+"/messages", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 2)

	// 其他用户看不到会话
	w = s.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", "bob", map[string]any{"question": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", "alice", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandlerAdminTrace(t *testing.T) {
	s := newTestServer(t)
	chatID := s.createChat(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/chats/"+chatID+"/messages", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, "alice")
	req.Header.Set(middleware.HeaderUserAdmin, "true")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode(t, w)["trace_data"])
}

func TestChatHandlerModelFailure(t *testing.T) {
	s := newTestServer(t)
	chatID := s.createChat(t, "alice")
	s.model.err = errors.New("model unavailable")

	w := s.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", "alice", map[string]any{"question": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w)["error_message"], "model unavailable")
}

func TestInventoryHandlerMasksKeys(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/llm/inventory", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-1234567890")
	assert.Equal(t, "m1", decode(t, w)["default_model_id"])
}

func TestChatSocketAsk(t *testing.T) {
	s := newTestServer(t)
	chatID := s.createChat(t, "alice")

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	header := http.Header{}
	header.Set(middleware.HeaderUserID, "alice")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chats/" + chatID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	assert.NoError(t, conn.WriteJSON(map[string]any{"question": "hi"}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var statuses int
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch msg["type"] {
		case string(eventbus.ChatEventStatus):
			statuses++
			continue
		case socketMessageAnswer:
			data := msg["data"].(map[string]any)
			assert.Equal(t, "hello there", data["answer"].(map[string]any)["text"])
		default:
			t.Fatalf("unexpected message: %v", msg)
		}
		break
	}
	assert.Equal(t, 2, statuses)
}

func TestChatSocketUnknownChat(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/chats/nope/ws", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
