package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/eventbus"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"github.com/stretchr/testify/assert"
)

func newRAGChat(t *testing.T, env *testEnv) *model.Chat {
	t.Helper()
	ctx := context.Background()
	condense := env.createWorkspace(t, &WorkspaceRequest{Name: "condense", Type: model.WorkspaceTypeRequestResponse})
	docs := env.createWorkspace(t, &WorkspaceRequest{Name: "docs", Type: model.WorkspaceTypeData})
	env.docs[docs.ID] = []*schema.Document{
		{ID: "d1", Content: "Paris is the capital of France.", MetaData: map[string]any{"source": "atlas.pdf"}},
	}
	wf, err := env.workflows.Create(ctx, "alice", &WorkflowRequest{Name: "rag", WorkspaceIDs: []string{condense.ID, docs.ID}})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	chat, err := env.chats.Create(ctx, "alice", &CreateChatRequest{WorkflowID: wf.ID})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return chat
}

func TestChatService_CRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chat := newRAGChat(t, env)
	assert.Equal(t, defaultChatTitle, chat.Title)
	assert.Equal(t, model.ChatTargetWorkflow, chat.WorkflowType)

	_, err := env.chats.Create(ctx, "alice", &CreateChatRequest{WorkflowID: "missing"})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
	_, err = env.chats.Create(ctx, "alice", &CreateChatRequest{WorkflowID: "missing", WorkflowType: model.ChatTargetWorkspace})
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
	_, err = env.chats.Create(ctx, "alice", &CreateChatRequest{WorkflowID: "x", WorkflowType: "OTHER"})
	assert.ErrorIs(t, err, ErrInvalidWorkflowType)

	updated, err := env.chats.Update(ctx, "alice", chat.ID, &UpdateChatRequest{Title: "Geography"})
	assert.NoError(t, err)
	assert.Equal(t, "Geography", updated.Title)

	// 其他用户不可见
	_, err = env.chats.Get(ctx, "bob", chat.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
	list, err := env.chats.List(ctx, "bob")
	assert.NoError(t, err)
	assert.Empty(t, list)

	assert.NoError(t, env.chats.Delete(ctx, "alice", chat.ID))
	_, err = env.chats.Get(ctx, "alice", chat.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestChatService_CreateMessagePersistsTurn(t *testing.T) {
	env := newTestEnv(t, "What is the capital of France?", "Paris.", "What is its population?", "About two million.")
	ctx := context.Background()
	chat := newRAGChat(t, env)

	resp, err := env.chats.CreateMessage(ctx, "alice", chat.ID, &CreateMessageRequest{Question: "capital?"}, MessageOptions{})
	assert.NoError(t, err)
	assert.Empty(t, resp.ErrorMessage)
	assert.Equal(t, "capital?", resp.Question.Text)
	assert.Equal(t, model.MessageTypeHuman, resp.Question.Type)
	assert.Equal(t, "Paris.", resp.Answer.Text)
	assert.NotEmpty(t, resp.Answer.ID)
	assert.Nil(t, resp.TraceData)
	if assert.Len(t, resp.Sources, 1) {
		assert.Equal(t, "Paris is the capital of France.", resp.Sources[0].PageContent)
		assert.Equal(t, "atlas.pdf", resp.Sources[0].Metadata["source"])
	}

	resp, err = env.chats.CreateMessage(ctx, "alice", chat.ID, &CreateMessageRequest{Question: "and population?"}, MessageOptions{IncludeTrace: true})
	assert.NoError(t, err)
	assert.Equal(t, "About two million.", resp.Answer.Text)
	assert.NotNil(t, resp.TraceData)

	// 第二次提问的改写步骤可以看到历史
	env.model.mu.Lock()
	condenseInput := env.model.inputs[2]
	env.model.mu.Unlock()
	if assert.NotEmpty(t, condenseInput) {
		assert.Contains(t, condenseInput[0].Content, "Human: capital?")
		assert.Contains(t, condenseInput[0].Content, "Assistant: Paris.")
		assert.Contains(t, condenseInput[0].Content, "Followup Question: and population?")
	}

	messages, err := env.chats.ListMessages(ctx, "alice", chat.ID, 0)
	assert.NoError(t, err)
	if assert.Len(t, messages, 4) {
		assert.Equal(t, "capital?", messages[0].Text)
		assert.Equal(t, "Paris.", messages[1].Text)
		assert.Equal(t, "About two million.", messages[3].Text)
	}

	sources, err := env.chats.ListSources(ctx, "alice", chat.ID, messages[1].ID)
	assert.NoError(t, err)
	assert.Len(t, sources, 1)

	_, err = env.chats.ListMessages(ctx, "bob", chat.ID, 0)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestChatService_CreateMessageUnknownChat(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.chats.CreateMessage(context.Background(), "alice", "nope", &CreateMessageRequest{Question: "hi"}, MessageOptions{})
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.Contains(t, err.Error(), "No chat found with id nope for user alice")
}

func TestChatService_CreateMessageModelFailure(t *testing.T) {
	env := newTestEnv(t)
	env.model.err = errors.New("throttled")
	ctx := context.Background()
	chat := newRAGChat(t, env)

	resp, err := env.chats.CreateMessage(ctx, "alice", chat.ID, &CreateMessageRequest{Question: "hi"}, MessageOptions{})
	assert.NoError(t, err)
	assert.Contains(t, resp.ErrorMessage, "throttled")
	assert.Nil(t, resp.Answer)

	messages, err := env.chats.ListMessages(ctx, "alice", chat.ID, 0)
	assert.NoError(t, err)
	assert.Empty(t, messages)
}

func TestChatService_CreateMessageMissingWorkspace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ws := env.createWorkspace(t, &WorkspaceRequest{Name: "qa", Type: model.WorkspaceTypeRequestResponse})
	chat, err := env.chats.Create(ctx, "alice", &CreateChatRequest{WorkflowID: ws.ID, WorkflowType: model.ChatTargetWorkspace})
	assert.NoError(t, err)
	assert.NoError(t, env.workspaces.Delete(ctx, ws.ID))

	resp, err := env.chats.CreateMessage(ctx, "alice", chat.ID, &CreateMessageRequest{Question: "hi"}, MessageOptions{})
	assert.NoError(t, err)
	assert.Contains(t, resp.ErrorMessage, "Unable to locate all workspaces data")
}

func TestChatService_PublishesEvents(t *testing.T) {
	env := newTestEnv(t, "rephrased", "answer")
	env.chats.engine.Streaming = true
	ctx := context.Background()
	chat := newRAGChat(t, env)

	var mu sync.Mutex
	var events []eventbus.ChatEvent
	unsubscribe := env.bus.Subscribe(chat.ID, func(ctx context.Context, event eventbus.ChatEvent) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		return nil
	})
	defer unsubscribe()

	resp, err := env.chats.CreateMessage(ctx, "alice", chat.ID, &CreateMessageRequest{Question: "hi"}, MessageOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "answer", resp.Answer.Text)

	mu.Lock()
	defer mu.Unlock()
	var statuses, chunks []string
	for _, e := range events {
		assert.Equal(t, chat.ID, e.ChatID)
		switch e.Type {
		case eventbus.ChatEventStatus:
			statuses = append(statuses, e.Operation+":"+e.Status)
		case eventbus.ChatEventChunk:
			chunks = append(chunks, e.Chunks...)
		}
	}
	assert.Equal(t, []string{
		"REQUEST_RESPONSE:STARTING", "REQUEST_RESPONSE:SUCCESS",
		"DATA_SEARCH:STARTING", "DATA_SEARCH:SUCCESS",
	}, statuses)
	// 只有终止步骤以流式输出
	assert.Equal(t, []string{"answer"}, chunks)
}

func TestChatService_ClosedSubscriberDoesNotFailQuestion(t *testing.T) {
	env := newTestEnv(t, "rephrased", "answer")
	env.chats.engine.Streaming = true
	ctx := context.Background()
	chat := newRAGChat(t, env)

	var mu sync.Mutex
	var chunks []string
	unsubscribe := env.bus.Subscribe(chat.ID, func(ctx context.Context, event eventbus.ChatEvent) error {
		mu.Lock()
		defer mu.Unlock()
		chunks = append(chunks, event.Chunks...)
		return nil
	})
	defer unsubscribe()
	unsubscribeClosed := env.bus.Subscribe(chat.ID, func(ctx context.Context, event eventbus.ChatEvent) error {
		return errors.New("socket closed")
	})
	defer unsubscribeClosed()

	resp, err := env.chats.CreateMessage(ctx, "alice", chat.ID, &CreateMessageRequest{Question: "hi"}, MessageOptions{})
	assert.NoError(t, err)
	assert.Empty(t, resp.ErrorMessage)
	if assert.NotNil(t, resp.Answer) {
		assert.Equal(t, "answer", resp.Answer.Text)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"answer"}, chunks)
}

func TestChatService_CancelledCallerStopsStreaming(t *testing.T) {
	env := newTestEnv(t, "rephrased", "answer")
	env.chats.engine.Streaming = true
	chat := newRAGChat(t, env)

	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe := env.bus.Subscribe(chat.ID, func(context.Context, eventbus.ChatEvent) error {
		return nil
	})
	defer unsubscribe()

	cb := env.chats.callbacks(chat.ID)
	assert.NoError(t, cb.StreamChunks(ctx, []string{"a"}))
	cancel()
	assert.ErrorIs(t, cb.StreamChunks(ctx, []string{"b"}), context.Canceled)
}
