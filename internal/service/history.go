package service

import (
	"context"
	"slices"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/prompt"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/pkg/search"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/repository"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/service/chatengine"
)

// messageHistory 基于消息仓储的会话历史
type messageHistory struct {
	repo repository.MessageRepository
}

func newMessageHistory(repo repository.MessageRepository) chatengine.HistoryStore {
	return &messageHistory{repo: repo}
}

func (h *messageHistory) LoadHistory(ctx context.Context, chatID string, limit int) ([]*schema.Message, error) {
	messages, err := h.repo.ListByChat(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	// 仓储按时间倒序返回
	slices.Reverse(messages)

	history := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Type {
		case model.MessageTypeHuman:
			history = append(history, schema.UserMessage(m.Text))
		case model.MessageTypeAI:
			history = append(history, schema.AssistantMessage(m.Text, nil))
		}
	}
	return history, nil
}

func (h *messageHistory) SaveTurn(ctx context.Context, turn *chatengine.ChatTurn) (*chatengine.ChatTurn, error) {
	human := toChatMessage(turn, turn.Human, model.MessageTypeHuman)
	ai := toChatMessage(turn, turn.AI, model.MessageTypeAI)
	sources := toMessageSources(turn.ChatID, ai.ID, turn.Sources)

	if err := h.repo.CreateTurn(ctx, human, ai, sources); err != nil {
		return nil, err
	}

	saved := *turn
	saved.Human.ID = human.ID
	saved.AI.ID = ai.ID
	return &saved, nil
}

func toChatMessage(turn *chatengine.ChatTurn, msg chatengine.Message, messageType string) *model.ChatMessage {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &model.ChatMessage{
		ID:        id,
		ChatID:    turn.ChatID,
		UserID:    turn.UserID,
		Type:      messageType,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
}

func toMessageSources(chatID, messageID string, docs []*schema.Document) []model.MessageSource {
	sources := make([]model.MessageSource, 0, len(docs))
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		source := model.MessageSource{
			ID:          uuid.NewString(),
			MessageID:   messageID,
			ChatID:      chatID,
			PageContent: doc.Content,
			Metadata:    prompt.PublicMetadata(doc.MetaData),
			SortOrder:   i,
		}
		if search.HasScore(doc) {
			score := doc.Score()
			source.Score = &score
		}
		sources = append(sources, source)
	}
	return sources
}
