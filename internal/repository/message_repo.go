package repository

import (
	"context"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) CreateTurn(ctx context.Context, human, ai *model.ChatMessage, sources []model.MessageSource) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(human).Error; err != nil {
			return err
		}
		if err := tx.Create(ai).Error; err != nil {
			return err
		}
		if len(sources) == 0 {
			return nil
		}
		return tx.Create(&sources).Error
	})
}

func (r *messageRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	query := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&messages).Error
	return messages, err
}

func (r *messageRepository) ListSources(ctx context.Context, chatID, messageID string) ([]model.MessageSource, error) {
	var sources []model.MessageSource
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Order("sort_order asc").
		Find(&sources).Error
	return sources, err
}
