package repository

import (
	"context"
	"errors"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/model"
	"gorm.io/gorm"
)

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *chatRepository) Get(ctx context.Context, userID, id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) List(ctx context.Context, userID string) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&chats).Error
	return chats, err
}

func (r *chatRepository) Save(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Save(chat).Error
}

func (r *chatRepository) Delete(ctx context.Context, userID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Chat{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("chat_id = ?", id).Delete(&model.MessageSource{}).Error; err != nil {
			return err
		}
		return tx.Where("chat_id = ?", id).Delete(&model.ChatMessage{}).Error
	})
}
