package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// MessageRepository persists direct messages.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, id uint) error
	MarkConversationRead(ctx context.Context, conversationID string, recipientID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
	UnreadSenders(ctx context.Context, recipientID uint) ([]models.UnreadSender, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Omit("Sender").Create(message).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").First(&message, id).Error; err != nil {
		return models.Message{}, err
	}
	return message, nil
}

// ListByConversation returns the latest messages of a conversation in
// chronological order.
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Update("read", true).Error
}

func (r *messageRepository) MarkConversationRead(ctx context.Context, conversationID string, recipientID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND read = ?", conversationID, recipientID, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}

func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Message{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *messageRepository) UnreadSenders(ctx context.Context, recipientID uint) ([]models.UnreadSender, error) {
	var rows []models.UnreadSender
	err := r.db.WithContext(ctx).
		Table("messages").
		Select("messages.sender_id AS sender_id, COUNT(messages.id) AS count, users.first_name AS first_name, users.last_name AS last_name, users.role AS role").
		Joins("JOIN users ON users.id = messages.sender_id").
		Where("messages.recipient_id = ? AND messages.read = ?", recipientID, false).
		Group("messages.sender_id, users.first_name, users.last_name, users.role").
		Order("count DESC").
		Order("messages.sender_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
