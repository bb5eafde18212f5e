package dto

import (
	"time"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID          uint      `json:"id"`
	RecipientID uint      `json:"recipient_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	RelatedID   *uint     `json:"related_id,omitempty"`
	RelatedKind string    `json:"related_kind,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          model.ID,
		RecipientID: model.RecipientID,
		Type:        model.Type,
		Message:     model.Message,
		RelatedID:   model.RelatedID,
		RelatedKind: model.RelatedKind,
		Read:        model.Read,
		CreatedAt:   model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts notification models into DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, model := range items {
		out = append(out, NewNotificationResponse(model))
	}
	return out
}

// MessageSendRequest carries a direct message. An attachment may replace the text.
type MessageSendRequest struct {
	RecipientID uint   `form:"recipient_id" json:"recipient_id" validate:"required,gt=0"`
	Content     string `form:"content" json:"content" validate:"omitempty,max=4000"`
}

// MessageResponse is the serialized representation of a direct message.
type MessageResponse struct {
	ID             uint      `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	RecipientID    uint      `json:"recipient_id"`
	Content        string    `json:"content"`
	FileURL        string    `json:"file_url,omitempty"`
	FileKind       string    `json:"file_kind"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessageResponse converts a message model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	resp := MessageResponse{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		RecipientID:    message.RecipientID,
		Content:        message.Content,
		FileURL:        message.FileURL,
		FileKind:       message.FileKind,
		Read:           message.Read,
		CreatedAt:      message.CreatedAt,
	}
	if message.Sender != nil {
		resp.SenderName = message.Sender.FullName()
	}
	return resp
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// UnreadSenderResponse counts unread messages from one sender.
type UnreadSenderResponse struct {
	SenderID  uint   `json:"sender_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Count     int64  `json:"count"`
}

func NewUnreadSenderResponseSlice(rows []models.UnreadSender) []UnreadSenderResponse {
	out := make([]UnreadSenderResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, UnreadSenderResponse{
			SenderID:  row.SenderID,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Role:      row.Role,
			Count:     row.Count,
		})
	}
	return out
}

// ContactResponse is a user the caller may message.
type ContactResponse struct {
	ID             uint   `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Role           string `json:"role"`
	ConversationID string `json:"conversation_id"`
}
