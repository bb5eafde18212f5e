package models

import "time"

// Notification is one fact delivered to one recipient. Only Read changes after creation.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	Type        string    `gorm:"size:64;not null" json:"type"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	RelatedID   *uint     `json:"related_id"`
	RelatedKind string    `gorm:"size:32" json:"related_kind"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	MessageKindText  = "text"
	MessageKindImage = "image"
	MessageKindAudio = "audio"
	MessageKindFile  = "file"
)

// Message is a direct message between two users.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"`
	RecipientID    uint      `gorm:"not null;index" json:"recipient_id"`
	ConversationID string    `gorm:"size:64;not null;index" json:"conversation_id"`
	Content        string    `gorm:"type:text" json:"content"`
	FileRef        string    `gorm:"size:512" json:"-"`
	FileURL        string    `gorm:"size:512" json:"file_url"`
	FileKind       string    `gorm:"size:16;not null;default:text" json:"file_kind"`
	Read           bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Sender         *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// UnreadSender aggregates unread messages per sender for one recipient.
type UnreadSender struct {
	SenderID  uint
	Count     int64
	FirstName string
	LastName  string
	Role      string
}
