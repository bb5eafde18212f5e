package models

import "time"

// UploadRecord stores metadata about every stored artifact.
type UploadRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	Purpose   string    `gorm:"size:32;index;not null" json:"purpose"`
	FileName  string    `gorm:"size:255;not null" json:"file_name"`
	Ref       string    `gorm:"size:512;not null;index" json:"ref"`
	URL       string    `gorm:"size:512;not null" json:"url"`
	MimeType  string    `gorm:"size:128;not null" json:"mime_type"`
	SizeBytes int64     `gorm:"not null" json:"size_bytes"`
	Checksum  string    `gorm:"size:128;index" json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}
