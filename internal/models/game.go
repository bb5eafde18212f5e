package models

import "time"

// GameSection groups external educational games.
type GameSection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	ImageRef  string    `gorm:"size:512" json:"-"`
	ImageURL  string    `gorm:"size:512" json:"image_url"`
	CreatedBy uint      `gorm:"not null;index" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Game links to an external game learners play.
type Game struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"size:255;not null" json:"name"`
	URL       string       `gorm:"size:512;not null" json:"url"`
	SectionID uint         `gorm:"not null;index" json:"section_id"`
	ImageRef  string       `gorm:"size:512;not null" json:"-"`
	ImageURL  string       `gorm:"size:512;not null" json:"image_url"`
	CreatedBy uint         `gorm:"not null;index" json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Section   *GameSection `gorm:"foreignKey:SectionID" json:"section,omitempty"`
}

// GameScore is a learner's proof of play, reviewed once by the game owner.
type GameScore struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	GameID        uint      `gorm:"not null;index" json:"game_id"`
	LearnerID     uint      `gorm:"not null;index" json:"learner_id"`
	ScreenshotRef string    `gorm:"size:512;not null" json:"-"`
	ScreenshotURL string    `gorm:"size:512;not null" json:"screenshot_url"`
	Reviewed      bool      `gorm:"not null;default:false" json:"reviewed"`
	SubmittedAt   time.Time `gorm:"not null" json:"submitted_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Game          *Game     `gorm:"foreignKey:GameID" json:"game,omitempty"`
	Learner       *User     `gorm:"foreignKey:LearnerID" json:"learner,omitempty"`
}
