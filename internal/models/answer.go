package models

import "time"

type Answer struct {
	ID         int    `gorm:"primaryKey" json:"id"`
	QuestionID int    `gorm:"not null;index" json:"question_id"`
	AuthorID   int    `gorm:"not null;index" json:"author_id"`
	Author     *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Body       string `gorm:"not null" json:"body"`

	// IsAccepted mirrors Question.AcceptedAnswerID for read convenience.
	IsAccepted bool `gorm:"not null;default:false" json:"is_accepted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateAnswerRequest struct {
	Body string `json:"body" binding:"required"`
}
