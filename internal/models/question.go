package models

import "time"

type Question struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"not null" json:"title"`
	Body     string `json:"body"`
	AuthorID int    `gorm:"not null;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	// AcceptedAnswerID is the acceptance relationship; nil means no accepted answer.
	AcceptedAnswerID  *int `json:"accepted_answer_id"`
	HasAcceptedAnswer bool `gorm:"not null;default:false" json:"has_accepted_answer"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateQuestionRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
}
