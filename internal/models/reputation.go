package models

import "time"

// ReputationEntry records one mutation of a user's score. Grants stay live
// until reversed; a reversal is its own entry pointing back at the grant.
type ReputationEntry struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	UserID      int       `gorm:"not null;index" json:"user_id"`
	CauseRef    string    `gorm:"type:varchar(128);not null;index" json:"cause_ref"`
	Amount      int       `gorm:"not null" json:"amount"`
	ScoreBefore int       `gorm:"not null" json:"score_before"`
	ScoreAfter  int       `gorm:"not null" json:"score_after"`
	ReversesID  *int      `json:"reverses_id,omitempty"`
	Reversed    bool      `gorm:"not null;default:false" json:"reversed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Live reports whether the entry is an unreversed grant.
func (e ReputationEntry) Live() bool {
	return e.ReversesID == nil && !e.Reversed
}
