package models

import "time"

// Roles carried in the auth token.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	ID       int    `gorm:"primaryKey" json:"id"`
	Username string `gorm:"unique;not null" json:"username"`
	Email    string `gorm:"unique;not null" json:"email"`
	Phone    string `json:"-"` // E.164, used for optional SMS push
	Role     string `gorm:"not null;default:member" json:"role"`

	// ReputationPoints is written only by the reputation ledger.
	ReputationPoints int `gorm:"not null;default:0;check:reputation_points >= 0" json:"reputation_points"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
