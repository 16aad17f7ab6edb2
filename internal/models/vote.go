package models

import (
	"fmt"
	"time"
)

// TargetType names the kind of votable entity.
type TargetType string

const (
	TargetQuestion TargetType = "question"
	TargetAnswer   TargetType = "answer"
)

// ParseTargetType validates a target type from a request body.
func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetQuestion, TargetAnswer:
		return TargetType(s), nil
	}
	return "", fmt.Errorf("unsupported target type %q", s)
}

// Polarity is the direction of a vote.
type Polarity string

const (
	PolarityUp   Polarity = "up"
	PolarityDown Polarity = "down"
)

// ParseVoteType accepts the wire names "upvote"/"downvote" as well as "up"/"down".
func ParseVoteType(s string) (Polarity, error) {
	switch s {
	case "upvote", "up":
		return PolarityUp, nil
	case "downvote", "down":
		return PolarityDown, nil
	}
	return "", fmt.Errorf("unsupported vote type %q", s)
}

// VoteType returns the wire name of the polarity.
func (p Polarity) VoteType() string {
	return string(p) + "vote"
}

// Vote model - one row per (voter, target). The identity key is enforced by
// a composite unique index.
type Vote struct {
	ID         int        `gorm:"primaryKey" json:"id"`
	VoterID    int        `gorm:"not null;uniqueIndex:idx_vote_identity,priority:1" json:"voter_id"`
	TargetType TargetType `gorm:"type:varchar(16);not null;uniqueIndex:idx_vote_identity,priority:2;index:idx_vote_target,priority:1" json:"target_type"`
	TargetID   int        `gorm:"not null;uniqueIndex:idx_vote_identity,priority:3;index:idx_vote_target,priority:2" json:"target_id"`
	Polarity   Polarity   `gorm:"type:varchar(8);not null" json:"polarity"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
