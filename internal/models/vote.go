package models

import "time"

// Vote is the single vote a user holds on a post or comment
type Vote struct {
	ID         string    `gorm:"type:uuid;primaryKey;column:id"`
	VoterID    string    `gorm:"type:uuid;not null;uniqueIndex:votes_voter_target_ux,priority:1;column:voter_id"`
	TargetID   string    `gorm:"type:uuid;not null;uniqueIndex:votes_voter_target_ux,priority:2;index:votes_target_ix;column:target_id"`
	TargetType string    `gorm:"type:varchar(16);not null;column:target_type"`
	VoteType   string    `gorm:"type:varchar(8);not null;column:vote_type"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
	UpdatedAt  time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Vote
func (Vote) TableName() string {
	return "votes"
}

// Vote target types
const (
	TargetTypePost    = "post"
	TargetTypeComment = "comment"
)
