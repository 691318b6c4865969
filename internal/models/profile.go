package models

import (
	"database/sql"
	"time"
)

// Profile holds the karma projection for a user
type Profile struct {
	ID           string         `gorm:"type:uuid;primaryKey;column:id"`
	Username     sql.NullString `gorm:"type:varchar(64);uniqueIndex:profiles_username_ux;column:username"`
	Location     sql.NullString `gorm:"type:varchar(128);column:location"`
	PostKarma    int            `gorm:"not null;default:0;column:post_karma"`
	CommentKarma int            `gorm:"not null;default:0;column:comment_karma"`
	Karma        int            `gorm:"not null;default:0;column:karma"`
	CreatedAt    time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt    time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// CommunityMember records that a user joined a community
type CommunityMember struct {
	ID          string    `gorm:"type:uuid;primaryKey;column:id"`
	CommunityID string    `gorm:"type:uuid;not null;uniqueIndex:community_members_ux,priority:1;column:community_id"`
	UserID      string    `gorm:"type:uuid;not null;uniqueIndex:community_members_ux,priority:2;index:community_members_user_ix;column:user_id"`
	JoinedAt    time.Time `gorm:"not null;column:joined_at"`
}

// TableName specifies the table name for CommunityMember
func (CommunityMember) TableName() string {
	return "community_members"
}
