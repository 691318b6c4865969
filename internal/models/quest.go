package models

import (
	"database/sql"
	"time"
)

// Quest is a civic task users can take on for XP
type Quest struct {
	ID          string         `gorm:"type:uuid;primaryKey;column:id"`
	Title       string         `gorm:"type:text;not null;column:title"`
	Description string         `gorm:"type:text;not null;default:'';column:description"`
	Category    string         `gorm:"type:varchar(64);not null;column:category"`
	Points      int            `gorm:"not null;default:0;column:points"`
	CommunityID sql.NullString `gorm:"type:uuid;column:community_id"`
	IsActive    bool           `gorm:"not null;default:true;column:is_active"`
	CreatedAt   time.Time      `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Quest
func (Quest) TableName() string {
	return "quests"
}

// UserQuest is a user's progress on a quest
type UserQuest struct {
	ID          string       `gorm:"type:uuid;primaryKey;column:id"`
	UserID      string       `gorm:"type:uuid;not null;uniqueIndex:user_quests_ux,priority:1;column:user_id"`
	QuestID     string       `gorm:"type:uuid;not null;uniqueIndex:user_quests_ux,priority:2;column:quest_id"`
	Status      string       `gorm:"type:varchar(16);not null;default:'not_started';column:status"`
	Progress    int          `gorm:"not null;default:0;column:progress"`
	StartedAt   sql.NullTime `gorm:"column:started_at"`
	CompletedAt sql.NullTime `gorm:"column:completed_at"`
}

// TableName specifies the table name for UserQuest
func (UserQuest) TableName() string {
	return "user_quests"
}
