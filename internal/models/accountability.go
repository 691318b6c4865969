package models

import (
	"database/sql"
	"time"
)

// AccountabilityUpdate is a progress report on a government promise or project
type AccountabilityUpdate struct {
	ID        string         `gorm:"type:uuid;primaryKey;column:id"`
	PromiseID string         `gorm:"type:uuid;not null;index:accountability_updates_promise_ix;column:promise_id"`
	Title     string         `gorm:"type:text;not null;column:title"`
	Status    string         `gorm:"type:varchar(16);not null;default:'pending';column:status"`
	Community sql.NullString `gorm:"type:varchar(128);column:community"`
	CreatedAt time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt sql.NullTime   `gorm:"column:updated_at"`
}

// TableName specifies the table name for AccountabilityUpdate
func (AccountabilityUpdate) TableName() string {
	return "accountability_updates"
}

// TrackedPromise records that a user follows an accountability item
type TrackedPromise struct {
	UserID    string    `gorm:"type:uuid;primaryKey;column:user_id"`
	UpdateID  string    `gorm:"type:uuid;primaryKey;column:update_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for TrackedPromise
func (TrackedPromise) TableName() string {
	return "tracked_promises"
}
