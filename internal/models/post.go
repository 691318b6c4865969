package models

import (
	"database/sql"
	"time"
)

// Post is a top-level submission. Upvotes/Downvotes are a cache rebuilt from votes.
type Post struct {
	ID           string         `gorm:"type:uuid;primaryKey;column:id"`
	AuthorID     string         `gorm:"type:uuid;not null;index:posts_author_ix;column:author_id"`
	CommunityID  sql.NullString `gorm:"type:uuid;index:posts_community_ix;column:community_id"`
	Title        string         `gorm:"type:text;not null;column:title"`
	Content      string         `gorm:"type:text;not null;default:'';column:content"`
	Category     string         `gorm:"type:varchar(64);not null;default:'';column:category"`
	Upvotes      int            `gorm:"not null;default:0;column:upvotes"`
	Downvotes    int            `gorm:"not null;default:0;column:downvotes"`
	CommentCount int            `gorm:"not null;default:0;column:comment_count"`
	CreatedAt    time.Time      `gorm:"not null;index:posts_created_ix;column:created_at"`
	UpdatedAt    time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// Comment is a reply to a post or to another comment
type Comment struct {
	ID        string         `gorm:"type:uuid;primaryKey;column:id"`
	PostID    string         `gorm:"type:uuid;not null;index:comments_post_ix;column:post_id"`
	ParentID  sql.NullString `gorm:"type:uuid;column:parent_id"`
	AuthorID  string         `gorm:"type:uuid;not null;index:comments_author_ix;column:author_id"`
	Content   string         `gorm:"type:text;not null;column:content"`
	Depth     int16          `gorm:"type:smallint;not null;default:0;column:depth"`
	Upvotes   int            `gorm:"not null;default:0;column:upvotes"`
	Downvotes int            `gorm:"not null;default:0;column:downvotes"`
	CreatedAt time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}
