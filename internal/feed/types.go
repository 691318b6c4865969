// Package feed ranks posts and mixes quest and accountability cards into the
// ranked stream.
package feed

import (
	"encoding/json"
	"time"
)

// Post is the primary feed entry
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	CommunityID  string    `json:"community_id,omitempty"`
	Title        string    `json:"title"`
	Category     string    `json:"category,omitempty"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Score is upvotes minus downvotes
func (p Post) Score() int {
	return p.Upvotes - p.Downvotes
}

// QuestStatus is the viewer's progress on a quest
type QuestStatus string

const (
	QuestNotStarted QuestStatus = "not_started"
	QuestInProgress QuestStatus = "in_progress"
	QuestCompleted  QuestStatus = "completed"
)

// QuestProgress is attached when the viewer has started a quest
type QuestProgress struct {
	Status   QuestStatus `json:"status"`
	Progress int         `json:"progress"`
}

// Quest is a gamification card
type Quest struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	XPReward    int            `json:"xp_reward"`
	CommunityID string         `json:"available_in_community,omitempty"`
	Progress    *QuestProgress `json:"user_progress,omitempty"`
}

func (q Quest) status() QuestStatus {
	if q.Progress == nil {
		return QuestNotStarted
	}
	return q.Progress.Status
}

// AccountabilityStatus tracks a government promise or project
type AccountabilityStatus string

const (
	AccountabilityPending    AccountabilityStatus = "pending"
	AccountabilityInProgress AccountabilityStatus = "in_progress"
	AccountabilityCompleted  AccountabilityStatus = "completed"
	AccountabilityFailed     AccountabilityStatus = "failed"
)

// AccountabilityUpdate is a progress report on a tracked promise
type AccountabilityUpdate struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Status      AccountabilityStatus `json:"status"`
	CommunityID string               `json:"community,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   *time.Time           `json:"updated_at,omitempty"`
}

// lastActivity is updated_at, or created_at for never-updated rows
func (u AccountabilityUpdate) lastActivity() time.Time {
	if u.UpdatedAt != nil && !u.UpdatedAt.IsZero() {
		return *u.UpdatedAt
	}
	return u.CreatedAt
}

// ItemType tags a feed entry
type ItemType string

const (
	ItemPost           ItemType = "post"
	ItemQuest          ItemType = "quest"
	ItemAccountability ItemType = "accountability"
)

// Item is one entry of a composed feed. Exactly one payload is set,
// matching Type.
type Item struct {
	ID             string
	Type           ItemType
	Post           *Post
	Quest          *Quest
	Accountability *AccountabilityUpdate
}

// Data returns the payload matching Type
func (i Item) Data() interface{} {
	switch i.Type {
	case ItemPost:
		return i.Post
	case ItemQuest:
		return i.Quest
	case ItemAccountability:
		return i.Accountability
	}
	return nil
}

// MarshalJSON renders {"id", "type", "data"}
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID   string      `json:"id"`
		Type ItemType    `json:"type"`
		Data interface{} `json:"data"`
	}{i.ID, i.Type, i.Data()})
}
