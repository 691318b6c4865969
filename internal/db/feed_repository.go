package db

import (
	"context"
	"fmt"

	"github.com/amacivic/engagement/internal/feed"
	"github.com/amacivic/engagement/internal/models"
)

// accountabilityWindow bounds how many recent updates card selection sees
const accountabilityWindow = 200

// FeedRepository loads feed content; it implements feed.Source
type FeedRepository struct {
	*Repository
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(repo *Repository) *FeedRepository {
	return &FeedRepository{Repository: repo}
}

// ListPosts returns the newest posts, optionally within one community
func (r *FeedRepository) ListPosts(ctx context.Context, q feed.PostQuery) ([]feed.Post, error) {
	query := r.db.WithContext(ctx).Model(&models.Post{})
	if q.CommunityID != "" {
		query = query.Where("community_id = ?", q.CommunityID)
	}

	var rows []models.Post
	if err := query.Order("created_at DESC").Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]feed.Post, len(rows))
	for i, row := range rows {
		out[i] = feed.Post{
			ID:           row.ID,
			AuthorID:     row.AuthorID,
			CommunityID:  row.CommunityID.String,
			Title:        row.Title,
			Category:     row.Category,
			Upvotes:      row.Upvotes,
			Downvotes:    row.Downvotes,
			CommentCount: row.CommentCount,
			CreatedAt:    row.CreatedAt,
		}
	}
	return out, nil
}

// ListQuests returns active quests with userID's progress attached
func (r *FeedRepository) ListQuests(ctx context.Context, userID string) ([]feed.Quest, error) {
	var rows []models.Quest
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	progress := map[string]models.UserQuest{}
	if userID != "" {
		var uqs []models.UserQuest
		if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&uqs).Error; err != nil {
			return nil, fmt.Errorf("failed to load quest progress: %w", err)
		}
		for _, uq := range uqs {
			progress[uq.QuestID] = uq
		}
	}

	out := make([]feed.Quest, len(rows))
	for i, row := range rows {
		q := feed.Quest{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description,
			Category:    row.Category,
			XPReward:    row.Points,
			CommunityID: row.CommunityID.String,
		}
		if uq, ok := progress[row.ID]; ok {
			q.Progress = &feed.QuestProgress{Status: feed.QuestStatus(uq.Status), Progress: uq.Progress}
		}
		out[i] = q
	}
	return out, nil
}

// ListAccountabilityUpdates returns the most recent updates
func (r *FeedRepository) ListAccountabilityUpdates(ctx context.Context) ([]feed.AccountabilityUpdate, error) {
	var rows []models.AccountabilityUpdate
	if err := r.db.WithContext(ctx).
		Order("COALESCE(updated_at, created_at) DESC").
		Limit(accountabilityWindow).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]feed.AccountabilityUpdate, len(rows))
	for i, row := range rows {
		u := feed.AccountabilityUpdate{
			ID:          row.ID,
			Title:       row.Title,
			Status:      feed.AccountabilityStatus(row.Status),
			CommunityID: row.Community.String,
			CreatedAt:   row.CreatedAt,
		}
		if row.UpdatedAt.Valid {
			t := row.UpdatedAt.Time
			u.UpdatedAt = &t
		}
		out[i] = u
	}
	return out, nil
}

// LoadViewer gathers the memberships, tracked promises and location of userID
func (r *FeedRepository) LoadViewer(ctx context.Context, userID string) (feed.Viewer, error) {
	viewer := feed.Viewer{UserID: userID}

	if err := r.db.WithContext(ctx).Model(&models.CommunityMember{}).
		Where("user_id = ?", userID).
		Pluck("community_id", &viewer.Communities).Error; err != nil {
		return viewer, fmt.Errorf("failed to load communities: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&models.TrackedPromise{}).
		Where("user_id = ?", userID).
		Pluck("update_id", &viewer.TrackedPromises).Error; err != nil {
		return viewer, fmt.Errorf("failed to load tracked promises: %w", err)
	}

	profile, err := NewProfileRepository(r.Repository).GetByID(ctx, userID)
	if err != nil {
		return viewer, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil {
		viewer.Location = profile.Location.String
	}
	return viewer, nil
}
