package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/internal/models"
)

// ErrTargetNotFound is returned when counters are written for a missing row
var ErrTargetNotFound = errors.New("target not found")

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func targetTable(tt engagement.TargetType) (string, error) {
	switch tt {
	case engagement.TargetPost:
		return models.Post{}.TableName(), nil
	case engagement.TargetComment:
		return models.Comment{}.TableName(), nil
	}
	return "", fmt.Errorf("unknown target type %q", tt)
}

// CounterRepository reads and writes the counters cached on targets
type CounterRepository struct {
	*Repository
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(repo *Repository) *CounterRepository {
	return &CounterRepository{Repository: repo}
}

// StoreCounters implements engagement.CounterSink
func (r *CounterRepository) StoreCounters(ctx context.Context, targetID string, tt engagement.TargetType, c engagement.Counters) error {
	table, err := targetTable(tt)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Table(table).
		Where("id = ?", targetID).
		Updates(map[string]interface{}{"upvotes": c.Upvotes, "downvotes": c.Downvotes})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", ErrTargetNotFound, tt, targetID)
	}
	return nil
}

type counterRow struct {
	ID        string
	Upvotes   int
	Downvotes int
}

// AuthoredCounters implements engagement.KarmaReader
func (r *CounterRepository) AuthoredCounters(ctx context.Context, userID string, tt engagement.TargetType) ([]engagement.Counters, error) {
	table, err := targetTable(tt)
	if err != nil {
		return nil, err
	}
	var rows []counterRow
	if err := r.db.WithContext(ctx).Table(table).
		Select("id, upvotes, downvotes").
		Where("author_id = ?", userID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engagement.Counters, len(rows))
	for i, row := range rows {
		out[i] = engagement.Counters{Upvotes: row.Upvotes, Downvotes: row.Downvotes}
	}
	return out, nil
}

// TargetCounters is one target's cached counters, as read by the recount job
type TargetCounters struct {
	ID       string
	Counters engagement.Counters
}

// ListTargets pages through targets of one type in ID order, after afterID
func (r *CounterRepository) ListTargets(ctx context.Context, tt engagement.TargetType, afterID string, limit int) ([]TargetCounters, error) {
	table, err := targetTable(tt)
	if err != nil {
		return nil, err
	}
	var rows []counterRow
	if err := r.db.WithContext(ctx).Table(table).
		Select("id, upvotes, downvotes").
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]TargetCounters, len(rows))
	for i, row := range rows {
		out[i] = TargetCounters{ID: row.ID, Counters: engagement.Counters{Upvotes: row.Upvotes, Downvotes: row.Downvotes}}
	}
	return out, nil
}

// ProfileRepository provides profile-related database operations
type ProfileRepository struct {
	*Repository
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(repo *Repository) *ProfileRepository {
	return &ProfileRepository{Repository: repo}
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// ListIDs pages through profile IDs after afterID
func (r *ProfileRepository) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateKarma stores the karma projection on the profile
func (r *ProfileRepository) UpdateKarma(ctx context.Context, userID string, k engagement.Karma) error {
	return r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"post_karma":    k.PostKarma,
			"comment_karma": k.CommentKarma,
			"karma":         k.Total,
		}).Error
}

// lockingRead is SELECT ... FOR UPDATE
var lockingRead = clause.Locking{Strength: "UPDATE"}
