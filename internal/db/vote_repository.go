package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/internal/models"
)

// VoteRepository is the PostgreSQL vote store behind the ledger
type VoteRepository struct {
	*Repository
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(repo *Repository) *VoteRepository {
	return &VoteRepository{Repository: repo}
}

// WithinTx implements engagement.VoteStore
func (r *VoteRepository) WithinTx(ctx context.Context, fn func(tx engagement.VoteTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&voteTx{db: tx})
	})
}

// ListTargetVotes implements engagement.VoteReader
func (r *VoteRepository) ListTargetVotes(ctx context.Context, targetID string) ([]engagement.Vote, error) {
	var rows []models.Vote
	if err := r.db.WithContext(ctx).Where("target_id = ?", targetID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVotes(rows), nil
}

type voteTx struct {
	db *gorm.DB
}

func (tx *voteTx) FindVotes(ctx context.Context, voterID, targetID string) ([]engagement.Vote, error) {
	var rows []models.Vote
	if err := tx.db.WithContext(ctx).
		Clauses(lockingRead).
		Where("voter_id = ? AND target_id = ?", voterID, targetID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVotes(rows), nil
}

func (tx *voteTx) InsertVote(ctx context.Context, v *engagement.Vote) error {
	row := models.Vote{
		ID:         v.ID,
		VoterID:    v.VoterID,
		TargetID:   v.TargetID,
		TargetType: string(v.TargetType),
		VoteType:   string(v.Type),
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
	return tx.db.WithContext(ctx).Create(&row).Error
}

func (tx *voteTx) UpdateVoteType(ctx context.Context, voteID string, vt engagement.VoteType) error {
	return tx.db.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ?", voteID).
		Update("vote_type", string(vt)).Error
}

func (tx *voteTx) DeleteVote(ctx context.Context, voteID string) error {
	return tx.db.WithContext(ctx).Where("id = ?", voteID).Delete(&models.Vote{}).Error
}

func toVotes(rows []models.Vote) []engagement.Vote {
	out := make([]engagement.Vote, len(rows))
	for i, row := range rows {
		out[i] = engagement.Vote{
			ID:         row.ID,
			VoterID:    row.VoterID,
			TargetID:   row.TargetID,
			TargetType: engagement.TargetType(row.TargetType),
			Type:       engagement.VoteType(row.VoteType),
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
		}
	}
	return out
}
