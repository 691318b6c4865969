package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amacivic/engagement/pkg/logging"
	"github.com/amacivic/engagement/pkg/telemetry"
)

// Ledger is the VoteLedger: the toggle state machine over one vote row per
// (voter, target).
type Ledger struct {
	store  VoteStore
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// LedgerOption customizes a Ledger
type LedgerOption func(*Ledger)

// WithLedgerClock overrides the timestamp source
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides vote ID generation
func WithIDGenerator(newID func() string) LedgerOption {
	return func(l *Ledger) { l.newID = newID }
}

// NewLedger creates a ledger over store
func NewLedger(store VoteStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: logging.WithComponent("vote-ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ApplyVote runs one vote request through the state machine:
//
//	no vote            -> insert        (added,   user vote = requested)
//	same direction     -> delete        (removed, user vote = none)
//	other direction    -> update type   (changed, user vote = requested)
//
// The transition only counts if the store commits; on error nothing changed.
func (l *Ledger) ApplyVote(ctx context.Context, voterID, targetID string, targetType TargetType, voteType VoteType) (*VoteTransition, error) {
	const op = "apply_vote"

	if voterID == "" {
		return nil, newError(CodeAuthenticationRequired, op, targetID, ErrAuthenticationRequired)
	}
	if targetID == "" || !targetType.Valid() || !voteType.Valid() {
		return nil, newError(CodeInvalidArgument, op, targetID,
			fmt.Errorf("%w: target=%q type=%q vote=%q", ErrInvalidArgument, targetID, targetType, voteType))
	}

	ctx, span := telemetry.StartSpan(ctx, "engagement.apply_vote")
	defer span.End()

	var transition *VoteTransition
	err := l.store.WithinTx(ctx, func(tx VoteTx) error {
		existing, err := tx.FindVotes(ctx, voterID, targetID)
		if err != nil {
			return fmt.Errorf("failed to load existing vote: %w", err)
		}

		if len(existing) > 1 {
			l.logger.Error("Duplicate votes for voter and target",
				zap.String("code", string(CodeInvariantViolation)),
				zap.String("voter_id", voterID),
				zap.String("target_id", targetID),
				zap.Int("rows", len(existing)))
			for _, dup := range existing[1:] {
				if err := tx.DeleteVote(ctx, dup.ID); err != nil {
					return fmt.Errorf("failed to remove duplicate vote %s: %w", dup.ID, err)
				}
			}
			existing = existing[:1]
		}

		transition = &VoteTransition{
			VoterID:    voterID,
			TargetID:   targetID,
			TargetType: targetType,
			Requested:  voteType,
		}

		if len(existing) == 0 {
			now := l.now()
			vote := &Vote{
				ID:         l.newID(),
				VoterID:    voterID,
				TargetID:   targetID,
				TargetType: targetType,
				Type:       voteType,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.InsertVote(ctx, vote); err != nil {
				return fmt.Errorf("failed to insert vote: %w", err)
			}
			transition.Action = ActionAdded
			transition.UserVote = voteType
			return nil
		}

		current := existing[0]
		transition.Previous = current.Type
		if current.Type == voteType {
			if err := tx.DeleteVote(ctx, current.ID); err != nil {
				return fmt.Errorf("failed to delete vote: %w", err)
			}
			transition.Action = ActionRemoved
			transition.UserVote = VoteNone
			return nil
		}

		if err := tx.UpdateVoteType(ctx, current.ID, voteType); err != nil {
			return fmt.Errorf("failed to update vote: %w", err)
		}
		transition.Action = ActionChanged
		transition.UserVote = voteType
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, newError(CodeRemoteWriteFailure, op, targetID, err)
	}

	l.logger.Debug("Vote transition applied",
		zap.String("voter_id", voterID),
		zap.String("target_id", targetID),
		zap.String("action", string(transition.Action)),
		zap.String("user_vote", string(transition.UserVote)))

	return transition, nil
}
