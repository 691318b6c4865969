package engagement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/amacivic/engagement/pkg/logging"
)

// CounterSink caches recounted counters on the target row
type CounterSink interface {
	StoreCounters(ctx context.Context, targetID string, targetType TargetType, c Counters) error
}

// VoteEvent is published after a transition commits
type VoteEvent struct {
	Transition VoteTransition `json:"transition"`
	Counters   Counters       `json:"counters"`
	Score      int            `json:"score"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// EventPublisher announces applied votes to other services
type EventPublisher interface {
	PublishVote(ctx context.Context, event VoteEvent) error
}

// VoteResult is the server's answer to a vote
type VoteResult struct {
	Transition *VoteTransition `json:"transition"`
	Counters   Counters        `json:"counters"`
	// CountsStale marks a committed write whose recount failed; Counters is
	// zero and the caller should fetch counts again.
	CountsStale bool `json:"counts_stale,omitempty"`
}

// Service is the server-side engine: ledger writes followed by a recount that
// refreshes the cached counters.
type Service struct {
	ledger    *Ledger
	projector *Projector
	sink      CounterSink
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewService wires the server engine. sink and publisher may be nil.
func NewService(ledger *Ledger, projector *Projector, sink CounterSink, publisher EventPublisher) *Service {
	return &Service{
		ledger:    ledger,
		projector: projector,
		sink:      sink,
		publisher: publisher,
		now:       time.Now,
		logger:    logging.WithComponent("engagement-service"),
	}
}

// Vote applies one vote for actorID and returns the fresh recount. When the
// write succeeded but the recount failed, the transition is returned marked
// CountsStale together with the recount error.
func (s *Service) Vote(ctx context.Context, actorID, targetID string, targetType TargetType, vt VoteType) (*VoteResult, error) {
	transition, err := s.ledger.ApplyVote(ctx, actorID, targetID, targetType, vt)
	if err != nil {
		return nil, err
	}

	res := &VoteResult{Transition: transition}
	counters, err := s.projector.Recount(ctx, targetID)
	if err != nil {
		s.logger.Warn("Recount after vote failed", zap.String("target_id", targetID), zap.Error(err))
		res.CountsStale = true
		return res, err
	}
	res.Counters = counters

	if s.sink != nil {
		if err := s.sink.StoreCounters(ctx, targetID, targetType, counters); err != nil {
			// counters are a cache; the next recount repairs them
			s.logger.Warn("Failed to cache counters",
				zap.String("target_id", targetID),
				zap.String("target_type", string(targetType)),
				zap.Error(err))
		}
	}

	if s.publisher != nil {
		event := VoteEvent{
			Transition: *transition,
			Counters:   counters,
			Score:      counters.Score(),
			OccurredAt: s.now().UTC(),
		}
		if err := s.publisher.PublishVote(ctx, event); err != nil {
			s.logger.Warn("Failed to publish vote event", zap.String("target_id", targetID), zap.Error(err))
		}
	}

	return res, nil
}

// Counts returns the authoritative recount for targetID
func (s *Service) Counts(ctx context.Context, targetID string) (Counters, error) {
	return s.projector.Recount(ctx, targetID)
}

// Karma returns the karma of userID
func (s *Service) Karma(ctx context.Context, userID string) (Karma, error) {
	return s.projector.Karma(ctx, userID)
}

// As returns a Remote that votes as actorID without a network hop
func (s *Service) As(actorID string) Remote {
	return &localRemote{service: s, actorID: actorID}
}

type localRemote struct {
	service *Service
	actorID string
}

func (r *localRemote) SubmitVote(ctx context.Context, targetID string, targetType TargetType, vt VoteType) (*VoteTransition, error) {
	res, err := r.service.Vote(ctx, r.actorID, targetID, targetType, vt)
	if res != nil && res.Transition != nil {
		// the write committed; a failed recount is the caller's read problem
		return res.Transition, nil
	}
	return nil, err
}

func (r *localRemote) FetchCounts(ctx context.Context, targetID string, targetType TargetType) (Counters, error) {
	return r.service.Counts(ctx, targetID)
}
