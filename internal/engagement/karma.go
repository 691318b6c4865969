package engagement

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amacivic/engagement/pkg/logging"
)

// Tally counts votes by direction. The result depends only on the multiset
// of votes, never on their order.
func Tally(votes []Vote) Counters {
	var c Counters
	for _, v := range votes {
		switch v.Type {
		case VoteUp:
			c.Upvotes++
		case VoteDown:
			c.Downvotes++
		}
	}
	return c
}

// Karma is a user's reputation derived from the scores of their content
type Karma struct {
	PostKarma    int `json:"post_karma"`
	CommentKarma int `json:"comment_karma"`
	Total        int `json:"karma"`
}

// KarmaReader returns the cached counters of everything a user authored
type KarmaReader interface {
	AuthoredCounters(ctx context.Context, userID string, targetType TargetType) ([]Counters, error)
}

// Projector is the KarmaProjector
type Projector struct {
	votes  VoteReader
	karma  KarmaReader
	logger *zap.Logger
}

// NewProjector creates a projector. karma may be nil when only recounts are needed.
func NewProjector(votes VoteReader, karma KarmaReader) *Projector {
	return &Projector{
		votes:  votes,
		karma:  karma,
		logger: logging.WithComponent("karma-projector"),
	}
}

// Recount rebuilds the counters of targetID from its votes
func (p *Projector) Recount(ctx context.Context, targetID string) (Counters, error) {
	votes, err := p.votes.ListTargetVotes(ctx, targetID)
	if err != nil {
		return Counters{}, newError(CodeRemoteReadFailure, "recount", targetID, err)
	}

	p.checkIntegrity(targetID, votes)
	return Tally(votes), nil
}

// checkIntegrity logs data bugs; the raw tally is still what gets displayed
func (p *Projector) checkIntegrity(targetID string, votes []Vote) {
	seen := make(map[string]int, len(votes))
	for _, v := range votes {
		seen[v.VoterID]++
		if seen[v.VoterID] == 2 {
			p.logger.Error("Duplicate votes found during recount",
				zap.String("code", string(CodeInvariantViolation)),
				zap.String("target_id", targetID),
				zap.String("voter_id", v.VoterID))
		}
	}
}

// CheckCounters reports counters that can never come out of a recount
func CheckCounters(c Counters) error {
	if c.Upvotes < 0 || c.Downvotes < 0 {
		return fmt.Errorf("%s: negative counters up=%d down=%d", CodeInvariantViolation, c.Upvotes, c.Downvotes)
	}
	return nil
}

// Karma sums post and comment scores for userID
func (p *Projector) Karma(ctx context.Context, userID string) (Karma, error) {
	if p.karma == nil {
		return Karma{}, newError(CodeRemoteReadFailure, "karma", "", fmt.Errorf("no karma source configured"))
	}

	posts, err := p.karma.AuthoredCounters(ctx, userID, TargetPost)
	if err != nil {
		return Karma{}, newError(CodeRemoteReadFailure, "karma", "", fmt.Errorf("failed to load post counters: %w", err))
	}
	comments, err := p.karma.AuthoredCounters(ctx, userID, TargetComment)
	if err != nil {
		return Karma{}, newError(CodeRemoteReadFailure, "karma", "", fmt.Errorf("failed to load comment counters: %w", err))
	}

	var k Karma
	for _, c := range posts {
		if err := CheckCounters(c); err != nil {
			p.logger.Warn("Invalid cached counters", zap.String("user_id", userID), zap.Error(err))
		}
		k.PostKarma += c.Score()
	}
	for _, c := range comments {
		if err := CheckCounters(c); err != nil {
			p.logger.Warn("Invalid cached counters", zap.String("user_id", userID), zap.Error(err))
		}
		k.CommentKarma += c.Score()
	}
	k.Total = k.PostKarma + k.CommentKarma
	return k, nil
}
