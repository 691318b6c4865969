// Package indexer holds the background jobs that keep derived engagement data
// consistent with the vote ledger.
package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amacivic/engagement/internal/db"
	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/pkg/logging"
	"github.com/amacivic/engagement/pkg/telemetry"
)

// TargetStore pages through targets and rewrites their cached counters
type TargetStore interface {
	ListTargets(ctx context.Context, tt engagement.TargetType, afterID string, limit int) ([]db.TargetCounters, error)
	StoreCounters(ctx context.Context, targetID string, tt engagement.TargetType, c engagement.Counters) error
}

// ProfileStore pages through users and stores their karma
type ProfileStore interface {
	ListIDs(ctx context.Context, afterID string, limit int) ([]string, error)
	UpdateKarma(ctx context.Context, userID string, k engagement.Karma) error
}

// Stats summarizes one recount pass
type Stats struct {
	Targets  int
	Drifted  int
	Invalid  int
	Profiles int
}

// Recount rebuilds cached counters from votes and then recomputes karma
type Recount struct {
	targets   TargetStore
	profiles  ProfileStore
	projector *engagement.Projector
	batchSize int
	logger    *zap.Logger
}

// NewRecount creates a recount job
func NewRecount(targets TargetStore, profiles ProfileStore, projector *engagement.Projector, batchSize int) *Recount {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Recount{
		targets:   targets,
		profiles:  profiles,
		projector: projector,
		batchSize: batchSize,
		logger:    logging.WithComponent("recount"),
	}
}

// Run performs one pass, or a pass every interval until ctx is cancelled
func (r *Recount) Run(ctx context.Context, interval time.Duration) error {
	r.logger.Info("Starting recount", zap.Duration("interval", interval), zap.Int("batch_size", r.batchSize))

	for {
		start := time.Now()
		stats, err := r.RunOnce(ctx)
		if err != nil {
			if interval == 0 || ctx.Err() != nil {
				return err
			}
			r.logger.Error("Recount pass failed", zap.Error(err))
		} else {
			r.logger.Info("Recount pass complete",
				zap.Int("targets", stats.Targets),
				zap.Int("drifted", stats.Drifted),
				zap.Int("invalid", stats.Invalid),
				zap.Int("profiles", stats.Profiles),
				zap.Duration("took", time.Since(start)))
		}

		if interval == 0 {
			return nil
		}
		if !r.wait(ctx, interval) {
			return ctx.Err()
		}
	}
}

// RunOnce recounts every post and comment, then every profile's karma.
// Karma reads the cached counters, so it runs after them.
func (r *Recount) RunOnce(ctx context.Context) (Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, "indexer.recount")
	defer span.End()

	var stats Stats
	for _, tt := range []engagement.TargetType{engagement.TargetPost, engagement.TargetComment} {
		if err := r.recountTargets(ctx, tt, &stats); err != nil {
			span.RecordError(err)
			return stats, err
		}
	}
	if err := r.recountKarma(ctx, &stats); err != nil {
		span.RecordError(err)
		return stats, err
	}
	return stats, nil
}

func (r *Recount) recountTargets(ctx context.Context, tt engagement.TargetType, stats *Stats) error {
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := r.targets.ListTargets(ctx, tt, afterID, r.batchSize)
		if err != nil {
			return fmt.Errorf("failed to list %ss after %q: %w", tt, afterID, err)
		}
		if len(batch) == 0 {
			return nil
		}

		for _, target := range batch {
			stats.Targets++
			if err := engagement.CheckCounters(target.Counters); err != nil {
				stats.Invalid++
				r.logger.Error("Cached counters out of range",
					zap.String("target_id", target.ID),
					zap.String("target_type", string(tt)),
					zap.Error(err))
			}

			fresh, err := r.projector.Recount(ctx, target.ID)
			if err != nil {
				return fmt.Errorf("failed to recount %s %s: %w", tt, target.ID, err)
			}
			if fresh == target.Counters {
				continue
			}

			stats.Drifted++
			r.logger.Info("Counter drift repaired",
				zap.String("target_id", target.ID),
				zap.String("target_type", string(tt)),
				zap.Int("cached_up", target.Counters.Upvotes),
				zap.Int("cached_down", target.Counters.Downvotes),
				zap.Int("upvotes", fresh.Upvotes),
				zap.Int("downvotes", fresh.Downvotes))
			if err := r.targets.StoreCounters(ctx, target.ID, tt, fresh); err != nil {
				return fmt.Errorf("failed to store counters for %s %s: %w", tt, target.ID, err)
			}
		}

		r.logger.Debug("Recounted batch",
			zap.String("target_type", string(tt)),
			zap.String("after", afterID),
			zap.Int("count", len(batch)))
		afterID = batch[len(batch)-1].ID
	}
}

func (r *Recount) recountKarma(ctx context.Context, stats *Stats) error {
	if r.profiles == nil {
		return nil
	}

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ids, err := r.profiles.ListIDs(ctx, afterID, r.batchSize)
		if err != nil {
			return fmt.Errorf("failed to list profiles after %q: %w", afterID, err)
		}
		if len(ids) == 0 {
			return nil
		}

		for _, id := range ids {
			k, err := r.projector.Karma(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to compute karma for %s: %w", id, err)
			}
			if err := r.profiles.UpdateKarma(ctx, id, k); err != nil {
				return fmt.Errorf("failed to store karma for %s: %w", id, err)
			}
			stats.Profiles++
		}
		afterID = ids[len(ids)-1]
	}
}

// wait reports false when ctx ended first
func (r *Recount) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
