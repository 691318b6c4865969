package engagement

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/amacivic/engagement/pkg/logging"
	"github.com/amacivic/engagement/pkg/telemetry"
)

// Remote is the persistence service a client votes through
type Remote interface {
	// SubmitVote applies the vote as the authenticated actor. Errors must
	// classify as authentication_required, rate_limited or a transient failure.
	SubmitVote(ctx context.Context, targetID string, targetType TargetType, vt VoteType) (*VoteTransition, error)
	// FetchCounts returns the authoritative recount for a target
	FetchCounts(ctx context.Context, targetID string, targetType TargetType) (Counters, error)
}

// Result is what a vote attempt reports to the presentation layer
type Result struct {
	Status     Code
	State      State
	Transition *VoteTransition
	Err        error
}

// OK reports whether the vote was applied
func (r Result) OK() bool {
	return r.Status == CodeOK || r.Status == CodeRemoteReadFailure
}

// Voter is the client-side engine: cooldown, optimistic display and
// reconciliation for one acting user.
type Voter struct {
	actorID    string
	remote     Remote
	limiter    *RateLimiter
	reconciler *Reconciler
	timeout    time.Duration
	locks      *keyedMutex
	logger     *zap.Logger

	votes       metric.Int64Counter
	rollbacks   metric.Int64Counter
	rateLimited metric.Int64Counter
}

// VoterOption customizes a Voter
type VoterOption func(*Voter)

// WithRateLimiter injects the session's limiter
func WithRateLimiter(l *RateLimiter) VoterOption {
	return func(v *Voter) { v.limiter = l }
}

// WithReconciler injects the session's display cache
func WithReconciler(r *Reconciler) VoterOption {
	return func(v *Voter) { v.reconciler = r }
}

// WithTimeout bounds each remote call
func WithTimeout(d time.Duration) VoterOption {
	return func(v *Voter) { v.timeout = d }
}

// NewVoter creates the engine for actorID; an empty actor is allowed and
// every vote then reports authentication_required.
func NewVoter(actorID string, remote Remote, opts ...VoterOption) *Voter {
	v := &Voter{
		actorID: actorID,
		remote:  remote,
		timeout: 10 * time.Second,
		locks:   newKeyedMutex(),
		logger:  logging.WithActor(logging.WithComponent("voter"), actorID),

		votes:       telemetry.Counter("engagement.votes", "Vote attempts by resulting status"),
		rollbacks:   telemetry.Counter("engagement.rollbacks", "Optimistic changes rolled back"),
		rateLimited: telemetry.Counter("engagement.rate_limited", "Votes rejected by the local cooldown"),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.limiter == nil {
		v.limiter = NewRateLimiter()
	}
	if v.reconciler == nil {
		v.reconciler = NewReconciler()
	}
	return v
}

// Reconciler exposes the display cache so callers can seed and read it
func (v *Voter) Reconciler() *Reconciler {
	return v.reconciler
}

// Vote runs one vote through cooldown, optimistic display, the remote write
// and the authoritative recount. Votes on one target are processed in order.
func (v *Voter) Vote(ctx context.Context, targetID string, targetType TargetType, vt VoteType) Result {
	res := v.vote(ctx, targetID, targetType, vt)
	v.votes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(res.Status))))
	return res
}

func (v *Voter) vote(ctx context.Context, targetID string, targetType TargetType, vt VoteType) Result {
	if v.actorID == "" {
		return v.reject(targetID, CodeAuthenticationRequired, ErrAuthenticationRequired)
	}
	if !vt.Valid() || !targetType.Valid() || targetID == "" {
		return v.reject(targetID, CodeInvalidArgument, ErrInvalidArgument)
	}
	if !v.limiter.CheckAndRecord(targetID) {
		v.rateLimited.Add(ctx, 1)
		return v.reject(targetID, CodeRateLimited, ErrRateLimited)
	}

	unlock := v.locks.Lock(targetID)
	defer unlock()

	ctx, span := telemetry.StartSpan(ctx, "engagement.vote")
	defer span.End()

	tok := v.reconciler.BeginVote(targetID, vt)

	writeCtx, cancel := context.WithTimeout(ctx, v.timeout)
	transition, err := v.remote.SubmitVote(writeCtx, targetID, targetType, vt)
	cancel()
	if err == nil && transition == nil {
		err = newError(CodeRemoteWriteFailure, "vote", targetID, errors.New("remote returned no transition"))
	}
	if err != nil {
		span.RecordError(err)
		v.reconciler.Rollback(tok)
		v.rollbacks.Add(ctx, 1)

		code := CodeOf(err)
		if code == CodeRemoteReadFailure || code == CodeInvariantViolation || code == CodeOK {
			code = CodeRemoteWriteFailure
		}
		v.logger.Warn("Vote failed, optimistic state rolled back",
			zap.String("target_id", targetID),
			zap.String("code", string(code)),
			zap.Error(err))
		state, _ := v.reconciler.State(targetID)
		return Result{Status: code, State: state, Err: err}
	}

	readCtx, cancel := context.WithTimeout(ctx, v.timeout)
	counters, err := v.remote.FetchCounts(readCtx, targetID, targetType)
	cancel()
	if err != nil {
		v.reconciler.Commit(tok)
		v.logger.Warn("Recount failed after vote, keeping optimistic counters",
			zap.String("target_id", targetID),
			zap.Error(err))
		state, _ := v.reconciler.State(targetID)
		return Result{Status: CodeRemoteReadFailure, State: state, Transition: transition, Err: err}
	}

	if err := CheckCounters(counters); err != nil {
		v.logger.Error("Authoritative counters out of range", zap.String("target_id", targetID), zap.Error(err))
	}

	v.reconciler.Reconcile(tok, State{Counters: counters, UserVote: transition.UserVote})
	state, _ := v.reconciler.State(targetID)
	return Result{Status: CodeOK, State: state, Transition: transition}
}

func (v *Voter) reject(targetID string, code Code, err error) Result {
	state, _ := v.reconciler.State(targetID)
	return Result{Status: code, State: state, Err: newError(code, "vote", targetID, err)}
}

// keyedMutex serializes work per key and forgets keys nobody holds
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
