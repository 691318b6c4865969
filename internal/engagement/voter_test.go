package engagement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu        sync.Mutex
	submitErr error
	fetchErr  error
	counters  Counters
	userVote  VoteType
	submits   int
	block     chan struct{}
}

func (f *fakeRemote) SubmitVote(ctx context.Context, targetID string, tt TargetType, vt VoteType) (*VoteTransition, error) {
	f.mu.Lock()
	f.submits++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &VoteTransition{TargetID: targetID, TargetType: tt, Requested: vt, Action: ActionAdded, UserVote: f.userVote}, nil
}

func (f *fakeRemote) FetchCounts(ctx context.Context, targetID string, tt TargetType) (Counters, error) {
	if f.fetchErr != nil {
		return Counters{}, f.fetchErr
	}
	return f.counters, nil
}

func newTestVoter(actor string, remote Remote, opts ...VoterOption) (*Voter, *fakeClock) {
	clock := newFakeClock()
	opts = append([]VoterOption{WithRateLimiter(NewRateLimiter(WithClock(clock.Now)))}, opts...)
	return NewVoter(actor, remote, opts...), clock
}

func TestVoteRequiresActor(t *testing.T) {
	remote := &fakeRemote{}
	v, _ := newTestVoter("", remote)

	res := v.Vote(context.Background(), "post-1", TargetPost, VoteUp)
	assert.Equal(t, CodeAuthenticationRequired, res.Status)
	assert.ErrorIs(t, res.Err, ErrAuthenticationRequired)
	assert.Equal(t, 0, remote.submits)
	_, ok := v.Reconciler().State("post-1")
	assert.False(t, ok, "no optimistic state may be applied")
}

func TestVoteRateLimitedSkipsRemote(t *testing.T) {
	remote := &fakeRemote{counters: Counters{Upvotes: 1}, userVote: VoteUp}
	v, clock := newTestVoter("alice", remote)
	ctx := context.Background()

	first := v.Vote(ctx, "post-1", TargetPost, VoteUp)
	require.Equal(t, CodeOK, first.Status)

	clock.Advance(VoteCooldown - time.Millisecond)
	second := v.Vote(ctx, "post-1", TargetPost, VoteUp)
	assert.Equal(t, CodeRateLimited, second.Status)
	assert.True(t, second.Status.Retryable())
	assert.Equal(t, 1, remote.submits)
	assert.Equal(t, first.State, second.State, "nothing applied, nothing to roll back")
}

func TestVoteSuccessReconciles(t *testing.T) {
	remote := &fakeRemote{counters: Counters{Upvotes: 9, Downvotes: 1}, userVote: VoteUp}
	v, _ := newTestVoter("alice", remote)
	v.Reconciler().Seed("post-1", State{Counters: Counters{Upvotes: 7, Downvotes: 1}})

	res := v.Vote(context.Background(), "post-1", TargetPost, VoteUp)
	assert.Equal(t, CodeOK, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, State{Counters{9, 1}, VoteUp}, res.State)
	assert.Equal(t, ActionAdded, res.Transition.Action)
}

func TestVoteWriteFailureRollsBack(t *testing.T) {
	initial := State{Counters: Counters{Upvotes: 7, Downvotes: 3}}

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"network", errors.New("connection refused"), CodeRemoteWriteFailure},
		{"server rate limit", &Error{Code: CodeRateLimited}, CodeRateLimited},
		{"expired session", &Error{Code: CodeAuthenticationRequired}, CodeAuthenticationRequired},
		{"read failure on write path", &Error{Code: CodeRemoteReadFailure}, CodeRemoteWriteFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestVoter("alice", &fakeRemote{submitErr: tt.err})
			v.Reconciler().Seed("post-1", initial)

			res := v.Vote(context.Background(), "post-1", TargetPost, VoteDown)
			assert.Equal(t, tt.want, res.Status)
			assert.False(t, res.OK())
			assert.Equal(t, initial, res.State)
		})
	}
}

func TestVoteTimeoutRollsBack(t *testing.T) {
	initial := State{Counters: Counters{Upvotes: 2}}
	remote := &fakeRemote{block: make(chan struct{})}
	v, _ := newTestVoter("alice", remote, WithTimeout(20*time.Millisecond))
	v.Reconciler().Seed("post-1", initial)

	res := v.Vote(context.Background(), "post-1", TargetPost, VoteUp)
	assert.Equal(t, CodeRemoteWriteFailure, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, initial, res.State)
}

func TestVoteReadFailureKeepsGuess(t *testing.T) {
	remote := &fakeRemote{fetchErr: errors.New("read timeout"), userVote: VoteUp}
	v, _ := newTestVoter("alice", remote)
	v.Reconciler().Seed("post-1", State{Counters: Counters{Upvotes: 4}})

	res := v.Vote(context.Background(), "post-1", TargetPost, VoteUp)
	assert.Equal(t, CodeRemoteReadFailure, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, State{Counters{5, 0}, VoteUp}, res.State)
	assert.NotNil(t, res.Transition)
}

func TestVoteRejectsInvalidInput(t *testing.T) {
	remote := &fakeRemote{}
	v, _ := newTestVoter("alice", remote)

	res := v.Vote(context.Background(), "post-1", TargetPost, VoteNone)
	assert.Equal(t, CodeInvalidArgument, res.Status)
	assert.Equal(t, 0, remote.submits)
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("post-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, counter)
	assert.Empty(t, k.locks)
}

type silentRemote struct{ fakeRemote }

func (*silentRemote) SubmitVote(ctx context.Context, targetID string, tt TargetType, vt VoteType) (*VoteTransition, error) {
	return nil, nil
}

func TestVoteMissingTransitionRollsBack(t *testing.T) {
	initial := State{Counters: Counters{Upvotes: 3}}
	v, _ := newTestVoter("alice", &silentRemote{})
	v.Reconciler().Seed("post-1", initial)

	res := v.Vote(context.Background(), "post-1", TargetPost, VoteUp)
	assert.Equal(t, CodeRemoteWriteFailure, res.Status)
	assert.Equal(t, CodeRemoteWriteFailure, CodeOf(res.Err))
	assert.Equal(t, initial, res.State)
	assert.Equal(t, 0, v.Reconciler().Pending("post-1"))
}

// gatedRemote holds the first submission until release is closed
type gatedRemote struct {
	inner    Remote
	release  chan struct{}
	started  chan VoteType
	calls    atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (g *gatedRemote) SubmitVote(ctx context.Context, targetID string, tt TargetType, vt VoteType) (*VoteTransition, error) {
	if g.inFlight.Add(1) > 1 {
		g.overlap.Store(true)
	}
	defer g.inFlight.Add(-1)

	g.started <- vt
	if g.calls.Add(1) == 1 {
		<-g.release
	}
	return g.inner.SubmitVote(ctx, targetID, tt, vt)
}

func (g *gatedRemote) FetchCounts(ctx context.Context, targetID string, tt TargetType) (Counters, error) {
	return g.inner.FetchCounts(ctx, targetID, tt)
}

func TestOverlappingVotesOnOneTargetRunInOrder(t *testing.T) {
	svc := newTestService(NewMemoryStore(), nil, nil)
	remote := &gatedRemote{
		inner:   svc.As("alice"),
		release: make(chan struct{}),
		started: make(chan VoteType, 2),
	}
	v := NewVoter("alice", remote, WithRateLimiter(NewRateLimiter(WithCooldown(0))))
	ctx := context.Background()

	results := make([]Result, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = v.Vote(ctx, "post-1", TargetPost, VoteUp)
	}()
	require.Equal(t, VoteUp, <-remote.started)
	assert.Equal(t, State{Counters{1, 0}, VoteUp}, displayed(t, v.Reconciler(), "post-1"))

	go func() {
		defer wg.Done()
		results[1] = v.Vote(ctx, "post-1", TargetPost, VoteDown)
	}()

	// the second vote is queued behind the first one's target lock
	require.Eventually(t, func() bool {
		v.locks.mu.Lock()
		defer v.locks.mu.Unlock()
		m, ok := v.locks.locks["post-1"]
		return ok && m.refs == 2
	}, time.Second, time.Millisecond)
	assert.Empty(t, remote.started, "second submission began before the first resolved")

	close(remote.release)
	wg.Wait()

	assert.Equal(t, VoteDown, <-remote.started)
	assert.False(t, remote.overlap.Load())
	assert.Equal(t, CodeOK, results[0].Status)
	assert.Equal(t, CodeOK, results[1].Status)

	counters, err := svc.Counts(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, Counters{Downvotes: 1}, counters)
	assert.Equal(t, State{counters, VoteDown}, displayed(t, v.Reconciler(), "post-1"))
	assert.Equal(t, 0, v.Reconciler().Pending("post-1"))
}
