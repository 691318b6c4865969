package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func displayed(t *testing.T, r *Reconciler, targetID string) State {
	t.Helper()
	s, ok := r.State(targetID)
	require.True(t, ok, "no state for %s", targetID)
	return s
}

func TestRollbackCompleteness(t *testing.T) {
	initial := State{Counters: Counters{Upvotes: 10, Downvotes: 4}}

	for _, vt := range []VoteType{VoteUp, VoteDown} {
		t.Run(string(vt), func(t *testing.T) {
			r := NewReconciler()
			r.Seed("post-1", initial)

			tok := r.BeginVote("post-1", vt)
			assert.NotEqual(t, initial, displayed(t, r, "post-1"))

			assert.True(t, r.Rollback(tok))
			assert.Equal(t, initial, displayed(t, r, "post-1"))
			assert.Equal(t, 0, r.Pending("post-1"))
		})
	}
}

func TestReconcileReplacesGuess(t *testing.T) {
	r := NewReconciler()
	r.Seed("post-1", State{Counters: Counters{Upvotes: 1}})

	tok := r.BeginVote("post-1", VoteUp)
	assert.Equal(t, State{Counters{2, 0}, VoteUp}, displayed(t, r, "post-1"))

	// someone else voted meanwhile; ground truth wins over the guess
	auth := State{Counters{5, 1}, VoteUp}
	assert.True(t, r.Reconcile(tok, auth))
	assert.Equal(t, auth, displayed(t, r, "post-1"))
}

func TestCommitKeepsGuess(t *testing.T) {
	r := NewReconciler()
	r.Seed("post-1", State{Counters: Counters{Upvotes: 1}})

	tok := r.BeginVote("post-1", VoteDown)
	assert.True(t, r.Commit(tok))
	assert.Equal(t, State{Counters{1, 1}, VoteDown}, displayed(t, r, "post-1"))
}

func TestStaleRollbackIsDiscarded(t *testing.T) {
	r := NewReconciler()
	initial := State{Counters: Counters{Upvotes: 3}}
	r.Seed("post-1", initial)

	first := r.BeginVote("post-1", VoteUp)
	second := r.BeginVote("post-1", VoteDown)
	newest := displayed(t, r, "post-1")
	assert.Equal(t, first.Predicted, second.Snapshot())

	assert.False(t, r.Rollback(first))
	assert.Equal(t, newest, displayed(t, r, "post-1"), "stale rollback must not overwrite newer snapshot")

	// the second request fails too: its snapshot holds the failed first
	// guess, so the display returns to the state before either began
	assert.True(t, r.Rollback(second))
	assert.Equal(t, initial, displayed(t, r, "post-1"))
}

func TestRollbackPrefersNewerAuthoritativeState(t *testing.T) {
	r := NewReconciler()
	r.Seed("post-1", State{Counters: Counters{Upvotes: 3}})

	first := r.BeginVote("post-1", VoteUp)
	second := r.BeginVote("post-1", VoteUp)

	auth := State{Counters{4, 0}, VoteUp}
	assert.False(t, r.Reconcile(first, auth), "first is no longer current")

	assert.True(t, r.Rollback(second))
	assert.Equal(t, auth, displayed(t, r, "post-1"))
}

func TestStaleReconcileDoesNotReplaceNewerAuth(t *testing.T) {
	r := NewReconciler()
	r.Seed("post-1", State{})

	first := r.BeginVote("post-1", VoteUp)
	second := r.BeginVote("post-1", VoteUp)

	newer := State{Counters{0, 0}, VoteNone}
	assert.True(t, r.Reconcile(second, newer))
	assert.False(t, r.Reconcile(first, State{Counters{1, 0}, VoteUp}))
	assert.Equal(t, newer, displayed(t, r, "post-1"))

	third := r.BeginVote("post-1", VoteDown)
	r.Rollback(third)
	assert.Equal(t, newer, displayed(t, r, "post-1"))
}

func TestCommitAfterFailedPredecessorReplaysOnGoodBase(t *testing.T) {
	r := NewReconciler()
	initial := State{Counters: Counters{Upvotes: 3}}
	r.Seed("post-1", initial)

	first := r.BeginVote("post-1", VoteUp)
	second := r.BeginVote("post-1", VoteDown)

	r.Rollback(first)
	assert.True(t, r.Commit(second))
	assert.Equal(t, Predict(initial, VoteDown), displayed(t, r, "post-1"))
}

func TestSeedWhileInFlightKeepsGuess(t *testing.T) {
	r := NewReconciler()
	r.Seed("post-1", State{})

	tok := r.BeginVote("post-1", VoteUp)
	r.Seed("post-1", State{Counters: Counters{Upvotes: 7}})
	assert.Equal(t, tok.Predicted, displayed(t, r, "post-1"))

	r.Rollback(tok)
	assert.Equal(t, State{Counters: Counters{Upvotes: 7}}, displayed(t, r, "post-1"))
}

func TestUnknownTargetTokenIsIgnored(t *testing.T) {
	r := NewReconciler()
	assert.False(t, r.Commit(RollbackToken{TargetID: "missing"}))
	assert.False(t, r.Rollback(RollbackToken{TargetID: "missing"}))
	_, ok := r.State("missing")
	assert.False(t, ok)
}

func TestBeginWithPredictedStateReplaysAfterFailedPredecessor(t *testing.T) {
	seed := State{Counters: Counters{Upvotes: 3}}
	r := NewReconciler()
	r.Seed("post-1", seed)

	first := r.Begin("post-1", Predict(seed, VoteUp))
	second := r.Begin("post-1", Predict(displayed(t, r, "post-1"), VoteUp))
	assert.Equal(t, seed, displayed(t, r, "post-1"))

	assert.False(t, r.Rollback(first))
	assert.True(t, r.Commit(second))
	assert.Equal(t, State{Counters{4, 0}, VoteUp}, displayed(t, r, "post-1"))
}

func TestImpliedVoteInvertsPredict(t *testing.T) {
	states := []State{
		{Counters{5, 2}, VoteNone},
		{Counters{6, 2}, VoteUp},
		{Counters{5, 3}, VoteDown},
	}
	for _, s := range states {
		for _, vt := range []VoteType{VoteUp, VoteDown} {
			assert.Equal(t, vt, impliedVote(s, Predict(s, vt)), "from %+v voting %s", s, vt)
		}
	}
}

func TestSeedIsOrderedPerTarget(t *testing.T) {
	r := NewReconciler()
	r.Seed("post-1", State{Counters: Counters{Upvotes: 1}})
	tok := r.BeginVote("post-1", VoteUp)

	// another target moving the shared sequence must not outrank post-1's token
	r.BeginVote("post-2", VoteDown)
	r.Seed("post-1", State{Counters: Counters{Upvotes: 1}})

	auth := State{Counters{2, 0}, VoteUp}
	require.True(t, r.Reconcile(tok, auth))
	require.NotNil(t, r.entries["post-1"].auth)
	assert.Equal(t, auth, *r.entries["post-1"].auth)
}
