package engagement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(store VoteStore) *Ledger {
	n := 0
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewLedger(store,
		WithLedgerClock(func() time.Time { return base }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("vote-%d", n)
		}),
	)
}

func TestApplyVoteTransitions(t *testing.T) {
	tests := []struct {
		name       string
		votes      []VoteType
		wantAction Action
		wantVote   VoteType
		wantRows   int
	}{
		{"first up adds", []VoteType{VoteUp}, ActionAdded, VoteUp, 1},
		{"first down adds", []VoteType{VoteDown}, ActionAdded, VoteDown, 1},
		{"up then up removes", []VoteType{VoteUp, VoteUp}, ActionRemoved, VoteNone, 0},
		{"up then down changes", []VoteType{VoteUp, VoteDown}, ActionChanged, VoteDown, 1},
		{"down then up changes", []VoteType{VoteDown, VoteUp}, ActionChanged, VoteUp, 1},
		{"up up up adds again", []VoteType{VoteUp, VoteUp, VoteUp}, ActionAdded, VoteUp, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			ledger := newTestLedger(store)

			var last *VoteTransition
			for _, vt := range tt.votes {
				tr, err := ledger.ApplyVote(context.Background(), "alice", "post-1", TargetPost, vt)
				require.NoError(t, err)
				last = tr
			}

			assert.Equal(t, tt.wantAction, last.Action)
			assert.Equal(t, tt.wantVote, last.UserVote)
			assert.Equal(t, tt.wantRows, store.Len())
		})
	}
}

func TestToggleIdempotence(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(
		Vote{ID: "b1", VoterID: "bob", TargetID: "post-1", TargetType: TargetPost, Type: VoteUp},
		Vote{ID: "c1", VoterID: "carol", TargetID: "post-1", TargetType: TargetPost, Type: VoteDown},
	)
	ledger := newTestLedger(store)
	projector := NewProjector(store, nil)
	ctx := context.Background()

	before, err := projector.Recount(ctx, "post-1")
	require.NoError(t, err)

	_, err = ledger.ApplyVote(ctx, "alice", "post-1", TargetPost, VoteUp)
	require.NoError(t, err)
	tr, err := ledger.ApplyVote(ctx, "alice", "post-1", TargetPost, VoteUp)
	require.NoError(t, err)

	after, err := projector.Recount(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, VoteNone, tr.UserVote)
	assert.Equal(t, before, after)
}

func TestSwitchConsistency(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(Vote{ID: "b1", VoterID: "bob", TargetID: "post-1", TargetType: TargetPost, Type: VoteUp})
	ledger := newTestLedger(store)
	projector := NewProjector(store, nil)
	ctx := context.Background()

	baseline, err := projector.Recount(ctx, "post-1")
	require.NoError(t, err)

	_, err = ledger.ApplyVote(ctx, "alice", "post-1", TargetPost, VoteUp)
	require.NoError(t, err)
	tr, err := ledger.ApplyVote(ctx, "alice", "post-1", TargetPost, VoteDown)
	require.NoError(t, err)
	assert.Equal(t, ActionChanged, tr.Action)
	assert.Equal(t, VoteUp, tr.Previous)

	votes, err := store.ListTargetVotes(ctx, "post-1")
	require.NoError(t, err)
	var mine []Vote
	for _, v := range votes {
		if v.VoterID == "alice" {
			mine = append(mine, v)
		}
	}
	require.Len(t, mine, 1)
	assert.Equal(t, VoteDown, mine[0].Type)

	after, err := projector.Recount(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, baseline.Upvotes, after.Upvotes)
	assert.Equal(t, baseline.Downvotes+1, after.Downvotes)
}

func TestApplyVoteRejectsBadInput(t *testing.T) {
	ledger := newTestLedger(NewMemoryStore())
	ctx := context.Background()

	_, err := ledger.ApplyVote(ctx, "", "post-1", TargetPost, VoteUp)
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.Equal(t, CodeAuthenticationRequired, CodeOf(err))

	_, err = ledger.ApplyVote(ctx, "alice", "post-1", TargetPost, VoteType("sideways"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ledger.ApplyVote(ctx, "alice", "post-1", TargetType("poll"), VoteUp)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ledger.ApplyVote(ctx, "alice", "", TargetPost, VoteUp)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestApplyVoteRepairsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Seed(
		Vote{ID: "newer", VoterID: "alice", TargetID: "post-1", TargetType: TargetPost, Type: VoteDown, CreatedAt: t0.Add(time.Hour)},
		Vote{ID: "older", VoterID: "alice", TargetID: "post-1", TargetType: TargetPost, Type: VoteUp, CreatedAt: t0},
	)
	ledger := newTestLedger(store)

	tr, err := ledger.ApplyVote(context.Background(), "alice", "post-1", TargetPost, VoteDown)
	require.NoError(t, err)

	// the oldest row wins, so this is an up -> down change
	assert.Equal(t, ActionChanged, tr.Action)
	assert.Equal(t, VoteUp, tr.Previous)

	votes, err := store.ListTargetVotes(context.Background(), "post-1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "older", votes[0].ID)
	assert.Equal(t, VoteDown, votes[0].Type)
}

type failingStore struct {
	inner *MemoryStore
	fail  string
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(tx VoteTx) error) error {
	return s.inner.WithinTx(ctx, func(tx VoteTx) error {
		return fn(&failingTx{VoteTx: tx, fail: s.fail})
	})
}

type failingTx struct {
	VoteTx
	fail string
}

var errStorage = errors.New("connection reset")

func (tx *failingTx) InsertVote(ctx context.Context, v *Vote) error {
	if err := tx.VoteTx.InsertVote(ctx, v); err != nil {
		return err
	}
	if tx.fail == "insert" {
		return errStorage
	}
	return nil
}

func (tx *failingTx) DeleteVote(ctx context.Context, id string) error {
	if tx.fail == "delete" {
		return errStorage
	}
	return tx.VoteTx.DeleteVote(ctx, id)
}

func TestApplyVoteFailureChangesNothing(t *testing.T) {
	t.Run("insert", func(t *testing.T) {
		inner := NewMemoryStore()
		ledger := newTestLedger(&failingStore{inner: inner, fail: "insert"})

		tr, err := ledger.ApplyVote(context.Background(), "alice", "post-1", TargetPost, VoteUp)
		assert.Nil(t, tr)
		assert.Equal(t, CodeRemoteWriteFailure, CodeOf(err))
		assert.ErrorIs(t, err, errStorage)
		assert.Equal(t, 0, inner.Len())
	})

	t.Run("delete", func(t *testing.T) {
		inner := NewMemoryStore()
		inner.Seed(Vote{ID: "v1", VoterID: "alice", TargetID: "post-1", TargetType: TargetPost, Type: VoteUp})
		ledger := newTestLedger(&failingStore{inner: inner, fail: "delete"})

		_, err := ledger.ApplyVote(context.Background(), "alice", "post-1", TargetPost, VoteUp)
		assert.Equal(t, CodeRemoteWriteFailure, CodeOf(err))
		assert.Equal(t, 1, inner.Len())
	})
}
