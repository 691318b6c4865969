package engagement

import (
	"context"
	"sort"
	"sync"
)

// VoteTx is the view of the vote table inside one atomic unit of work
type VoteTx interface {
	// FindVotes returns every row for (voter, target), oldest first.
	// More than one row is an integrity bug the ledger repairs.
	FindVotes(ctx context.Context, voterID, targetID string) ([]Vote, error)
	InsertVote(ctx context.Context, vote *Vote) error
	UpdateVoteType(ctx context.Context, voteID string, voteType VoteType) error
	DeleteVote(ctx context.Context, voteID string) error
}

// VoteStore is the persistence behind VoteLedger. WithinTx must apply every
// change made through tx or none of them.
type VoteStore interface {
	WithinTx(ctx context.Context, fn func(tx VoteTx) error) error
}

// VoteReader lists the raw votes a projector aggregates
type VoteReader interface {
	ListTargetVotes(ctx context.Context, targetID string) ([]Vote, error)
}

// MemoryStore keeps votes in process memory. It backs the memory storage
// driver and tests; WithinTx works on a copy and swaps it in on success.
type MemoryStore struct {
	mu    sync.Mutex
	votes []Vote
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// WithinTx implements VoteStore
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx VoteTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{votes: append([]Vote(nil), s.votes...)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.votes = tx.votes
	return nil
}

// ListTargetVotes implements VoteReader
func (s *MemoryStore) ListTargetVotes(ctx context.Context, targetID string) ([]Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Vote
	for _, v := range s.votes {
		if v.TargetID == targetID {
			out = append(out, v)
		}
	}
	return out, nil
}

// Seed appends raw rows without any checks, duplicates included
func (s *MemoryStore) Seed(votes ...Vote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = append(s.votes, votes...)
}

// Len returns the number of stored rows
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes)
}

type memoryTx struct {
	votes []Vote
}

func (tx *memoryTx) FindVotes(ctx context.Context, voterID, targetID string) ([]Vote, error) {
	var out []Vote
	for _, v := range tx.votes {
		if v.VoterID == voterID && v.TargetID == targetID {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *memoryTx) InsertVote(ctx context.Context, vote *Vote) error {
	tx.votes = append(tx.votes, *vote)
	return nil
}

func (tx *memoryTx) UpdateVoteType(ctx context.Context, voteID string, voteType VoteType) error {
	for i := range tx.votes {
		if tx.votes[i].ID == voteID {
			tx.votes[i].Type = voteType
			return nil
		}
	}
	return nil
}

func (tx *memoryTx) DeleteVote(ctx context.Context, voteID string) error {
	kept := tx.votes[:0:0]
	for _, v := range tx.votes {
		if v.ID != voteID {
			kept = append(kept, v)
		}
	}
	tx.votes = kept
	return nil
}
