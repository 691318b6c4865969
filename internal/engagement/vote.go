// Package engagement implements the vote state machine, the client-side
// cooldown and optimistic reconciliation, and the karma projection that
// turns raw votes into counters.
package engagement

import (
	"fmt"
	"time"
)

// VoteType is the direction of a vote. VoteNone means the user has no vote.
type VoteType string

const (
	VoteNone VoteType = ""
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// Valid reports whether v is a direction a user can request
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// ParseVoteType accepts "up"/"down" and the legacy numeric forms 1/-1
func ParseVoteType(s string) (VoteType, error) {
	switch s {
	case "up", "1":
		return VoteUp, nil
	case "down", "-1":
		return VoteDown, nil
	}
	return VoteNone, fmt.Errorf("invalid vote type %q", s)
}

// TargetType is the kind of content a vote is attached to
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// Valid reports whether t is a votable target kind
func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetComment
}

// Action names the ledger transition a vote request produced
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
	ActionChanged Action = "changed"
)

// Vote is the single row a voter may hold for a target
type Vote struct {
	ID         string
	VoterID    string
	TargetID   string
	TargetType TargetType
	Type       VoteType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VoteTransition describes what ApplyVote did
type VoteTransition struct {
	VoterID    string     `json:"voter_id"`
	TargetID   string     `json:"target_id"`
	TargetType TargetType `json:"target_type"`
	Requested  VoteType   `json:"vote_type"`
	Action     Action     `json:"action"`
	Previous   VoteType   `json:"previous_vote,omitempty"`
	UserVote   VoteType   `json:"user_vote"`
}

// Counters are the derived engagement numbers cached on a target
type Counters struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// Score is upvotes minus downvotes
func (c Counters) Score() int {
	return c.Upvotes - c.Downvotes
}

// State is what a client displays for one target: counters plus its own vote
type State struct {
	Counters
	UserVote VoteType `json:"user_vote"`
}
