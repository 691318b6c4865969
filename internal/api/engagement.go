package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amacivic/engagement/internal/engagement"
)

// EngagementAPI exposes the vote ledger and counters
type EngagementAPI struct {
	service  *engagement.Service
	throttle *VoteThrottle
}

// NewEngagementAPI creates the engagement handlers. throttle may be nil.
func NewEngagementAPI(service *engagement.Service, throttle *VoteThrottle) *EngagementAPI {
	return &EngagementAPI{service: service, throttle: throttle}
}

type voteParams struct {
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
	VoteType   string `json:"vote_type"`
}

type targetParams struct {
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
}

type karmaParams struct {
	UserID string `json:"user_id"`
}

// countsResult is what get_counts returns
type countsResult struct {
	TargetID string `json:"target_id"`
	engagement.Counters
	Score int `json:"score"`
}

// Vote applies the authenticated actor's vote
func (a *EngagementAPI) Vote(c *gin.Context, params json.RawMessage) (interface{}, error) {
	actorID := ActorID(c)
	if actorID == "" {
		return nil, NewError(ErrAuthenticationRequired, "Authentication required")
	}

	var p voteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	vt, err := engagement.ParseVoteType(p.VoteType)
	if err != nil {
		return nil, InvalidParams(err)
	}
	tt, err := parseTargetType(p.TargetType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.TargetID) == "" {
		return nil, InvalidParams(errors.New("target_id is required"))
	}

	if a.throttle != nil && !a.throttle.Allow(actorID) {
		return nil, NewError(ErrRateLimited, "Rate limited")
	}

	res, err := a.service.Vote(c.Request.Context(), actorID, p.TargetID, tt, vt)
	if err != nil && res != nil && res.CountsStale {
		// the vote is stored; reporting an error would make the client undo it
		return res, nil
	}
	return res, err
}

// GetCounts returns the authoritative recount for a target
func (a *EngagementAPI) GetCounts(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p targetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.TargetID) == "" {
		return nil, InvalidParams(errors.New("target_id is required"))
	}

	counters, err := a.service.Counts(c.Request.Context(), p.TargetID)
	if err != nil {
		return nil, err
	}
	return countsResult{TargetID: p.TargetID, Counters: counters, Score: counters.Score()}, nil
}

// GetKarma returns a user's karma, defaulting to the actor's own
func (a *EngagementAPI) GetKarma(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p karmaParams
	if len(params) > 0 && string(params) != "null" {
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
	}
	if p.UserID == "" {
		p.UserID = ActorID(c)
	}
	if p.UserID == "" {
		return nil, InvalidParams(errors.New("user_id is required"))
	}

	return a.service.Karma(c.Request.Context(), p.UserID)
}

// parseTargetType defaults to posts
func parseTargetType(s string) (engagement.TargetType, error) {
	if s == "" {
		return engagement.TargetPost, nil
	}
	tt := engagement.TargetType(strings.ToLower(s))
	if !tt.Valid() {
		return "", InvalidParams(errors.New("target_type must be post or comment"))
	}
	return tt, nil
}
