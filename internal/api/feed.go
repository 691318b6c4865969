package api

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/amacivic/engagement/internal/feed"
)

// FeedAPI serves ranked posts and the composed home feed
type FeedAPI struct {
	service *feed.Service
}

// NewFeedAPI creates the feed handlers
func NewFeedAPI(service *feed.Service) *FeedAPI {
	return &FeedAPI{service: service}
}

type feedParams struct {
	Sort        string `json:"sort"`
	CommunityID string `json:"community_id"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

func (p feedParams) page() (feed.Page, error) {
	strategy, err := feed.ParseStrategy(p.Sort)
	if err != nil {
		return feed.Page{}, InvalidParams(err)
	}
	if p.Limit < 0 || p.Offset < 0 {
		return feed.Page{}, InvalidParams(errors.New("limit and offset must not be negative"))
	}
	return feed.Page{
		CommunityID: p.CommunityID,
		Strategy:    strategy,
		Limit:       p.Limit,
		Offset:      p.Offset,
	}, nil
}

func decodeFeedParams(params json.RawMessage) (feedParams, error) {
	var p feedParams
	if len(params) == 0 || string(params) == "null" {
		return p, nil
	}
	err := decodeParams(params, &p)
	return p, err
}

// GetRankedPosts returns one page of posts in the requested order
func (a *FeedAPI) GetRankedPosts(c *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := decodeFeedParams(params)
	if err != nil {
		return nil, err
	}
	page, err := p.page()
	if err != nil {
		return nil, err
	}
	return a.service.RankedPosts(c.Request.Context(), page)
}

// GetHomeFeed returns ranked posts with quest and accountability cards
// interleaved for the authenticated viewer
func (a *FeedAPI) GetHomeFeed(c *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := decodeFeedParams(params)
	if err != nil {
		return nil, err
	}
	page, err := p.page()
	if err != nil {
		return nil, err
	}
	return a.service.HomeFeed(c.Request.Context(), ActorID(c), page)
}
