package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/amacivic/engagement/internal/cache"
	"github.com/amacivic/engagement/pkg/logging"
	"github.com/amacivic/engagement/pkg/telemetry"
)

// PostQuery selects the candidate posts a ranking runs over
type PostQuery struct {
	CommunityID string
	Limit       int
}

// Source loads feed content
type Source interface {
	ListPosts(ctx context.Context, q PostQuery) ([]Post, error)
	ListQuests(ctx context.Context, userID string) ([]Quest, error)
	ListAccountabilityUpdates(ctx context.Context) ([]AccountabilityUpdate, error)
	LoadViewer(ctx context.Context, userID string) (Viewer, error)
}

// PageCache stores ranked pages; *cache.Cache satisfies it
type PageCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Page addresses a slice of a ranked feed
type Page struct {
	CommunityID string
	Strategy    Strategy
	Limit       int
	Offset      int
}

// Service serves ranked and composed feeds
type Service struct {
	source      Source
	cache       PageCache
	pageSize    int
	maxPageSize int
	window      int
	logger      *zap.Logger
}

// DefaultWindow is how many recent posts a ranking considers
const DefaultWindow = 1000

// NewService creates a feed service. pageCache may be nil.
func NewService(source Source, pageCache PageCache, pageSize, maxPageSize int) *Service {
	return &Service{
		source:      source,
		cache:       pageCache,
		pageSize:    pageSize,
		maxPageSize: maxPageSize,
		window:      DefaultWindow,
		logger:      logging.WithComponent("feed"),
	}
}

// cacheTTL follows how quickly each ordering goes stale
func cacheTTL(s Strategy) time.Duration {
	switch s {
	case StrategyNew:
		return 3 * time.Second
	case StrategyHot, StrategyRising:
		return 300 * time.Second
	default:
		return 60 * time.Second
	}
}

func (s *Service) normalize(p Page) Page {
	if p.Strategy == "" {
		p.Strategy = StrategyHot
	}
	if p.Limit <= 0 {
		p.Limit = s.pageSize
	}
	if p.Limit > s.maxPageSize {
		p.Limit = s.maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// RankedPosts returns one page of posts under the page's strategy
func (s *Service) RankedPosts(ctx context.Context, p Page) ([]Post, error) {
	p = s.normalize(p)

	ctx, span := telemetry.StartSpan(ctx, "feed.ranked_posts")
	defer span.End()

	key := cache.HashKey("ranked_posts", string(p.Strategy), p.CommunityID,
		strconv.Itoa(p.Limit), strconv.Itoa(p.Offset))

	if s.cache != nil {
		var cached []Post
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Debug("Feed cache read failed", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	posts, err := s.source.ListPosts(ctx, PostQuery{CommunityID: p.CommunityID, Limit: s.window})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	ranked := Rank(posts, p.Strategy)
	page := paginate(ranked, p.Offset, p.Limit)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, page, cacheTTL(p.Strategy)); err != nil {
			s.logger.Debug("Feed cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

// HomeFeed returns a ranked page with the viewer's quest and accountability
// cards mixed in. An anonymous viewer gets cards chosen without affinity.
func (s *Service) HomeFeed(ctx context.Context, userID string, p Page) ([]Item, error) {
	posts, err := s.RankedPosts(ctx, p)
	if err != nil {
		return nil, err
	}

	viewer := Viewer{UserID: userID}
	if userID != "" {
		if viewer, err = s.source.LoadViewer(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to load viewer: %w", err)
		}
		viewer.UserID = userID
	}

	quests, err := s.source.ListQuests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quests: %w", err)
	}
	updates, err := s.source.ListAccountabilityUpdates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accountability updates: %w", err)
	}

	return Compose(posts, SelectQuests(quests, viewer), SelectAccountabilityUpdates(updates, viewer)), nil
}

func paginate(posts []Post, offset, limit int) []Post {
	if offset >= len(posts) {
		return []Post{}
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[offset:end]
}
