package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Strategy selects the ordering of a ranked feed
type Strategy string

const (
	StrategyHot    Strategy = "hot"
	StrategyNew    Strategy = "new"
	StrategyTop    Strategy = "top"
	StrategyRising Strategy = "rising"
)

// ParseStrategy maps a request parameter to a strategy; empty means hot
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyHot:
		return StrategyHot, nil
	case StrategyNew:
		return StrategyNew, nil
	case StrategyTop:
		return StrategyTop, nil
	case StrategyRising:
		return StrategyRising, nil
	}
	return "", fmt.Errorf("unknown sort strategy %q", s)
}

// Rank returns posts ordered by strategy, leaving the input untouched. Equal
// keys fall back to ID ascending so the output is reproducible.
func Rank(posts []Post, strategy Strategy) []Post {
	out := make([]Post, len(posts))
	copy(out, posts)

	var compare func(a, b *Post) int
	switch strategy {
	case StrategyNew:
		compare = func(a, b *Post) int { return compareTime(b.CreatedAt, a.CreatedAt) }
	case StrategyTop:
		compare = func(a, b *Post) int { return compareFloat(float64(b.Score()), float64(a.Score())) }
	case StrategyRising:
		compare = func(a, b *Post) int { return compareFloat(risingScore(*b), risingScore(*a)) }
	default:
		compare = func(a, b *Post) int { return compareFloat(hotScore(*b), hotScore(*a)) }
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := compare(&out[i], &out[j]); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// hotScore adds a recency bonus of one point per day since the Unix epoch to
// the raw score. There is no decay: an older post needs one extra point of
// score per day of age to stay above a newer one, so long-lived rankings
// need a periodic re-rank.
func hotScore(p Post) float64 {
	return float64(p.Score()) + float64(p.CreatedAt.Unix())/float64(24*time.Hour/time.Second)
}

// risingScore floors the denominator at 1
func risingScore(p Post) float64 {
	down := p.Downvotes
	if down < 1 {
		down = 1
	}
	return float64(p.Upvotes) / float64(down)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
