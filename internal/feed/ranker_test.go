package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func ids(posts []Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestRankExample(t *testing.T) {
	posts := []Post{
		{ID: "a", Upvotes: 10, Downvotes: 2, CreatedAt: epoch},
		{ID: "b", Upvotes: 3, Downvotes: 0, CreatedAt: epoch.Add(100 * time.Second)},
	}

	assert.Equal(t, []string{"a", "b"}, ids(Rank(posts, StrategyTop)))
	assert.Equal(t, []string{"b", "a"}, ids(Rank(posts, StrategyNew)))
}

func TestRankStrategies(t *testing.T) {
	day := 24 * time.Hour
	posts := []Post{
		{ID: "old-popular", Upvotes: 20, Downvotes: 0, CreatedAt: epoch},
		{ID: "fresh", Upvotes: 2, Downvotes: 0, CreatedAt: epoch.Add(30 * day)},
		{ID: "controversial", Upvotes: 12, Downvotes: 8, CreatedAt: epoch.Add(29 * day)},
		{ID: "no-downvotes", Upvotes: 5, Downvotes: 0, CreatedAt: epoch.Add(10 * day)},
	}

	tests := []struct {
		strategy Strategy
		want     []string
	}{
		// score: 20, 2, 4, 5
		{StrategyTop, []string{"old-popular", "no-downvotes", "controversial", "fresh"}},
		{StrategyNew, []string{"fresh", "controversial", "no-downvotes", "old-popular"}},
		// ratio: 20, 2, 1.5, 5
		{StrategyRising, []string{"old-popular", "no-downvotes", "fresh", "controversial"}},
		// score + day bonus relative to epoch: 20, 32, 33, 15
		{StrategyHot, []string{"controversial", "fresh", "old-popular", "no-downvotes"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Rank(posts, tt.strategy)))
		})
	}
}

func TestRankTiesBreakByID(t *testing.T) {
	posts := []Post{
		{ID: "c", Upvotes: 1, CreatedAt: epoch},
		{ID: "a", Upvotes: 1, CreatedAt: epoch},
		{ID: "b", Upvotes: 1, CreatedAt: epoch},
	}
	for _, s := range []Strategy{StrategyHot, StrategyNew, StrategyTop, StrategyRising} {
		assert.Equal(t, []string{"a", "b", "c"}, ids(Rank(posts, s)), "strategy %s", s)
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	posts := make([]Post, 10)
	for i := range posts {
		posts[i] = Post{ID: fmt.Sprintf("p%d", i), Upvotes: i}
	}
	before := ids(posts)
	Rank(posts, StrategyTop)
	assert.Equal(t, before, ids(posts))
	assert.Empty(t, Rank(nil, StrategyHot))
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyHot, false},
		{"hot", StrategyHot, false},
		{"NEW", StrategyNew, false},
		{" top ", StrategyTop, false},
		{"rising", StrategyRising, false},
		{"trending", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
