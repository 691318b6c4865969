package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amacivic/engagement/internal/api"
	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/pkg/config"
)

const secret = "round-trip-secret"

func newServer(t *testing.T, throttle *api.VoteThrottle) *httptest.Server {
	t.Helper()
	store := engagement.NewMemoryStore()
	return newServerWith(t, throttle, store, store)
}

// newServerWith lets the ledger and the recount read from different stores
func newServerWith(t *testing.T, throttle *api.VoteThrottle, store engagement.VoteStore, reader engagement.VoteReader) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service := engagement.NewService(engagement.NewLedger(store), engagement.NewProjector(reader, nil), nil, nil)

	engine := gin.New()
	api.NewRouter(api.Dependencies{
		Engagement: service,
		Auth:       api.NewAuthenticator(&config.AuthConfig{JWTSecret: secret}),
		Throttle:   throttle,
	}).SetupRoutes(engine)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url, subject string) *Client {
	t.Helper()
	token := ""
	if subject != "" {
		var err error
		token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).SignedString([]byte(secret))
		require.NoError(t, err)
	}
	c, err := New(&config.RemoteConfig{URL: url, Token: token, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(&config.RemoteConfig{})
	assert.Error(t, err)
}

func TestSubmitVoteRoundTrip(t *testing.T) {
	srv := newServer(t, nil)
	client := newClient(t, srv.URL, "alice")
	ctx := context.Background()

	tr, err := client.SubmitVote(ctx, "post-1", engagement.TargetPost, engagement.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, engagement.ActionAdded, tr.Action)
	assert.Equal(t, "alice", tr.VoterID)

	counters, err := client.FetchCounts(ctx, "post-1", engagement.TargetPost)
	require.NoError(t, err)
	assert.Equal(t, engagement.Counters{Upvotes: 1}, counters)

	tr, err = client.SubmitVote(ctx, "post-1", engagement.TargetPost, engagement.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, engagement.ActionRemoved, tr.Action)
	assert.Equal(t, engagement.VoteNone, tr.UserVote)
}

func TestSubmitVoteErrorClasses(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		srv := newServer(t, nil)
		_, err := newClient(t, srv.URL, "").SubmitVote(context.Background(), "post-1", engagement.TargetPost, engagement.VoteUp)
		assert.ErrorIs(t, err, engagement.ErrAuthenticationRequired)
	})

	t.Run("throttled", func(t *testing.T) {
		srv := newServer(t, api.NewVoteThrottle(0.001, 1))
		client := newClient(t, srv.URL, "alice")
		_, err := client.SubmitVote(context.Background(), "post-1", engagement.TargetPost, engagement.VoteUp)
		require.NoError(t, err)
		_, err = client.SubmitVote(context.Background(), "post-2", engagement.TargetPost, engagement.VoteUp)
		assert.ErrorIs(t, err, engagement.ErrRateLimited)
	})

	t.Run("server down", func(t *testing.T) {
		srv := newServer(t, nil)
		client := newClient(t, srv.URL, "alice")
		srv.Close()
		_, err := client.SubmitVote(context.Background(), "post-1", engagement.TargetPost, engagement.VoteUp)
		assert.Equal(t, engagement.CodeRemoteWriteFailure, engagement.CodeOf(err))

		_, err = client.FetchCounts(context.Background(), "post-1", engagement.TargetPost)
		assert.Equal(t, engagement.CodeRemoteReadFailure, engagement.CodeOf(err))
	})

	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		defer srv.Close()
		_, err := newClient(t, srv.URL, "alice").SubmitVote(context.Background(), "post-1", engagement.TargetPost, engagement.VoteUp)
		assert.Equal(t, engagement.CodeRemoteWriteFailure, engagement.CodeOf(err))
	})
}

func TestVoterOverRemote(t *testing.T) {
	srv := newServer(t, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter := engagement.NewRateLimiter(engagement.WithClock(func() time.Time { return now }))
	voter := engagement.NewVoter("alice", newClient(t, srv.URL, "alice"), engagement.WithRateLimiter(limiter))
	ctx := context.Background()

	res := voter.Vote(ctx, "post-1", engagement.TargetPost, engagement.VoteUp)
	require.Equal(t, engagement.CodeOK, res.Status, "%v", res.Err)
	assert.Equal(t, engagement.State{Counters: engagement.Counters{Upvotes: 1}, UserVote: engagement.VoteUp}, res.State)

	res = voter.Vote(ctx, "post-1", engagement.TargetPost, engagement.VoteDown)
	assert.Equal(t, engagement.CodeRateLimited, res.Status)

	now = now.Add(engagement.VoteCooldown)
	res = voter.Vote(ctx, "post-1", engagement.TargetPost, engagement.VoteDown)
	require.Equal(t, engagement.CodeOK, res.Status, "%v", res.Err)
	assert.Equal(t, engagement.State{Counters: engagement.Counters{Downvotes: 1}, UserVote: engagement.VoteDown}, res.State)
}

type failingReader struct{}

func (failingReader) ListTargetVotes(ctx context.Context, targetID string) ([]engagement.Vote, error) {
	return nil, errors.New("replica unavailable")
}

func TestVoteStoredWhenRecountFails(t *testing.T) {
	store := engagement.NewMemoryStore()
	srv := newServerWith(t, nil, store, failingReader{})
	client := newClient(t, srv.URL, "alice")
	ctx := context.Background()

	tr, err := client.SubmitVote(ctx, "post-1", engagement.TargetPost, engagement.VoteUp)
	require.NoError(t, err, "a stored vote must not be reported as a failed write")
	assert.Equal(t, engagement.VoteUp, tr.UserVote)

	_, err = client.FetchCounts(ctx, "post-1", engagement.TargetPost)
	assert.Equal(t, engagement.CodeRemoteReadFailure, engagement.CodeOf(err))

	voter := engagement.NewVoter("alice", client)
	voter.Reconciler().Seed("post-2", engagement.State{Counters: engagement.Counters{Upvotes: 3}})

	res := voter.Vote(ctx, "post-2", engagement.TargetPost, engagement.VoteUp)
	assert.Equal(t, engagement.CodeRemoteReadFailure, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, engagement.State{Counters: engagement.Counters{Upvotes: 4}, UserVote: engagement.VoteUp}, res.State)
	require.NotNil(t, res.Transition)
	assert.Equal(t, 2, store.Len())
}
