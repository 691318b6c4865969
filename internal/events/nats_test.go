package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/amacivic/engagement/internal/engagement"
)

type captureConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *captureConn) PublishMsg(msg *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestPublishVote(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	conn := &captureConn{}
	pub := NewNatsPublisher(conn, "engagement.vote.applied")

	event := engagement.VoteEvent{
		Transition: engagement.VoteTransition{
			VoterID:    "alice",
			TargetID:   "post-1",
			TargetType: engagement.TargetPost,
			Requested:  engagement.VoteUp,
			Action:     engagement.ActionAdded,
			UserVote:   engagement.VoteUp,
		},
		Counters:   engagement.Counters{Upvotes: 3},
		Score:      3,
		OccurredAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.PublishVote(ctx, event))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "engagement.vote.applied", msg.Subject)
	assert.Equal(t, "post-1", msg.Header.Get("Ama-Target-Id"))
	assert.Contains(t, msg.Header.Get("Traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")

	var decoded engagement.VoteEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, event, decoded)
}

func TestPublishVoteError(t *testing.T) {
	pub := NewNatsPublisher(&captureConn{err: errors.New("nats: connection closed")}, "engagement.vote.applied")
	err := pub.PublishVote(context.Background(), engagement.VoteEvent{})
	assert.Error(t, err)
}
