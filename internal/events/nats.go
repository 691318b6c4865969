// Package events publishes engagement events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/pkg/config"
	"github.com/amacivic/engagement/pkg/logging"
)

// MsgPublisher is the part of *nats.Conn the publisher needs
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NatsPublisher implements engagement.EventPublisher
type NatsPublisher struct {
	conn    MsgPublisher
	subject string
	logger  *zap.Logger
}

// NewNatsPublisher publishes on subject through conn
func NewNatsPublisher(conn MsgPublisher, subject string) *NatsPublisher {
	return &NatsPublisher{
		conn:    conn,
		subject: subject,
		logger:  logging.WithComponent("events"),
	}
}

// Connect dials NATS when a URL is configured. It returns nil, nil otherwise,
// and the caller runs without events.
func Connect(cfg *config.EventsConfig) (*nats.Conn, error) {
	if cfg.NatsURL == "" {
		logging.GetLogger().Info("Vote events disabled")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.NatsURL, nats.Name("ama-engagement"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logging.GetLogger().Info("NATS connection established", zap.String("url", cfg.NatsURL))
	return nc, nil
}

// PublishVote sends the event as JSON with the trace context in the headers
func (p *NatsPublisher) PublishVote(ctx context.Context, event engagement.VoteEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal vote event: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Ama-Target-Id", event.Transition.TargetID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	p.logger.Debug("Vote event published",
		zap.String("subject", p.subject),
		zap.String("target_id", event.Transition.TargetID),
		zap.String("action", string(event.Transition.Action)))
	return nil
}
