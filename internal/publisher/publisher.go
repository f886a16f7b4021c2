// Package publisher emits RFQ lifecycle events to NATS JetStream.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/alcast-trading/rfq-engine/internal/metrics"
)

// Publisher wraps a NATS connection. It satisfies rfq.EventPublisher; the
// engine treats publish failures as best-effort.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	logger  *zap.Logger
	service string
}

// New creates a Publisher with JetStream enabled.
func New(nc *nats.Conn, service string, logger *zap.Logger) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		service: service,
	}, nil
}

// Publish serializes payload and publishes it to subject.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return fmt.Errorf("marshal event for %s: %w", subject, err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"source":       []string{p.service},
			"content_type": []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		p.logger.Warn("publisher.publish_failed",
			zap.String("subject", subject),
			zap.Error(err))
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// HealthCheck reports whether the NATS connection is usable.
func (p *Publisher) HealthCheck() error {
	if p.nc == nil || !p.nc.IsConnected() {
		return fmt.Errorf("nats disconnected")
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
