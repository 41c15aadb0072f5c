package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"TokenVault/internal/core"
	"TokenVault/internal/observability"
)

// Publisher drains the engine's publish channel and publishes completed
// events to NATS for downstream consumers. Subjects follow
// vault.ledger.events.{event_type}. Failures are non-fatal; consumers can
// always fall back to the Postgres event log.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.Output
	log       zerolog.Logger
	metrics   *observability.Metrics
}

// publishedEvent is the outbound wire format.
type publishedEvent struct {
	Sequence  int64     `json:"sequence"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	AssetID   string    `json:"asset_id"`
	Holder    *string   `json:"holder,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan core.Output, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		log:       log,
		metrics:   metrics,
	}
}

// Run publishes until ctx is cancelled or the channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, out); err != nil {
				p.log.Warn().Int64("sequence", out.Envelope.Sequence).Err(err).
					Msg("outbound publish failed")
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out core.Output) error {
	env := out.Envelope

	evt := publishedEvent{
		Sequence:  env.Sequence,
		EventID:   env.EventID.String(),
		EventType: env.Type.String(),
		AssetID:   env.AssetID,
		Timestamp: env.Timestamp,
		Payload:   env.Payload,
	}
	if env.Holder != nil {
		h := env.Holder.String()
		evt.Holder = &h
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", EventSubjectPrefix, env.Type)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.PublishedEvents.WithLabelValues(env.Type.String()).Inc()
	}
	return nil
}
