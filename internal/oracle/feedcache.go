package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"TokenVault/internal/observability"
)

// priceUpdate is the wire format of a feed message on vault.prices.>.
// Price is a base-10 integer string scaled by 10^Decimals.
type priceUpdate struct {
	FeedID    string    `json:"feed_id"`
	Price     string    `json:"price"`
	Decimals  uint8     `json:"decimals"`
	RoundID   uint64    `json:"round_id"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedCache holds the latest quote per feed, populated from a JetStream
// consumer. Source returns a PriceSource handle bound to one feed; the
// handle serves whatever the cache last saw, including stale or invalid
// quotes. Validation stays with the valuation layer.
type FeedCache struct {
	mu      sync.RWMutex
	quotes  map[string]Quote
	log     zerolog.Logger
	metrics *observability.Metrics

	consumer jetstream.ConsumeContext
}

func NewFeedCache(log zerolog.Logger, metrics *observability.Metrics) *FeedCache {
	return &FeedCache{
		quotes:  make(map[string]Quote),
		log:     log,
		metrics: metrics,
	}
}

// Subscribe attaches a durable consumer to the price stream. Explicit ack;
// malformed messages are acked and dropped since redelivery cannot fix them.
func (fc *FeedCache) Subscribe(ctx context.Context, js jetstream.JetStream, stream, subject, durable string) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		return fmt.Errorf("create price consumer %s: %w", durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var upd priceUpdate
		if err := json.Unmarshal(msg.Data(), &upd); err != nil {
			fc.log.Warn().Str("subject", msg.Subject()).Err(err).Msg("malformed price update")
			fc.count("", "malformed")
			msg.Ack()
			return
		}
		price, ok := new(big.Int).SetString(upd.Price, 10)
		if !ok {
			fc.log.Warn().Str("feed", upd.FeedID).Str("price", upd.Price).Msg("unparseable price")
			fc.count(upd.FeedID, "malformed")
			msg.Ack()
			return
		}
		fc.Put(upd.FeedID, Quote{
			Price:    price,
			Decimals: upd.Decimals,
			AsOf:     upd.Timestamp,
			RoundID:  upd.RoundID,
		})
		fc.count(upd.FeedID, "ok")
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", durable, err)
	}

	fc.consumer = cc
	fc.log.Info().Str("subject", subject).Str("consumer", durable).Msg("subscribed to price feed")
	return nil
}

// Stop halts consumption.
func (fc *FeedCache) Stop() {
	if fc.consumer != nil {
		fc.consumer.Stop()
	}
}

// Put stores the latest quote for a feed. Updates with a round at or below
// the stored one are ignored so replays cannot roll a price back.
func (fc *FeedCache) Put(feedID string, q Quote) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if prev, ok := fc.quotes[feedID]; ok && q.RoundID <= prev.RoundID {
		return
	}
	fc.quotes[feedID] = q
}

// Source returns a PriceSource handle bound to one feed.
func (fc *FeedCache) Source(feedID string) PriceSource {
	return &feedHandle{cache: fc, feedID: feedID}
}

func (fc *FeedCache) latest(feedID string) (Quote, error) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	q, ok := fc.quotes[feedID]
	if !ok {
		return Quote{}, fmt.Errorf("%w: feed %s", ErrNoQuote, feedID)
	}
	return Quote{
		Price:    new(big.Int).Set(q.Price),
		Decimals: q.Decimals,
		AsOf:     q.AsOf,
		RoundID:  q.RoundID,
	}, nil
}

func (fc *FeedCache) count(feed, status string) {
	if fc.metrics != nil {
		fc.metrics.OracleQuotes.WithLabelValues(feed, status).Inc()
	}
}

type feedHandle struct {
	cache  *FeedCache
	feedID string
}

func (h *feedHandle) LatestQuote(ctx context.Context) (Quote, error) {
	return h.cache.latest(h.feedID)
}
