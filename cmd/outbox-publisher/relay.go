package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	backoffCeiling        = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	Park(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// orderedPublisher publishes with per-order ordering keys. A failed publish
// pauses its key until ResumePublish is called.
type orderedPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFor func(topic string) orderedPublisher

// outcome is what happened to one outbox row during a pass.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
	outcomeHeld
)

type RelayParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           txRunner
	PubSub       topicSource
	Events       eventStore
	Registry     eventResolver
	DeadLetters  deadLetters
	Metrics      *metrics.OutboxMetrics
	PublisherFor publisherFor
	JitterSeed   int64
}

// Relay drains outbox_events into Pub/Sub. Events of one order keep their
// commit order: once an order's event fails, the rest of that order's events
// wait for the next pass.
type Relay struct {
	logg         *logger.Logger
	db           txRunner
	pubsub       topicSource
	events       eventStore
	registry     eventResolver
	dlq          deadLetters
	metrics      *metrics.OutboxMetrics
	publisherFor publisherFor
	batchSize    int
	maxAttempts  int
	backoff      *pollBackoff
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Events == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	}

	pubFor := params.PublisherFor
	if pubFor == nil {
		pubFor = pubsubPublisherFor(params.PubSub)
	}

	cfg := params.Config.Outbox
	batch := positiveOr(cfg.BatchSize, defaultBatchSize)
	maxAttempts := positiveOr(cfg.MaxAttempts, defaultMaxAttempts)
	poll := time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond

	seed := params.JitterSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Relay{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		events:       params.Events,
		registry:     params.Registry,
		dlq:          params.DeadLetters,
		metrics:      params.Metrics,
		publisherFor: pubFor,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		backoff:      newPollBackoff(poll, backoffCeiling, seed),
	}, nil
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		r.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		r.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		drained, err := r.drainOnce(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay pass failed", err)
			wait = r.backoff.failure()
		case drained > 0:
			r.backoff.reset()
			continue
		default:
			wait = r.backoff.idle()
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// drainOnce handles one locked batch and returns how many rows it touched.
func (r *Relay) drainOnce(ctx context.Context) (int, error) {
	touched := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		touched = len(rows)

		held := make(map[uuid.UUID]struct{})
		for _, row := range rows {
			result, err := r.relay(ctx, tx, row, held)
			if err != nil {
				return err
			}
			if result == outcomeRetry || result == outcomeHeld {
				held[row.AggregateID] = struct{}{}
			}
		}
		return nil
	})
	return touched, err
}

func (r *Relay) relay(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, held map[uuid.UUID]struct{}) (outcome, error) {
	logCtx := r.logg.WithFields(ctx, rowFields(row))

	if _, waiting := held[row.AggregateID]; waiting {
		r.logg.Debug(logCtx, "outbox event held behind an earlier failure")
		return outcomeHeld, nil
	}

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return outcomeDeadLettered, r.deadLetter(logCtx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"event_id": resolved.Envelope.EventID,
		"topic":    resolved.Descriptor.Topic,
	})

	started := time.Now()
	err = r.publish(ctx, row, resolved)
	r.metrics.ObservePublish(string(row.EventType), time.Since(started))

	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		if markErr := r.events.MarkPublishedTx(tx, row.ID); markErr != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		r.metrics.IncPublished(string(row.EventType))
		r.logg.Info(logCtx, "outbox event published")
		return outcomePublished, nil
	case errors.As(err, &nonRetryable):
		return outcomeDeadLettered, r.deadLetter(logCtx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	case row.AttemptCount+1 >= r.maxAttempts:
		terminal := fmt.Errorf("max publish attempts reached: %w", err)
		return outcomeDeadLettered, r.deadLetter(logCtx, tx, row, enums.OutboxDLQReasonMaxAttempts, terminal)
	}

	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"attempt_count": row.AttemptCount + 1,
		"error":         err.Error(),
	}), "outbox publish failed")
	r.metrics.IncFailed(string(row.EventType))
	if markErr := r.events.MarkFailedTx(tx, row.ID, err); markErr != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", row.ID, markErr)
	}
	return outcomeRetry, nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event dead-lettered")

	if err := r.dlq.Park(tx, row, reason, cause); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	if err := r.events.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.IncDeadLettered(string(row.EventType), string(reason))
	return nil
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	orderingKey := row.AggregateID.String()
	msg := &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: orderingKey,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   orderingKey,
			"schema_version": fmt.Sprint(resolved.Envelope.Version),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		pub.ResumePublish(orderingKey)
		return err
	}
	return nil
}

func rowFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

// pollBackoff doubles the wait after failed passes up to a ceiling.
type pollBackoff struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
	rnd     *rand.Rand
}

func newPollBackoff(base, ceiling time.Duration, seed int64) *pollBackoff {
	return &pollBackoff{base: base, ceiling: ceiling, current: base, rnd: rand.New(rand.NewSource(seed))}
}

func (b *pollBackoff) reset() {
	b.current = b.base
}

func (b *pollBackoff) idle() time.Duration {
	b.reset()
	return b.jitter(b.base)
}

func (b *pollBackoff) failure() time.Duration {
	b.current *= 2
	if b.current > b.ceiling {
		b.current = b.ceiling
	}
	return b.jitter(b.current)
}

func (b *pollBackoff) jitter(d time.Duration) time.Duration {
	return d + time.Duration(b.rnd.Int63n(int64(jitterWindow)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pubsubPublisherFor(client topicSource) publisherFor {
	publishers := make(map[string]orderedPublisher)
	return func(topic string) orderedPublisher {
		if pub, ok := publishers[topic]; ok {
			return pub
		}
		raw := client.Publisher(topic)
		if raw == nil {
			return nil
		}
		raw.EnableMessageOrdering = true
		pub := &gcpPublisher{Publisher: raw}
		publishers[topic] = pub
		return pub
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
