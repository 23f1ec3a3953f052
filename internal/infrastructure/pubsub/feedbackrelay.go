package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/shared/constants"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

const publishTimeout = 2 * time.Second

// OutcomeEnvelope is the wire form of an outcome on the feedback channel.
type OutcomeEnvelope struct {
	InstanceID string          `json:"instance_id"` // source instance, used to skip self-delivery
	Outcome    *events.Outcome `json:"outcome"`
}

// FeedbackRelay forwards local outcomes to other instances and hands remote
// outcomes to sink. It is subscribed to the local dispatcher like any other
// outcome handler; remote outcomes bypass the dispatcher so they are never
// relayed twice.
type FeedbackRelay struct {
	client     *redis.Client
	sink       events.EventHandler
	logger     logger.Interface
	instanceID string
	channel    string
}

func NewFeedbackRelay(client *redis.Client, sink events.EventHandler, logger logger.Interface) *FeedbackRelay {
	return &FeedbackRelay{
		client:     client,
		sink:       sink,
		logger:     logger,
		instanceID: uuid.NewString(),
		channel:    constants.ChannelFeedback,
	}
}

func (r *FeedbackRelay) CanHandle(eventType string) bool {
	return strings.HasPrefix(eventType, events.OutcomeEventPrefix)
}

// Handle publishes a local outcome to the feedback channel.
func (r *FeedbackRelay) Handle(event events.DomainEvent) error {
	o, ok := event.(*events.Outcome)
	if !ok {
		return fmt.Errorf("unexpected event %T for type %s", event, event.GetEventType())
	}

	data, err := r.encode(o)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Errorw("failed to publish outcome",
			"event_type", o.GetEventType(),
			"merchant_id", o.MerchantID,
			"error", err,
		)
		return fmt.Errorf("failed to publish outcome: %w", err)
	}
	return nil
}

func (r *FeedbackRelay) encode(o *events.Outcome) ([]byte, error) {
	data, err := json.Marshal(OutcomeEnvelope{InstanceID: r.instanceID, Outcome: o})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outcome envelope: %w", err)
	}
	return data, nil
}

// deliver decodes payload and passes remote outcomes to the sink.
func (r *FeedbackRelay) deliver(payload string) {
	var env OutcomeEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warnw("failed to unmarshal outcome envelope", "payload", payload, "error", err)
		return
	}
	if env.InstanceID == r.instanceID || env.Outcome == nil {
		return
	}
	if err := r.sink.Handle(env.Outcome); err != nil {
		r.logger.Warnw("failed to deliver remote outcome",
			"event_type", env.Outcome.GetEventType(),
			"error", err,
		)
	}
}

// Run subscribes until ctx is cancelled, reconnecting with exponential backoff.
func (r *FeedbackRelay) Run(ctx context.Context) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.logger.Warnw("feedback subscription disconnected, reconnecting",
			"channel", r.channel,
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (r *FeedbackRelay) subscribe(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", r.channel, err)
	}

	r.logger.Infow("subscribed to feedback channel", "channel", r.channel)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("feedback subscriber stopped", "reason", ctx.Err())
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			// Delivered inline so each merchant sees remote outcomes in order.
			r.deliver(msg.Payload)
		}
	}
}
