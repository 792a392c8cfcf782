package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/events"
	"github.com/tphakala/cyanwatch/internal/logger"
)

// Publisher is the publish side of Client.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
}

// DefaultKinds are the event kinds forwarded when Consumer.Kinds is empty.
var DefaultKinds = []events.Kind{
	events.KindLocationChanged,
	events.KindSyncProgress,
	events.KindSyncDone,
	events.KindBatchStatusChanged,
}

// Consumer is an events.EventConsumer that forwards selected events as JSON
// to <topic>/<kind>.
type Consumer struct {
	publisher Publisher
	topic     string
	kinds     map[events.Kind]bool
	timeout   time.Duration
	log       logger.Logger
}

// NewConsumer creates a consumer. An empty kinds forwards DefaultKinds.
func NewConsumer(publisher Publisher, topic string, kinds ...events.Kind) *Consumer {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	set := make(map[events.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return &Consumer{
		publisher: publisher,
		topic:     topic,
		kinds:     set,
		timeout:   DefaultConfig().PublishTimeout,
		log:       GetLogger(),
	}
}

// Name implements events.EventConsumer.
func (c *Consumer) Name() string { return "mqtt" }

// Topic returns the topic an event of kind k is published to.
func (c *Consumer) Topic(k events.Kind) string {
	return c.topic + "/" + string(k)
}

// ProcessEvent implements events.EventConsumer. Events are dropped while the
// broker is unreachable.
func (c *Consumer) ProcessEvent(event events.Event) error {
	kind := event.Kind()
	if !c.kinds[kind] {
		return nil
	}
	if !c.publisher.IsConnected() {
		c.log.Debug("broker not connected, event dropped", logger.String("kind", string(kind)))
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryGeneric).
			Context("kind", string(kind)).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.publisher.Publish(ctx, c.Topic(kind), payload); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("topic", c.Topic(kind)).
			Build()
	}
	return nil
}
