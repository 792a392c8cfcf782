package events

import (
	"sync"
	"sync/atomic"

	"github.com/tphakala/cyanwatch/internal/logger"
)

// FuncConsumer adapts a function to EventConsumer.
type FuncConsumer struct {
	ConsumerName string
	Fn           func(Event) error
}

func (f FuncConsumer) Name() string { return f.ConsumerName }

func (f FuncConsumer) ProcessEvent(event Event) error { return f.Fn(event) }

// ChannelConsumer forwards events to a buffered channel, dropping when the
// reader falls behind so the bus worker never blocks.
type ChannelConsumer struct {
	name    string
	ch      chan Event
	dropped atomic.Int64
	log     logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewChannelConsumer creates a consumer with the given channel capacity.
func NewChannelConsumer(name string, capacity int) *ChannelConsumer {
	return &ChannelConsumer{
		name: name,
		ch:   make(chan Event, capacity),
		log:  logger.Global().Module("events"),
	}
}

func (c *ChannelConsumer) Name() string { return c.name }

// Events returns the receive side.
func (c *ChannelConsumer) Events() <-chan Event { return c.ch }

func (c *ChannelConsumer) ProcessEvent(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- event:
	default:
		n := c.dropped.Add(1)
		c.log.Debug("channel consumer full, event dropped",
			logger.String("consumer", c.name),
			logger.String("kind", string(event.Kind())),
			logger.Int64("dropped", n))
	}
	return nil
}

// Dropped returns how many events were discarded because the channel was full.
func (c *ChannelConsumer) Dropped() int64 { return c.dropped.Load() }

// Close closes the channel. Later events are ignored.
func (c *ChannelConsumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
