// Package events is the in-process change feed: writers publish the
// collection they touched, readers re-fetch.
package events

import (
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// Collection topics
const (
	TopicProducts     = "products"
	TopicCategories   = "categories"
	TopicTransactions = "transactions"
	TopicSettings     = "settings"
	TopicAuth         = "auth"
)

// CollectionTopics are the record collections mirrored by the POS store
var CollectionTopics = []string{TopicProducts, TopicCategories, TopicTransactions, TopicSettings}

// Change operations
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpUpsert = "upsert"
)

// Change describes a committed write
type Change struct {
	Topic string
	Op    string
	Key   string
	At    time.Time
}

// Handler receives changes
type Handler func(Change)

type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

// Publish notifies subscribers of topic
func (b *Bus) Publish(topic, op, key string) {
	if b == nil {
		return
	}
	zap.L().Debug("change published", zap.String("topic", topic), zap.String("op", op), zap.String("key", key))
	b.bus.Publish(topic, Change{Topic: topic, Op: op, Key: key, At: time.Now()})
}

// Subscribe runs h synchronously in the publisher's goroutine
func (b *Bus) Subscribe(topic string, h Handler) error {
	return b.bus.Subscribe(topic, h)
}

// SubscribeAsync runs h in its own goroutine; handlers of one topic run one at a time
func (b *Bus) SubscribeAsync(topic string, h Handler) error {
	return b.bus.SubscribeAsync(topic, h, true)
}

// Unsubscribe removes h, which must be the value passed to Subscribe
func (b *Bus) Unsubscribe(topic string, h Handler) error {
	return b.bus.Unsubscribe(topic, h)
}

// WaitAsync blocks until running async handlers have returned
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
