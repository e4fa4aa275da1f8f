package events

import "time"

// SubscriptionStart is emitted when a subscription's event stream is
// established.
type SubscriptionStart struct {
	SubscriberID  string
	Topic         string
	OperationName string
	Field         string
}

// SubscriptionEvent is emitted once per delivered event, after the
// subscriber's resolver ran.
type SubscriptionEvent struct {
	SubscriberID string
	Field        string
	Filtered     bool
	Errors       []error
	Duration     time.Duration
}

// SubscriptionFinish is emitted when a subscriber's stream terminates.
type SubscriptionFinish struct {
	SubscriberID string
	Field        string
	Events       int64
}

// BrokerDrop is emitted when a subscriber's delivery queue overflowed and the
// oldest buffered event was discarded.
type BrokerDrop struct {
	SubscriberID string
	Topic        string
}
