package plughost

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// HandlerFunc is a callback bound to one EventName. Handlers receive the
// dispatched event and may return a result; results are opaque to the
// Dispatcher and are collected in the DispatchReport. Hook-point handlers
// return the fragment they contribute, or nil to contribute nothing.
//
// The context can be used for cancellation and timeouts. The Dispatcher
// imposes no timeout of its own; callers needing bounded latency wrap the
// handler at registration time and treat a timeout as a handler failure.
type HandlerFunc func(ctx context.Context, event cloudevents.Event) (interface{}, error)

// Subscriber is one registered callback for an EventName. Subscribers are
// owned by the Registry once registered; the registering component holds
// only the SubscriptionHandle.
type Subscriber struct {
	id           string
	eventName    string
	handler      HandlerFunc
	priority     int
	seq          uint64
	registeredAt time.Time
}

// ID returns the unique identifier for this subscriber.
func (s Subscriber) ID() string {
	return s.id
}

// EventName returns the event this subscriber is bound to.
func (s Subscriber) EventName() string {
	return s.eventName
}

// Priority returns the ordering priority. Lower values fire earlier.
func (s Subscriber) Priority() int {
	return s.priority
}

// RegisteredAt indicates when the subscriber was registered.
func (s Subscriber) RegisteredAt() time.Time {
	return s.registeredAt
}

// SubscriptionHandle identifies one registration so it can be removed later.
type SubscriptionHandle struct {
	id        string
	eventName string
}

// ID returns the subscription identifier.
func (h *SubscriptionHandle) ID() string {
	return h.id
}

// EventName returns the event the subscription is bound to.
func (h *SubscriptionHandle) EventName() string {
	return h.eventName
}

// EventSubscription declares one (EventName, priority, handler) tuple.
// This is the only contract a plugin author must fulfill to participate
// in dispatch.
type EventSubscription struct {
	// EventName is the event to subscribe to. Must not be empty.
	EventName string

	// Priority orders subscribers within an event. Lower fires earlier;
	// equal priorities fire in registration order.
	Priority int

	// Handler is the callback invoked on dispatch.
	Handler HandlerFunc
}

// EventSubscriber is an optional interface for components that declare
// their subscriptions as data. Anything exposing a subscription list can
// register with Registry.RegisterSubscriber, independent of how it is
// structured internally.
type EventSubscriber interface {
	// Subscriptions returns the event subscriptions this component wants
	// registered. Called once at registration time.
	Subscriptions() []EventSubscription
}
