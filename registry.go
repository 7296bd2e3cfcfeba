package plughost

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry holds, per EventName, an ordered collection of subscribers.
// Subscriber lists are kept sorted by (priority, registration sequence),
// so dispatch order is deterministic: ascending priority, FIFO among
// equal priorities.
//
// The Registry is safe for concurrent use. Reads return snapshot copies,
// so concurrent dispatches never share iteration state with registration
// or unregistration. Registrations happen at startup in the common case,
// so write contention is expected to be rare.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscriber
	byID   map[string]*Subscriber
	seq    uint64
	logger Logger
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry(logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		subs:   make(map[string][]*Subscriber),
		byID:   make(map[string]*Subscriber),
		logger: logger,
	}
}

// Register inserts a new subscriber for eventName. The subscriber is
// assigned the next registration sequence number and inserted in sorted
// position. Returns a handle the caller can later pass to Unregister.
func (r *Registry) Register(eventName string, handler HandlerFunc, priority int) (*SubscriptionHandle, error) {
	if eventName == "" {
		return nil, ErrInvalidEventName
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	sub := &Subscriber{
		id:           uuid.New().String(),
		eventName:    eventName,
		handler:      handler,
		priority:     priority,
		seq:          r.seq,
		registeredAt: time.Now(),
	}

	list := append(r.subs[eventName], sub)
	sort.Slice(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	r.subs[eventName] = list
	r.byID[sub.id] = sub

	r.logger.Debug("Subscriber registered", "event", eventName, "subscriptionID", sub.id, "priority", priority)
	return &SubscriptionHandle{id: sub.id, eventName: eventName}, nil
}

// RegisterSubscriber registers every subscription an EventSubscriber
// declares. On a malformed entry the already-registered entries are rolled
// back so a component is registered entirely or not at all.
func (r *Registry) RegisterSubscriber(subscriber EventSubscriber) ([]*SubscriptionHandle, error) {
	declared := subscriber.Subscriptions()
	handles := make([]*SubscriptionHandle, 0, len(declared))

	for _, sub := range declared {
		handle, err := r.Register(sub.EventName, sub.Handler, sub.Priority)
		if err != nil {
			for _, h := range handles {
				_ = r.Unregister(h)
			}
			return nil, fmt.Errorf("failed to register subscription for %q: %w", sub.EventName, err)
		}
		handles = append(handles, handle)
	}

	return handles, nil
}

// Unregister removes the subscriber identified by handle. Unregistering an
// already-removed handle returns ErrSubscriptionNotFound but causes no
// corruption.
func (r *Registry) Unregister(handle *SubscriptionHandle) error {
	if handle == nil {
		return ErrNilSubscriptionHandle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.byID[handle.id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, handle.id)
	}

	list := r.subs[sub.eventName]
	for i, s := range list {
		if s.id == handle.id {
			r.subs[sub.eventName] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.subs[sub.eventName]) == 0 {
		delete(r.subs, sub.eventName)
	}
	delete(r.byID, handle.id)

	r.logger.Debug("Subscriber unregistered", "event", sub.eventName, "subscriptionID", handle.id)
	return nil
}

// SubscribersFor returns a read-only snapshot of the subscribers for
// eventName in dispatch order. Returns an empty slice (never an error)
// when no subscribers exist.
func (r *Registry) SubscribersFor(eventName string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.subs[eventName]
	result := make([]Subscriber, len(list))
	for i, sub := range list {
		result[i] = *sub
	}
	return result
}

// SubscriberCount returns the number of subscribers for eventName.
func (r *Registry) SubscriberCount(eventName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[eventName])
}

// EventNames returns all event names with at least one subscriber.
func (r *Registry) EventNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.subs))
	for name := range r.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
