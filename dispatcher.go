package plughost

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// HandlerFailure records one subscriber that failed during a dispatch.
type HandlerFailure struct {
	// SubscriptionID identifies the failing subscriber.
	SubscriptionID string `json:"subscriptionId"`

	// Position is the subscriber's zero-based position in dispatch order.
	Position int `json:"position"`

	// Priority is the subscriber's registered priority.
	Priority int `json:"priority"`

	// Err is the error returned by the handler, or an ErrHandlerPanic
	// wrapper if the handler panicked.
	Err error `json:"-"`
}

// DispatchReport aggregates the outcome of one dispatch call: how many
// subscribers were invoked, which succeeded, per-subscriber failures, and
// any results handlers chose to return.
type DispatchReport struct {
	// EventName is the event that was dispatched.
	EventName string `json:"eventName"`

	// Invoked is the total number of subscribers invoked.
	Invoked int `json:"invoked"`

	// Succeeded is the number of handlers that completed without error.
	Succeeded int `json:"succeeded"`

	// Failures lists each subscriber that returned an error or panicked.
	Failures []HandlerFailure `json:"failures,omitempty"`

	// Results collects non-nil handler results in dispatch order.
	// Failed handlers contribute nothing.
	Results []interface{} `json:"-"`

	// Duration is the wall time for the whole dispatch.
	Duration time.Duration `json:"duration"`
}

// Failed reports whether any subscriber failed during the dispatch.
func (r *DispatchReport) Failed() bool {
	return len(r.Failures) > 0
}

// Dispatcher fires named events against a Registry, invoking matching
// subscribers strictly in sequence order. A handler failure is caught,
// recorded in the DispatchReport, and dispatch continues to the next
// subscriber: one failing contributor never blocks its siblings.
//
// There is no propagation-stopping primitive. A domain that needs a veto
// must model it as a payload field later handlers inspect, not as
// dispatcher control flow.
type Dispatcher struct {
	registry *Registry
	logger   Logger
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the registry this dispatcher reads from.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch fires eventName with the given event payload. Subscribers are
// invoked sequentially in registry order, each receiving the event by
// value. Dispatch of an event with zero subscribers is a no-op success.
//
// Handler errors and panics never propagate as failures of the dispatch
// call itself; they are collected in the report so the caller can log or
// alert without aborting.
func (d *Dispatcher) Dispatch(ctx context.Context, eventName string, event cloudevents.Event) (*DispatchReport, error) {
	if eventName == "" {
		return nil, ErrInvalidEventName
	}

	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidatePluginEvent(event); err != nil {
		return nil, err
	}

	start := time.Now()
	subscribers := d.registry.SubscribersFor(eventName)
	report := &DispatchReport{EventName: eventName}

	for i, sub := range subscribers {
		report.Invoked++

		result, err := d.invoke(ctx, sub, event)
		if err != nil {
			report.Failures = append(report.Failures, HandlerFailure{
				SubscriptionID: sub.id,
				Position:       i,
				Priority:       sub.priority,
				Err:            err,
			})
			d.logger.Error("Handler failed during dispatch", "event", eventName, "subscriptionID", sub.id, "position", i, "error", err)
			continue
		}

		report.Succeeded++
		if result != nil {
			report.Results = append(report.Results, result)
		}
	}

	report.Duration = time.Since(start)
	d.logger.Debug("Dispatch complete", "event", eventName, "invoked", report.Invoked, "succeeded", report.Succeeded, "failures", len(report.Failures))
	return report, nil
}

// invoke runs a single handler with panic recovery. A panic is converted
// into an ErrHandlerPanic so it is contained like any other handler error.
func (d *Dispatcher) invoke(ctx context.Context, sub Subscriber, event cloudevents.Event) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	return sub.handler(ctx, event)
}
