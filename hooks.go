package plughost

import (
	"context"
)

// HookContext is the caller-supplied key/value payload for a hook point.
// It is carried as the event data, so each handler decodes its own copy
// and cannot mutate shared keys in a way that affects sibling handlers.
type HookContext map[string]interface{}

// Fragment is an opaque renderable unit contributed by one hook
// subscriber: bytes, a string, or a structured node. The aggregator never
// inspects fragment contents; concatenation policy belongs to the
// rendering collaborator.
type Fragment interface{}

// HookAggregator is a specialization of event dispatch for UI composition:
// it fires a named hook point with a context payload, collects the
// fragments contributed by subscribers, and returns them in dispatch
// order for the host rendering pipeline to compose into one response.
//
// A failing contributor is dropped from the output but recorded in the
// DispatchReport, so a broken plugin degrades gracefully rather than
// breaking the host page. Fragments are mutually independent; ordering is
// a presentation concern resolved by priority and registration order, not
// by inter-plugin data dependency.
type HookAggregator struct {
	dispatcher *Dispatcher
	logger     Logger
}

// NewHookAggregator creates a hook aggregator over the given dispatcher.
func NewHookAggregator(dispatcher *Dispatcher, logger Logger) *HookAggregator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &HookAggregator{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RenderHookPoint dispatches hookName with hookCtx as payload and returns
// the fragments contributed by successful handlers, in dispatch order.
// Aggregation over zero subscribers yields an empty slice, which the
// rendering collaborator renders as nothing.
func (a *HookAggregator) RenderHookPoint(ctx context.Context, hookName string, hookCtx HookContext) ([]Fragment, *DispatchReport, error) {
	event := NewPluginEvent(hookName, "hook", map[string]interface{}(hookCtx), nil)

	report, err := a.dispatcher.Dispatch(ctx, hookName, event)
	if err != nil {
		return nil, nil, err
	}

	fragments := make([]Fragment, 0, len(report.Results))
	for _, result := range report.Results {
		fragments = append(fragments, result)
	}

	if report.Failed() {
		a.logger.Warn("Hook point rendered with failing contributors", "hook", hookName, "fragments", len(fragments), "failures", len(report.Failures))
	}
	return fragments, report, nil
}

// HookContextFrom decodes the hook context a handler received. Each
// handler gets an independent copy.
func HookContextFrom(event PluginEvent) (HookContext, error) {
	data, err := EventData(event)
	if err != nil {
		return nil, err
	}
	return HookContext(data), nil
}
