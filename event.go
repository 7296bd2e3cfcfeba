// Package plughost provides a plugin lifecycle and hook-aggregation kernel:
// a named-event dispatcher that drives plugin install/update/remove
// transitions and lets independently developed extensions contribute
// response fragments at well-known extension points in a host rendering
// pipeline. Events use the CloudEvents specification for standardized
// format and better interoperability with external systems.
package plughost

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// PluginEvent is an alias for the CloudEvents Event type for convenience.
type PluginEvent = cloudevents.Event

// NewPluginEvent creates a new CloudEvent carrying a dispatch payload.
// The event type is the EventName the event will be dispatched under.
func NewPluginEvent(eventName, source string, data interface{}, metadata map[string]interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()

	// Set required attributes
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventName)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	// Set data if provided
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}

	// Set extensions for metadata
	for key, value := range metadata {
		event.SetExtension(key, value)
	}

	return event
}

// generateEventID generates a unique identifier for CloudEvents using UUIDv7.
// UUIDv7 includes timestamp information which provides time-ordered uniqueness.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails for any reason
		id = uuid.New()
	}
	return id.String()
}

// ValidatePluginEvent validates that an event conforms to the CloudEvents
// specification before dispatch.
func ValidatePluginEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}
	return nil
}

// EventData decodes the event payload into a key/value map. Each caller
// receives its own decoded copy, so handlers never share mutable payload
// state with sibling handlers.
func EventData(event cloudevents.Event) (map[string]interface{}, error) {
	if len(event.Data()) == 0 {
		return map[string]interface{}{}, nil
	}
	var data map[string]interface{}
	if err := event.DataAs(&data); err != nil {
		return nil, fmt.Errorf("failed to decode event data: %w", err)
	}
	return data, nil
}

// Payload keys used by lifecycle events.
const (
	PayloadKeyPlugin          = "plugin"
	PayloadKeyName            = "name"
	PayloadKeyVersion         = "version"
	PayloadKeyPreviousVersion = "previousVersion"
)
