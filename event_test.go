package plughost

import (
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

func TestNewPluginEventAttributes(t *testing.T) {
	event := NewPluginEvent("install_example_plugin", "lifecycle", map[string]interface{}{
		PayloadKeyVersion: "1.0",
	}, map[string]interface{}{"tenant": "acme"})

	if event.Type() != "install_example_plugin" {
		t.Fatalf("type = %q", event.Type())
	}
	if event.Source() != "lifecycle" {
		t.Fatalf("source = %q", event.Source())
	}
	if event.ID() == "" {
		t.Fatal("expected generated event ID")
	}
	if event.Time().IsZero() {
		t.Fatal("expected timestamp set")
	}
	if event.SpecVersion() != cloudevents.VersionV1 {
		t.Fatalf("spec version = %q", event.SpecVersion())
	}
	if event.Extensions()["tenant"] != "acme" {
		t.Fatalf("extensions = %v", event.Extensions())
	}

	if err := ValidatePluginEvent(event); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEventDataRoundTrip(t *testing.T) {
	event := NewPluginEvent("payload.event", "test", map[string]interface{}{
		"plugin":  "example_plugin",
		"version": "1.0",
	}, nil)

	data, err := EventData(event)
	if err != nil {
		t.Fatalf("event data: %v", err)
	}
	if data["plugin"] != "example_plugin" || data["version"] != "1.0" {
		t.Fatalf("unexpected data: %v", data)
	}
}

func TestEventDataEmptyPayload(t *testing.T) {
	event := NewPluginEvent("empty.event", "test", nil, nil)

	data, err := EventData(event)
	if err != nil {
		t.Fatalf("event data: %v", err)
	}
	if data == nil {
		t.Fatal("expected empty map, got nil")
	}
	if len(data) != 0 {
		t.Fatalf("expected no keys, got %v", data)
	}
}

func TestEventDataIsIndependentPerCall(t *testing.T) {
	event := NewPluginEvent("copy.event", "test", map[string]interface{}{"key": "original"}, nil)

	first, err := EventData(event)
	if err != nil {
		t.Fatalf("first decode: %v", err)
	}
	first["key"] = "mutated"

	second, err := EventData(event)
	if err != nil {
		t.Fatalf("second decode: %v", err)
	}
	if second["key"] != "original" {
		t.Fatalf("decoded copies share state: %v", second)
	}
}
