package plughost

import (
	"errors"
	"testing"
)

func TestDeriveIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"vendor and hyphenated name", "vendor/example-plugin", "example_plugin", false},
		{"bare name", "simple", "simple", false},
		{"upper case folded", "Vendor/My-Widget", "my_widget", false},
		{"multiple hyphens", "acme/comment-box-widget", "comment_box_widget", false},
		{"dotted name", "acme/widget.pro", "widget.pro", false},
		{"empty", "", "", true},
		{"trailing separator", "vendor/", "", true},
		{"illegal characters", "vendor/spaced name", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveIdentifier(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					t.Fatalf("expected ErrInvalidIdentifier for %q, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveIdentifier(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("DeriveIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalEventNames(t *testing.T) {
	if got := InstallEventName("example_plugin"); got != "install_example_plugin" {
		t.Fatalf("install event name: %s", got)
	}
	if got := UpdateEventName("example_plugin"); got != "update_example_plugin" {
		t.Fatalf("update event name: %s", got)
	}
	if got := RemoveEventName("example_plugin"); got != "remove_example_plugin" {
		t.Fatalf("remove event name: %s", got)
	}
}
