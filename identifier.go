package plughost

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierPattern constrains derived identifiers to the characters that
// can appear inside canonical lifecycle event names.
var identifierPattern = regexp.MustCompile(`^[a-z0-9_.]+$`)

// DeriveIdentifier derives a plugin identifier from its distributing name.
// Given a vendor/name style name, the name component after the last path
// separator is taken, hyphens are replaced with underscores, and the
// result is lower-cased: "vendor/example-plugin" becomes "example_plugin".
// The derived form is the namespace fragment used to build the three
// canonical lifecycle event names for the plugin.
func DeriveIdentifier(name string) (string, error) {
	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	id := strings.ToLower(strings.ReplaceAll(base, "-", "_"))
	if id == "" || !identifierPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return id, nil
}

// Canonical lifecycle event names for a derived plugin identifier.
func InstallEventName(identifier string) string { return "install_" + identifier }
func UpdateEventName(identifier string) string  { return "update_" + identifier }
func RemoveEventName(identifier string) string  { return "remove_" + identifier }
