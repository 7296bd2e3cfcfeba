package plughost

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Manifest describes a plugin: its distributing name, target version, and
// the hook points it subscribes to. Manifests are YAML documents, one per
// plugin, typically kept together in a plugins directory.
type Manifest struct {
	// Name is the distributing name in vendor/name form, e.g.
	// "acme/comment-widget". The plugin identifier and the canonical
	// lifecycle event names are derived from it.
	Name string `yaml:"name"`

	// Version is the plugin version, simplified semver.
	Version string `yaml:"version"`

	// Description is an optional human-readable summary.
	Description string `yaml:"description,omitempty"`

	// Main is an optional relative path to a Lua entry script whose
	// declared hooks are registered when the plugin is loaded by a
	// script-capable host.
	Main string `yaml:"main,omitempty"`

	// Hooks declares the hook points this plugin contributes to.
	Hooks []ManifestHook `yaml:"hooks,omitempty"`

	// path is where the manifest was loaded from.
	path string
}

// ManifestHook declares one hook-point subscription.
type ManifestHook struct {
	Event    string `yaml:"event"`
	Priority int    `yaml:"priority,omitempty"`
}

var (
	// manifestNamePattern validates vendor/name style distributing names.
	manifestNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*(/[a-z0-9][a-z0-9_.-]*)?$`)

	// semverPattern validates version strings (simplified semver).
	semverPattern = regexp.MustCompile(`^\d+(\.\d+){0,2}(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)
)

// Validate checks the manifest for structural problems.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrManifestNameMissing
	}
	if !manifestNamePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %q", ErrManifestNameInvalid, m.Name)
	}
	if m.Version == "" {
		return ErrManifestVersionMissing
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %q", ErrManifestVersionInvalid, m.Version)
	}
	for i, hook := range m.Hooks {
		if hook.Event == "" {
			return fmt.Errorf("%w: hook %d", ErrManifestHookEventEmpty, i)
		}
	}
	return nil
}

// Identifier returns the derived plugin identifier for this manifest.
func (m *Manifest) Identifier() (string, error) {
	return DeriveIdentifier(m.Name)
}

// Path returns where the manifest was loaded from, or "" if it was built
// in memory.
func (m *Manifest) Path() string {
	return m.path
}

// LoadManifest reads and validates a single YAML manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // manifest paths come from the host configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	manifest.path = path
	return &manifest, nil
}

// LoadManifestDir loads every *.yaml and *.yml manifest in dir, sorted by
// file name. Invalid manifests abort the load; a host that wants to skip
// broken manifests loads them individually.
func LoadManifestDir(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory %s: %w", dir, err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			continue
		}
		manifest, err := LoadManifest(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, manifest)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].path < manifests[j].path
	})
	return manifests, nil
}

func isManifestFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
