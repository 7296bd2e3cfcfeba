package plughost

import (
	"context"
	"fmt"
	"sync"
)

// VersionStore is the persistence collaborator for plugin records. The
// kernel consumes it only as a key/value lookup: identifier to installed
// version. Implementations may block on disk or network; the lifecycle
// manager passes the caller's context through unchanged.
type VersionStore interface {
	// Get returns the installed version for identifier, with ok=false
	// when no record exists.
	Get(ctx context.Context, identifier string) (version string, ok bool, err error)

	// Put records identifier as installed at version, creating or
	// replacing the record.
	Put(ctx context.Context, identifier, version string) error

	// Delete removes the record for identifier. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, identifier string) error
}

// LifecycleManager maps a plugin name plus target version to a lifecycle
// transition (install, update, remove), derives the canonical event names,
// and drives them through the Dispatcher.
//
// The dispatch for a transition always completes (all subscribers
// attempted) before the persisted record is mutated. A crash between
// dispatch and persistence is therefore observable as "handlers ran,
// record not yet updated" and must be tolerated by replaying the
// transition: the side effects performed by subscribers are at-least-once,
// not exactly-once. See Reconciler for the replay path.
type LifecycleManager struct {
	dispatcher *Dispatcher
	store      VersionStore
	logger     Logger

	// Serializes transitions so a concurrent install and remove of the
	// same plugin cannot interleave dispatch and persistence.
	mu sync.Mutex
}

// NewLifecycleManager creates a lifecycle manager driving events through
// dispatcher and recording plugin versions in store.
func NewLifecycleManager(dispatcher *Dispatcher, store VersionStore, logger Logger) (*LifecycleManager, error) {
	if store == nil {
		return nil, ErrVersionStoreNil
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &LifecycleManager{
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
	}, nil
}

// Install transitions a plugin from unknown to installed. It dispatches
// the install event and, on dispatch completion (regardless of individual
// handler failures), persists the record. Returns ErrAlreadyInstalled if
// a record already exists; no dispatch is performed in that case.
func (m *LifecycleManager) Install(ctx context.Context, name, version string) (*DispatchReport, error) {
	identifier, err := DeriveIdentifier(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok, err := m.store.Get(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrVersionStoreFailed, identifier, err)
	}
	if ok {
		return nil, fmt.Errorf("%w: %s at version %s", ErrAlreadyInstalled, identifier, current)
	}

	event := NewPluginEvent(InstallEventName(identifier), "lifecycle", map[string]interface{}{
		PayloadKeyPlugin:  identifier,
		PayloadKeyName:    name,
		PayloadKeyVersion: version,
	}, nil)

	report, err := m.dispatcher.Dispatch(ctx, InstallEventName(identifier), event)
	if err != nil {
		return nil, err
	}

	if err := m.store.Put(ctx, identifier, version); err != nil {
		return report, fmt.Errorf("%w: put %s: %w", ErrVersionStoreFailed, identifier, err)
	}

	m.logger.Info("Plugin installed", "plugin", identifier, "version", version, "handlers", report.Invoked, "failures", len(report.Failures))
	return report, nil
}

// Update transitions an installed plugin to a new version. The update
// event payload carries both the previous and the new version. Returns
// ErrNotInstalled when no record exists and ErrVersionUnchanged when the
// requested version equals the installed one; neither case dispatches or
// writes.
func (m *LifecycleManager) Update(ctx context.Context, name, version string) (*DispatchReport, error) {
	identifier, err := DeriveIdentifier(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	previous, ok, err := m.store.Get(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrVersionStoreFailed, identifier, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, identifier)
	}
	if previous == version {
		return nil, fmt.Errorf("%w: %s at version %s", ErrVersionUnchanged, identifier, version)
	}

	event := NewPluginEvent(UpdateEventName(identifier), "lifecycle", map[string]interface{}{
		PayloadKeyPlugin:          identifier,
		PayloadKeyName:            name,
		PayloadKeyVersion:         version,
		PayloadKeyPreviousVersion: previous,
	}, nil)

	report, err := m.dispatcher.Dispatch(ctx, UpdateEventName(identifier), event)
	if err != nil {
		return nil, err
	}

	if err := m.store.Put(ctx, identifier, version); err != nil {
		return report, fmt.Errorf("%w: put %s: %w", ErrVersionStoreFailed, identifier, err)
	}

	m.logger.Info("Plugin updated", "plugin", identifier, "from", previous, "to", version, "handlers", report.Invoked, "failures", len(report.Failures))
	return report, nil
}

// Remove transitions an installed plugin to removed. It dispatches the
// remove event and then deletes the persisted record. Returns
// ErrNotInstalled when no record exists.
func (m *LifecycleManager) Remove(ctx context.Context, name string) (*DispatchReport, error) {
	identifier, err := DeriveIdentifier(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	version, ok, err := m.store.Get(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrVersionStoreFailed, identifier, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, identifier)
	}

	event := NewPluginEvent(RemoveEventName(identifier), "lifecycle", map[string]interface{}{
		PayloadKeyPlugin:  identifier,
		PayloadKeyName:    name,
		PayloadKeyVersion: version,
	}, nil)

	report, err := m.dispatcher.Dispatch(ctx, RemoveEventName(identifier), event)
	if err != nil {
		return nil, err
	}

	if err := m.store.Delete(ctx, identifier); err != nil {
		return report, fmt.Errorf("%w: delete %s: %w", ErrVersionStoreFailed, identifier, err)
	}

	m.logger.Info("Plugin removed", "plugin", identifier, "version", version, "handlers", report.Invoked, "failures", len(report.Failures))
	return report, nil
}

// Installed returns the installed version for a plugin name, with ok=false
// when the plugin is unknown.
func (m *LifecycleManager) Installed(ctx context.Context, name string) (version string, ok bool, err error) {
	identifier, err := DeriveIdentifier(name)
	if err != nil {
		return "", false, err
	}
	version, ok, err = m.store.Get(ctx, identifier)
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %w", ErrVersionStoreFailed, identifier, err)
	}
	return version, ok, nil
}
