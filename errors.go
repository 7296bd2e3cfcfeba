package plughost

import (
	"errors"
)

// Kernel errors
var (
	// Registry errors
	ErrInvalidEventName      = errors.New("event name must not be empty")
	ErrNilHandler            = errors.New("handler cannot be nil")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrNilSubscriptionHandle = errors.New("subscription handle is nil")

	// Dispatch errors
	ErrHandlerPanic = errors.New("handler panicked")

	// Lifecycle errors
	ErrInvalidIdentifier  = errors.New("plugin identifier is empty or malformed")
	ErrAlreadyInstalled   = errors.New("plugin already installed")
	ErrNotInstalled       = errors.New("plugin not installed")
	ErrVersionUnchanged   = errors.New("plugin version unchanged")
	ErrVersionStoreNil    = errors.New("version store is nil")
	ErrVersionStoreFailed = errors.New("version store operation failed")

	// Manifest errors
	ErrManifestNameMissing    = errors.New("manifest name is required")
	ErrManifestNameInvalid    = errors.New("manifest name must be a vendor/name style identifier")
	ErrManifestVersionMissing = errors.New("manifest version is required")
	ErrManifestVersionInvalid = errors.New("manifest version must be valid semver")
	ErrManifestHookEventEmpty = errors.New("manifest hook event must not be empty")

	// Watcher and reconciler errors
	ErrWatcherAlreadyStarted = errors.New("manifest watcher already started")
	ErrWatcherNotStarted     = errors.New("manifest watcher not started")
	ErrReconcilerStarted     = errors.New("reconciler already started")
	ErrInvalidSchedule       = errors.New("invalid reconcile schedule")
)
