package plughost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Reconciler periodically compares a plugin manifest directory against the
// version store and replays any missed transitions. This is the recovery
// path for the at-least-once window in the lifecycle manager: a crash
// between dispatch and persistence leaves handlers run but the record
// stale, and the next sweep replays the transition.
type Reconciler struct {
	manager  *LifecycleManager
	lister   RecordLister
	dir      string
	schedule string
	logger   Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	started bool
}

// RecordLister is the optional enumeration side of a version store.
// Stores that can list their records let the reconciler remove plugins
// whose manifests have disappeared.
type RecordLister interface {
	// All returns every persisted record as identifier to version.
	All(ctx context.Context) (map[string]string, error)
}

// NewReconciler creates a reconciler sweeping dir on the given cron
// schedule (e.g. "@every 5m"). lister may be nil, in which case orphaned
// records are left in place.
func NewReconciler(manager *LifecycleManager, lister RecordLister, dir, schedule string, logger Logger) *Reconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Reconciler{
		manager:  manager,
		lister:   lister,
		dir:      dir,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the periodic sweep. The first sweep runs on schedule,
// not immediately; call Reconcile directly for an immediate pass.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrReconcilerStarted
	}

	c := cron.New()
	entryID, err := c.AddFunc(r.schedule, func() {
		if err := r.Reconcile(context.Background()); err != nil {
			r.logger.Error("Reconcile sweep failed", "dir", r.dir, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, r.schedule, err)
	}

	c.Start()
	r.cron = c
	r.entryID = entryID
	r.started = true
	r.logger.Info("Reconciler started", "dir", r.dir, "schedule", r.schedule)
	return nil
}

// Stop cancels the periodic sweep and waits for a running sweep to finish.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	stopCtx := r.cron.Stop()
	r.mu.Unlock()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconcile runs one sweep: every manifest is installed or updated as
// needed, and, when the store supports listing, records without a manifest
// are removed. Per-plugin errors are logged and do not abort the sweep;
// the first error is returned after all plugins have been attempted.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	manifests, err := LoadManifestDir(r.dir)
	if err != nil {
		return err
	}

	var firstErr error
	seen := make(map[string]bool, len(manifests))

	for _, manifest := range manifests {
		identifier, err := manifest.Identifier()
		if err != nil {
			r.logger.Error("Skipping manifest with invalid name", "path", manifest.Path(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		seen[identifier] = true

		if err := r.reconcileOne(ctx, manifest); err != nil {
			r.logger.Error("Failed to reconcile plugin", "plugin", identifier, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if r.lister != nil {
		records, err := r.lister.All(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: list records: %w", ErrVersionStoreFailed, err)
			}
			return firstErr
		}
		for identifier := range records {
			if seen[identifier] {
				continue
			}
			if _, err := r.manager.Remove(ctx, identifier); err != nil && !errors.Is(err, ErrNotInstalled) {
				r.logger.Error("Failed to remove orphaned plugin record", "plugin", identifier, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	return firstErr
}

func (r *Reconciler) reconcileOne(ctx context.Context, manifest *Manifest) error {
	_, installed, err := r.manager.Installed(ctx, manifest.Name)
	if err != nil {
		return err
	}

	if !installed {
		_, err = r.manager.Install(ctx, manifest.Name, manifest.Version)
		return err
	}

	_, err = r.manager.Update(ctx, manifest.Name, manifest.Version)
	if errors.Is(err, ErrVersionUnchanged) {
		return nil
	}
	return err
}
