package entity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultUpdateConcurrency bounds how many entities PushAll refreshes at
// once when no limit is set.
const DefaultUpdateConcurrency = 4

// Registry holds every entity created by discovery, in registration order.
// It lives until platform teardown, when Clear empties it.
//
// All public methods are thread-safe.
type Registry struct {
	mu       sync.RWMutex
	entities map[Key]Entity
	order    []Key

	concurrency int
	logger      Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities:    make(map[Key]Entity),
		concurrency: DefaultUpdateConcurrency,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

func (r *Registry) log() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

// SetConcurrency sets how many entities PushAll refreshes in parallel.
// Values below 1 are ignored.
func (r *Registry) SetConcurrency(n int) {
	if n < 1 {
		return
	}
	r.mu.Lock()
	r.concurrency = n
	r.mu.Unlock()
}

// Add registers e. Returns ErrDuplicateEntity if its key is taken.
func (r *Registry) Add(e Entity) error {
	key := e.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, key)
	}
	r.entities[key] = e
	r.order = append(r.order, key)
	return nil
}

// Get returns the entity for key, or ErrNotFound.
func (r *Registry) Get(key Key) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return e, nil
}

// List returns every entity in registration order.
func (r *Registry) List() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entity, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entities[key])
	}
	return out
}

// ListByPlatform returns the entities of one platform in registration order.
func (r *Registry) ListByPlatform(p Platform) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entity
	for _, key := range r.order {
		if key.Platform == p {
			out = append(out, r.entities[key])
		}
	}
	return out
}

// ListByDevice returns the entities projected from one appliance.
func (r *Registry) ListByDevice(deviceID string) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entity
	for _, key := range r.order {
		if e := r.entities[key]; e.DeviceID() == deviceID {
			out = append(out, e)
		}
	}
	return out
}

// Snapshots returns the current snapshot of every entity.
func (r *Registry) Snapshots() []Snapshot {
	entities := r.List()
	out := make([]Snapshot, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Snapshot())
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear removes every entity. Only for teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.entities = make(map[Key]Entity)
	r.order = nil
	r.mu.Unlock()
}

// PushAll refreshes every entity the host still tracks and publishes its
// state. Entities the host has disabled or removed are skipped. Refresh
// and publish failures are logged, not returned; the only error is a
// cancelled context.
func (r *Registry) PushAll(ctx context.Context, host Host) error {
	entities := r.List()

	r.mu.RLock()
	limit := r.concurrency
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, e := range entities {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.push(gctx, host, e)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Registry) push(ctx context.Context, host Host, e Entity) {
	key := e.Key()
	if !host.IsRegistered(key) {
		r.log().Debug("entity not registered with host, skipping state push", "entity", key.String())
		return
	}

	if err := e.Update(ctx); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			r.log().Warn("entity update failed", "entity", key.String(), "error", err)
		}
		return
	}

	if err := host.PublishState(ctx, e.Snapshot()); err != nil {
		r.log().Error("publishing entity state", "entity", key.String(), "error", err)
	}
}

// RunUpdates calls PushAll every interval until ctx is cancelled.
func (r *Registry) RunUpdates(ctx context.Context, host Host, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := r.PushAll(ctx, host); err != nil {
				return
			}
			r.log().Debug("entity update tick complete",
				"entities", r.Len(),
				"duration", time.Since(start),
			)
		}
	}
}
