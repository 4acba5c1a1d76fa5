package entity

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

// projection is the state shared by every entity kind: a fixed identity
// and the last record read from the cache.
type projection struct {
	key      Key
	deviceID string

	mu        sync.RWMutex
	record    appliance.Record
	updatedAt time.Time

	source     Source
	dispatcher Dispatcher
	logger     Logger
	now        func() time.Time
}

func newProjection(platform Platform, uniqueID string, rec appliance.Record, deps Deps) (*projection, error) {
	if rec.Ident.DeviceID == "" {
		return nil, appliance.ErrMissingIdentity
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("%w: source", ErrMissingDependency)
	}
	deps = deps.withDefaults()

	return &projection{
		key:        Key{Platform: platform, UniqueID: uniqueID},
		deviceID:   rec.Ident.DeviceID,
		record:     rec.Clone(),
		updatedAt:  deps.Now(),
		source:     deps.Source,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Now,
	}, nil
}

func (p *projection) Key() Key           { return p.key }
func (p *projection) UniqueID() string   { return p.key.UniqueID }
func (p *projection) DeviceID() string   { return p.deviceID }
func (p *projection) Platform() Platform { return p.key.Platform }

// Record returns a copy of the cached record.
func (p *projection) Record() appliance.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.record.Clone()
}

// Update re-reads the device from the cache. A miss keeps the previous
// record. The write lock is held for the whole refresh so updates of one
// entity never interleave.
func (p *projection) Update(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.source.Get(p.deviceID)
	if !ok {
		p.logger.Debug("appliance not found", "device_id", p.deviceID, "entity", p.key.String())
		return nil
	}
	if !reflect.DeepEqual(rec, p.record) {
		p.record = rec
		p.updatedAt = p.now()
	}
	return nil
}

// read runs fn under the read lock.
func (p *projection) read(fn func(rec *appliance.Record)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn(&p.record)
}

// snapshot fills the identity fields and lets fill add the kind-specific
// ones, all from the same record.
func (p *projection) snapshot(fill func(rec *appliance.Record, snap *Snapshot)) Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := Snapshot{
		UniqueID:  p.key.UniqueID,
		DeviceID:  p.deviceID,
		Platform:  p.key.Platform,
		UpdatedAt: p.updatedAt,
	}
	fill(&p.record, &snap)
	return snap
}

// dispatch submits body for this device. Local state is never touched.
func (p *projection) dispatch(ctx context.Context, body map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Debug("dispatching action", "entity", p.key.String(), "body", body)
	p.dispatcher.Submit(ctx, ActionDomain, ActionService, ActionRequest{
		DeviceID: p.deviceID,
		Body:     body,
	})
	return nil
}
