package entity

import (
	"context"
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

// Appliance type codes that get a fan or a light by default.
var (
	DefaultFanTypes   = []int{18}
	DefaultLightTypes = []int{17, 18, 32, 33, 34, 68}
)

// DiscoveryConfig selects which platforms run and which appliance types
// they accept. Empty type lists fall back to the defaults.
type DiscoveryConfig struct {
	BinarySensor bool
	Fan          bool
	Light        bool

	// SensorAspects are the signal keys projected as binary sensors.
	SensorAspects []appliance.Aspect
	FanTypes      []int
	LightTypes    []int
}

// DefaultDiscoveryConfig enables every platform with the default type sets.
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{BinarySensor: true, Fan: true, Light: true}
}

func (c DiscoveryConfig) enabled(p Platform) bool {
	switch p {
	case PlatformBinarySensor:
		return c.BinarySensor
	case PlatformFan:
		return c.Fan
	case PlatformLight:
		return c.Light
	}
	return false
}

// Discoverer creates entities from cached records once at startup and
// registers them with both the Registry and the Host. Aspects that appear
// on a device later are not picked up.
type Discoverer struct {
	registry *Registry
	host     Host
	deps     Deps
	cfg      DiscoveryConfig
	logger   Logger
}

// NewDiscoverer returns a Discoverer. deps is handed to every entity it
// creates.
func NewDiscoverer(registry *Registry, host Host, deps Deps, cfg DiscoveryConfig) *Discoverer {
	deps = deps.withDefaults()
	if len(cfg.SensorAspects) == 0 {
		cfg.SensorAspects = appliance.SignalAspects
	}
	cfg.SensorAspects = mappedAspects(cfg.SensorAspects, deps.Logger)
	if len(cfg.FanTypes) == 0 {
		cfg.FanTypes = DefaultFanTypes
	}
	if len(cfg.LightTypes) == 0 {
		cfg.LightTypes = DefaultLightTypes
	}
	return &Discoverer{
		registry: registry,
		host:     host,
		deps:     deps,
		cfg:      cfg,
		logger:   deps.Logger,
	}
}

// Discover runs every enabled platform over records and returns the number
// of entities registered.
func (d *Discoverer) Discover(ctx context.Context, records []appliance.Record) (int, error) {
	total := 0
	for _, p := range Platforms {
		if !d.cfg.enabled(p) {
			d.logger.Info("platform disabled, skipping discovery", "platform", p)
			continue
		}
		n, err := d.DiscoverPlatform(ctx, p, records)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// DiscoverPlatform creates the entities of one platform. Entities are
// handed to the host one device at a time. A record that cannot produce an
// entity is logged and skipped; only host failures abort.
func (d *Discoverer) DiscoverPlatform(ctx context.Context, p Platform, records []appliance.Record) (int, error) {
	count := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		entities := d.build(p, rec)
		if len(entities) == 0 {
			continue
		}

		added := make([]Entity, 0, len(entities))
		for _, e := range entities {
			if err := d.registry.Add(e); err != nil {
				d.logger.Warn("skipping entity", "entity", e.Key().String(), "error", err)
				continue
			}
			added = append(added, e)
		}
		if len(added) == 0 {
			continue
		}

		if err := d.host.AddEntities(ctx, added); err != nil {
			return count, fmt.Errorf("adding %s entities for device %s: %w", p, rec.Ident.DeviceID, err)
		}
		count += len(added)
	}

	d.logger.Info("platform discovered", "platform", p, "entities", count)
	return count, nil
}

func (d *Discoverer) build(p Platform, rec appliance.Record) []Entity {
	var entities []Entity
	add := func(e Entity, err error) {
		if err != nil {
			d.logger.Warn("cannot create entity",
				"platform", p,
				"device_id", rec.Ident.DeviceID,
				"error", err,
			)
			return
		}
		entities = append(entities, e)
	}

	switch p {
	case PlatformBinarySensor:
		for _, aspect := range d.cfg.SensorAspects {
			if rec.Has(aspect) {
				add(asEntity(NewBinarySensor(rec, aspect, d.deps)))
			}
		}
	case PlatformFan:
		if slices.Contains(d.cfg.FanTypes, rec.Ident.TypeCode) {
			add(asEntity(NewFan(rec, d.deps)))
		}
	case PlatformLight:
		if slices.Contains(d.cfg.LightTypes, rec.Ident.TypeCode) {
			add(asEntity(NewLight(rec, d.deps)))
		}
	default:
		add(nil, fmt.Errorf("%w: platform %q", ErrUnsupported, p))
	}
	return entities
}

// asEntity converts a typed constructor result without boxing a nil
// pointer into a non-nil interface.
func asEntity[T Entity](e T, err error) (Entity, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

// mappedAspects drops aspects without a sensor suffix.
func mappedAspects(aspects []appliance.Aspect, logger Logger) []appliance.Aspect {
	out := make([]appliance.Aspect, 0, len(aspects))
	for _, a := range aspects {
		if _, err := SensorSuffix(a); err != nil {
			logger.Warn("skipping sensor aspect", "aspect", a, "error", err)
			continue
		}
		out = append(out, a)
	}
	return out
}
