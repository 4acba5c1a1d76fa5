package cloud

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

// Fetcher returns the current device list.
type Fetcher interface {
	FetchDevices(ctx context.Context) ([]appliance.Record, map[string]error, error)
}

// PollerConfig controls the poll cadence and the retry backoff.
type PollerConfig struct {
	Interval   time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Multiplier float64
}

// PollStatus describes the poller's recent history.
type PollStatus struct {
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Devices             int       `json:"devices"`
}

// Poller is the single writer of the appliance cache.
type Poller struct {
	fetcher Fetcher
	cache   *appliance.Cache
	cfg     PollerConfig
	trigger chan struct{}

	mu        sync.RWMutex
	status    PollStatus
	logger    Logger
	onRefresh func(ctx context.Context)
}

// NewPoller creates a poller writing into cache.
func NewPoller(fetcher Fetcher, cache *appliance.Cache, cfg PollerConfig) *Poller {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = cfg.Interval
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	return &Poller{
		fetcher: fetcher,
		cache:   cache,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	p.mu.Lock()
	p.logger = logger
	p.mu.Unlock()
}

// SetOnRefresh registers a callback run after every successful poll. It
// is where entities get refreshed and pushed.
func (p *Poller) SetOnRefresh(fn func(ctx context.Context)) {
	p.mu.Lock()
	p.onRefresh = fn
	p.mu.Unlock()
}

func (p *Poller) log() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// Trigger requests a poll as soon as possible. Calls made while one is
// already pending are coalesced.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Status returns a copy of the poll history.
func (p *Poller) Status() PollStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// PollOnce fetches the device list and replaces the cache contents. On
// failure the cache keeps its previous contents.
func (p *Poller) PollOnce(ctx context.Context) error {
	records, skipped, err := p.fetcher.FetchDevices(ctx)
	if err != nil {
		p.mu.Lock()
		p.status.LastError = err.Error()
		p.status.ConsecutiveFailures++
		p.mu.Unlock()
		return err
	}

	for key, skipErr := range skipped {
		p.log().Warn("skipping appliance record", "key", key, "error", skipErr)
	}

	p.cache.ReplaceAll(records)

	p.mu.Lock()
	p.status = PollStatus{
		LastSuccess: time.Now(),
		Devices:     len(records),
	}
	onRefresh := p.onRefresh
	p.mu.Unlock()

	p.log().Debug("appliances polled", "devices", len(records), "skipped", len(skipped))

	if onRefresh != nil {
		onRefresh(ctx)
	}
	return nil
}

// PollUntilReady blocks until one poll succeeds, retrying with the same
// backoff as Run. A rejected token is returned at once since retrying
// cannot fix it.
func (p *Poller) PollUntilReady(ctx context.Context) error {
	backoff := p.cfg.MinBackoff
	for {
		err := p.PollOnce(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log().Warn("initial appliance poll failed, retrying",
			"error", err,
			"retry_in", backoff,
			"failures", p.Status().ConsecutiveFailures,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-p.trigger:
			timer.Stop()
		}
		backoff = p.nextBackoff(backoff)
	}
}

func (p *Poller) nextBackoff(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * p.cfg.Multiplier)
	if next > p.cfg.MaxBackoff {
		next = p.cfg.MaxBackoff
	}
	return next
}

// Run polls immediately, then every Interval, until ctx is cancelled.
// While polls fail the wait grows from MinBackoff towards MaxBackoff; a
// success resets it. Trigger cuts any wait short.
func (p *Poller) Run(ctx context.Context) {
	backoff := p.cfg.MinBackoff

	for {
		wait := p.cfg.Interval
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = backoff
			p.log().Warn("appliance poll failed, keeping last known state",
				"error", err,
				"retry_in", wait,
				"failures", p.Status().ConsecutiveFailures,
			)
			backoff = p.nextBackoff(backoff)
		} else {
			backoff = p.cfg.MinBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-p.trigger:
			timer.Stop()
		}
	}
}
