package cloud

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-appliances/internal/entity"
)

// ActionSender delivers one action to the cloud.
type ActionSender interface {
	SendAction(ctx context.Context, deviceID string, body map[string]any) error
}

type job struct {
	id       string
	deviceID string
	body     map[string]any
	queuedAt time.Time
}

// DispatchStats counts what happened to submitted actions.
type DispatchStats struct {
	Pending   int    `json:"pending"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// Dispatcher queues entity actions and delivers them from one worker.
// It implements entity.Dispatcher.
type Dispatcher struct {
	sender  ActionSender
	queue   chan job
	timeout time.Duration

	mu          sync.RWMutex
	logger      Logger
	onDelivered func(deviceID string)

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	runOnce sync.Once
}

var _ entity.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher holding at most queueSize pending
// actions. timeout bounds each delivery.
func NewDispatcher(sender ActionSender, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		sender:  sender,
		queue:   make(chan job, queueSize),
		timeout: timeout,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.mu.Lock()
	d.logger = logger
	d.mu.Unlock()
}

// SetOnDelivered registers a callback run after the cloud accepts an
// action, typically a poll trigger.
func (d *Dispatcher) SetOnDelivered(fn func(deviceID string)) {
	d.mu.Lock()
	d.onDelivered = fn
	d.mu.Unlock()
}

func (d *Dispatcher) log() Logger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logger
}

// Submit queues an action. It never blocks: when the queue is full the
// action is dropped and logged. ctx is not used for delivery, which
// outlives the caller.
func (d *Dispatcher) Submit(_ context.Context, domain, action string, req entity.ActionRequest) {
	if domain != entity.ActionDomain || action != entity.ActionService {
		d.dropped.Add(1)
		d.log().Warn("dropping action for unknown service", "domain", domain, "action", action)
		return
	}

	j := job{
		id:       uuid.NewString(),
		deviceID: req.DeviceID,
		body:     req.Body,
		queuedAt: time.Now(),
	}

	select {
	case d.queue <- j:
		d.log().Debug("action queued", "request_id", j.id, "device_id", j.deviceID)
	default:
		d.dropped.Add(1)
		d.log().Warn("action queue full, dropping action",
			"request_id", j.id,
			"device_id", j.deviceID,
			"capacity", cap(d.queue),
		)
	}
}

// Run delivers queued actions until ctx is cancelled. Only the first call
// does anything.
func (d *Dispatcher) Run(ctx context.Context) {
	d.runOnce.Do(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-d.queue:
				d.deliver(ctx, j)
			}
		}
	})
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := d.sender.SendAction(sendCtx, j.deviceID, j.body); err != nil {
		d.failed.Add(1)
		d.log().Error("action delivery failed",
			"request_id", j.id,
			"device_id", j.deviceID,
			"error", err,
		)
		return
	}

	d.delivered.Add(1)
	d.log().Info("action delivered",
		"request_id", j.id,
		"device_id", j.deviceID,
		"queued_for", start.Sub(j.queuedAt),
		"took", time.Since(start),
	)
	d.mu.RLock()
	onDelivered := d.onDelivered
	d.mu.RUnlock()
	if onDelivered != nil {
		onDelivered(j.deviceID)
	}
}

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Pending:   len(d.queue),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
