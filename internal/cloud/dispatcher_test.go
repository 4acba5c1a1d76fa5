package cloud

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-appliances/internal/entity"
)

type sentAction struct {
	deviceID string
	body     map[string]any
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentAction
	err   error
	block chan struct{}
}

func (s *fakeSender) SendAction(ctx context.Context, deviceID string, body map[string]any) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentAction{deviceID, body})
	return s.err
}

func (s *fakeSender) Sent() []sentAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentAction(nil), s.sent...)
}

func lightOn(id string) entity.ActionRequest {
	return entity.ActionRequest{DeviceID: id, Body: map[string]any{"light": 1}}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 8, time.Second)

	var mu sync.Mutex
	var delivered []string
	d.SetOnDelivered(func(id string) {
		mu.Lock()
		delivered = append(delivered, id)
		mu.Unlock()
	})

	d.Submit(context.Background(), entity.ActionDomain, entity.ActionService, lightOn("a"))
	d.Submit(context.Background(), entity.ActionDomain, entity.ActionService, lightOn("b"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	assert.Eventually(t, func() bool { return d.Stats().Delivered == 2 }, time.Second, time.Millisecond)

	sent := sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "a", sent[0].deviceID)
	assert.Equal(t, map[string]any{"light": 1}, sent[0].body)
	assert.Equal(t, "b", sent[1].deviceID)

	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, delivered)
	mu.Unlock()
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, 2, time.Second)

	done := make(chan struct{})
	go func() {
		for range 5 {
			d.Submit(context.Background(), entity.ActionDomain, entity.ActionService, lightOn("a"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	stats := d.Stats()
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, uint64(3), stats.Dropped)
}

func TestDispatcher_UnknownServiceDropped(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, 2, time.Second)
	d.Submit(context.Background(), "hue", "action", lightOn("a"))
	d.Submit(context.Background(), entity.ActionDomain, "reboot", lightOn("a"))

	assert.Equal(t, 0, d.Stats().Pending)
	assert.Equal(t, uint64(2), d.Stats().Dropped)
}

func TestDispatcher_FailureCounted(t *testing.T) {
	sender := &fakeSender{err: errors.New("rejected")}
	d := NewDispatcher(sender, 2, time.Second)
	called := false
	d.SetOnDelivered(func(string) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Submit(context.Background(), entity.ActionDomain, entity.ActionService, lightOn("a"))
	assert.Eventually(t, func() bool { return d.Stats().Failed == 1 }, time.Second, time.Millisecond)
	assert.False(t, called)
}

func TestDispatcher_DeliveryOutlivesSubmitContext(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 2, time.Second)

	submitCtx, cancelSubmit := context.WithCancel(context.Background())
	d.Submit(submitCtx, entity.ActionDomain, entity.ActionService, lightOn("a"))
	cancelSubmit()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	assert.Eventually(t, func() bool { return d.Stats().Delivered == 1 }, time.Second, time.Millisecond)
}

func TestDispatcher_Timeout(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	d := NewDispatcher(sender, 2, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Submit(context.Background(), entity.ActionDomain, entity.ActionService, lightOn("a"))
	assert.Eventually(t, func() bool { return d.Stats().Failed == 1 }, time.Second, time.Millisecond)
}

func TestDispatcher_HooksSetWhileRunning(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, 64, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	for range 20 {
		d.Submit(context.Background(), entity.ActionDomain, entity.ActionService, lightOn("a"))
	}

	var mu sync.Mutex
	var seen []string
	d.SetLogger(noopLogger{})
	d.SetOnDelivered(func(id string) {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
	})
	d.Submit(context.Background(), entity.ActionDomain, entity.ActionService, lightOn("b"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == "b"
	}, time.Second, time.Millisecond)
}
