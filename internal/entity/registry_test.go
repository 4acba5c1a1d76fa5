package entity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

func newLight(t *testing.T, deps Deps, id string) *Light {
	t.Helper()
	l, err := NewLight(hood(id, ""), deps)
	require.NoError(t, err)
	return l
}

func TestRegistry_AddGetList(t *testing.T) {
	deps, _ := newDeps(appliance.NewCache())
	r := NewRegistry()

	a := newLight(t, deps, "a")
	b := newLight(t, deps, "b")
	f, err := NewFan(hood("a", ""), deps)
	require.NoError(t, err)

	require.NoError(t, r.Add(b))
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(f))

	assert.ErrorIs(t, r.Add(newLight(t, deps, "a")), ErrDuplicateEntity)

	got, err := r.Get(Key{PlatformLight, "a"})
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Get(Key{PlatformLight, "zzz"})
	assert.ErrorIs(t, err, ErrNotFound)

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "b", list[0].UniqueID())
	assert.Equal(t, "a", list[1].UniqueID())

	assert.Len(t, r.ListByPlatform(PlatformLight), 2)
	assert.Len(t, r.ListByDevice("a"), 2)
	assert.Len(t, r.Snapshots(), 3)

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.List())
}

func TestRegistry_PushAll(t *testing.T) {
	cache := appliance.NewCache()
	deps, _ := newDeps(cache)
	r := NewRegistry()
	r.SetConcurrency(2)

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, cache.Put(hood(id, "")))
		require.NoError(t, r.Add(newLight(t, deps, id)))
	}

	// Light 2 goes off in the cloud.
	rec := hood("2", "")
	rec.State.Light = intPtr(LightOff)
	require.NoError(t, cache.Put(rec))

	host := newFakeHost()
	require.NoError(t, r.PushAll(context.Background(), host))

	published := host.Published()
	require.Len(t, published, 3)
	for _, s := range published {
		assert.Equal(t, s.UniqueID != "2", s.IsOn, s.UniqueID)
	}
}

func TestRegistry_PushAllSkipsUnregistered(t *testing.T) {
	cache := appliance.NewCache()
	deps, _ := newDeps(cache)
	logger := &recordingLogger{}
	r := NewRegistry()
	r.SetLogger(logger)

	require.NoError(t, r.Add(newLight(t, deps, "1")))
	require.NoError(t, r.Add(newLight(t, deps, "2")))

	host := newFakeHost()
	host.unregistered[Key{PlatformLight, "1"}] = true

	require.NoError(t, r.PushAll(context.Background(), host))

	published := host.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "2", published[0].UniqueID)
	assert.Contains(t, logger.Debugs(), "entity not registered with host, skipping state push")
}

func TestRegistry_PushAllLogsPublishErrors(t *testing.T) {
	deps, _ := newDeps(appliance.NewCache())
	logger := &recordingLogger{}
	r := NewRegistry()
	r.SetLogger(logger)
	require.NoError(t, r.Add(newLight(t, deps, "1")))

	host := newFakeHost()
	host.publishErr = errors.New("not connected")

	assert.NoError(t, r.PushAll(context.Background(), host))
	assert.Len(t, logger.errors, 1)
}

func TestRegistry_PushAllCancelled(t *testing.T) {
	deps, _ := newDeps(appliance.NewCache())
	r := NewRegistry()
	require.NoError(t, r.Add(newLight(t, deps, "1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	host := newFakeHost()
	assert.ErrorIs(t, r.PushAll(ctx, host), context.Canceled)
	assert.Empty(t, host.Published())
}

// countingHost counts publishes so RunUpdates can be observed.
type countingHost struct {
	*fakeHost
	n atomic.Int32
}

func (h *countingHost) PublishState(ctx context.Context, s Snapshot) error {
	h.n.Add(1)
	return h.fakeHost.PublishState(ctx, s)
}

func TestRegistry_RunUpdates(t *testing.T) {
	deps, _ := newDeps(appliance.NewCache())
	r := NewRegistry()
	require.NoError(t, r.Add(newLight(t, deps, "1")))

	host := &countingHost{fakeHost: newFakeHost()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.RunUpdates(ctx, host, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return host.n.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunUpdates did not return after cancel")
	}
}

func TestRegistry_SetLoggerWhilePushing(t *testing.T) {
	deps, _ := newDeps(appliance.NewCache())
	r := NewRegistry()
	for _, id := range []string{"1", "2", "3", "4"} {
		require.NoError(t, r.Add(newLight(t, deps, id)))
	}

	host := newFakeHost()
	for _, e := range r.List() {
		host.unregistered[e.Key()] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			r.SetLogger(&recordingLogger{})
		}
	}()
	for range 50 {
		require.NoError(t, r.PushAll(context.Background(), host))
	}
	<-done

	logger := &recordingLogger{}
	r.SetLogger(logger)
	require.NoError(t, r.PushAll(context.Background(), host))
	assert.Len(t, logger.Debugs(), 4)
}
