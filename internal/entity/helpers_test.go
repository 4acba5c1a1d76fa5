package entity

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func hood(id, name string) appliance.Record {
	return appliance.Record{
		Ident: appliance.Ident{DeviceID: id, Name: name, TypeCode: 18, TypeName: "Cooker Hood"},
		State: appliance.State{
			Status:          intPtr(5),
			VentilationStep: intPtr(2),
			Light:           intPtr(1),
		},
	}
}

func oven(id, name string) appliance.Record {
	return appliance.Record{
		Ident: appliance.Ident{DeviceID: id, Name: name, TypeCode: 12, TypeName: "Oven"},
		State: appliance.State{
			Status:        intPtr(1),
			SignalInfo:    boolPtr(false),
			SignalFailure: boolPtr(true),
			SignalDoor:    boolPtr(true),
		},
	}
}

type dispatchCall struct {
	Domain string
	Action string
	Req    ActionRequest
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *recordingDispatcher) Submit(_ context.Context, domain, action string, req ActionRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{Domain: domain, Action: action, Req: req})
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

type fakeHost struct {
	mu           sync.Mutex
	batches      [][]Key
	published    []Snapshot
	unregistered map[Key]bool
	addErr       error
	publishErr   error
}

func newFakeHost() *fakeHost {
	return &fakeHost{unregistered: make(map[Key]bool)}
}

func (h *fakeHost) AddEntities(_ context.Context, entities []Entity) error {
	if h.addErr != nil {
		return h.addErr
	}
	keys := make([]Key, 0, len(entities))
	for _, e := range entities {
		keys = append(keys, e.Key())
	}
	h.mu.Lock()
	h.batches = append(h.batches, keys)
	h.mu.Unlock()
	return nil
}

func (h *fakeHost) IsRegistered(key Key) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.unregistered[key]
}

func (h *fakeHost) PublishState(_ context.Context, s Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, s)
	return h.publishErr
}

func (h *fakeHost) Published() []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Snapshot(nil), h.published...)
}

// recordingLogger keeps debug and warn messages.
type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
	warns  []string
	errors []string
}

func (l *recordingLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	l.debugs = append(l.debugs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debugs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.debugs...)
}

func (l *recordingLogger) Warns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func newDeps(cache *appliance.Cache) (Deps, *recordingDispatcher) {
	d := &recordingDispatcher{}
	return Deps{Source: cache, Dispatcher: d}, d
}
