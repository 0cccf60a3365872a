package routing

import (
	"context"
	"strings"
	"sync"
)

// WaitKwarg is the kwargs key a caller uses to hand a WaitEvent to the router.
const WaitKwarg = "wait_event"

// WaitEvent is a one-shot completion signal for a forwarded request.
type WaitEvent struct {
	once sync.Once
	ch   chan struct{}
}

func NewWaitEvent() *WaitEvent {
	return &WaitEvent{ch: make(chan struct{})}
}

// Set releases every waiter. Calling Set more than once is a no-op.
func (w *WaitEvent) Set() {
	w.once.Do(func() { close(w.ch) })
}

func (w *WaitEvent) Done() <-chan struct{} {
	return w.ch
}

// Wait blocks until Set is called or ctx ends.
func (w *WaitEvent) Wait(ctx context.Context) error {
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitMap tracks WaitEvents by request id until the request completes.
type WaitMap struct {
	mu     sync.Mutex
	events map[string]*WaitEvent
}

func NewWaitMap() *WaitMap {
	return &WaitMap{events: make(map[string]*WaitEvent)}
}

func (m *WaitMap) Register(requestID string, w *WaitEvent) {
	key := strings.TrimSpace(requestID)
	if key == "" || w == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[key] = w
}

// Complete signals and forgets the WaitEvent for requestID.
func (m *WaitMap) Complete(requestID string) bool {
	key := strings.TrimSpace(requestID)
	m.mu.Lock()
	w, ok := m.events[key]
	delete(m.events, key)
	m.mu.Unlock()
	if ok {
		w.Set()
	}
	return ok
}

// Forget drops the WaitEvent for requestID without signalling it.
func (m *WaitMap) Forget(requestID string) bool {
	key := strings.TrimSpace(requestID)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[key]
	delete(m.events, key)
	return ok
}

func (m *WaitMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
