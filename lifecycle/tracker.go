// Package lifecycle tracks creation times of live toolkit objects.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/st-keller/introspection-agent/toolkit"
)

// ErrAlreadyInstalled is returned when the hooks are registered a second time.
var ErrAlreadyInstalled = errors.New("lifecycle hooks already installed")

// Tracker maps live object handles to the time they were constructed.
//
// The host fires the construction hook on whatever goroutine builds the object,
// while render correlation reads from the owner goroutine, so the table is a
// single map behind a mutex rather than one table per creating goroutine.
// A handle is dropped the moment its destruction hook fires.
type Tracker struct {
	mu        sync.Mutex
	created   map[toolkit.Handle]time.Time
	now       func() time.Time
	installed bool
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		created: make(map[toolkit.Handle]time.Time),
		now:     time.Now,
	}
}

// Install registers the construction and destruction hooks with the host.
// Hooks are registered once and never removed.
func (t *Tracker) Install(host toolkit.HookRegistrar) error {
	if host == nil {
		return fmt.Errorf("hook registrar required")
	}

	t.mu.Lock()
	if t.installed {
		t.mu.Unlock()
		return ErrAlreadyInstalled
	}
	t.installed = true
	t.mu.Unlock()

	if err := host.InstallObjectHooks(t.OnCreate, t.OnDestroy); err != nil {
		t.mu.Lock()
		t.installed = false
		t.mu.Unlock()
		return fmt.Errorf("install object hooks: %w", err)
	}
	return nil
}

// OnCreate records the creation time of handle. A handle seen twice keeps its
// first timestamp.
func (t *Tracker) OnCreate(handle toolkit.Handle) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.created[handle]; !exists {
		t.created[handle] = now
	}
}

// OnDestroy forgets handle. Unknown handles are ignored.
func (t *Tracker) OnDestroy(handle toolkit.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.created, handle)
}

// CreatedAt returns the recorded creation time of handle.
func (t *Tracker) CreatedAt(handle toolkit.Handle) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.created[handle]
	return ts, ok
}

// Age returns how long ago handle was created.
func (t *Tracker) Age(handle toolkit.Handle) (time.Duration, bool) {
	created, ok := t.CreatedAt(handle)
	if !ok {
		return 0, false
	}
	return t.now().Sub(created), true
}

// Len returns the number of live tracked handles.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.created)
}
