// Package sim is an in-memory toolkit: windows, object hooks, event delivery and
// frame swaps, all driven through an owner.Loop. The demo host and the tests
// attach the agent to it.
package sim

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/st-keller/introspection-agent/owner"
	"github.com/st-keller/introspection-agent/toolkit"
)

var (
	errHooksInstalled  = errors.New("object hooks already installed")
	errFilterInstalled = errors.New("event filter already installed")
)

// Toolkit owns the simulated object graph.
type Toolkit struct {
	loop *owner.Loop

	mu        sync.Mutex
	windows   []toolkit.Window
	onCreate  func(toolkit.Handle)
	onDestroy func(toolkit.Handle)
	filter    toolkit.EventFilter

	nextHandle atomic.Uint64
}

var (
	_ toolkit.Toolkit              = (*Toolkit)(nil)
	_ toolkit.HookRegistrar        = (*Toolkit)(nil)
	_ toolkit.EventFilterRegistrar = (*Toolkit)(nil)
)

// New creates a toolkit that delivers events and signals on loop.
func New(loop *owner.Loop) *Toolkit {
	t := &Toolkit{loop: loop}
	t.nextHandle.Store(0x1000)
	return t
}

// Windows returns the top-level windows in creation order.
func (t *Toolkit) Windows() []toolkit.Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]toolkit.Window, len(t.windows))
	copy(out, t.windows)
	return out
}

// InstallObjectHooks implements toolkit.HookRegistrar. Only one pair of hooks
// may be installed.
func (t *Toolkit) InstallObjectHooks(onCreate, onDestroy func(toolkit.Handle)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.onCreate != nil || t.onDestroy != nil {
		return errHooksInstalled
	}
	t.onCreate, t.onDestroy = onCreate, onDestroy
	return nil
}

// InstallEventFilter implements toolkit.EventFilterRegistrar.
func (t *Toolkit) InstallEventFilter(filter toolkit.EventFilter) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filter != nil {
		return errFilterInstalled
	}
	t.filter = filter
	return nil
}

// NewObject constructs a plain, non-window object.
// The construction hook fires on the calling goroutine.
func (t *Toolkit) NewObject() *Object {
	o := &Object{handle: t.allocate()}
	t.created(o.handle)
	return o
}

// NewWindow constructs a top-level window.
func (t *Toolkit) NewWindow(title string, visible bool) *Window {
	w := newWindow(t.allocate(), title, visible)
	t.register(w)
	return w
}

// NewQuickWindow constructs a top-level window with a persistent scene graph,
// enabled by default.
func (t *Toolkit) NewQuickWindow(title string, visible bool) *QuickWindow {
	w := &QuickWindow{Window: newWindow(t.allocate(), title, visible), persistent: true}
	t.register(w)
	return w
}

// Destroy removes obj and fires the destruction hook on the calling goroutine.
func (t *Toolkit) Destroy(obj toolkit.Object) {
	t.mu.Lock()
	for i, w := range t.windows {
		if w.Handle() == obj.Handle() {
			t.windows = append(t.windows[:i], t.windows[i+1:]...)
			break
		}
	}
	onDestroy := t.onDestroy
	t.mu.Unlock()

	if onDestroy != nil {
		onDestroy(obj.Handle())
	}
}

// Deliver posts ev for target to the owner loop, where the installed event
// filter sees it. It reports whether the loop accepted the delivery.
func (t *Toolkit) Deliver(target toolkit.Object, ev toolkit.Event) bool {
	return t.loop.Post(func() {
		t.mu.Lock()
		filter := t.filter
		t.mu.Unlock()
		if filter != nil {
			filter(target, ev)
		}
	})
}

// SwapFrame posts a frame-swapped emission for w to the owner loop.
func (t *Toolkit) SwapFrame(w *Window) bool {
	return t.loop.Post(func() { w.frameSwapped.emit(struct{}{}) })
}

// Show makes w visible and delivers the expose event a real toolkit would send.
func (t *Toolkit) Show(w *Window) bool {
	return t.loop.Post(func() {
		w.Show()
	}) && t.Deliver(w, toolkit.Event{Kind: toolkit.EventExpose, Exposed: true})
}

func (t *Toolkit) allocate() toolkit.Handle {
	return toolkit.Handle(t.nextHandle.Add(0x10))
}

func (t *Toolkit) register(w toolkit.Window) {
	t.mu.Lock()
	t.windows = append(t.windows, w)
	t.mu.Unlock()
	t.created(w.Handle())
}

func (t *Toolkit) created(h toolkit.Handle) {
	t.mu.Lock()
	onCreate := t.onCreate
	t.mu.Unlock()
	if onCreate != nil {
		onCreate(h)
	}
}

// Object is a non-window toolkit object.
type Object struct {
	handle toolkit.Handle
}

// Handle implements toolkit.Object.
func (o *Object) Handle() toolkit.Handle { return o.handle }
