package sim

import (
	"sync"

	"github.com/st-keller/introspection-agent/toolkit"
)

// Window is a simulated top-level surface. Setters emit the matching signals
// synchronously and are meant to be called on the owner loop.
type Window struct {
	handle toolkit.Handle

	mu       sync.Mutex
	title    string
	visible  bool
	geometry toolkit.Rect
	screen   string
	state    toolkit.WindowState
	parent   toolkit.Handle

	screenChanged    signal[string]
	stateChanged     signal[toolkit.WindowState]
	parentChanged    signal[toolkit.Handle]
	visibleChanged   signal[bool]
	visibilityChange signal[toolkit.Visibility]
	frameSwapped     signal[struct{}]
}

var _ toolkit.Surface = (*Window)(nil)

func newWindow(h toolkit.Handle, title string, visible bool) *Window {
	return &Window{
		handle:   h,
		title:    title,
		visible:  visible,
		geometry: toolkit.Rect{Width: 640, Height: 480},
		screen:   "primary",
	}
}

func (w *Window) Handle() toolkit.Handle { return w.handle }

func (w *Window) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

func (w *Window) IsVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *Window) Geometry() toolkit.Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.geometry
}

// Hide makes the window invisible.
func (w *Window) Hide() { w.setVisible(false) }

// Show makes the window visible.
func (w *Window) Show() { w.setVisible(true) }

func (w *Window) setVisible(visible bool) {
	w.mu.Lock()
	changed := w.visible != visible
	w.visible = visible
	w.mu.Unlock()
	if !changed {
		return
	}

	w.visibleChanged.emit(visible)
	if visible {
		w.visibilityChange.emit(toolkit.Windowed)
	} else {
		w.visibilityChange.emit(toolkit.Hidden)
	}
}

// SetGeometry moves and resizes the window.
func (w *Window) SetGeometry(r toolkit.Rect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.geometry = r
}

// SetScreen moves the window to another screen.
func (w *Window) SetScreen(screen string) {
	w.mu.Lock()
	w.screen = screen
	w.mu.Unlock()
	w.screenChanged.emit(screen)
}

// SetWindowState changes the window state.
func (w *Window) SetWindowState(state toolkit.WindowState) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
	w.stateChanged.emit(state)
}

// SetTransientParent changes the transient parent.
func (w *Window) SetTransientParent(parent toolkit.Handle) {
	w.mu.Lock()
	w.parent = parent
	w.mu.Unlock()
	w.parentChanged.emit(parent)
}

func (w *Window) OnScreenChanged(fn func(string)) toolkit.Subscription {
	return w.screenChanged.connect(fn)
}

func (w *Window) OnWindowStateChanged(fn func(toolkit.WindowState)) toolkit.Subscription {
	return w.stateChanged.connect(fn)
}

func (w *Window) OnTransientParentChanged(fn func(toolkit.Handle)) toolkit.Subscription {
	return w.parentChanged.connect(fn)
}

func (w *Window) OnVisibleChanged(fn func(bool)) toolkit.Subscription {
	return w.visibleChanged.connect(fn)
}

func (w *Window) OnVisibilityChanged(fn func(toolkit.Visibility)) toolkit.Subscription {
	return w.visibilityChange.connect(fn)
}

func (w *Window) OnFrameSwapped(fn func()) toolkit.Subscription {
	return w.frameSwapped.connect(func(struct{}) { fn() })
}

// FrameSwappedSubscribers reports how many slots are connected to the
// frame-swapped signal.
func (w *Window) FrameSwappedSubscribers() int {
	return w.frameSwapped.len()
}

// QuickWindow is a window with a persistent scene graph setting.
type QuickWindow struct {
	*Window

	pmu        sync.Mutex
	persistent bool
}

var _ toolkit.PersistentSceneWindow = (*QuickWindow)(nil)

func (q *QuickWindow) PersistentSceneGraph() bool {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	return q.persistent
}

func (q *QuickWindow) SetPersistentSceneGraph(persistent bool) {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	q.persistent = persistent
}
