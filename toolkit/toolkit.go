// Package toolkit defines the host toolkit surface the agent consumes.
// The agent never implements windows or objects itself; it only calls into them.
package toolkit

import "fmt"

// Handle is the opaque identity of a live toolkit object.
// The agent associates data with a Handle but never owns the object behind it.
type Handle uint64

// String formats the handle the way pointers are usually printed in host logs.
func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uint64(h))
}

// Rect is a window geometry in screen coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// Object is anything the toolkit constructs and destroys.
type Object interface {
	Handle() Handle
}

// Window is a top-level window. Methods must be called on the owner context.
type Window interface {
	Object
	Title() string
	IsVisible() bool
	Geometry() Rect
	Hide()
}

// PersistentSceneWindow is implemented by windows that keep cached render
// state across frames. Windows without the capability do not implement it.
type PersistentSceneWindow interface {
	Window
	PersistentSceneGraph() bool
	SetPersistentSceneGraph(persistent bool)
}

// Toolkit enumerates the host's top-level windows.
type Toolkit interface {
	Windows() []Window
}

// HookRegistrar is the host's global construction/destruction hook point.
// Hooks may fire on any goroutine. Registration happens once and is never undone.
type HookRegistrar interface {
	InstallObjectHooks(onCreate, onDestroy func(Handle)) error
}

// EventFilter receives every event delivered to any object on the owner context.
type EventFilter func(target Object, ev Event)

// EventFilterRegistrar is the host's global event-monitor hook point.
type EventFilterRegistrar interface {
	InstallEventFilter(filter EventFilter) error
}

// Subscription cancels a signal connection. Calling it more than once is allowed.
type Subscription func()

// Surface is a top-level window exposing per-surface signals.
// Callbacks fire on the owner context.
type Surface interface {
	Window
	OnScreenChanged(fn func(screen string)) Subscription
	OnWindowStateChanged(fn func(state WindowState)) Subscription
	OnTransientParentChanged(fn func(parent Handle)) Subscription
	OnVisibleChanged(fn func(visible bool)) Subscription
	OnVisibilityChanged(fn func(v Visibility)) Subscription
	OnFrameSwapped(fn func()) Subscription
}

// LocationResolver resolves well-known filesystem location categories.
type LocationResolver interface {
	Categories() []Location
	Candidates(loc Location) []string
	Writable(loc Location) string
}

// Location names a filesystem location category such as "desktop" or "cache".
type Location string
