package toolkit

// EventKind classifies events delivered by the toolkit.
type EventKind int

const (
	EventOther EventKind = iota
	EventExpose
	EventResize
	EventMove
	EventReparent
	EventShow
	EventHide
	EventClose
)

var eventKindNames = map[EventKind]string{
	EventOther:    "other",
	EventExpose:   "expose",
	EventResize:   "resize",
	EventMove:     "move",
	EventReparent: "reparent",
	EventShow:     "show",
	EventHide:     "hide",
	EventClose:    "close",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one event delivered to an object.
// Exposed is only meaningful for EventExpose.
type Event struct {
	Kind    EventKind
	Exposed bool
}

// WindowState is the minimized/maximized/fullscreen state of a window.
type WindowState int

const (
	WindowNoState WindowState = iota
	WindowMinimized
	WindowMaximized
	WindowFullScreen
)

func (s WindowState) String() string {
	switch s {
	case WindowMinimized:
		return "minimized"
	case WindowMaximized:
		return "maximized"
	case WindowFullScreen:
		return "fullscreen"
	default:
		return "normal"
	}
}

// Visibility is the enumerated visibility of a window.
type Visibility int

const (
	Hidden Visibility = iota
	AutomaticVisibility
	Windowed
	Minimized
	Maximized
	FullScreen
)

func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case AutomaticVisibility:
		return "automatic"
	case Windowed:
		return "windowed"
	case Minimized:
		return "minimized"
	case Maximized:
		return "maximized"
	case FullScreen:
		return "fullscreen"
	default:
		return "unknown"
	}
}
