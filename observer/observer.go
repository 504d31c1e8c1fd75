// Package observer watches events delivered to top-level surfaces on the owner
// context. It logs interesting window events while tracking is enabled and
// times the first rendered frame of every surface against its creation time.
package observer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/st-keller/introspection-agent/state"
	"github.com/st-keller/introspection-agent/toolkit"
)

// ErrAlreadyInstalled is returned when the event filter is registered twice.
var ErrAlreadyInstalled = errors.New("event observer already installed")

// AgeSource reports how long ago an object was created.
type AgeSource interface {
	Age(handle toolkit.Handle) (time.Duration, bool)
}

// Observer is the global event filter. HandleEvent and the signal callbacks
// run on the owner goroutine only.
type Observer struct {
	logger  *slog.Logger
	flags   *state.Flags
	tracker AgeSource

	// seen is append-only for the whole run.
	seen        map[toolkit.Handle]struct{}
	renderTimed map[toolkit.Handle]struct{}

	mu        sync.Mutex
	installed bool
}

// New creates an observer. tracker may be nil, in which case render
// completions are never timed.
func New(logger *slog.Logger, flags *state.Flags, tracker AgeSource) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	if flags == nil {
		flags = &state.Flags{}
	}
	return &Observer{
		logger:      logger,
		flags:       flags,
		tracker:     tracker,
		seen:        make(map[toolkit.Handle]struct{}),
		renderTimed: make(map[toolkit.Handle]struct{}),
	}
}

// Install registers HandleEvent as the host's global event filter. It must be
// called on the owner goroutine.
func (o *Observer) Install(host toolkit.EventFilterRegistrar) error {
	if host == nil {
		return fmt.Errorf("event filter registrar required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.installed {
		return ErrAlreadyInstalled
	}
	if err := host.InstallEventFilter(o.HandleEvent); err != nil {
		return fmt.Errorf("install event filter: %w", err)
	}
	o.installed = true
	return nil
}

// HandleEvent inspects one event. Objects that are not surfaces are ignored.
func (o *Observer) HandleEvent(target toolkit.Object, ev toolkit.Event) {
	surface, ok := target.(toolkit.Surface)
	if !ok {
		return
	}

	if o.flags.TrackWindowEvents() {
		o.logEvent(surface, ev)
	}

	h := surface.Handle()
	if _, seen := o.seen[h]; seen {
		return
	}
	o.seen[h] = struct{}{}
	o.attach(surface)
}

// Seen reports whether the observer has attached to the surface with handle h.
func (o *Observer) Seen(h toolkit.Handle) bool {
	_, ok := o.seen[h]
	return ok
}

// RenderTimed reports whether the first frame of h has been observed.
func (o *Observer) RenderTimed(h toolkit.Handle) bool {
	_, ok := o.renderTimed[h]
	return ok
}

func (o *Observer) logEvent(s toolkit.Surface, ev toolkit.Event) {
	switch ev.Kind {
	case toolkit.EventExpose:
		o.logger.Info("window event", "event", ev.Kind.String(), "title", s.Title(), "exposed", ev.Exposed)
	case toolkit.EventResize, toolkit.EventMove, toolkit.EventReparent:
		o.logger.Info("window event", "event", ev.Kind.String(), "title", s.Title())
	}
}

func (o *Observer) attach(s toolkit.Surface) {
	h := s.Handle()

	var once sync.Once
	var cancel toolkit.Subscription
	cancel = s.OnFrameSwapped(func() {
		once.Do(func() {
			// cancel is assigned before the owner loop can emit the signal.
			if cancel != nil {
				cancel()
			}
			o.renderTimed[h] = struct{}{}
			if o.tracker == nil {
				return
			}
			if age, ok := o.tracker.Age(h); ok {
				o.logger.Info("render completed", "title", s.Title(), "handle", h.String(), "latency", age)
			}
		})
	})

	s.OnScreenChanged(func(screen string) {
		if o.flags.TrackWindowEvents() {
			o.logger.Info("screen changed", "title", s.Title(), "screen", screen)
		}
	})
	s.OnWindowStateChanged(func(ws toolkit.WindowState) {
		if o.flags.TrackWindowEvents() {
			o.logger.Info("window state changed", "title", s.Title(), "state", ws.String())
		}
	})
	s.OnTransientParentChanged(func(parent toolkit.Handle) {
		if o.flags.TrackWindowEvents() {
			o.logger.Info("transient parent changed", "title", s.Title(), "parent", parent.String())
		}
	})
	s.OnVisibleChanged(func(visible bool) {
		if o.flags.TrackWindowEvents() {
			o.logger.Info("visible changed", "title", s.Title(), "visible", visible)
		}
	})
	s.OnVisibilityChanged(func(v toolkit.Visibility) {
		if o.flags.TrackWindowEvents() {
			o.logger.Info("visibility changed", "title", s.Title(), "visibility", v.String())
		}
	})
}
