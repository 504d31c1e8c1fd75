// Package state holds the process-wide tracking flags shared by the listener,
// the commands and the event observer.
package state

import "sync/atomic"

// Flags are written by commands on the owner context and read from any goroutine.
type Flags struct {
	shouldQuit        atomic.Bool
	trackWindowEvents atomic.Bool
}

// RequestQuit sets ShouldQuit. The flag is never reset.
func (f *Flags) RequestQuit() {
	f.shouldQuit.Store(true)
}

// ShouldQuit reports whether a quit command has executed.
func (f *Flags) ShouldQuit() bool {
	return f.shouldQuit.Load()
}

// SetTrackWindowEvents enables or disables window event logging.
func (f *Flags) SetTrackWindowEvents(enabled bool) {
	f.trackWindowEvents.Store(enabled)
}

// TrackWindowEvents reports whether window event logging is enabled.
func (f *Flags) TrackWindowEvents() bool {
	return f.trackWindowEvents.Load()
}
