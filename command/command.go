// Package command implements the agent's remote commands and the registry
// that constructs them by name.
package command

import (
	"context"
	"log/slog"

	"github.com/st-keller/introspection-agent/standard"
	"github.com/st-keller/introspection-agent/state"
	"github.com/st-keller/introspection-agent/toolkit"
)

// Command is a named, zero-argument unit of work. Constructing a Command has no
// side effects; Execute does, and must only be called on the owner context.
type Command interface {
	Name() string
	Execute(ctx context.Context, env *Env) error
}

// Factory constructs a fresh Command.
type Factory func() Command

// Releaser releases the log file mirror.
type Releaser interface {
	Release() error
}

// Quitter requests shutdown of the owner context.
type Quitter interface {
	Quit()
}

// Env is everything a command may touch while it runs on the owner context.
type Env struct {
	Toolkit   toolkit.Toolkit
	Locations toolkit.LocationResolver
	Logger    *slog.Logger
	Flags     *state.Flags
	LogFile   Releaser
	Owner     Quitter

	// Optional diagnostics reported by print_info.
	Process *standard.ProcessInfo
	Stats   *standard.DispatchStats
	Environ func() []string
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
