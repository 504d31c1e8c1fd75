package command

import (
	"fmt"
	"sync"
)

// Command names accepted on the channel.
const (
	NameQuit               = "quit"
	NamePrintWindows       = "print_windows"
	NameHideWindows        = "hide_windows"
	NameSetPersistentFalse = "set_persistent_windows_false"
	NamePrintInfo          = "print_info"
	NameTrackWindowEvents  = "track_window_events"
)

// Registry maps command names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry returns a registry holding the built-in commands.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, b := range builtins() {
		if err := r.Register(b.name, b.factory); err != nil {
			panic(err)
		}
	}
	return r
}

// NewEmptyRegistry returns a registry with no commands.
func NewEmptyRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named factory.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("command name required")
	}
	if factory == nil {
		return fmt.Errorf("factory required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.factories[name] != nil {
		return fmt.Errorf("command %s already registered", name)
	}
	r.factories[name] = factory
	r.order = append(r.order, name)
	return nil
}

// Create constructs the command registered under name. It reports false for
// names that are not registered.
func (r *Registry) Create(name string) (Command, bool) {
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()

	if factory == nil {
		return nil, false
	}
	return factory(), true
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// DefaultNames returns the built-in command names.
func DefaultNames() []string {
	bs := builtins()
	names := make([]string, len(bs))
	for i, b := range bs {
		names[i] = b.name
	}
	return names
}

type builtin struct {
	name    string
	factory Factory
}

func builtins() []builtin {
	return []builtin{
		{NameQuit, func() Command { return Quit{} }},
		{NamePrintWindows, func() Command { return ListWindows{} }},
		{NameHideWindows, func() Command { return HideWindows{} }},
		{NameSetPersistentFalse, func() Command { return ClearPersistentFlag{} }},
		{NamePrintInfo, func() Command { return DumpEnvironmentInfo{} }},
		{NameTrackWindowEvents, func() Command { return ToggleEventTracking{} }},
	}
}
