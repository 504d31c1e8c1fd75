package command

import (
	"context"
	"fmt"
	"os"

	"github.com/st-keller/introspection-agent/toolkit"
)

// Quit stops remote control and asks the owner context to shut down.
type Quit struct{}

func (Quit) Name() string { return NameQuit }

// Execute sets the quit flag, releases the log file and then requests owner
// shutdown, in that order.
func (Quit) Execute(_ context.Context, env *Env) error {
	env.Flags.RequestQuit()
	env.logger().Info("quit requested")

	var releaseErr error
	if env.LogFile != nil {
		if err := env.LogFile.Release(); err != nil {
			releaseErr = fmt.Errorf("release log file: %w", err)
		}
	}
	if env.Owner != nil {
		env.Owner.Quit()
	}
	return releaseErr
}

// ListWindows logs every top-level window.
type ListWindows struct{}

func (ListWindows) Name() string { return NamePrintWindows }

func (ListWindows) Execute(_ context.Context, env *Env) error {
	log := env.logger()
	windows := env.Toolkit.Windows()
	log.Info("printing windows", "count", len(windows))
	for _, w := range windows {
		log.Info("window",
			"title", w.Title(),
			"visible", w.IsVisible(),
			"handle", w.Handle().String(),
			"geometry", w.Geometry().String(),
		)
	}
	return nil
}

// HideWindows hides every top-level window.
type HideWindows struct{}

func (HideWindows) Name() string { return NameHideWindows }

func (HideWindows) Execute(_ context.Context, env *Env) error {
	log := env.logger()
	log.Info("hiding windows")
	for _, w := range env.Toolkit.Windows() {
		w.Hide()
		log.Info("window hidden", "title", w.Title(), "visible", w.IsVisible())
	}
	return nil
}

// ClearPersistentFlag turns off the persistent scene graph on every window
// that has one. Other windows are skipped.
type ClearPersistentFlag struct{}

func (ClearPersistentFlag) Name() string { return NameSetPersistentFalse }

func (ClearPersistentFlag) Execute(_ context.Context, env *Env) error {
	log := env.logger()
	log.Info("clearing persistent scene graph")
	for _, w := range env.Toolkit.Windows() {
		sw, ok := w.(toolkit.PersistentSceneWindow)
		if !ok {
			continue
		}
		sw.SetPersistentSceneGraph(false)
		log.Info("persistent scene graph cleared", "title", w.Title())
	}
	return nil
}

// DumpEnvironmentInfo logs standard locations, process details and the
// process environment. Read-only.
type DumpEnvironmentInfo struct{}

func (DumpEnvironmentInfo) Name() string { return NamePrintInfo }

func (DumpEnvironmentInfo) Execute(_ context.Context, env *Env) error {
	log := env.logger()

	if env.Locations != nil {
		log.Info("printing standard locations")
		for _, loc := range env.Locations.Categories() {
			log.Info("standard location", "category", string(loc), "paths", env.Locations.Candidates(loc))
			log.Info("writable location", "category", string(loc), "path", env.Locations.Writable(loc))
		}
	}

	if env.Process != nil {
		log.Info("process info", "process", env.Process.GetData())
	}
	if env.Stats != nil {
		log.Info("dispatch stats", "stats", env.Stats.GetData())
	}

	environ := env.Environ
	if environ == nil {
		environ = os.Environ
	}
	vars := environ()
	log.Info("environment variables", "count", len(vars))
	for _, kv := range vars {
		log.Info("env", "var", kv)
	}
	return nil
}

// ToggleEventTracking enables window event logging. There is no command that
// disables it again.
type ToggleEventTracking struct{}

func (ToggleEventTracking) Name() string { return NameTrackWindowEvents }

func (ToggleEventTracking) Execute(_ context.Context, env *Env) error {
	env.Flags.SetTrackWindowEvents(true)
	env.logger().Info("window event tracking enabled")
	return nil
}
