package introspection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/st-keller/introspection-agent/command"
	"github.com/st-keller/introspection-agent/lifecycle"
	"github.com/st-keller/introspection-agent/listener"
	"github.com/st-keller/introspection-agent/logging"
	"github.com/st-keller/introspection-agent/observer"
	"github.com/st-keller/introspection-agent/owner"
	"github.com/st-keller/introspection-agent/standard"
	"github.com/st-keller/introspection-agent/state"
	"github.com/st-keller/introspection-agent/telemetry"
	"github.com/st-keller/introspection-agent/toolkit"
)

// RecentLogSize is how many log records the agent keeps in memory.
const RecentLogSize = 500

// Option customises an Agent.
type Option func(*Agent)

// WithLogOutput sends the primary log to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *Agent) { a.logOutput = w }
}

// WithTracerProvider sets the provider for command spans. The global provider
// is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Agent) { a.tracerProvider = tp }
}

// WithLocations replaces the XDG location resolver used by print_info.
func WithLocations(r toolkit.LocationResolver) Option {
	return func(a *Agent) { a.locations = r }
}

// WithEnviron replaces os.Environ for print_info.
func WithEnviron(fn func() []string) Option {
	return func(a *Agent) { a.environ = fn }
}

// WithRegistry replaces the built-in command registry.
func WithRegistry(r *command.Registry) Option {
	return func(a *Agent) { a.registry = r }
}

// Agent attaches to a host toolkit, listens for commands and runs them on the
// host's owner loop.
type Agent struct {
	cfg  Config
	tk   toolkit.Toolkit
	loop *owner.Loop

	logger *slog.Logger
	mirror *logging.Mirror
	recent *standard.RecentLogs
	tracer trace.Tracer

	flags    *state.Flags
	registry *command.Registry
	tracker  *lifecycle.Tracker
	observer *observer.Observer
	stats    *standard.DispatchStats
	env      *command.Env

	// Option targets
	logOutput      io.Writer
	tracerProvider trace.TracerProvider
	locations      toolkit.LocationResolver
	environ        func() []string

	mu        sync.Mutex
	running   bool
	stopped   bool
	ln        *listener.Listener
	cancel    context.CancelFunc
	listening chan struct{}
	done      chan struct{}
}

// New creates an agent for the host toolkit tk whose owner goroutine runs loop.
func New(cfg Config, tk toolkit.Toolkit, loop *owner.Loop, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if tk == nil {
		return nil, fmt.Errorf("toolkit required")
	}
	if loop == nil {
		return nil, fmt.Errorf("owner loop required")
	}

	a := &Agent{
		cfg:       cfg,
		tk:        tk,
		loop:      loop,
		recent:    standard.NewRecentLogs(RecentLogSize),
		flags:     &state.Flags{},
		tracker:   lifecycle.New(),
		stats:     standard.NewDispatchStats(),
		listening: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	logger, mirror, err := logging.New(logging.Options{
		Level:     cfg.Level(),
		Output:    a.logOutput,
		FilePath:  cfg.LogFile(),
		Blacklist: cfg.Blacklist,
		Extra:     []slog.Handler{a.recent},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	a.logger = logger.With("process", cfg.ProcessName)
	a.mirror = mirror

	if a.tracerProvider == nil {
		a.tracerProvider = otel.GetTracerProvider()
	}
	a.tracer = a.tracerProvider.Tracer(telemetry.TracerName)

	if a.registry == nil {
		a.registry = command.NewRegistry()
	}
	if a.locations == nil {
		a.locations = standard.NewXDGLocations(cfg.ProcessName)
	}
	if a.environ == nil {
		a.environ = os.Environ
	}

	a.observer = observer.New(a.logger, a.flags, a.tracker)
	a.env = &command.Env{
		Toolkit:   tk,
		Locations: a.locations,
		Logger:    a.logger,
		Flags:     a.flags,
		LogFile:   a.mirror,
		Owner:     loop,
		Process:   standard.AutoDetect(cfg.ProcessName),
		Stats:     a.stats,
		Environ:   a.environ,
	}

	a.logger.Info("agent initialized", "socket_dir", cfg.SocketDir, "log_file", mirror.Path())
	return a, nil
}

// Start installs the lifecycle hooks and starts the listener goroutine. The
// listener waits for the owner loop to run before binding the socket. An
// agent runs at most once; Start after Stop returns an error.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return fmt.Errorf("agent stopped")
	}
	if a.running {
		return fmt.Errorf("agent already running")
	}
	a.running = true

	if hooks, ok := a.tk.(toolkit.HookRegistrar); ok {
		if err := a.tracker.Install(hooks); err != nil {
			a.logger.Warn("lifecycle tracking unavailable", "error", err)
		}
	} else {
		a.logger.Warn("lifecycle tracking unavailable", "error", "toolkit has no object hooks")
	}

	ctx, a.cancel = context.WithCancel(ctx)
	go a.run(ctx)
	return nil
}

// Stop closes the listener, waits for the listener goroutine and releases the
// log mirror. It does not stop the owner loop.
func (a *Agent) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.stopped = true
	a.cancel()
	a.mu.Unlock()

	<-a.done
	a.logger.Info("agent stopped")
	return a.mirror.Release()
}

// Listening is closed once the socket is bound.
func (a *Agent) Listening() <-chan struct{} {
	return a.listening
}

// Done is closed when the listener goroutine has exited.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// SocketPath returns the bound socket path, or "" before Listening.
func (a *Agent) SocketPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return ""
	}
	return a.ln.Path()
}

// Logger returns the shared logger.
func (a *Agent) Logger() *slog.Logger { return a.logger }

// RecentLogs returns the in-memory log buffer.
func (a *Agent) RecentLogs() *standard.RecentLogs { return a.recent }

// Flags returns the tracking flags.
func (a *Agent) Flags() *state.Flags { return a.flags }

// Tracker returns the lifecycle tracker.
func (a *Agent) Tracker() *lifecycle.Tracker { return a.tracker }

// Observer returns the render-correlation observer.
func (a *Agent) Observer() *observer.Observer { return a.observer }

// Stats returns per-command dispatch statistics.
func (a *Agent) Stats() *standard.DispatchStats { return a.stats }

// ============================================================================
// LISTENER GOROUTINE
// ============================================================================

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !a.waitForOwner(ctx) {
		a.logger.Info("attach abandoned, owner loop never ran")
		return
	}

	if filters, ok := a.tk.(toolkit.EventFilterRegistrar); ok {
		a.loop.Post(func() {
			if err := a.observer.Install(filters); err != nil {
				a.logger.Warn("render correlation unavailable", "error", err)
			}
		})
	}

	ln, err := listener.Listen(listener.Config{
		Dir:         a.cfg.SocketDir,
		Process:     a.cfg.ProcessName,
		Logger:      a.logger,
		DrainWindow: a.cfg.DrainWindow,
		Rejected:    a.stats.TrackRejected,
	})
	if err != nil {
		a.logger.Error("remote control disabled", "error", err)
		return
	}
	defer ln.Close() //nolint:errcheck

	a.mu.Lock()
	a.ln = ln
	a.mu.Unlock()
	close(a.listening)

	// A quit stops the owner loop while Serve is blocked in accept.
	go closeWhenDone(ctx, a.loop.Done(), ln)

	a.logger.Info("listening", "path", ln.Path())
	if err := ln.Serve(ctx, a.dispatch, a.shouldStop); err != nil {
		a.logger.Error("listener failed", "error", err)
	}
	a.logger.Info("listener stopped")
}

// closeWhenDone closes c once done is closed. It returns without closing when
// ctx ends first.
func closeWhenDone(ctx context.Context, done <-chan struct{}, c io.Closer) {
	select {
	case <-done:
		c.Close() //nolint:errcheck
	case <-ctx.Done():
	}
}

// waitForOwner polls until the owner loop runs. It reports false if the loop
// was torn down or ctx ended first.
func (a *Agent) waitForOwner(ctx context.Context) bool {
	ticker := time.NewTicker(a.cfg.WaitPoll)
	defer ticker.Stop()

	for !a.loop.Running() {
		if !a.loop.Alive() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-a.loop.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func (a *Agent) shouldStop() bool {
	return a.flags.ShouldQuit() || !a.loop.Alive()
}

// ============================================================================
// DISPATCH
// ============================================================================

// dispatch resolves the request on the listener goroutine and posts the
// command to the owner loop. Unknown names are never posted.
func (a *Agent) dispatch(ctx context.Context, req listener.Request) {
	name := req.Command()
	cmd, ok := a.registry.Create(name)
	if !ok {
		a.stats.TrackRejected("unknown_command")
		names := a.registry.Names()
		attrs := []any{"request_id", req.ID, "command", name, "valid", names}
		if s := suggest(name, names); s != "" {
			attrs = append(attrs, "suggestion", s)
		}
		a.logger.Warn("unknown command", attrs...)
		return
	}

	queued := time.Now()
	execCtx := context.WithoutCancel(ctx)
	if !a.loop.Post(func() { a.execute(execCtx, cmd, req, queued) }) {
		a.logger.Info("owner loop gone, command dropped", "request_id", req.ID, "command", name)
	}
}

// execute runs on the owner goroutine.
func (a *Agent) execute(ctx context.Context, cmd command.Command, req listener.Request, queued time.Time) {
	wait := time.Since(queued)
	ctx, span := a.tracer.Start(ctx, "command "+cmd.Name(),
		trace.WithAttributes(
			attribute.String("vasco.command", cmd.Name()),
			attribute.String("vasco.request_id", req.ID),
		),
	)
	defer span.End()

	a.logger.Debug("executing command", "request_id", req.ID, "command", cmd.Name(), "wait", wait)
	start := time.Now()
	err := cmd.Execute(ctx, a.env)
	run := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.stats.TrackFailure(cmd.Name(), wait, run, err.Error())
		a.logger.Error("command failed", "request_id", req.ID, "command", cmd.Name(), "error", err)
		return
	}
	a.stats.TrackSuccess(cmd.Name(), wait, run)
}

// suggest returns the closest valid name if it is plausibly a typo.
func suggest(name string, valid []string) string {
	if name == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, v := range valid {
		d := levenshtein.ComputeDistance(name, v)
		if bestDist < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}
	limit := len(best) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist > limit {
		return ""
	}
	return best
}
