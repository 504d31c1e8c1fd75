package introspection

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/net/nettest"

	"github.com/st-keller/introspection-agent/command"
	"github.com/st-keller/introspection-agent/listener"
	"github.com/st-keller/introspection-agent/owner"
	"github.com/st-keller/introspection-agent/standard"
	"github.com/st-keller/introspection-agent/toolkit/sim"
)

type harness struct {
	agent    *Agent
	loop     *owner.Loop
	tk       *sim.Toolkit
	spans    *tracetest.SpanRecorder
	logFile  string
	loopDone chan error
}

func testConfig(t *testing.T) Config {
	t.Helper()
	if !nettest.TestableNetwork("unix") {
		t.Skip("unix sockets not available")
	}
	dir, err := os.MkdirTemp("", "vasco")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	return Config{
		ProcessName: "host",
		SocketDir:   dir,
		LogDir:      t.TempDir(),
		LogLevel:    "debug",
		Blacklist:   DefaultBlacklist,
		WaitPoll:    5 * time.Millisecond,
		DrainWindow: 20 * time.Millisecond,
	}
}

// startHarness starts the agent first and the owner loop second, the way an
// agent attached to a host that is still starting up sees it.
func startHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig(t)
	loop := owner.New()
	tk := sim.New(loop)
	spans := tracetest.NewSpanRecorder()

	a, err := New(cfg, tk, loop,
		WithLogOutput(io.Discard),
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
		WithEnviron(func() []string { return []string{"VASCO_TEST=1"} }),
	)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	h := &harness{
		agent:    a,
		loop:     loop,
		tk:       tk,
		spans:    spans,
		logFile:  cfg.LogFile(),
		loopDone: make(chan error, 1),
	}
	go func() { h.loopDone <- loop.Run(context.Background()) }()
	t.Cleanup(func() {
		loop.Quit()
		a.Stop() //nolint:errcheck
	})

	select {
	case <-a.Listening():
	case <-a.Done():
		t.Fatal("agent exited before listening")
	case <-time.After(2 * time.Second):
		t.Fatal("agent never started listening")
	}
	return h
}

func (h *harness) send(t *testing.T, payload string) {
	t.Helper()
	conn, err := net.Dial("unix", h.agent.SocketPath())
	require.NoError(t, err)
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

// run sends name and waits until it has executed n times in total.
func (h *harness) run(t *testing.T, name string, n int) {
	t.Helper()
	h.send(t, name)
	require.Eventually(t, func() bool { return h.agent.Stats().Count(name) >= n },
		2*time.Second, 5*time.Millisecond, "command %s never executed", name)
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	require.True(t, h.loop.Post(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("owner loop stalled")
	}
}

func (h *harness) logs() *standard.RecentLogs {
	return h.agent.RecentLogs()
}

func windowLines(entries []standard.LogEntry) []standard.LogEntry {
	var out []standard.LogEntry
	for _, e := range entries {
		if e.Message == "window" {
			out = append(out, e)
		}
	}
	return out
}

func TestNewValidatesInputs(t *testing.T) {
	loop := owner.New()
	tk := sim.New(loop)
	cfg := Config{ProcessName: "host", SocketDir: "/tmp", LogLevel: "info", WaitPoll: time.Second}

	_, err := New(Config{SocketDir: "/tmp", LogLevel: "info", WaitPoll: time.Second}, tk, loop)
	assert.ErrorContains(t, err, "ProcessName required")
	_, err = New(cfg, nil, loop)
	assert.EqualError(t, err, "toolkit required")
	_, err = New(cfg, tk, nil)
	assert.EqualError(t, err, "owner loop required")

	cfg.LogLevel = "loud"
	_, err = New(cfg, tk, loop)
	assert.ErrorContains(t, err, "parse log level")
}

func TestScenarioPrintWindows(t *testing.T) {
	h := startHarness(t)
	h.tk.NewWindow("A", true)
	h.tk.NewWindow("B", false)

	h.run(t, command.NamePrintWindows, 1)

	lines := windowLines(h.logs().Entries())
	require.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0].Attr("title"))
	assert.Equal(t, "true", lines[0].Attr("visible"))
	assert.Equal(t, "B", lines[1].Attr("title"))
	assert.Equal(t, "false", lines[1].Attr("visible"))
}

func TestScenarioHideThenPrint(t *testing.T) {
	h := startHarness(t)
	h.tk.NewWindow("A", true)
	h.tk.NewWindow("B", false)

	h.run(t, command.NameHideWindows, 1)
	h.run(t, command.NamePrintWindows, 1)

	lines := windowLines(h.logs().Entries())
	require.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0].Attr("title"))
	assert.Equal(t, "false", lines[0].Attr("visible"))
	assert.Equal(t, "false", lines[1].Attr("visible"))
}

func TestScenarioOversizedPayload(t *testing.T) {
	h := startHarness(t)
	h.tk.NewWindow("A", true)

	h.send(t, strings.Repeat("p", 150))
	require.Eventually(t, func() bool { return h.agent.Stats().Rejected(listener.ReasonTooLarge) == 1 },
		2*time.Second, 5*time.Millisecond)
	h.run(t, command.NamePrintInfo, 1)

	assert.Len(t, h.logs().Matching("payload rejected"), 1)
	assert.Empty(t, windowLines(h.logs().Entries()))
	assert.True(t, h.tk.Windows()[0].IsVisible())
	assert.Len(t, h.spans.Ended(), 1)
}

func TestScenarioQuit(t *testing.T) {
	h := startHarness(t)

	h.run(t, command.NameQuit, 1)

	select {
	case err := <-h.loopDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("owner loop did not stop")
	}
	select {
	case <-h.agent.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not exit")
	}

	assert.True(t, h.agent.Flags().ShouldQuit())
	assert.True(t, h.agent.mirror.Released())
	_, err := net.Dial("unix", filepath.Join(h.agent.cfg.SocketDir, listener.PipeName("host")))
	assert.Error(t, err, "socket must be gone after quit")

	data, err := os.ReadFile(h.logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "quit requested")
	assert.NotContains(t, string(data), "listener stopped")
	assert.Len(t, h.logs().Matching("listener stopped"), 1)
}

func TestScenarioUnknownCommand(t *testing.T) {
	h := startHarness(t)

	h.send(t, "bogus_command")
	h.send(t, "print_window")
	require.Eventually(t, func() bool { return len(h.logs().Matching("unknown command")) == 2 },
		2*time.Second, 5*time.Millisecond)
	h.drain(t)

	unknown := h.logs().Matching("unknown command")
	assert.Equal(t, "bogus_command", unknown[0].Attr("command"))
	assert.Equal(t, command.DefaultNames(), unknown[0].Context["valid"])
	assert.Empty(t, unknown[0].Attr("suggestion"))
	assert.Equal(t, command.NamePrintWindows, unknown[1].Attr("suggestion"))

	assert.Equal(t, 2, h.agent.Stats().Rejected("unknown_command"))
	assert.Empty(t, h.spans.Ended())
}

func TestCommandsRunInAcceptOrder(t *testing.T) {
	h := startHarness(t)
	names := []string{
		command.NameTrackWindowEvents,
		command.NamePrintWindows,
		command.NameSetPersistentFalse,
		command.NameHideWindows,
		command.NamePrintInfo,
	}

	for _, name := range names {
		h.send(t, name)
	}
	require.Eventually(t, func() bool { return len(h.spans.Ended()) == len(names) },
		2*time.Second, 5*time.Millisecond)

	ended := h.spans.Ended()
	for i, name := range names {
		assert.Equal(t, "command "+name, ended[i].Name())
		var requestID string
		for _, kv := range ended[i].Attributes() {
			if kv.Key == "vasco.request_id" {
				requestID = kv.Value.AsString()
			}
		}
		assert.NotEmpty(t, requestID)
	}
}

func TestRenderLatencyIsLoggedForNewWindows(t *testing.T) {
	h := startHarness(t)
	h.run(t, command.NameTrackWindowEvents, 1)

	w := h.tk.NewWindow("late", false)
	h.tk.Show(w)
	h.tk.SwapFrame(w)
	h.tk.SwapFrame(w)
	h.drain(t)

	require.Len(t, h.logs().Matching("render completed"), 1)
	assert.Equal(t, "late", h.logs().Matching("render completed")[0].Attr("title"))
	assert.NotEmpty(t, h.logs().Matching("window event"))

	h.loop.Post(w.Hide)
	h.drain(t)
	visible := h.logs().Matching("visible changed")
	require.Len(t, visible, 1)
	assert.Equal(t, "false", visible[0].Attr("visible"))

	h.tk.Destroy(w)
	_, ok := h.agent.Tracker().CreatedAt(w.Handle())
	assert.False(t, ok)
}

func TestListenFailureLeavesHostRunning(t *testing.T) {
	cfg := testConfig(t)
	cfg.SocketDir = filepath.Join(cfg.SocketDir, "missing")
	loop := owner.New()
	tk := sim.New(loop)
	a, err := New(cfg, tk, loop, WithLogOutput(io.Discard))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	go loop.Run(context.Background())
	t.Cleanup(loop.Quit)

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not give up")
	}
	assert.Len(t, a.RecentLogs().Matching("remote control disabled"), 1)
	assert.True(t, loop.Post(func() {}))
	assert.NoError(t, a.Stop())
}

func TestStartTwice(t *testing.T) {
	h := startHarness(t)
	assert.EqualError(t, h.agent.Start(context.Background()), "agent already running")
}

func TestStartAfterStopIsRefused(t *testing.T) {
	h := startHarness(t)
	require.NoError(t, h.agent.Stop())

	assert.EqualError(t, h.agent.Start(context.Background()), "agent stopped")

	// The host keeps running and the stopped agent stays quiet.
	h.drain(t)
	assert.Len(t, h.logs().Matching("listening"), 1)
	assert.NoError(t, h.agent.Stop())
}

func TestScenarioEmptyPayloadIsUnknown(t *testing.T) {
	h := startHarness(t)

	h.send(t, "")
	require.Eventually(t, func() bool { return len(h.logs().Matching("unknown command")) == 1 },
		2*time.Second, 5*time.Millisecond)

	unknown := h.logs().Matching("unknown command")[0]
	assert.Contains(t, unknown.Context, "command")
	assert.Equal(t, "", unknown.Attr("command"))
	assert.Equal(t, command.DefaultNames(), unknown.Context["valid"])
	assert.Equal(t, 1, h.agent.Stats().Rejected("unknown_command"))
	assert.Empty(t, h.spans.Ended())
}

func TestStopWithoutOwnerLoop(t *testing.T) {
	cfg := testConfig(t)
	loop := owner.New()
	a, err := New(cfg, sim.New(loop), loop, WithLogOutput(io.Discard))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	require.NoError(t, a.Stop())
	assert.Empty(t, a.SocketPath())
	assert.Len(t, a.RecentLogs().Matching("attach abandoned, owner loop never ran"), 1)
}

type closeCounter struct{ n atomic.Int32 }

func (c *closeCounter) Close() error {
	c.n.Add(1)
	return nil
}

func TestCloseWhenDone(t *testing.T) {
	t.Run("closes when the owner loop ends", func(t *testing.T) {
		done := make(chan struct{})
		c := &closeCounter{}
		exited := make(chan struct{})
		go func() {
			closeWhenDone(context.Background(), done, c)
			close(exited)
		}()

		close(done)
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not exit")
		}
		assert.Equal(t, int32(1), c.n.Load())
	})

	t.Run("returns when the listener goroutine ends first", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := &closeCounter{}
		exited := make(chan struct{})
		go func() {
			closeWhenDone(ctx, make(chan struct{}), c)
			close(exited)
		}()

		cancel()
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			t.Fatal("watcher outlived its listener")
		}
		assert.Zero(t, c.n.Load())
	})
}

func TestSuggest(t *testing.T) {
	names := command.DefaultNames()
	assert.Equal(t, "quit", suggest("qiut", names))
	assert.Equal(t, "print_info", suggest("print-info", names))
	assert.Empty(t, suggest("bogus_command", names))
	assert.Empty(t, suggest("", names))
}
