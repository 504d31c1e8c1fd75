package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/st-keller/introspection-agent/command"
	"github.com/st-keller/introspection-agent/listener"
)

func socketDir(t *testing.T) string {
	t.Helper()
	if !nettest.TestableNetwork("unix") {
		t.Skip("unix sockets not available")
	}
	dir, err := os.MkdirTemp("", "vasco")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestDiscoverListsOnlySockets(t *testing.T) {
	dir := socketDir(t)
	for _, name := range []string{"zeta", "alpha"} {
		ln, err := listener.Listen(listener.Config{Dir: dir, Process: name})
		require.NoError(t, err)
		t.Cleanup(func() { ln.Close() })
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-IpcPipe"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.sock"), nil, 0o644))

	endpoints, err := Discover(dir)
	require.NoError(t, err)

	assert.Equal(t, []Endpoint{
		{Process: "alpha", Path: filepath.Join(dir, "alpha-IpcPipe")},
		{Process: "zeta", Path: filepath.Join(dir, "zeta-IpcPipe")},
	}, endpoints)
}

func TestDiscoverEmptyDir(t *testing.T) {
	endpoints, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, endpoints)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "/tmp/gallery-IpcPipe", Resolve("/tmp", "gallery"))
	assert.Equal(t, "/tmp/gallery-IpcPipe", Resolve("/tmp", "gallery-IpcPipe"))
	assert.Equal(t, "/run/user/1000/x-IpcPipe", Resolve("/tmp", "/run/user/1000/x-IpcPipe"))
}

func TestSendDeliversOnePayload(t *testing.T) {
	dir := socketDir(t)
	ln, err := listener.Listen(listener.Config{Dir: dir, Process: "host"})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 1)
	go ln.Serve(context.Background(), func(_ context.Context, req listener.Request) { //nolint:errcheck
		got <- req.Command()
	}, nil)

	require.NoError(t, Send(context.Background(), ln.Path(), command.NamePrintWindows, time.Second))

	select {
	case cmd := <-got:
		assert.Equal(t, command.NamePrintWindows, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("payload not received")
	}
}

func TestSendErrors(t *testing.T) {
	dir := socketDir(t)

	err := Send(context.Background(), filepath.Join(dir, "gone-IpcPipe"), "quit", 100*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")

	err = Send(context.Background(), filepath.Join(dir, "gone-IpcPipe"), strings.Repeat("x", 101), 0)
	assert.ErrorIs(t, err, listener.ErrPayloadTooLarge)

	assert.EqualError(t, Send(context.Background(), "", "", 0), "command required")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VASCO_CTL_CONFIG", "")
	t.Setenv("VASCO_CTL_SOCKET_DIR", "")
	t.Setenv("VASCO_CTL_TIMEOUT", "")
	t.Setenv("TMPDIR", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, listener.DefaultDir, cfg.SocketDir)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vasco.toml")
	require.NoError(t, os.WriteFile(path, []byte("socket_dir = \"/run/vasco\"\ntimeout = \"250ms\"\n"), 0o644))
	t.Setenv("VASCO_CTL_CONFIG", path)
	t.Setenv("VASCO_CTL_SOCKET_DIR", "")
	t.Setenv("VASCO_CTL_TIMEOUT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/run/vasco", cfg.SocketDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)

	t.Setenv("VASCO_CTL_SOCKET_DIR", "/var/run/vasco")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/var/run/vasco", cfg.SocketDir)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Setenv("VASCO_CTL_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) send(_ context.Context, cmd string) error {
	r.sent = append(r.sent, cmd)
	return r.err
}

// step feeds msg to m and runs any returned command once, feeding its result
// back in.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestModelSendsSelectedCommand(t *testing.T) {
	rec := &recordingSender{}
	m := NewModel("host-IpcPipe", command.DefaultNames(), rec.send)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())

	assert.Equal(t, []string{command.NamePrintWindows}, rec.sent)
	assert.Equal(t, []string{command.NamePrintWindows}, m.Sent())
	assert.Contains(t, m.View(), "sent print_windows")
	assert.Contains(t, m.View(), "Vasco Controller: host-IpcPipe")
}

func TestModelReportsSendFailure(t *testing.T) {
	rec := &recordingSender{err: errors.New("connection refused")}
	m := NewModel("host-IpcPipe", command.DefaultNames(), rec.send)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())

	assert.Empty(t, m.Sent())
	assert.Contains(t, m.View(), "failed to send quit")
}

func TestModelExitsAfterQuitIsSent(t *testing.T) {
	rec := &recordingSender{}
	m := NewModel("host-IpcPipe", command.DefaultNames(), rec.send)

	_, cmd := step(t, m, sentMsg{command: command.NameQuit})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, rec.sent)
}
