// Package controller is the client side of the command channel: it finds
// attachable host processes and sends them commands.
package controller

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/st-keller/introspection-agent/listener"
)

// DefaultTimeout bounds connecting to and writing to an endpoint.
const DefaultTimeout = time.Second

const pipeGlob = "*-IpcPipe"

// Endpoint is one attachable host process.
type Endpoint struct {
	Process string
	Path    string
}

// Discover lists the command sockets in dir, sorted by name. Files matching
// the pattern that are not sockets are skipped.
func Discover(dir string) ([]Endpoint, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pipeGlob))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}

	var out []Endpoint
	for _, path := range matches {
		st, err := os.Lstat(path)
		if err != nil || st.Mode()&os.ModeSocket == 0 {
			continue
		}
		name := filepath.Base(path)
		out = append(out, Endpoint{
			Process: strings.TrimSuffix(name, listener.PipeName("")),
			Path:    path,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Resolve turns a process name, a socket name or a path into a socket path.
func Resolve(dir, target string) string {
	if strings.ContainsRune(target, filepath.Separator) {
		return target
	}
	if !strings.HasSuffix(target, listener.PipeName("")) {
		target = listener.PipeName(target)
	}
	return filepath.Join(dir, target)
}

// Send delivers one command to the socket at path and closes the connection.
// There is no reply.
func Send(ctx context.Context, path, cmd string, timeout time.Duration) error {
	if cmd == "" {
		return fmt.Errorf("command required")
	}
	if len(cmd) > listener.MaxPayload {
		return fmt.Errorf("command %d bytes: %w", len(cmd), listener.ErrPayloadTooLarge)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("connect %s: %w", path, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
