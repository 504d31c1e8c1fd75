// Package listener accepts fire-and-forget command connections on a local
// Unix socket named after the host executable. One connection carries one
// payload; the listener reads it, closes the connection and hands the payload
// to a handler.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxPayload is the largest accepted payload in bytes.
const MaxPayload = 100

// DefaultDir is where agents bind and controllers search unless configured
// otherwise. TMPDIR is not consulted.
const DefaultDir = "/tmp"

// DefaultDrainWindow is how long the listener keeps reading after the first
// bytes of a payload arrive.
const DefaultDrainWindow = 50 * time.Millisecond

const pipeSuffix = "-IpcPipe"

var (
	// ErrPayloadTooLarge is returned by ReadPayload for payloads over MaxPayload.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrEmptyPayload is returned by ReadPayload when the peer sent nothing.
	ErrEmptyPayload = errors.New("empty payload")
)

// PipeName returns the endpoint name for a host process.
func PipeName(process string) string {
	return process + pipeSuffix
}

// Request is one decoded connection.
type Request struct {
	ID         string
	Payload    []byte
	AcceptedAt time.Time
}

// Command returns the payload as a command name. The whole payload is the
// name; nothing is trimmed.
func (r Request) Command() string {
	return string(r.Payload)
}

// Handler receives validated requests on the listener goroutine.
type Handler func(ctx context.Context, req Request)

// Config configures a Listener.
type Config struct {
	Dir         string
	Process     string
	Logger      *slog.Logger
	DrainWindow time.Duration

	// Rejected, when set, is called for every payload dropped during validation.
	Rejected func(reason string)
}

// ReasonTooLarge is passed to Config.Rejected for oversized payloads.
const ReasonTooLarge = "payload_too_large"

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("socket dir required")
	}
	if c.Process == "" {
		return fmt.Errorf("process name required")
	}
	return nil
}

// Listener owns the bound socket.
type Listener struct {
	ln          net.Listener
	path        string
	logger      *slog.Logger
	drainWindow time.Duration
	rejected    func(reason string)

	closeOnce sync.Once
	closeErr  error
}

// Listen binds <Dir>/<Process>-IpcPipe. A stale socket left by an earlier run
// is removed; any other file at that path is an error.
func Listen(cfg Config) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	path := filepath.Join(cfg.Dir, PipeName(cfg.Process))
	if st, err := os.Lstat(path); err == nil {
		if st.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("socket path exists and is not unix socket: %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat socket path: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen uds: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close() //nolint:errcheck
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	drain := cfg.DrainWindow
	if drain <= 0 {
		drain = DefaultDrainWindow
	}

	return &Listener{
		ln:          ln,
		path:        path,
		logger:      logger,
		drainWindow: drain,
		rejected:    cfg.Rejected,
	}, nil
}

// Path returns the socket path.
func (l *Listener) Path() string {
	return l.path
}

// Close stops accepting connections and removes the socket file.
// It may be called more than once and from any goroutine.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.closeErr = fmt.Errorf("close listener: %w", err)
		}
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) && l.closeErr == nil {
			l.closeErr = fmt.Errorf("remove socket: %w", err)
		}
	})
	return l.closeErr
}

// Serve accepts connections until stop reports true, ctx is cancelled or the
// listener is closed. stop is checked before every accept and again after
// each payload is read, so nothing is handed off once it reports true.
// Accept and the first read block without a timeout.
func (l *Listener) Serve(ctx context.Context, handler Handler, stop func() bool) error {
	if handler == nil {
		return fmt.Errorf("handler required")
	}
	if stop == nil {
		stop = func() bool { return false }
	}
	cancel := context.AfterFunc(ctx, func() { l.Close() }) //nolint:errcheck
	defer cancel()

	for !stop() {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		req := Request{ID: uuid.NewString(), AcceptedAt: time.Now()}
		payload, err := l.ReadPayload(conn)
		if cerr := conn.Close(); cerr != nil {
			l.logger.Debug("close connection", "request_id", req.ID, "error", cerr)
		}

		switch {
		case errors.Is(err, ErrPayloadTooLarge):
			l.logger.Warn("payload rejected", "request_id", req.ID, "size", fmt.Sprintf(">%d", MaxPayload), "max", MaxPayload)
			l.reject(ReasonTooLarge)
			continue
		case errors.Is(err, ErrEmptyPayload):
			// An empty name is still a name; the handler reports it as unknown.
			payload = []byte{}
		case err != nil:
			l.logger.Warn("read failed", "request_id", req.ID, "error", err)
			continue
		}

		if stop() {
			l.logger.Info("listener stopping, request dropped", "request_id", req.ID)
			break
		}
		req.Payload = payload
		handler(ctx, req)
	}
	return nil
}

func (l *Listener) reject(reason string) {
	if l.rejected != nil {
		l.rejected(reason)
	}
}

// ReadPayload reads everything the peer sent on conn. The first read blocks
// until data or EOF arrives; after that the connection is drained for at most
// the drain window. At most MaxPayload+1 bytes are read, which is enough to
// tell an oversized payload apart.
func (l *Listener) ReadPayload(conn net.Conn) ([]byte, error) {
	buf := make([]byte, MaxPayload+1)

	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrEmptyPayload
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}

	if err == nil && n < len(buf) {
		if derr := conn.SetReadDeadline(time.Now().Add(l.drainWindow)); derr != nil {
			return nil, fmt.Errorf("set read deadline: %w", derr)
		}
		for n < len(buf) {
			m, rerr := conn.Read(buf[n:])
			n += m
			if rerr != nil {
				var ne net.Error
				if errors.Is(rerr, io.EOF) || (errors.As(rerr, &ne) && ne.Timeout()) {
					break
				}
				return nil, fmt.Errorf("read payload: %w", rerr)
			}
		}
	}

	if n > MaxPayload {
		return buf[:n], ErrPayloadTooLarge
	}
	return buf[:n], nil
}
