package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Mirror is the append-only file copy of the log. slog text handlers write one
// record per Write call, so filtering happens per line.
type Mirror struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	blacklist []string
	released  bool
}

// Write appends p unless it matches the blacklist or the mirror was released.
// It never fails the caller's log call for a mirror problem after release.
func (m *Mirror) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil || m.released || m.blocked(p) {
		return len(p), nil
	}
	return m.file.Write(p)
}

func (m *Mirror) blocked(p []byte) bool {
	line := string(p)
	for _, needle := range m.blacklist {
		if strings.Contains(line, needle) {
			return true
		}
	}
	return false
}

// Release closes the file handle. Later writes are dropped. Safe to call more
// than once.
func (m *Mirror) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil
	}
	m.released = true
	if m.file == nil {
		return nil
	}
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("close log file %s: %w", m.path, err)
	}
	return nil
}

// Released reports whether Release has been called.
func (m *Mirror) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// Path is the mirrored file, empty when mirroring is disabled.
func (m *Mirror) Path() string {
	return m.path
}
