package standard

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HostType represents how the host process is running.
type HostType string

const (
	HostTypeSystemd    HostType = "systemd"
	HostTypeContainer  HostType = "container"
	HostTypeStandalone HostType = "standalone"
)

// ProcessInfo describes the host process the agent is attached to.
type ProcessInfo struct {
	ProcessName      string
	AttachTime       time.Time
	HostType         HostType
	BinaryPath       string
	WorkingDirectory string
	User             string
	UID              int
	GID              int
}

// ProcessName returns the base name of the running executable, the name the
// channel endpoint is derived from.
func ProcessName() string {
	exe, err := os.Executable()
	if err != nil || exe == "" {
		return filepath.Base(os.Args[0])
	}
	return filepath.Base(exe)
}

// AutoDetect captures ProcessInfo for the current process.
func AutoDetect(processName string) *ProcessInfo {
	if processName == "" {
		processName = ProcessName()
	}

	binaryPath, _ := os.Executable()
	if binaryPath != "" {
		if resolved, err := filepath.EvalSymlinks(binaryPath); err == nil {
			binaryPath = resolved
		}
	}

	workingDir, _ := os.Getwd()

	userName := "unknown"
	uid := 0
	gid := 0
	if currentUser, err := user.Current(); err == nil {
		userName = currentUser.Username
		if parsedUID, err := strconv.Atoi(currentUser.Uid); err == nil {
			uid = parsedUID
		}
		if parsedGID, err := strconv.Atoi(currentUser.Gid); err == nil {
			gid = parsedGID
		}
	}

	return &ProcessInfo{
		ProcessName:      processName,
		AttachTime:       time.Now().UTC(),
		HostType:         detectHostType(),
		BinaryPath:       binaryPath,
		WorkingDirectory: workingDir,
		User:             userName,
		UID:              uid,
		GID:              gid,
	}
}

// GetData returns the process info as loggable key/value pairs.
func (p *ProcessInfo) GetData() map[string]any {
	return map[string]any{
		"name":              p.ProcessName,
		"pid":               os.Getpid(),
		"attach_time":       p.AttachTime.Format(time.RFC3339),
		"type":              string(p.HostType),
		"binary_path":       p.BinaryPath,
		"working_directory": p.WorkingDirectory,
		"user":              p.User,
		"uid":               p.UID,
		"gid":               p.GID,
	}
}

func detectHostType() HostType {
	// systemd sets INVOCATION_ID for every unit it starts
	if os.Getenv("INVOCATION_ID") != "" {
		return HostTypeSystemd
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return HostTypeContainer
	}
	if data, err := os.ReadFile("/proc/self/cgroup"); err == nil {
		cgroup := string(data)
		if strings.Contains(cgroup, "docker") || strings.Contains(cgroup, "containerd") {
			return HostTypeContainer
		}
	}
	return HostTypeStandalone
}
