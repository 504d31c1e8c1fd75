package standard

import (
	"sort"
	"sync"
	"time"
)

// statsWindow is how long dispatch records are kept.
const statsWindow = time.Hour

// Dispatch is a single command execution.
type Dispatch struct {
	Timestamp time.Time
	Success   bool
	Wait      time.Duration // accept to start of execution
	Run       time.Duration
	Error     string
}

// CommandStats tracks executions of a single command.
type CommandStats struct {
	Command    string
	dispatches []Dispatch
}

// DispatchStats tracks command executions per command name, plus requests the
// listener rejected before they reached the owner context.
type DispatchStats struct {
	mu       sync.Mutex
	commands map[string]*CommandStats
	rejected map[string]int
	now      func() time.Time
}

// NewDispatchStats creates an empty tracker.
func NewDispatchStats() *DispatchStats {
	return &DispatchStats{
		commands: make(map[string]*CommandStats),
		rejected: make(map[string]int),
		now:      time.Now,
	}
}

// TrackSuccess records a command that ran to completion.
func (d *DispatchStats) TrackSuccess(command string, wait, run time.Duration) {
	d.track(command, Dispatch{Success: true, Wait: wait, Run: run})
}

// TrackFailure records a command whose execution returned an error.
func (d *DispatchStats) TrackFailure(command string, wait, run time.Duration, errorMsg string) {
	d.track(command, Dispatch{Wait: wait, Run: run, Error: errorMsg})
}

// TrackRejected counts a request dropped before dispatch, keyed by reason.
func (d *DispatchStats) TrackRejected(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected[reason]++
}

func (d *DispatchStats) track(command string, rec Dispatch) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec.Timestamp = d.now().UTC()
	stats, ok := d.commands[command]
	if !ok {
		stats = &CommandStats{Command: command}
		d.commands[command] = stats
	}
	stats.dispatches = append(stats.dispatches, rec)
	d.prune(stats)
}

// prune removes dispatches older than the stats window.
func (d *DispatchStats) prune(stats *CommandStats) {
	cutoff := d.now().Add(-statsWindow)
	for i, rec := range stats.dispatches {
		if rec.Timestamp.After(cutoff) {
			stats.dispatches = stats.dispatches[i:]
			return
		}
	}
	stats.dispatches = stats.dispatches[:0]
}

// Count returns how many executions of command are in the window.
func (d *DispatchStats) Count(command string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if stats, ok := d.commands[command]; ok {
		return len(stats.dispatches)
	}
	return 0
}

// Rejected returns how many requests were dropped for reason.
func (d *DispatchStats) Rejected(reason string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rejected[reason]
}

// GetData summarises executions per command, sorted by command name.
func (d *DispatchStats) GetData() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	commands := make([]map[string]any, 0, len(names))
	for _, name := range names {
		stats := d.commands[name]
		if len(stats.dispatches) == 0 {
			continue
		}

		var successCount int
		var lastRun time.Time
		waits := make([]float64, 0, len(stats.dispatches))
		runs := make([]float64, 0, len(stats.dispatches))
		recentErrors := make([]string, 0)
		for _, rec := range stats.dispatches {
			if rec.Success {
				successCount++
			} else if len(recentErrors) < 5 {
				recentErrors = append(recentErrors, rec.Error)
			}
			waits = append(waits, float64(rec.Wait.Microseconds()))
			runs = append(runs, float64(rec.Run.Microseconds()))
			if rec.Timestamp.After(lastRun) {
				lastRun = rec.Timestamp
			}
		}
		sort.Float64s(waits)
		sort.Float64s(runs)

		commands = append(commands, map[string]any{
			"command":      name,
			"last_run":     lastRun.Format(time.RFC3339),
			"total_1h":     len(stats.dispatches),
			"success_rate": float64(successCount) / float64(len(stats.dispatches)),
			"wait_us": map[string]any{
				"p50": int(percentile(waits, 0.50)),
				"p95": int(percentile(waits, 0.95)),
			},
			"run_us": map[string]any{
				"p50": int(percentile(runs, 0.50)),
				"p95": int(percentile(runs, 0.95)),
			},
			"recent_errors": recentErrors,
		})
	}

	rejected := make(map[string]int, len(d.rejected))
	for reason, n := range d.rejected {
		rejected[reason] = n
	}

	return map[string]any{
		"commands": commands,
		"rejected": rejected,
	}
}

// percentile calculates the percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}
