// Package job manages crawl jobs as detached, supervised units. The
// persisted record, not any in-process state, is the source of truth:
// status, stop and tail all work from a different invocation than the one
// that started the job.
package job

import (
	"fmt"
	"time"

	"github.com/tbaxter/sitescribe/internal/scheduler"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from one status to another.
// The machine is strictly forward: queued -> running -> one terminal state.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning || to == StatusFailed || to == StatusStopped
	case StatusRunning:
		return to.Terminal()
	}
	return false
}

// ConfigSnapshot freezes the settings a job was started with.
type ConfigSnapshot struct {
	URLs          []string      `json:"urls"`
	OutputDir     string        `json:"output_dir"`
	Dynamic       bool          `json:"dynamic"`
	DownloadFiles bool          `json:"download_files"`
	RateInterval  time.Duration `json:"rate_interval"`
	SiteWorkers   int           `json:"site_workers"`
	MaxSites      int           `json:"max_sites"`
	MaxPages      int           `json:"max_pages"`
}

// Record is the persisted state of one job. The runner process is its
// single writer; every other invocation only reads.
type Record struct {
	ID        string            `json:"id"`
	Status    Status            `json:"status"`
	Config    ConfigSnapshot    `json:"config"`
	PID       int               `json:"pid,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
	Heartbeat time.Time         `json:"heartbeat"`
	OutputDir string            `json:"output_dir"`
	LogPath   string            `json:"log_path"`
	Result    *scheduler.Result `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Duration is how long the job has run, or ran in total once finished.
func (r Record) Duration() time.Duration {
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	if r.StartTime.IsZero() {
		return 0
	}
	return time.Since(r.StartTime)
}

// FormatDuration renders a duration the way job listings show it, in the
// largest two sensible units.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
