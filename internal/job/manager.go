package job

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager creates, launches and stops jobs against a Store.
type Manager struct {
	store  *Store
	logger *zap.Logger
}

// NewManager builds a Manager.
func NewManager(store *Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// Store exposes the underlying record store for read-only consumers.
func (m *Manager) Store() *Store {
	return m.store
}

// NewID allocates a job id. The timestamp keeps listings human-sortable;
// the uuid suffix keeps ids unique when two jobs start within a second.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format("20060102_150405") + "_" + suffix
}

// Create persists the initial queued record for a job and returns it.
func (m *Manager) Create(cfg ConfigSnapshot) (Record, error) {
	now := time.Now()
	rec := Record{
		ID:        NewID(now),
		Status:    StatusQueued,
		Config:    cfg,
		StartTime: now,
		OutputDir: cfg.OutputDir,
	}
	rec.LogPath = m.store.LogPath(rec.ID)
	if err := m.store.Save(rec); err != nil {
		return Record{}, err
	}
	m.logger.Info("job created", zap.String("job_id", rec.ID))
	return rec, nil
}

// Launch re-executes the current binary detached from the terminal to run
// the job in the background. The child owns the record from here: it
// transitions to running and eventually to a terminal state; the launcher
// only reports whether the process started.
func (m *Manager) Launch(rec Record, args []string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	logFile, err := os.OpenFile(rec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open job log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	// New session so the job survives the launching terminal closing.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start background job: %w", err)
	}
	m.logger.Info("job launched",
		zap.String("job_id", rec.ID),
		zap.Int("pid", cmd.Process.Pid))
	// Let the child run unsupervised; its record is the evidence.
	return cmd.Process.Release()
}

// Stop requests cooperative cancellation of a job. In-flight fetches are
// allowed to finish; the runner transitions the record to stopped once
// its crawlers have drained.
func (m *Manager) Stop(id string) (Record, error) {
	rec, err := m.store.Get(id)
	if err != nil {
		return Record{}, err
	}
	switch rec.Status {
	case StatusQueued:
		// Never started; close it out directly.
		return m.store.Update(id, func(r *Record) error {
			now := time.Now()
			r.Status = StatusStopped
			r.EndTime = &now
			return nil
		})
	case StatusRunning:
		if rec.PID <= 0 {
			return Record{}, fmt.Errorf("job %s is running but recorded no pid", id)
		}
		proc, err := os.FindProcess(rec.PID)
		if err != nil {
			return Record{}, fmt.Errorf("find job process %d: %w", rec.PID, err)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
				// Dead process; the next Get marks it failed.
				return m.store.Get(id)
			}
			return Record{}, fmt.Errorf("signal job process %d: %w", rec.PID, err)
		}
		m.logger.Info("stop requested",
			zap.String("job_id", id),
			zap.Int("pid", rec.PID))
		return rec, nil
	default:
		return rec, fmt.Errorf("job %s already finished with status %s", id, rec.Status)
	}
}
