package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"syscall"
	"time"
)

// ErrNotFound is returned when no record exists for a job id.
var ErrNotFound = errors.New("job not found")

// staleGrace is how long a running record may go without a heartbeat
// before readers treat the job as dead.
const staleGrace = 45 * time.Second

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store persists job records and logs in a per-user directory, one
// {id}.json and one {id}.log per job. It is queried fresh on every
// request so separate command invocations observe consistent state.
type Store struct {
	dir   string
	grace time.Duration
	// alive is swappable so stale detection can be exercised in tests.
	alive func(pid int) bool
}

// DefaultDir returns the per-user job store location.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sitescribe", "jobs"), nil
}

// NewStore opens (creating if needed) the store at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create job store %s: %w", dir, err)
	}
	return &Store{dir: dir, grace: staleGrace, alive: processAlive}, nil
}

// LogPath returns where the job's log file lives.
func (s *Store) LogPath(id string) string {
	return filepath.Join(s.dir, id+".log")
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the record atomically so readers never observe a torn file.
func (s *Store) Save(rec Record) error {
	if !idPattern.MatchString(rec.ID) {
		return fmt.Errorf("invalid job id %q", rec.ID)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	target := s.recordPath(rec.ID)
	tmp, err := os.CreateTemp(s.dir, ".job-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write job record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename job record: %w", err)
	}
	return nil
}

// Get loads one record, applying stale-running detection: a running job
// whose process is gone, or whose heartbeat stopped past the grace
// period, is rewritten as failed. The persisted record is the only
// durable evidence a background launch leaves behind.
func (s *Store) Get(id string) (Record, error) {
	if !idPattern.MatchString(id) {
		return Record{}, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Record{}, fmt.Errorf("read job record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode job record %s: %w", id, err)
	}
	if s.isStale(rec) {
		now := time.Now()
		rec.Status = StatusFailed
		rec.EndTime = &now
		rec.Error = "job process died without reporting a final status"
		if err := s.Save(rec); err != nil {
			return rec, fmt.Errorf("mark stale job failed: %w", err)
		}
	}
	return rec, nil
}

// Update applies a read-modify-write on one record. The mutation must
// keep status transitions legal.
func (s *Store) Update(id string, mutate func(*Record) error) (Record, error) {
	rec, err := s.Get(id)
	if err != nil {
		return Record{}, err
	}
	before := rec.Status
	if err := mutate(&rec); err != nil {
		return Record{}, err
	}
	if rec.Status != before && !CanTransition(before, rec.Status) {
		return Record{}, fmt.Errorf("illegal job transition %s -> %s", before, rec.Status)
	}
	if err := s.Save(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns every known job, newest first.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read job store: %w", err)
	}
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		rec, err := s.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartTime.After(records[j].StartTime)
	})
	return records, nil
}

func (s *Store) isStale(rec Record) bool {
	if rec.Status != StatusRunning {
		return false
	}
	if rec.PID > 0 && !s.alive(rec.PID) {
		return true
	}
	return !rec.Heartbeat.IsZero() && time.Since(rec.Heartbeat) > s.grace
}

// processAlive probes a pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
