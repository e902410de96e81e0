package job

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// tailPollInterval backs up fsnotify and bounds how late terminal-state
// detection can be.
const tailPollInterval = 2 * time.Second

// Tail writes the last n lines of the job's log to w. With follow it
// keeps streaming appended lines until ctx ends or the job reaches a
// terminal state, draining whatever the log received before exit.
func Tail(ctx context.Context, store *Store, id string, n int, follow bool, w io.Writer) error {
	rec, err := store.Get(id)
	if err != nil {
		return err
	}

	file, err := os.Open(rec.LogPath)
	if err != nil {
		if os.IsNotExist(err) {
			if !follow {
				return nil
			}
			// Queued jobs have no log yet; create it so both the
			// watcher and the runner's appends share one file.
			file, err = os.OpenFile(rec.LogPath, os.O_CREATE|os.O_RDONLY, 0o640)
		}
		if err != nil {
			return fmt.Errorf("open job log: %w", err)
		}
	}
	defer file.Close()

	offset, err := writeLastLines(file, n, w)
	if err != nil {
		return err
	}
	if !follow {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch job log: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(rec.LogPath); err != nil {
		return fmt.Errorf("watch job log: %w", err)
	}

	ticker := time.NewTicker(tailPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-watcher.Events:
			if event.Op&fsnotify.Write == 0 {
				continue
			}
			if offset, err = copyNew(file, offset, w); err != nil {
				return err
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("watch job log: %w", err)
		case <-ticker.C:
			if offset, err = copyNew(file, offset, w); err != nil {
				return err
			}
			current, err := store.Get(id)
			if err != nil || current.Status.Terminal() {
				_, _ = copyNew(file, offset, w)
				return nil
			}
		}
	}
}

// writeLastLines emits the trailing n lines of the file and returns the
// offset at its current end.
func writeLastLines(file *os.File, n int, w io.Writer) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat job log: %w", err)
	}
	size := info.Size()
	if size == 0 || n <= 0 {
		return size, nil
	}

	// Scan backwards in chunks until enough newlines are seen.
	const chunk = 64 * 1024
	var (
		buf   []byte
		start = size
	)
	for start > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		step := int64(chunk)
		if step > start {
			step = start
		}
		start -= step
		head := make([]byte, step)
		if _, err := file.ReadAt(head, start); err != nil {
			return 0, fmt.Errorf("read job log: %w", err)
		}
		buf = append(head, buf...)
	}

	lines := bytes.Split(bytes.TrimRight(buf, "\n"), []byte{'\n'})
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return 0, err
		}
	}
	return size, nil
}

// copyNew streams bytes appended past offset and returns the new offset.
func copyNew(file *os.File, offset int64, w io.Writer) (int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek job log: %w", err)
	}
	copied, err := io.Copy(w, file)
	if err != nil {
		return offset, fmt.Errorf("read job log: %w", err)
	}
	return offset + copied, nil
}
