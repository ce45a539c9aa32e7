package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/farmergreg/rfsnotify"
	"github.com/mahyarmirrashed/wallrot/internal/source"
	log "github.com/sirupsen/logrus"
	"gopkg.in/fsnotify.v1"
)

// DefaultDebounce collapses bursts of events (editors saving, copies in
// progress) into one change notification.
const DefaultDebounce = 500 * time.Millisecond

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Watcher reports changes below a file or folder.
type Watcher struct {
	events   <-chan fsnotify.Event
	errors   <-chan error
	closer   io.Closer
	file     string // when set, only events for this file count
	debounce time.Duration
	onChange func()

	closeOnce sync.Once
}

// New watches path. A regular file is watched through its parent folder so
// that editors replacing it by rename are seen. Folders are watched
// recursively when asked.
func New(path string, recursive bool, debounce time.Duration, onChange func()) (*Watcher, error) {
	fs, err := rfsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		events:   fs.Events,
		errors:   fs.Errors,
		closer:   fs,
		debounce: debounce,
		onChange: onChange,
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fs.Close()
		return nil, err
	}

	switch {
	case isDir(abs) && recursive:
		err = fs.AddRecursive(abs)
	case isDir(abs):
		err = fs.Add(abs)
	default:
		w.file = abs
		err = fs.Add(filepath.Dir(abs))
	}
	if err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

// ForSource watches the backing file or folder of a list or folder source and
// invalidates its cache on change. Other sources return nil, nil.
func ForSource(src source.Source, debounce time.Duration) (*Watcher, error) {
	switch s := src.(type) {
	case *source.List:
		if s.Path() == "" {
			return nil, nil
		}
		return New(s.Path(), false, debounce, func() {
			log.Debugf("List %s changed", s.Path())
			s.Invalidate()
		})
	case *source.Folder:
		if s.Root() == "" {
			return nil, nil
		}
		return New(s.Root(), s.Recursive(), debounce, func() {
			log.Debugf("Folder %s changed", s.Root())
			s.Invalidate()
		})
	default:
		return nil, nil
	}
}

// Run delivers debounced change notifications until ctx is done or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.events:
			if !ok {
				return nil
			}
			if event.Op&relevantOps == 0 {
				continue
			}
			if w.file != "" && filepath.Clean(event.Name) != w.file {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.errors:
			if !ok {
				return nil
			}
			log.Errorf("Watcher error: %v", err)
		case <-timer.C:
			w.onChange()
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.closer.Close() })
	return err
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
