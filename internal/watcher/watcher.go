// Package watcher adapts fsnotify into the recursive,
// exclude-filtered FilesystemEvent channel the event processor
// consumes.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/novasearch/novasearch/internal/model"
)

// Watcher registers roots with the OS notification facility
// (recursive) and exposes a single-consumer channel of
// FilesystemEvent. Access/read notifications are discarded; an event
// whose path matches an exclude pattern on any path component is
// dropped at this boundary and never reaches the channel.
type Watcher struct {
	fsw             *fsnotify.Watcher
	excludePatterns []string

	mu           sync.Mutex
	watchedRoots []string

	events chan model.FilesystemEvent
}

// New creates a Watcher filtering on excludePatterns (matched against
// every path component, filepath.Match syntax).
func New(excludePatterns []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &InitError{Err: err}
	}

	w := &Watcher{
		fsw:             fsw,
		excludePatterns: excludePatterns,
		events:          make(chan model.FilesystemEvent, 256),
	}
	go w.pump()
	return w, nil
}

// Watch registers path and every subdirectory beneath it
// (recursively, not following symlinks) with the notification
// facility.
func (w *Watcher) Watch(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &WatchError{Path: path, Err: err}
	}

	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == path {
				return walkErr
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && w.shouldExcludePath(p) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
	if err != nil {
		return &WatchError{Path: path, Err: err}
	}

	w.mu.Lock()
	w.watchedRoots = append(w.watchedRoots, path)
	w.mu.Unlock()
	return nil
}

// WatchMany registers every path in paths, collecting a per-path
// error for any that fails without aborting the rest.
func (w *Watcher) WatchMany(paths []string) []error {
	var errs []error
	for _, p := range paths {
		if err := w.Watch(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// WatchedRoots returns the roots registered via Watch/WatchMany.
func (w *Watcher) WatchedRoots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.watchedRoots))
	copy(out, w.watchedRoots)
	return out
}

// TryRecv returns the next event without blocking, or false if none
// is currently available.
func (w *Watcher) TryRecv() (model.FilesystemEvent, bool) {
	select {
	case ev := <-w.events:
		return ev, true
	default:
		return model.FilesystemEvent{}, false
	}
}

// Recv blocks until an event arrives or the channel is closed.
func (w *Watcher) Recv() (model.FilesystemEvent, bool) {
	ev, ok := <-w.events
	return ev, ok
}

// Close stops the underlying notification facility and the event
// channel.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	close(w.events)
	return err
}

// pump translates raw fsnotify events into FilesystemEvents,
// dropping access events and excluded paths.
func (w *Watcher) pump() {
	for event := range w.fsw.Events {
		if w.shouldExcludePath(event.Name) {
			continue
		}

		fsEvent, ok := convertEvent(event)
		if !ok {
			continue
		}

		// New directories created under a watched root need their own
		// recursive registration so descendants are also observed.
		if fsEvent.Kind == model.EventCreated {
			if info, err := statIsDir(event.Name); err == nil && info {
				w.addWatchBestEffort(event.Name)
			}
		}

		select {
		case w.events <- fsEvent:
		default:
			// Channel is a bounded buffer ahead of the debounce map;
			// a full buffer here means the daemon has fallen far
			// behind and the event is dropped rather than blocking
			// the notification callback.
		}
	}
}

func (w *Watcher) addWatchBestEffort(path string) {
	_ = w.fsw.Add(path)
}

func convertEvent(event fsnotify.Event) (model.FilesystemEvent, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return model.FilesystemEvent{Kind: model.EventCreated, Path: event.Name}, true
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod):
		return model.FilesystemEvent{Kind: model.EventModified, Path: event.Name}, true
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return model.FilesystemEvent{Kind: model.EventDeleted, Path: event.Name}, true
	default:
		return model.FilesystemEvent{}, false
	}
}

func (w *Watcher) shouldExcludePath(path string) bool {
	for _, component := range strings.Split(filepath.ToSlash(path), "/") {
		if component == "" {
			continue
		}
		if w.componentExcluded(component) {
			return true
		}
	}
	return false
}

func (w *Watcher) componentExcluded(component string) bool {
	for _, pattern := range w.excludePatterns {
		if matched, _ := filepath.Match(pattern, component); matched {
			return true
		}
		if strings.HasPrefix(pattern, ".*") && strings.HasPrefix(component, ".") {
			return true
		}
	}
	return false
}

func statIsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
