// Package processor debounces the raw FilesystemEvent stream emitted
// by the watcher and turns it into a bounded queue of IndexOperations
// ready for the store.
package processor

import (
	"os"
	"sync"
	"time"

	"github.com/novasearch/novasearch/internal/model"
)

type pendingEntry struct {
	event   model.FilesystemEvent
	arrived time.Time
}

// Processor holds events in a debounce map keyed by their principal
// path until they have sat quietly for debounceDuration, then converts
// them into IndexOperations appended to a bounded queue. A path that
// receives repeated events before the debounce window elapses
// collapses to its most recent event, matching the original's
// map-insert-overwrites-prior behavior.
type Processor struct {
	mu sync.Mutex

	debounceDuration time.Duration
	maxQueueSize     int

	pending map[string]pendingEntry
	queue   []model.IndexOperation
}

// New creates a Processor debouncing for debounceDuration before an
// event is eligible for conversion, bounding the operation queue at
// maxQueueSize.
func New(debounceDuration time.Duration, maxQueueSize int) *Processor {
	return &Processor{
		debounceDuration: debounceDuration,
		maxQueueSize:     maxQueueSize,
		pending:          make(map[string]pendingEntry),
	}
}

// AddEvent records event under its principal path, overwriting any
// event already pending for that path and resetting its debounce
// clock.
func (p *Processor) AddEvent(event model.FilesystemEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[event.PrincipalPath()] = pendingEntry{event: event, arrived: time.Now()}
}

// ProcessPending converts every event that has sat in the debounce map
// for at least debounceDuration into an IndexOperation, removing it
// from the map. Events still within their debounce window are left in
// place for a later sweep.
func (p *Processor) ProcessPending() []model.IndexOperation {
	p.mu.Lock()
	now := time.Now()
	var ready []string
	for path, entry := range p.pending {
		if now.Sub(entry.arrived) >= p.debounceDuration {
			ready = append(ready, path)
		}
	}

	var operations []model.IndexOperation
	for _, path := range ready {
		entry := p.pending[path]
		delete(p.pending, path)
		if op, ok := eventToOperation(entry.event); ok {
			operations = append(operations, op)
		}
	}
	p.mu.Unlock()

	return operations
}

// eventToOperation converts a debounced FilesystemEvent into an
// IndexOperation. Created/Modified events re-stat the path to build a
// FileEntry; a path that has disappeared by the time it is processed
// yields no operation.
func eventToOperation(event model.FilesystemEvent) (model.IndexOperation, bool) {
	switch event.Kind {
	case model.EventCreated:
		entry, ok := statFileEntry(event.Path)
		if !ok {
			return model.IndexOperation{}, false
		}
		return model.AddOp(entry), true
	case model.EventModified:
		entry, ok := statFileEntry(event.Path)
		if !ok {
			return model.IndexOperation{}, false
		}
		return model.UpdateOp(entry), true
	case model.EventDeleted:
		return model.DeleteOp(event.Path), true
	case model.EventMoved:
		return model.MoveOp(event.From, event.To), true
	default:
		return model.IndexOperation{}, false
	}
}

func statFileEntry(path string) (model.FileEntry, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return model.FileEntry{}, false
	}

	fileType := model.FileTypeOther
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		fileType = model.FileTypeSymlink
	case info.IsDir():
		fileType = model.FileTypeDirectory
	case info.Mode().IsRegular():
		fileType = model.FileTypeRegular
	}

	return model.FileEntry{
		Filename:     info.Name(),
		Path:         path,
		Size:         uint64(info.Size()),
		ModifiedTime: info.ModTime(),
		FileType:     fileType,
		IndexedTime:  time.Now(),
	}, true
}

// Enqueue appends operation to the queue, returning a QueueFullError
// if it is already at maxQueueSize.
func (p *Processor) Enqueue(operation model.IndexOperation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) >= p.maxQueueSize {
		return &QueueFullError{}
	}
	p.queue = append(p.queue, operation)
	return nil
}

// Dequeue removes and returns the oldest queued operation, or false if
// the queue is empty.
func (p *Processor) Dequeue() (model.IndexOperation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return model.IndexOperation{}, false
	}
	op := p.queue[0]
	p.queue = p.queue[1:]
	return op, true
}

// PendingCount returns the number of events awaiting their debounce
// window.
func (p *Processor) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// QueuedCount returns the number of operations currently queued.
func (p *Processor) QueuedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Clear discards all pending events and queued operations.
func (p *Processor) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = make(map[string]pendingEntry)
	p.queue = nil
}
