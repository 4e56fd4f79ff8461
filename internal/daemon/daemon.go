// Package daemon composes the scanner, watcher, event processor, and
// index store into the running indexing service described by the
// daemon loop: an initial scan, then a steady-state loop that drains
// watcher events into the debounce map and periodically flushes
// queued operations to the store.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/novasearch/novasearch/internal/config"
	"github.com/novasearch/novasearch/internal/model"
	"github.com/novasearch/novasearch/internal/processor"
	"github.com/novasearch/novasearch/internal/scanner"
	"github.com/novasearch/novasearch/internal/store"
	"github.com/novasearch/novasearch/internal/watcher"
)

// drainInterval is how often the steady-state loop polls the watcher
// for newly arrived events.
const drainInterval = 50 * time.Millisecond

// Daemon wires the live subsystems together and runs the steady-state
// loop described by the daemon's event-driven indexing contract.
type Daemon struct {
	cfg    config.Config
	home   string
	log    *slog.Logger
	store  *store.Store
	scan   *scanner.Scanner
	watch  *watcher.Watcher
	proc   *processor.Processor
	closed bool
}

// New constructs a Daemon from cfg and home (used to expand "~" in
// include_paths and to locate the always-scanned application roots).
// It opens the store and creates the watcher but registers no roots
// and starts no loop; call WatchRoots and Run for that.
func New(cfg config.Config, home, storePath string, log *slog.Logger) (*Daemon, error) {
	s, err := store.Open(storePath)
	if err != nil {
		return nil, err
	}

	w, err := watcher.New(cfg.Indexing.ExcludePatterns)
	if err != nil {
		s.Close()
		return nil, err
	}

	sc := scanner.New(home, cfg.ExpandedIncludePaths(home), cfg.Indexing.ExcludePatterns, cfg.Performance.MaxCPUPercent)

	// Debounce window and queue capacity are derived from the configured
	// flush interval and batch size rather than fixed, so a slower flush
	// cadence naturally widens the debounce window and a larger batch
	// size naturally grows the queue headroom.
	p := processor.New(time.Duration(cfg.Performance.FlushIntervalMS)*time.Millisecond/2, cfg.Performance.BatchSize*4)

	return &Daemon{
		cfg:   cfg,
		home:  home,
		log:   log,
		store: s,
		scan:  sc,
		watch: w,
		proc:  p,
	}, nil
}

// Store exposes the underlying index store, e.g. for the status and
// reindex CLI commands.
func (d *Daemon) Store() *store.Store { return d.store }

// InitialScan runs one scanner pass and applies its output to the
// store in batches of Performance.BatchSize, returning the number of
// entries scanned.
func (d *Daemon) InitialScan(ctx context.Context) (int, error) {
	entries := d.scan.Scan()

	ops := make([]model.IndexOperation, len(entries))
	for i, e := range entries {
		ops[i] = model.AddOp(e)
	}

	batchSize := d.cfg.Performance.BatchSize
	for start := 0; start < len(ops); start += batchSize {
		end := min(start+batchSize, len(ops))
		if err := d.store.ApplyBatch(ctx, ops[start:end]); err != nil {
			d.log.Error("initial scan batch failed", "error", err, "start", start, "end", end)
		}
	}

	progress := d.scan.Progress()
	d.log.Info("initial scan complete",
		"files_found", len(entries),
		"files_scanned", progress.FilesScanned,
		"directories_scanned", progress.DirectoriesScanned,
		"errors_encountered", progress.ErrorsEncountered,
	)
	return len(entries), nil
}

// WatchRoots registers every configured include root (expanded) with
// the watcher, logging a warning for any that cannot be watched. The
// scanner's fixed application roots are not registered, so changes
// under them are picked up only by a scan.
func (d *Daemon) WatchRoots() {
	roots := append([]string{}, d.cfg.ExpandedIncludePaths(d.home)...)
	for _, err := range d.watch.WatchMany(roots) {
		d.log.Warn("path not watchable", "error", err)
	}
}

// Run executes the steady-state loop until ctx is canceled, then
// drains the processor's queue into one final batch and closes the
// store.
func (d *Daemon) Run(ctx context.Context) error {
	flushInterval := time.Duration(d.cfg.Performance.FlushIntervalMS) * time.Millisecond
	drainTicker := time.NewTicker(drainInterval)
	defer drainTicker.Stop()
	flushTicker := time.NewTicker(flushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("shutdown signal received, draining queue")
			d.drainWatcher()
			var final []model.IndexOperation
			for op, ok := d.proc.Dequeue(); ok; op, ok = d.proc.Dequeue() {
				final = append(final, op)
			}
			if len(final) > 0 {
				if err := d.store.ApplyBatch(context.Background(), final); err != nil {
					d.log.Error("final batch dropped", "error", err, "size", len(final))
				}
			}
			return d.Close()

		case <-drainTicker.C:
			d.drainWatcher()

		case <-flushTicker.C:
			d.flush(ctx)
		}
	}
}

// drainWatcher consumes every currently available watcher event,
// feeds it to the processor's debounce map, then converts whatever
// has cleared its debounce window into queued operations.
func (d *Daemon) drainWatcher() {
	for {
		event, ok := d.watch.TryRecv()
		if !ok {
			break
		}
		d.proc.AddEvent(event)
	}

	for _, op := range d.proc.ProcessPending() {
		if err := d.proc.Enqueue(op); err != nil {
			d.log.Warn("operation queue full, dropping operation", "error", err, "op", op.Kind)
		}
	}
}

// flush dequeues up to Performance.BatchSize operations and applies
// them to the store as one batch. Failures are logged; the batch is
// dropped so the pipeline keeps moving.
func (d *Daemon) flush(ctx context.Context) {
	var ops []model.IndexOperation
	for len(ops) < d.cfg.Performance.BatchSize {
		op, ok := d.proc.Dequeue()
		if !ok {
			break
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return
	}

	if err := d.store.ApplyBatch(ctx, ops); err != nil {
		var busy *store.BusyError
		var storageErr *store.StorageError
		switch {
		case errors.As(err, &busy):
			d.log.Error("batch dropped after exhausting retries", "error", err, "size", len(ops))
		case errors.As(err, &storageErr):
			d.log.Error("batch dropped due to storage error", "error", err, "size", len(ops))
		default:
			d.log.Error("batch failed", "error", err, "size", len(ops))
		}
	}
}

// Close stops the watcher and closes the store. Safe to call more
// than once.
func (d *Daemon) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.watch.Close()
	return d.store.Close()
}
