// Package orchestrator drives the Walker → Fingerprinter → Grouper
// pipeline on a background goroutine and reports progress through a
// single tagged event channel. The consuming thread never blocks on a
// pipeline stage; it only drains the event channel.
package orchestrator

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ivoronin/dupefind/internal/fingerprint"
	"github.com/ivoronin/dupefind/internal/group"
	"github.com/ivoronin/dupefind/internal/imgtypes"
	"github.com/ivoronin/dupefind/internal/remover"
	"github.com/ivoronin/dupefind/internal/review"
	"github.com/ivoronin/dupefind/internal/walker"
)

// State is one of the orchestrator's job-lifecycle states.
type State int

const (
	Idle State = iota
	Walking
	Fingerprinting
	Grouping
	Done
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Walking:
		return "Walking"
	case Fingerprinting:
		return "Fingerprinting"
	case Grouping:
		return "Grouping"
	case Done:
		return "Done"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// EventTag names one of the four progress-message shapes the event
// channel carries.
type EventTag int

const (
	FindRunning EventTag = iota
	FindCompleted
	DupRunning
	DupCompleted
)

func (t EventTag) String() string {
	switch t {
	case FindRunning:
		return "FindRunning"
	case FindCompleted:
		return "FindCompleted"
	case DupRunning:
		return "DupRunning"
	case DupCompleted:
		return "DupCompleted"
	default:
		return "Unknown"
	}
}

// Event is one message on the orchestrator's progress channel. Fields not
// meaningful for a given Tag are left at their zero value; consumers
// should switch on Tag and ignore any tag they do not recognize.
type Event struct {
	Tag EventTag

	// FindRunning / DupRunning
	Done  int
	Total int

	// FindCompleted
	Images []imgtypes.RasterImage

	// DupCompleted
	Groups map[string][]string

	Start time.Time
	End   time.Time
}

// Orchestrator drives one pipeline run at a time.
//
// The orchestrator is designed for single-use per Run call: Run launches
// exactly one background goroutine and returns its event channel. Cancel
// may be called at any point during that run; DeleteSelected is called
// after the caller has ingested a DupCompleted event's groups into a review.Store
// and the user has made selections.
type Orchestrator struct {
	workers   int
	shape     fingerprint.Shape
	batchSize int
	dryRun    bool
	errCh     chan error
	opts      []fingerprint.Option

	state  atomic.Int32
	cancel atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFingerprintOptions attaches Fingerprinter options (e.g. a hash
// cache) that every Run call should use.
func WithFingerprintOptions(opts ...fingerprint.Option) Option {
	return func(o *Orchestrator) { o.opts = append(o.opts, opts...) }
}

// WithBatchThreshold overrides the Grouper's serial/batch-parallel input
// size pivot (0 selects group.BatchThreshold).
func WithBatchThreshold(n int) Option {
	return func(o *Orchestrator) { o.batchSize = n }
}

// WithDryRun previews DeleteSelected's removals without touching the
// filesystem.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// WithErrorChannel routes the walk's per-directory read errors and
// DeleteSelected's per-file errors onto ch (may be nil to disable
// reporting).
func WithErrorChannel(ch chan error) Option {
	return func(o *Orchestrator) { o.errCh = ch }
}

// New creates an Orchestrator bounding pool concurrency to workers
// (0 selects runtime.NumCPU()) and fixing the Fingerprinter pool shape.
func New(workers int, shape fingerprint.Shape, opts ...Option) *Orchestrator {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	o := &Orchestrator{workers: workers, shape: shape}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State reports the orchestrator's current job-lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Cancel sets the cooperative cancellation flag polled at stage
// boundaries.
func (o *Orchestrator) Cancel() {
	o.cancel.Store(true)
}

// Run launches a background goroutine driving Walker → Fingerprinter →
// Grouper against root and returns its event channel immediately. The
// channel is closed once the run reaches Done or Cancelled. ctx
// cancellation is treated the same as Cancel().
func (o *Orchestrator) Run(ctx context.Context, root string) <-chan Event {
	o.cancel.Store(false)
	o.state.Store(int32(Idle))

	events := make(chan Event, 256)

	go func() {
		defer close(events)
		o.run(ctx, root, events)
	}()

	return events
}

func (o *Orchestrator) run(ctx context.Context, root string, events chan<- Event) {
	if ctx.Err() != nil {
		o.cancel.Store(true)
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			o.cancel.Store(true)
		case <-stop:
		}
	}()

	o.state.Store(int32(Walking))
	w := walker.New(root, o.workers)
	dirs, err := w.Run()
	if err != nil {
		o.state.Store(int32(Done))
		events <- Event{Tag: FindCompleted, Start: time.Now(), End: time.Now()}
		return
	}
	if o.errCh != nil {
		for _, werr := range w.Errors() {
			o.errCh <- werr
		}
	}
	if o.cancel.Load() {
		o.state.Store(int32(Cancelled))
		return
	}

	roots := append([]string{root}, dirs...)

	o.state.Store(int32(Fingerprinting))
	start := time.Now()
	fp := fingerprint.New(o.workers, o.shape, o.opts...)

	progressCh := make(chan fingerprint.Progress, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressCh {
			events <- Event{Tag: FindRunning, Done: p.Completed, Total: p.Total}
		}
	}()
	images := fp.Run(roots, progressCh, &o.cancel)
	close(progressCh)
	<-done
	end := time.Now()

	events <- Event{Tag: FindCompleted, Images: images, Start: start, End: end}

	if o.cancel.Load() {
		o.state.Store(int32(Cancelled))
		return
	}

	if len(images) == 0 {
		o.state.Store(int32(Done))
		return
	}

	o.state.Store(int32(Grouping))
	start = time.Now()
	g := group.New(o.workers, o.batchSize)

	groupProgressCh := make(chan group.Progress, 64)
	groupDone := make(chan struct{})
	go func() {
		defer close(groupDone)
		for p := range groupProgressCh {
			events <- Event{Tag: DupRunning, Done: p.CompletedBatches, Total: p.TotalBatches}
		}
	}()
	groups := g.Run(images, groupProgressCh, &o.cancel)
	close(groupProgressCh)
	<-groupDone
	end = time.Now()

	events <- Event{Tag: DupCompleted, Groups: groups, Start: start, End: end}

	if o.cancel.Load() {
		o.state.Store(int32(Cancelled))
		return
	}
	o.state.Store(int32(Done))
}

// DeleteSelected removes every file the caller has selected in store,
// using internal/remover's flock+mtime safety checks, then resets store
// so the caller can re-ingest a fresh Run against the same root.
// Re-running itself is left to the caller.
func (o *Orchestrator) DeleteSelected(store *review.Store) []remover.Result {
	selected := store.SelectedEntries(true)

	// Targets carry the ModTime recorded at ingestion, not a fresh stat:
	// the remover compares against the current mtime to catch files
	// edited during the review window.
	targets := make([]imgtypes.RasterImage, 0, len(selected))
	for fileID := range selected {
		entry, ok := store.Get(fileID)
		if !ok {
			continue
		}
		targets = append(targets, imgtypes.RasterImage{
			Path:    entry.FullPath,
			Size:    entry.SizeBytes,
			ModTime: entry.ModTime,
		})
	}

	results := remover.New(o.dryRun, o.errCh).Run(targets)
	store.Reset()
	return results
}
