// Package fingerprint converts candidate raster-image files beneath a set
// of directories into content-hash fingerprints, using a parallel worker
// pool whose shape (goroutines vs subprocesses) and scheduling granularity
// (per-file vs per-directory) are chosen by configuration.
package fingerprint

import (
	"sync/atomic"

	"github.com/ivoronin/dupefind/internal/cache"
	"github.com/ivoronin/dupefind/internal/imgtypes"
)

// Shape selects the Fingerprinter's worker-pool implementation.
type Shape int

const (
	// ShapeThread runs per-file work on goroutines (stable under a heavy
	// UI composition; the forced shape for gallery mode).
	ShapeThread Shape = iota
	// ShapeProcess runs per-file work in subprocesses (best CPU-bound
	// decode+hash throughput; the default for find/table mode).
	ShapeProcess
)

// Fingerprinter decodes and hashes candidate files beneath a set of
// directories.
//
// The Fingerprinter is designed for single-use: create with New(), call
// Run() once.
type Fingerprinter struct {
	workers int
	shape   Shape
	cache   *cache.Cache
}

// Option configures a Fingerprinter.
type Option func(*Fingerprinter)

// WithCache attaches an optional on-disk hash cache (nil-safe: a disabled
// cache per cache.Open("")).
func WithCache(c *cache.Cache) Option {
	return func(f *Fingerprinter) { f.cache = c }
}

// New creates a Fingerprinter bounding concurrency to workers and using the
// given pool shape.
func New(workers int, shape Shape, opts ...Option) *Fingerprinter {
	f := &Fingerprinter{workers: workers, shape: shape}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fingerprinter) pool() Pool {
	if f.shape == ShapeProcess {
		return ProcessPool{}
	}
	return ThreadPool{}
}

// Run fingerprints every candidate file beneath dirs (which must include
// the root itself, not only its descendants). It streams
// (completed, total) progress on progressCh (may be nil to disable), and
// returns whatever was collected once every item is drained or cancel is
// set. Cancellation is polled once per drained item, never mid-decode.
func (f *Fingerprinter) Run(dirs []string, progressCh chan<- Progress, cancel *atomic.Bool) []imgtypes.RasterImage {
	items := buildWorkItems(dirs)
	if len(items) == 0 {
		return nil
	}

	if f.cache != nil {
		return f.runCached(items, progressCh, cancel)
	}
	return f.pool().Process(items, f.workers, progressCh, cancel)
}

// runCached consults the hash cache for each file before falling back to
// the normal pool for cache misses, an internal performance detail of
// this stage only; the cache never feeds the review store, which stays
// in-memory for the session.
func (f *Fingerprinter) runCached(items []WorkItem, progressCh chan<- Progress, cancel *atomic.Bool) []imgtypes.RasterImage {
	var cachedImages []imgtypes.RasterImage
	var remaining []WorkItem

	for _, item := range items {
		var misses []string
		for _, path := range item.Files {
			if img, ok := f.cache.LookupImage(path); ok {
				cachedImages = append(cachedImages, img)
				continue
			}
			misses = append(misses, path)
		}
		if len(misses) > 0 {
			remaining = append(remaining, WorkItem{Files: misses})
		}
	}

	fresh := f.pool().Process(remaining, f.workers, progressCh, cancel)
	for _, img := range fresh {
		_ = f.cache.StoreImage(img)
	}
	return append(cachedImages, fresh...)
}
