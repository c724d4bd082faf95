// Package group partitions RasterImage records into duplicate-hash
// equivalence classes, choosing between a serial and a batch-parallel
// strategy by input size.
package group

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ivoronin/dupefind/internal/imgtypes"
)

// BatchThreshold is the default input-size pivot between the serial and
// batch-parallel strategies, configurable per Grouper instance.
const BatchThreshold = 1000

// Progress reports batch completion for the batch-parallel strategy.
type Progress struct {
	CompletedBatches int
	TotalBatches     int
}

// Grouper partitions RasterImage records by content hash.
//
// The grouper is designed for single-use: create with New(), call Run() once.
type Grouper struct {
	workers        int
	batchThreshold int
}

// New creates a Grouper bounding batch-parallel fan-out to workers batches,
// switching to the batch-parallel strategy above batchThreshold records (0
// selects the default, BatchThreshold).
func New(workers, batchThreshold int) *Grouper {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if batchThreshold <= 0 {
		batchThreshold = BatchThreshold
	}
	return &Grouper{workers: workers, batchThreshold: batchThreshold}
}

// Run partitions images into hash → path-set groups, keeping only classes
// of size ≥ 2. Empty output (no duplicates) is a normal result.
func (g *Grouper) Run(images []imgtypes.RasterImage, progressCh chan<- Progress, cancel *atomic.Bool) map[string][]string {
	if len(images) <= g.batchThreshold {
		return serial(images)
	}

	if result, ok := batchParallel(images, g.workers, progressCh, cancel); ok {
		return result
	}
	// Partition error (batch count exceeds input size): fall back to serial.
	return serial(images)
}

// serial compares every unordered pair of records, grouping paths that
// share a hash. Chosen when len(images) <= batchThreshold.
func serial(images []imgtypes.RasterImage) map[string][]string {
	sets := make(map[string]map[string]struct{})
	n := len(images)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if images[i].Hash != images[j].Hash {
				continue
			}
			addPath(sets, images[i].Hash, images[i].Path)
			addPath(sets, images[i].Hash, images[j].Path)
		}
	}
	return finalize(sets)
}

// batchParallel partitions images into workers roughly-equal batches
// (remainder elements distributed one-per-batch into the earliest
// batches) and runs one worker goroutine per batch; each worker compares
// its batch's records against the full input. Partial maps are merged by
// union. Returns ok=false if workers exceeds len(images) (a partition
// error), signalling the caller to fall back to serial.
func batchParallel(images []imgtypes.RasterImage, workers int, progressCh chan<- Progress, cancel *atomic.Bool) (map[string][]string, bool) {
	n := len(images)
	if workers > n {
		return nil, false
	}

	batches := partition(images, workers)
	total := len(batches)

	var mu sync.Mutex
	merged := make(map[string]map[string]struct{})
	var completed atomic.Int64
	var wg sync.WaitGroup

	for _, batch := range batches {
		if cancel != nil && cancel.Load() {
			break
		}
		wg.Add(1)
		go func(b []imgtypes.RasterImage) {
			defer wg.Done()
			partial := compareBatch(b, images)

			mu.Lock()
			unionInto(merged, partial)
			mu.Unlock()

			c := completed.Add(1)
			if progressCh != nil {
				progressCh <- Progress{CompletedBatches: int(c), TotalBatches: total}
			}
		}(batch)
	}
	wg.Wait()

	return finalize(merged), true
}

// partition splits images into n roughly-equal batches; the first
// (len(images) % n) batches receive one extra element.
func partition(images []imgtypes.RasterImage, n int) [][]imgtypes.RasterImage {
	total := len(images)
	base := total / n
	remainder := total % n

	batches := make([][]imgtypes.RasterImage, 0, n)
	offset := 0
	for i := 0; i < n; i++ {
		size := base
		if i < remainder {
			size++
		}
		if size == 0 {
			continue
		}
		batches = append(batches, images[offset:offset+size])
		offset += size
	}
	return batches
}

// compareBatch compares every record in batch against the full input,
// recording hash matches while skipping self-comparisons.
func compareBatch(batch, full []imgtypes.RasterImage) map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{})
	for _, b := range batch {
		for _, a := range full {
			if a.Path == b.Path || a.Hash != b.Hash {
				continue
			}
			addPath(sets, b.Hash, b.Path)
			addPath(sets, b.Hash, a.Path)
		}
	}
	return sets
}

func addPath(sets map[string]map[string]struct{}, hash, path string) {
	set, ok := sets[hash]
	if !ok {
		set = make(map[string]struct{})
		sets[hash] = set
	}
	set[path] = struct{}{}
}

// unionInto merges src into dst in place, taking the union of path-sets
// per hash, never overwriting, since the same hash can surface from
// more than one batch.
func unionInto(dst, src map[string]map[string]struct{}) {
	for hash, paths := range src {
		set, ok := dst[hash]
		if !ok {
			set = make(map[string]struct{})
			dst[hash] = set
		}
		for p := range paths {
			set[p] = struct{}{}
		}
	}
}

// finalize drops classes smaller than 2 members and renders each
// remaining path-set as a sorted slice for deterministic output.
func finalize(sets map[string]map[string]struct{}) map[string][]string {
	result := make(map[string][]string, len(sets))
	for hash, set := range sets {
		if len(set) < 2 {
			continue
		}
		paths := make([]string, 0, len(set))
		for p := range set {
			paths = append(paths, p)
		}
		slices.Sort(paths)
		result[hash] = paths
	}
	return result
}
