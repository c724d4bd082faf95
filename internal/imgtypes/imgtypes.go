// Package imgtypes provides shared types used across the dupefind codebase.
package imgtypes

import (
	"cmp"
	"slices"
	"time"
)

// RasterImage is a decoded-and-fingerprinted candidate file, emitted by the
// Fingerprinter and consumed by the Grouper.
type RasterImage struct {
	Hash    string // hex-encoded content digest of the (possibly downsampled) pixel buffer
	Path    string // absolute filesystem path
	Size    int64  // file size on disk, bytes
	ModTime time.Time
}

// Sorted is an ordered collection that maintains sort order by a key function.
// T is the element type, K is the comparable key type.
// Once constructed, items are guaranteed to be sorted by key.
type Sorted[T any, K cmp.Ordered] struct {
	items []T
}

// NewSorted creates a sorted collection from items using keyFunc for ordering.
// Items are copied and sorted at construction time.
func NewSorted[T any, K cmp.Ordered](items []T, keyFunc func(T) K) Sorted[T, K] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	slices.SortFunc(sorted, func(a, b T) int {
		return cmp.Compare(keyFunc(a), keyFunc(b))
	})
	return Sorted[T, K]{items: sorted}
}

// Items returns the sorted items.
func (s Sorted[T, K]) Items() []T { return s.items }

// DuplicateGroup is a set of two or more RasterImage records sharing a hash,
// ordered by ModTime ascending (oldest first). Ties on
// ModTime are broken by pre-sorting the raw slice by path descending before
// the stable ModTime sort, so that members sharing a timestamp retain a
// deterministic relative order instead of silently collapsing.
type DuplicateGroup struct {
	Hash    string
	Members []RasterImage
}

// NewDuplicateGroup builds a DuplicateGroup from an unordered set of images
// sharing hash, applying the ModTime-ascending / path-descending-tiebreak
// ordering rule above.
func NewDuplicateGroup(hash string, images []RasterImage) DuplicateGroup {
	sorted := make([]RasterImage, len(images))
	copy(sorted, images)

	// Pre-sort by path descending so that a later stable sort-by-ModTime
	// preserves this relative order among images sharing a timestamp.
	slices.SortFunc(sorted, func(a, b RasterImage) int {
		return cmp.Compare(b.Path, a.Path)
	})
	slices.SortStableFunc(sorted, func(a, b RasterImage) int {
		return a.ModTime.Compare(b.ModTime)
	})

	return DuplicateGroup{Hash: hash, Members: sorted}
}

// Semaphore implements a counting semaphore using a buffered channel.
// It limits concurrent access to a resource by blocking when the limit is reached.
type Semaphore chan struct{}

// NewSemaphore creates a semaphore that allows up to n concurrent acquisitions.
func NewSemaphore(n int) Semaphore { return make(chan struct{}, n) }

// Acquire blocks until a slot is available, then claims it.
func (s Semaphore) Acquire() { s <- struct{}{} }

// Release frees a slot, unblocking one waiting Acquire call.
func (s Semaphore) Release() { <-s }
