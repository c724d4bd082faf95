// Package walker enumerates the non-hidden subdirectories beneath a root
// directory using a concurrent fan-out/fan-in traversal.
//
// # Concurrency Model
//
// The walker spawns one goroutine per directory discovered, limited by a
// semaphore, and fans results in through a single collector goroutine.
//
//	Run() starts
//	    │
//	    ├──► spawn collector goroutine (reads resultCh)
//	    ├──► walkDirectory(root)
//	    │        ├──► acquire semaphore
//	    │        ├──► os.ReadDir(dir)
//	    │        ├──► release semaphore
//	    │        └──► for each non-hidden subdir: send it to resultCh,
//	    │             then walkDirectory(subdir) [recursive fan-out]
//	    ├──► walkerWg.Wait()
//	    ├──► close(resultCh)
//	    ├──► collectorWg.Wait()
//	    └──► return results
package walker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ivoronin/dupefind/internal/imgtypes"
)

// Walker enumerates non-hidden subdirectories beneath a root directory.
//
// The walker is designed for single-use: create with New(), call Run() once.
type Walker struct {
	root    string
	workers int
	errs    []error
	errMu   sync.Mutex

	walkerWg sync.WaitGroup
	sem      imgtypes.Semaphore
	resultCh chan string
}

// New creates a Walker rooted at root, bounding concurrent directory reads
// to workers goroutines.
func New(root string, workers int) *Walker {
	if workers < 1 {
		workers = 1
	}
	return &Walker{root: root, workers: workers}
}

// Run returns every non-hidden subdirectory reachable beneath the root,
// in lexicographic order. The root itself is not included.
// Permission-denied errors on individual directories are recovered
// locally and recorded; call Errors() afterward to retrieve them. A
// missing or non-directory root is reported
// as a precondition violation.
func (w *Walker) Run() ([]string, error) {
	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("walker: root precondition violation: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("walker: root precondition violation: %q is not a directory", w.root)
	}

	w.sem = imgtypes.NewSemaphore(w.workers)
	w.resultCh = make(chan string, 1000)

	var results []string
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for dir := range w.resultCh {
			results = append(results, dir)
		}
	}()

	w.walkDirectory(w.root)

	w.walkerWg.Wait()
	close(w.resultCh)
	collectorWg.Wait()

	// Fan-in order depends on goroutine scheduling; sort so the returned
	// order is stable for a given filesystem state.
	return imgtypes.NewSorted(results, func(p string) string { return p }).Items(), nil
}

// Errors returns the permission-denial diagnostics collected during Run.
func (w *Walker) Errors() []error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return append([]error(nil), w.errs...)
}

func (w *Walker) walkDirectory(dir string) {
	w.walkerWg.Add(1)
	go func() {
		defer w.walkerWg.Done()

		w.sem.Acquire()
		entries, err := os.ReadDir(dir)
		w.sem.Release()
		if err != nil {
			w.recordError(err)
			return
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if isHidden(entry.Name()) {
				continue
			}
			sub := filepath.Join(dir, entry.Name())
			w.resultCh <- sub
			w.walkDirectory(sub)
		}
	}()
}

func (w *Walker) recordError(err error) {
	w.errMu.Lock()
	w.errs = append(w.errs, err)
	w.errMu.Unlock()
}

// isHidden reports whether a path's final component begins with a dot.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
