package fingerprint

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivoronin/dupefind/internal/imgtypes"
)

// ThreadPool runs WorkItems across a fixed goroutine pool: a buffered
// channel of work items drained by N worker goroutines, fanning results
// into a single collector.
//
// Preferred when the host would be unstable spawning child processes
// alongside a heavier UI composition; the default shape for gallery-mode
// operation.
type ThreadPool struct{}

// Process implements Pool.
func (ThreadPool) Process(items []WorkItem, workers int, progressCh chan<- Progress, cancel *atomic.Bool) []imgtypes.RasterImage {
	if workers < 1 {
		workers = 1
	}
	total := len(items)

	itemCh := make(chan WorkItem, total)
	for _, it := range items {
		itemCh <- it
	}
	close(itemCh)

	resultCh := make(chan imgtypes.RasterImage, 1000)
	var completed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				if cancel != nil && cancel.Load() {
					continue
				}
				for _, img := range processItemWithTimeout(item) {
					resultCh <- img
				}
				c := completed.Add(1)
				if progressCh != nil {
					progressCh <- Progress{Completed: int(c), Total: total}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var images []imgtypes.RasterImage
	for img := range resultCh {
		images = append(images, img)
	}
	return images
}

// processItemWithTimeout fingerprints every file in item, bounding each
// file's decode+hash by ITEMTimeout so a runaway decoder cannot stall the
// pool.
func processItemWithTimeout(item WorkItem) []imgtypes.RasterImage {
	var out []imgtypes.RasterImage
	for _, path := range item.Files {
		type fpResult struct {
			img imgtypes.RasterImage
			ok  bool
		}
		done := make(chan fpResult, 1)
		go func(p string) {
			img, ok := fingerprintFile(p)
			done <- fpResult{img, ok}
		}(path)

		select {
		case r := <-done:
			if r.ok {
				out = append(out, r.img)
			}
		case <-time.After(ITEMTimeout):
			// Per-item timeout: drop this file, continue with the rest.
		}
	}
	return out
}
