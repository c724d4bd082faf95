package fingerprint

import (
	"sync/atomic"
	"time"

	"github.com/ivoronin/dupefind/internal/imgtypes"
)

// ITEMTimeout bounds a whole WorkItem's subprocess in ProcessPool, and
// each file's decode+hash in ThreadPool.
const ITEMTimeout = 10 * time.Minute

// Pool is a worker-pool shape for running WorkItems. Two shapes are
// supported and selected by configuration: ThreadPool (goroutines) and
// ProcessPool (OS subprocesses).
type Pool interface {
	// Process runs items across workers concurrent workers, reporting
	// (completed, total) on progressCh after each item and honouring
	// cancel: once set, the pool stops draining new items and returns
	// whatever has been collected so far.
	Process(items []WorkItem, workers int, progressCh chan<- Progress, cancel *atomic.Bool) []imgtypes.RasterImage
}
