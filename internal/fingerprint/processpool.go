package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/ivoronin/dupefind/internal/imgtypes"
)

// WorkerSubcommandArg is the hidden CLI argument the running binary
// recognizes to act as a fingerprint subprocess worker instead of the
// normal CLI: a thin helper mode dispatched by argv[1].
const WorkerSubcommandArg = "__fingerprint-worker"

// ProcessPool runs each WorkItem in its own short-lived subprocess: a
// fresh invocation of the running binary in worker mode, fed the item as a
// single JSON line on stdin and returning its RasterImage results as a
// single JSON line on stdout.
//
// Preferred for CPU-bound decode+hash throughput: a crashing or runaway
// decoder only takes down its own subprocess, never the caller.
type ProcessPool struct{}

// Process implements Pool.
func (ProcessPool) Process(items []WorkItem, workers int, progressCh chan<- Progress, cancel *atomic.Bool) []imgtypes.RasterImage {
	if workers < 1 {
		workers = 1
	}
	total := len(items)

	sem := imgtypes.NewSemaphore(workers)
	resultCh := make(chan imgtypes.RasterImage, 1000)
	var completed atomic.Int64
	var wg sync.WaitGroup

	for _, item := range items {
		if cancel != nil && cancel.Load() {
			break
		}
		sem.Acquire()
		wg.Add(1)
		go func(it WorkItem) {
			defer wg.Done()
			defer sem.Release()

			for _, img := range runItemInSubprocess(it) {
				resultCh <- img
			}
			c := completed.Add(1)
			if progressCh != nil {
				progressCh <- Progress{Completed: int(c), Total: total}
			}
		}(item)
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

// runItemInSubprocess spawns one worker subprocess bounded by ITEMTimeout.
// Any failure (spawn error, timeout, malformed output) drops the item
// silently, as per-item recovery, never a pool-wide failure.
func runItemInSubprocess(item WorkItem) []imgtypes.RasterImage {
	exePath, err := os.Executable()
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ITEMTimeout)
	defer cancel()

	payload, err := json.Marshal(item)
	if err != nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, exePath, WorkerSubcommandArg)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil
	}

	var images []imgtypes.RasterImage
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &images); err != nil {
		return nil
	}
	return images
}

// RunWorker implements the subprocess side of the ProcessPool protocol: read
// one JSON-encoded WorkItem line, fingerprint its files, write the
// resulting RasterImage slice back as one JSON line. Dispatched from
// cmd/dupefind's main() when invoked with WorkerSubcommandArg.
func RunWorker(stdinLine []byte) ([]byte, error) {
	var item WorkItem
	if err := json.Unmarshal(bytes.TrimSpace(stdinLine), &item); err != nil {
		return nil, err
	}

	images := processItemWithTimeout(item)
	if images == nil {
		images = []imgtypes.RasterImage{}
	}
	return json.Marshal(images)
}
