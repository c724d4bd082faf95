// Package remover performs the confirmed deletions at the end of a
// review session.
//
// Before removing a file it takes a non-blocking advisory exclusive
// flock and verifies the mtime is unchanged since fingerprinting; a
// failure of either check skips the file, never forces it.
package remover

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/ivoronin/dupefind/internal/imgtypes"
)

// Action describes the outcome of one deletion attempt.
type Action int

const (
	// ActionDeleted means the file was removed (or would have been, in
	// dry-run mode).
	ActionDeleted Action = iota
	// ActionSkipped means the file was left alone: locked, changed since
	// fingerprinting, or otherwise unsafe to remove.
	ActionSkipped
)

// Result describes the outcome of removing one file.
type Result struct {
	Path       string
	Action     Action
	BytesFreed int64
	Err        error // non-nil when Action == ActionSkipped
}

// String formats the result for display, escaping control characters in
// paths.
func (r Result) String() string {
	switch r.Action {
	case ActionDeleted:
		return fmt.Sprintf("Deleted %s (%d bytes freed)", escapePath(r.Path), r.BytesFreed)
	case ActionSkipped:
		return fmt.Sprintf("skipped %s: %v", escapePath(r.Path), r.Err)
	default:
		return fmt.Sprintf("unknown action for %s", escapePath(r.Path))
	}
}

func escapePath(path string) string {
	r := strings.NewReplacer("\t", "\\t", "\n", "\\n", "\r", "\\r")
	return r.Replace(path)
}

// Remover deletes confirmed duplicate files.
//
// The remover is designed for single-use: create with New(), call Run()
// once per batch of targets.
type Remover struct {
	dryRun bool
	errCh  chan error
}

// New creates a Remover. errCh receives non-fatal per-file errors (may be
// nil to disable reporting); dryRun previews without touching the
// filesystem.
func New(dryRun bool, errCh chan error) *Remover {
	return &Remover{dryRun: dryRun, errCh: errCh}
}

// Run deletes every target, where target.ModTime is the value recorded by
// the Fingerprinter (or review store ingestion) for that path, used to
// detect concurrent modification. Returns one Result per target, in
// order.
func (rm *Remover) Run(targets []imgtypes.RasterImage) []Result {
	results := make([]Result, 0, len(targets))
	for _, target := range targets {
		result := rm.removeOne(target)
		if result.Err != nil {
			rm.sendError(fmt.Errorf("%s: %w", target.Path, result.Err))
		}
		results = append(results, result)
	}
	return results
}

// removeOne takes an exclusive non-blocking advisory lock, then verifies
// the mtime is unchanged, before deleting.
func (rm *Remover) removeOne(target imgtypes.RasterImage) Result {
	f, err := os.Open(target.Path)
	if err != nil {
		return Result{Path: target.Path, Action: ActionSkipped, Err: err}
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return Result{Path: target.Path, Action: ActionSkipped,
			Err: errors.New("file in use (locked by another process)")}
	}
	// Lock released automatically when f is closed (deferred above).

	info, err := f.Stat()
	if err != nil {
		return Result{Path: target.Path, Action: ActionSkipped, Err: err}
	}
	if !info.ModTime().Equal(target.ModTime) {
		return Result{Path: target.Path, Action: ActionSkipped,
			Err: errors.New("file modified since it was fingerprinted")}
	}

	if rm.dryRun {
		return Result{Path: target.Path, Action: ActionDeleted, BytesFreed: target.Size}
	}

	if err := os.Remove(target.Path); err != nil {
		return Result{Path: target.Path, Action: ActionSkipped, Err: err}
	}
	return Result{Path: target.Path, Action: ActionDeleted, BytesFreed: target.Size}
}

func (rm *Remover) sendError(err error) {
	if rm.errCh != nil {
		rm.errCh <- err
	}
}
