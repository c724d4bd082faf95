package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/dupefind/internal/cache"
	"github.com/ivoronin/dupefind/internal/fingerprint"
	"github.com/ivoronin/dupefind/internal/orchestrator"
	"github.com/ivoronin/dupefind/internal/progress"
	"github.com/ivoronin/dupefind/internal/review"
	"github.com/mitchellh/colorstring"
	"github.com/spf13/cobra"
)

// findOptions holds CLI flags for the find command.
type findOptions struct {
	mode         string
	layout       string
	cfe          string
	workers      int
	noProgress   bool
	cacheFile    string
	deleteCopies bool
}

func newFindCmd() *cobra.Command {
	opts := &findOptions{
		mode:    "gallery",
		cfe:     "process",
		workers: runtime.NumCPU(),
	}

	cmd := &cobra.Command{
		Use:   "find [path]",
		Short: "Find duplicate pictures beneath a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runFind(args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", opts.mode, "Presentation mode: find, table, or gallery")
	cmd.Flags().StringVar(&opts.layout, "layout", "", "Layout: horizontal or vertical (default mode-dependent)")
	cmd.Flags().StringVar(&opts.cfe, "cfe", opts.cfe, "Fingerprinter worker-pool shape: process or thread")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", opts.workers, "Number of parallel workers")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to hash cache file (enables caching)")
	cmd.Flags().BoolVar(&opts.deleteCopies, "delete-copies", false, "After finding duplicates, delete every Copy-kind entry")

	return cmd
}

// drainErrors consumes errors from a channel and writes them to stderr.
// Clears the progress bar line before printing to avoid visual collision.
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kerror: %v\n", err)
	}
}

func runFind(root string, opts *findOptions) error {
	if opts.mode != "find" && opts.mode != "table" && opts.mode != "gallery" {
		return fmt.Errorf("invalid --mode %q: must be find, table, or gallery", opts.mode)
	}
	if opts.layout == "" {
		if opts.mode == "gallery" {
			opts.layout = "horizontal"
		} else {
			opts.layout = "vertical"
		}
	}
	if opts.layout != "horizontal" && opts.layout != "vertical" {
		return fmt.Errorf("invalid --layout %q: must be horizontal or vertical", opts.layout)
	}

	shape := fingerprint.ShapeProcess
	if opts.cfe == "thread" {
		shape = fingerprint.ShapeThread
	} else if opts.cfe != "process" {
		return fmt.Errorf("invalid --cfe %q: must be process or thread", opts.cfe)
	}
	if opts.mode == "gallery" {
		// gallery composes a heavier UI alongside the worker pool, and
		// child processes are unstable under it; force threads.
		shape = fingerprint.ShapeThread
	}

	showProgress := !opts.noProgress

	errs := make(chan error, 100)
	go drainErrors(errs)
	defer close(errs)

	hashCache, err := cache.Open(opts.cacheFile)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = hashCache.Close() }()

	store := review.New()

	orch := orchestrator.New(opts.workers, shape,
		orchestrator.WithFingerprintOptions(fingerprint.WithCache(hashCache)),
		orchestrator.WithErrorChannel(errs),
	)

	if err := runOnce(orch, store, root, showProgress); err != nil {
		return err
	}

	if opts.deleteCopies {
		if err := store.SetAllOfKind(review.Copy, true); err != nil {
			return fmt.Errorf("select copies: %w", err)
		}
		orch.DeleteSelected(store)
		if err := runOnce(orch, store, root, showProgress); err != nil {
			return err
		}
	}

	render(store, opts)
	return nil
}

// runOnce drives a single orchestrator pass and ingests its result into
// store, driving a single spinner redescribed per stage.
func runOnce(orch *orchestrator.Orchestrator, store *review.Store, root string, showProgress bool) error {
	bar := progress.New(showProgress, -1)

	events := orch.Run(context.Background(), root)
	var groups map[string][]string
	for ev := range events {
		switch ev.Tag {
		case orchestrator.FindRunning:
			bar.Describe(stageStat{"fingerprinting", ev.Done, ev.Total})
		case orchestrator.FindCompleted:
			bar.Describe(stageStat{"fingerprinting", len(ev.Images), len(ev.Images)})
		case orchestrator.DupRunning:
			bar.Describe(stageStat{"grouping", ev.Done, ev.Total})
		case orchestrator.DupCompleted:
			groups = ev.Groups
			bar.Finish(stageStat{"grouping", len(ev.Groups), len(ev.Groups)})
		}
	}

	return store.Ingest(root, groups)
}

type stageStat struct {
	stage            string
	completed, total int
}

func (s stageStat) String() string {
	return fmt.Sprintf("%s: %d/%d", s.stage, s.completed, s.total)
}

// render prints the populated store per --mode.
func render(store *review.Store, opts *findOptions) {
	stats := store.Stats()
	if stats.Groups == 0 {
		fmt.Println("no duplicates found")
		return
	}

	switch opts.mode {
	case "find":
		renderFind(store)
	case "table":
		renderPaged(store, opts.layout, false)
	case "gallery":
		renderPaged(store, opts.layout, true)
	}
}

func renderFind(store *review.Store) {
	for _, page := range store.AllPages() {
		for _, groupID := range store.GroupIDsOfPage(page) {
			for _, entry := range store.ItemsOfGroup(groupID) {
				fmt.Println(entry.FullPath)
			}
		}
	}
}

// renderPaged prints one page of groups at a time, advancing on input
// read from stdin; gallery additionally colors each entry's Kind tag.
func renderPaged(store *review.Store, layout string, colored bool) {
	pages := store.AllPages()
	scanner := bufio.NewScanner(os.Stdin)

	for i, page := range pages {
		renderPage(store, page, layout, colored)
		stats := store.Stats()
		fmt.Printf("\npage %d/%d: %d groups, %d files, %s reclaimable\n",
			i+1, len(pages), stats.Groups, stats.Files, humanize.Bytes(uint64(stats.ReclaimableBytes)))

		if i == len(pages)-1 {
			break
		}
		fmt.Print("[n]ext / [q]uit: ")
		if !scanner.Scan() {
			break
		}
		if scanner.Text() == "q" {
			break
		}
	}
}

// renderPage prints one page's groups. Vertical layout lists one file per
// line (the default for table mode); horizontal layout (the default for
// gallery mode) packs a group's files onto a single line, tab-separated.
// Purely cosmetic.
func renderPage(store *review.Store, page int, layout string, colored bool) {
	for _, groupID := range store.GroupIDsOfPage(page) {
		fmt.Printf("%s:\n", groupID)
		items := store.ItemsOfGroup(groupID)

		if layout == "horizontal" {
			fmt.Print("  ")
			for i, entry := range items {
				if i > 0 {
					fmt.Print("\t")
				}
				fmt.Print(formatEntry(entry, colored))
			}
			fmt.Println()
			continue
		}

		for _, entry := range items {
			fmt.Printf("  %s\n", formatEntry(entry, colored))
		}
	}
}

func formatEntry(entry review.FileEntry, colored bool) string {
	tag := entry.Kind.String()
	if colored {
		tag = colorize(entry.Kind)
	}
	return fmt.Sprintf("%s  %s  [%s]  %s", entry.FileID, entry.SizeText, tag, entry.DisplayPath)
}

func colorize(kind review.Kind) string {
	if kind == review.Original {
		return colorstring.Color("[green]Original[reset]")
	}
	return colorstring.Color("[yellow]Copy[reset]")
}
