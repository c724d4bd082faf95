package fingerprint

import (
	"os"
	"path/filepath"
)

// buildWorkItems turns a set of directories into WorkItems: per-file when
// the root has no subdirectories (len(dirs) == 1, the root alone),
// per-directory otherwise.
func buildWorkItems(dirs []string) []WorkItem {
	perFile := len(dirs) <= 1

	var items []WorkItem
	for _, dir := range dirs {
		files := regularFiles(dir)
		if len(files) == 0 {
			continue
		}
		if perFile {
			for _, f := range files {
				items = append(items, WorkItem{Files: []string{f}})
			}
			continue
		}
		items = append(items, WorkItem{Files: files})
	}
	return items
}

// regularFiles lists the non-hidden regular files directly inside dir.
func regularFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		if entry.Type().IsRegular() || entry.Type() == 0 {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files
}
