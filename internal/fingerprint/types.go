package fingerprint

// WorkItem is one unit of Fingerprinter work: either a single file
// (per-file scheduling) or a directory whose files are scanned serially
// inside the item (per-directory scheduling).
type WorkItem struct {
	// Files is the set of candidate file paths this item covers. For
	// per-file scheduling it holds exactly one path; for per-directory
	// scheduling it holds every regular file directly inside a directory.
	Files []string
}

// Progress reports (completed, total) work items drained.
type Progress struct {
	Completed int
	Total     int
}
