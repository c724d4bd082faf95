package review

import (
	"errors"
	"fmt"
	"time"
)

// ErrPrecondition marks a precondition violation: invalid argument value
// or a missing/incorrectly-typed input. Callers may check with
// errors.Is(err, ErrPrecondition).
var ErrPrecondition = errors.New("precondition violation")

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrPrecondition}, args...)...)
}

// PageSize is the fixed number of groups per page.
const PageSize = 15

// Kind classifies a FileEntry's position within its duplicate group.
type Kind int

const (
	// Original is the earliest-created member of a duplicate group.
	Original Kind = iota
	// Copy is any non-earliest member of a duplicate group.
	Copy
)

// String renders the Kind the way the CLI and FileEntry formatting expect.
func (k Kind) String() string {
	switch k {
	case Original:
		return "Original"
	case Copy:
		return "Copy"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is one of the two defined Kind values.
func (k Kind) Valid() bool {
	return k == Original || k == Copy
}

// ParseKind converts a CLI/UI-facing string into a Kind, returning
// ErrPrecondition for anything other than "Original" or "Copy".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "Original":
		return Original, nil
	case "Copy":
		return Copy, nil
	default:
		return 0, preconditionf("invalid kind %q", s)
	}
}

// FileEntry is one file's record within the review store.
type FileEntry struct {
	FileID      string // "${group_id}_F${member_index}"
	GroupID     string // "G0".."G(N-1)", dense
	Hash        string
	FullPath    string
	DisplayPath string    // full_path with the root prefix stripped, "." prefixed
	CreatedAt   string    // "YYYY-MM-DD HH:MM:SS", rendered from ModTime
	ModTime     time.Time // raw ingestion-time mtime, used to detect edits before deletion
	SizeText    string    // 1000-based, three-decimal-place rendering
	SizeBytes   int64     // raw size backing SizeText, used by Store.Stats
	Selected    bool
	Kind        Kind
	Page        int // floor(group_index / PageSize)
	SN          int // insertion serial; stable for the run's lifetime
}

// formatSize renders n bytes using 1000-based B/KB/MB/GB divisions with
// three decimal places. humanize.Bytes rounds to varying precision, so
// this exact format needs its own formatter.
func formatSize(n int64) string {
	units := [...]string{"B", "KB", "MB", "GB"}
	v := float64(n)
	u := 0
	for v >= 1000 && u < len(units)-1 {
		v /= 1000
		u++
	}
	return fmt.Sprintf("%.3f %s", v, units[u])
}
