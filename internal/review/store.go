// Package review implements the review store: an in-memory, paged,
// query-able collection of duplicate-picture groups. The store owns all
// FileEntry values for the current run; it is populated once per pipeline
// run and reset on a new root selection or after deletion.
package review

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ivoronin/dupefind/internal/imgtypes"
)

// Store holds duplicate-group FileEntry records for the current run.
//
// Safe for concurrent use. In practice only the consuming thread mutates
// it, after the orchestrator's terminal event, but operations are
// synchronized regardless.
type Store struct {
	mu sync.RWMutex

	root string

	entries  []FileEntry    // stable by slice index once appended; never reordered or removed
	byFileID map[string]int // file_id -> index into entries

	groupOrder   []string         // dense group_id order, "G0", "G1", ...
	groupIndex   map[string]int   // group_id -> position in groupOrder
	groupMembers map[string][]int // group_id -> indices into entries, insertion order

	pageGroups map[int][]string // page -> group_ids in ascending group-index order
}

// New returns an empty, usable Store.
func New() *Store {
	s := &Store{}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.entries = nil
	s.byFileID = make(map[string]int)
	s.groupOrder = nil
	s.groupIndex = make(map[string]int)
	s.groupMembers = make(map[string][]int)
	s.pageGroups = make(map[int][]string)
}

// Reset removes all entries, keeping the store usable.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// IsEmpty reports whether the store currently holds no entries.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) == 0
}

// Ingest populates the store from a Grouper result: a mapping from content
// hash to the set of paths sharing it, all beneath root. Groups are
// numbered in ascending-hash order, since Go's map type carries no
// iteration order to preserve. Each group's members are ordered by
// creation time ascending via imgtypes.NewDuplicateGroup, which also
// resolves creation-time ties deterministically.
//
// A path that can no longer be stat'd is dropped from its group (the
// file may have been removed between fingerprinting and ingestion); a
// group left with fewer than two survivors is not ingested.
func (s *Store) Ingest(root string, groups map[string][]string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return preconditionf("root %q is missing or not a directory", root)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.root = root

	hashes := make([]string, 0, len(groups))
	for hash := range groups {
		hashes = append(hashes, hash)
	}
	slices.Sort(hashes)

	for _, hash := range hashes {
		images := make([]imgtypes.RasterImage, 0, len(groups[hash]))
		for _, p := range groups[hash] {
			fi, err := os.Stat(p)
			if err != nil {
				continue
			}
			images = append(images, imgtypes.RasterImage{Hash: hash, Path: p, Size: fi.Size(), ModTime: fi.ModTime()})
		}
		if len(images) < 2 {
			continue
		}
		s.ingestGroupLocked(imgtypes.NewDuplicateGroup(hash, images))
	}
	return nil
}

func (s *Store) ingestGroupLocked(dup imgtypes.DuplicateGroup) {
	groupIdx := len(s.groupOrder)
	groupID := fmt.Sprintf("G%d", groupIdx)
	page := groupIdx / PageSize

	indices := make([]int, 0, len(dup.Members))
	for memberIdx, img := range dup.Members {
		kind := Copy
		if memberIdx == 0 {
			kind = Original
		}
		entry := FileEntry{
			FileID:      fmt.Sprintf("%s_F%d", groupID, memberIdx),
			GroupID:     groupID,
			Hash:        dup.Hash,
			FullPath:    img.Path,
			DisplayPath: displayPath(s.root, img.Path),
			CreatedAt:   img.ModTime.Format("2006-01-02 15:04:05"),
			ModTime:     img.ModTime,
			SizeText:    formatSize(img.Size),
			SizeBytes:   img.Size,
			Selected:    false,
			Kind:        kind,
			Page:        page,
			SN:          len(s.entries),
		}
		idx := len(s.entries)
		s.entries = append(s.entries, entry)
		s.byFileID[entry.FileID] = idx
		indices = append(indices, idx)
	}

	s.groupOrder = append(s.groupOrder, groupID)
	s.groupIndex[groupID] = groupIdx
	s.groupMembers[groupID] = indices
	s.pageGroups[page] = append(s.pageGroups[page], groupID)
}

// displayPath strips root from fullPath and prefixes the remainder with ".".
func displayPath(root, fullPath string) string {
	rel := strings.TrimPrefix(fullPath, root)
	if !strings.HasPrefix(rel, string(filepath.Separator)) {
		rel = string(filepath.Separator) + rel
	}
	return "." + rel
}

// GroupIDsOfPage returns the ordered group_ids on page p, or nil if p has
// no entries.
func (s *Store) GroupIDsOfPage(p int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.pageGroups[p]...)
}

// AllPages returns the ordered list of page numbers that contain any entry.
func (s *Store) AllPages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := make([]int, 0, len(s.pageGroups))
	for p := range s.pageGroups {
		pages = append(pages, p)
	}
	slices.Sort(pages)
	return pages
}

// ItemsOfGroup returns the ordered FileEntry values for group g, or nil if
// g is unknown or has no surviving members.
func (s *Store) ItemsOfGroup(g string) []FileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	indices := s.groupMembers[g]
	if len(indices) == 0 {
		return nil
	}
	items := make([]FileEntry, len(indices))
	for i, idx := range indices {
		items[i] = s.entries[idx]
	}
	return items
}

// FileIDsOfGroup returns the ordered file_ids for group g.
func (s *Store) FileIDsOfGroup(g string) []string {
	items := s.ItemsOfGroup(g)
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, e := range items {
		ids[i] = e.FileID
	}
	return ids
}

// SelectedOfGroup returns the ordered selection booleans for group g.
func (s *Store) SelectedOfGroup(g string) []bool {
	items := s.ItemsOfGroup(g)
	if len(items) == 0 {
		return nil
	}
	sel := make([]bool, len(items))
	for i, e := range items {
		sel[i] = e.Selected
	}
	return sel
}

// FullPathsOfGroup returns the ordered absolute paths for group g.
func (s *Store) FullPathsOfGroup(g string) []string {
	items := s.ItemsOfGroup(g)
	if len(items) == 0 {
		return nil
	}
	paths := make([]string, len(items))
	for i, e := range items {
		paths[i] = e.FullPath
	}
	return paths
}

// GroupIDOf returns the group_id owning file_id, or ("", false) if unknown.
func (s *Store) GroupIDOf(fileID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byFileID[fileID]
	if !ok {
		return "", false
	}
	return s.entries[idx].GroupID, true
}

// Get returns the full FileEntry for file_id, or (zero, false) if unknown.
func (s *Store) Get(fileID string) (FileEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byFileID[fileID]
	if !ok {
		return FileEntry{}, false
	}
	return s.entries[idx], true
}

// SelectedEntries returns a mapping file_id -> full_path for every entry
// whose Selected equals value.
func (s *Store) SelectedEntries(value bool) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]string)
	for fileID, idx := range s.byFileID {
		if s.entries[idx].Selected == value {
			result[fileID] = s.entries[idx].FullPath
		}
	}
	return result
}

// GroupedPath pairs a group_id with a full_path, returned by
// SelectedEntriesWithGroup.
type GroupedPath struct {
	GroupID  string
	FullPath string
}

// SelectedEntriesWithGroup returns a mapping file_id -> (group_id,
// full_path) for every entry whose Selected equals value.
func (s *Store) SelectedEntriesWithGroup(value bool) map[string]GroupedPath {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]GroupedPath)
	for fileID, idx := range s.byFileID {
		e := s.entries[idx]
		if e.Selected == value {
			result[fileID] = GroupedPath{GroupID: e.GroupID, FullPath: e.FullPath}
		}
	}
	return result
}

// Toggle flips the selected bit of file_id. Unknown file_ids are a
// no-op, never an error.
func (s *Store) Toggle(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggleLocked(fileID)
}

func (s *Store) toggleLocked(fileID string) {
	if idx, ok := s.byFileID[fileID]; ok {
		s.entries[idx].Selected = !s.entries[idx].Selected
	}
}

// ToggleMany flips the selected bit of every file_id in fileIDs.
func (s *Store) ToggleMany(fileIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range fileIDs {
		s.toggleLocked(id)
	}
}

// ToggleAllOfKind flips the selected bit of every entry with the given
// Kind. Returns ErrPrecondition if kind is not Original or Copy.
func (s *Store) ToggleAllOfKind(kind Kind) error {
	if !kind.Valid() {
		return preconditionf("invalid kind %v", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Kind == kind {
			s.entries[i].Selected = !s.entries[i].Selected
		}
	}
	return nil
}

// SetAllOfKind sets the selected bit of every entry with the given Kind to
// value. Returns ErrPrecondition if kind is not Original or Copy.
func (s *Store) SetAllOfKind(kind Kind, value bool) error {
	if !kind.Valid() {
		return preconditionf("invalid kind %v", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Kind == kind {
			s.entries[i].Selected = value
		}
	}
	return nil
}

// Delete removes one entry from the store (used after on-disk deletion).
// Unknown file_ids are a no-op. Deletion never renumbers group_ids or
// file_ids: the surviving entries keep their sn, page, and identifiers
// exactly as assigned at ingestion.
func (s *Store) Delete(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byFileID[fileID]
	if !ok {
		return
	}
	groupID := s.entries[idx].GroupID
	delete(s.byFileID, fileID)
	s.groupMembers[groupID] = slices.DeleteFunc(s.groupMembers[groupID], func(i int) bool { return i == idx })
}

// PreviousPageOf returns up to span group_ids immediately before the group
// containing groupID, in ascending order, or nil if groupID is unknown or
// is already the first group.
func (s *Store) PreviousPageOf(groupID string, span int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.groupIndex[groupID]
	if !ok {
		return nil
	}
	start := idx - span
	if start < 0 {
		start = 0
	}
	if start >= idx {
		return nil
	}
	return append([]string(nil), s.groupOrder[start:idx]...)
}

// NextPageOf returns up to span group_ids immediately after the group
// containing groupID, in ascending order, or nil if groupID is unknown or
// is already the last group.
func (s *Store) NextPageOf(groupID string, span int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.groupIndex[groupID]
	if !ok {
		return nil
	}
	start := idx + 1
	end := start + span
	if end > len(s.groupOrder) {
		end = len(s.groupOrder)
	}
	if start >= end {
		return nil
	}
	return append([]string(nil), s.groupOrder[start:end]...)
}

// Stats aggregates the current store into the totals the CLI's paged
// summary line prints.
type Stats struct {
	Groups           int
	Files            int
	ReclaimableBytes int64
}

// Stats returns the current aggregate totals.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Groups: len(s.groupOrder), Files: len(s.byFileID)}
	for _, idx := range s.byFileID {
		if s.entries[idx].Kind == Copy {
			st.ReclaimableBytes += s.entries[idx].SizeBytes
		}
	}
	return st
}
