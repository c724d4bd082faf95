package review

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeImage(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestIngestRejectsMissingRoot(t *testing.T) {
	s := New()
	err := s.Ingest(filepath.Join(t.TempDir(), "nope"), nil)
	if err == nil {
		t.Fatal("Ingest() with missing root returned nil error, want ErrPrecondition")
	}
}

func TestIngestOneDuplicatePair(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, "a.jpg")
	newer := filepath.Join(root, "b.jpg")
	writeImage(t, older, time.Unix(1000, 0))
	writeImage(t, newer, time.Unix(2000, 0))

	s := New()
	if err := s.Ingest(root, map[string][]string{"hash1": {older, newer}}); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	if s.IsEmpty() {
		t.Fatal("store should not be empty after ingesting a duplicate pair")
	}
	if got := s.AllPages(); len(got) != 1 || got[0] != 0 {
		t.Errorf("AllPages() = %v, want [0]", got)
	}

	items := s.ItemsOfGroup("G0")
	if len(items) != 2 {
		t.Fatalf("ItemsOfGroup(G0) has %d items, want 2", len(items))
	}
	if items[0].FileID != "G0_F0" || items[0].Kind != Original {
		t.Errorf("items[0] = %+v, want FileID=G0_F0 Kind=Original", items[0])
	}
	if items[0].FullPath != older {
		t.Errorf("items[0].FullPath = %q, want %q", items[0].FullPath, older)
	}
	if items[1].FileID != "G0_F1" || items[1].Kind != Copy {
		t.Errorf("items[1] = %+v, want FileID=G0_F1 Kind=Copy", items[1])
	}
	if items[1].FullPath != newer {
		t.Errorf("items[1].FullPath = %q, want %q", items[1].FullPath, newer)
	}
}

func TestGroupInvariantsHoldAcrossPopulatedStore(t *testing.T) {
	root := t.TempDir()
	groups := map[string][]string{}
	for g := 0; g < 5; g++ {
		var paths []string
		for m := 0; m < 3; m++ {
			p := filepath.Join(root, fmt.Sprintf("g%d_m%d.jpg", g, m))
			writeImage(t, p, time.Unix(int64(1000+m), 0))
			paths = append(paths, p)
		}
		groups[fmt.Sprintf("hash%d", g)] = paths
	}

	s := New()
	if err := s.Ingest(root, groups); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	for _, page := range s.AllPages() {
		for _, gid := range s.GroupIDsOfPage(page) {
			items := s.ItemsOfGroup(gid)
			if len(items) < 2 {
				t.Errorf("group %s has %d members, want >= 2", gid, len(items))
			}

			originals := 0
			for i, e := range items {
				if e.GroupID != gid {
					t.Errorf("entry %s has GroupID %s, want %s", e.FileID, e.GroupID, gid)
				}
				if e.Kind == Original {
					originals++
				}
				if i > 0 && items[i-1].CreatedAt > e.CreatedAt {
					t.Errorf("group %s members not in ascending created_at order", gid)
				}
			}
			if originals != 1 {
				t.Errorf("group %s has %d Original entries, want exactly 1", gid, originals)
			}
		}
	}
}

func TestHashEqualityWithinGroup(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.jpg")
	b := filepath.Join(root, "b.jpg")
	writeImage(t, a, time.Unix(1000, 0))
	writeImage(t, b, time.Unix(2000, 0))

	s := New()
	if err := s.Ingest(root, map[string][]string{"sharedhash": {a, b}}); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	items := s.ItemsOfGroup("G0")
	if items[0].Hash != items[1].Hash {
		t.Errorf("group members have differing hashes: %q vs %q", items[0].Hash, items[1].Hash)
	}
}

func TestToggleIsIdempotentAfterTwoApplications(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.jpg")
	b := filepath.Join(root, "b.jpg")
	writeImage(t, a, time.Unix(1000, 0))
	writeImage(t, b, time.Unix(2000, 0))

	s := New()
	_ = s.Ingest(root, map[string][]string{"h": {a, b}})

	before, _ := s.Get("G0_F1")
	s.Toggle("G0_F1")
	s.Toggle("G0_F1")
	after, _ := s.Get("G0_F1")

	if before.Selected != after.Selected {
		t.Errorf("toggling twice changed Selected: before=%v after=%v", before.Selected, after.Selected)
	}
}

func TestSetAllOfKind(t *testing.T) {
	root := t.TempDir()
	groups := map[string][]string{}
	for g := 0; g < 3; g++ {
		a := filepath.Join(root, fmt.Sprintf("g%d_a.jpg", g))
		b := filepath.Join(root, fmt.Sprintf("g%d_b.jpg", g))
		writeImage(t, a, time.Unix(1000, 0))
		writeImage(t, b, time.Unix(2000, 0))
		groups[fmt.Sprintf("hash%d", g)] = []string{a, b}
	}

	s := New()
	_ = s.Ingest(root, groups)

	if err := s.SetAllOfKind(Copy, true); err != nil {
		t.Fatalf("SetAllOfKind() failed: %v", err)
	}

	for _, gid := range s.GroupIDsOfPage(0) {
		for _, e := range s.ItemsOfGroup(gid) {
			if e.Kind == Copy && !e.Selected {
				t.Errorf("entry %s is Copy but not selected", e.FileID)
			}
			if e.Kind == Original && e.Selected {
				t.Errorf("entry %s is Original but selected", e.FileID)
			}
		}
	}
}

func TestSetAllOfKindRejectsInvalidKind(t *testing.T) {
	s := New()
	if err := s.SetAllOfKind(Kind(99), true); err == nil {
		t.Fatal("SetAllOfKind() with invalid kind returned nil error, want ErrPrecondition")
	}
}

func TestIngestIsIdempotentOnSameInput(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.jpg")
	b := filepath.Join(root, "b.jpg")
	writeImage(t, a, time.Unix(1000, 0))
	writeImage(t, b, time.Unix(2000, 0))
	groups := map[string][]string{"h": {a, b}}

	s1 := New()
	_ = s1.Ingest(root, groups)
	first := s1.ItemsOfGroup("G0")

	s2 := New()
	_ = s2.Ingest(root, groups)
	second := s2.ItemsOfGroup("G0")

	if len(first) != len(second) {
		t.Fatalf("differing lengths: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPreviousNextPageInverse(t *testing.T) {
	root := t.TempDir()
	groups := map[string][]string{}
	for g := 0; g < 47; g++ {
		a := filepath.Join(root, fmt.Sprintf("g%d_a.jpg", g))
		b := filepath.Join(root, fmt.Sprintf("g%d_b.jpg", g))
		writeImage(t, a, time.Unix(1000, 0))
		writeImage(t, b, time.Unix(2000, 0))
		groups[fmt.Sprintf("hash%03d", g)] = []string{a, b}
	}

	s := New()
	if err := s.Ingest(root, groups); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	pages := s.AllPages()
	wantPages := []int{0, 1, 2, 3}
	if len(pages) != len(wantPages) {
		t.Fatalf("AllPages() = %v, want %v", pages, wantPages)
	}
	for i, p := range wantPages {
		if pages[i] != p {
			t.Errorf("AllPages()[%d] = %d, want %d", i, pages[i], p)
		}
	}

	page0 := s.GroupIDsOfPage(0)
	if len(page0) != 15 || page0[0] != "G0" || page0[14] != "G14" {
		t.Errorf("GroupIDsOfPage(0) = %v, want G0..G14", page0)
	}

	page3 := s.GroupIDsOfPage(3)
	if len(page3) != 2 || page3[0] != "G45" || page3[1] != "G46" {
		t.Errorf("GroupIDsOfPage(3) = %v, want [G45 G46]", page3)
	}

	next := s.NextPageOf("G14", 15)
	if len(next) != 15 || next[0] != "G15" || next[14] != "G29" {
		t.Errorf("NextPageOf(G14, 15) = %v, want G15..G29", next)
	}

	prev := s.PreviousPageOf(next[0], 15)
	if len(prev) == 0 || prev[len(prev)-1] != "G14" {
		t.Errorf("PreviousPageOf(NextPageOf(G14,15).first, 15).last = %v, want G14", prev)
	}
}

func TestDeleteNeverRenumbers(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.jpg")
	b := filepath.Join(root, "b.jpg")
	c := filepath.Join(root, "c.jpg")
	d := filepath.Join(root, "d.jpg")
	writeImage(t, a, time.Unix(1000, 0))
	writeImage(t, b, time.Unix(2000, 0))
	writeImage(t, c, time.Unix(1500, 0))
	writeImage(t, d, time.Unix(2500, 0))

	s := New()
	_ = s.Ingest(root, map[string][]string{
		"h1": {a, b},
		"h2": {c, d},
	})

	s.Delete("G0_F1")

	if _, ok := s.Get("G0_F1"); ok {
		t.Error("deleted file_id still resolves via Get")
	}
	if _, ok := s.Get("G1_F0"); !ok {
		t.Error("G1_F0 should still exist after deleting G0_F1")
	}
	if got := s.GroupIDsOfPage(0); len(got) != 2 || got[0] != "G0" || got[1] != "G1" {
		t.Errorf("GroupIDsOfPage(0) = %v, want [G0 G1] (deletion must not renumber groups)", got)
	}
}

func TestResetEmptiesStore(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.jpg")
	b := filepath.Join(root, "b.jpg")
	writeImage(t, a, time.Unix(1000, 0))
	writeImage(t, b, time.Unix(2000, 0))

	s := New()
	_ = s.Ingest(root, map[string][]string{"h": {a, b}})
	s.Reset()

	if !s.IsEmpty() {
		t.Error("store should be empty after Reset()")
	}
	if got := s.AllPages(); len(got) != 0 {
		t.Errorf("AllPages() after Reset() = %v, want empty", got)
	}
}

func TestUnknownKeysReturnEmptyNotError(t *testing.T) {
	s := New()
	if items := s.ItemsOfGroup("G999"); items != nil {
		t.Errorf("ItemsOfGroup() on unknown group = %v, want nil", items)
	}
	if _, ok := s.Get("nope"); ok {
		t.Error("Get() on unknown file_id returned ok=true")
	}
	if _, ok := s.GroupIDOf("nope"); ok {
		t.Error("GroupIDOf() on unknown file_id returned ok=true")
	}
	// Toggling an unknown file_id must not panic.
	s.Toggle("nope")
}

func TestStatsCountsReclaimableBytes(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.jpg")
	b := filepath.Join(root, "b.jpg")
	writeImage(t, a, time.Unix(1000, 0))
	writeImage(t, b, time.Unix(2000, 0))

	s := New()
	_ = s.Ingest(root, map[string][]string{"h": {a, b}})

	st := s.Stats()
	if st.Groups != 1 || st.Files != 2 {
		t.Errorf("Stats() = %+v, want Groups=1 Files=2", st)
	}
	if st.ReclaimableBytes == 0 {
		t.Error("Stats().ReclaimableBytes should count the Copy entry's size")
	}
}
