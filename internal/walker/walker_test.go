package walker

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestEmptyTreeReturnsEmptyList(t *testing.T) {
	root := t.TempDir()

	dirs, err := New(root, 2).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("expected 0 subdirectories, got %d: %v", len(dirs), dirs)
	}
}

func TestNestedSubdirectoriesAreReturned(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "a"))
	mustMkdir(t, filepath.Join(root, "a", "b"))
	mustMkdir(t, filepath.Join(root, "c"))

	dirs, err := New(root, 2).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sort.Strings(dirs)
	want := []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "c"),
	}
	sort.Strings(want)

	if len(dirs) != len(want) {
		t.Fatalf("expected %v, got %v", want, dirs)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], dirs[i])
		}
	}
}

func TestHiddenDirectoriesAreSkipped(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, ".hidden"))
	mustMkdir(t, filepath.Join(root, ".hidden", "inner"))
	mustMkdir(t, filepath.Join(root, "visible"))

	dirs, err := New(root, 2).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dirs) != 1 || dirs[0] != filepath.Join(root, "visible") {
		t.Errorf("expected only [visible], got %v", dirs)
	}
}

func TestMissingRootIsPreconditionViolation(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "does-not-exist"), 2).Run()
	if err == nil {
		t.Fatal("expected precondition violation error, got nil")
	}
}

func TestNonDirectoryRootIsPreconditionViolation(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(file, 2).Run()
	if err == nil {
		t.Fatal("expected precondition violation error, got nil")
	}
}

func TestPermissionDeniedSubtreeIsRecoveredLocally(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root: permission checks do not apply")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	mustMkdir(t, locked)
	mustMkdir(t, filepath.Join(locked, "inner"))
	mustMkdir(t, filepath.Join(root, "open"))

	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0o755)

	w := New(root, 2)
	dirs, err := w.Run()
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}

	found := map[string]bool{}
	for _, d := range dirs {
		found[d] = true
	}
	if !found[locked] {
		t.Errorf("expected locked directory itself to be listed, got %v", dirs)
	}
	if found[filepath.Join(locked, "inner")] {
		t.Errorf("did not expect to descend into locked directory, got %v", dirs)
	}
	if !found[filepath.Join(root, "open")] {
		t.Errorf("expected open directory to be listed, got %v", dirs)
	}

	if len(w.Errors()) == 0 {
		t.Error("expected at least one recorded permission error")
	}
}
