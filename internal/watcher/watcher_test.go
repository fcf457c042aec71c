package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kbres/internal/resource"
	"kbres/internal/storage"
)

func TestHashFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "qwerty_it.json")
	content := []byte(`{"keys": []}`)
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	hash1, size1, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if size1 != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size1)
	}
	if hash1 != storage.Digest(content) {
		t.Error("file digest should match the store digest of the same bytes")
	}

	if err := os.WriteFile(testFile, []byte(`{"keys": [1]}`), 0600); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}
	hash2, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("second HashFile failed: %v", err)
	}
	if hash1 == hash2 {
		t.Error("different content should produce different hash")
	}
}

func TestHashFileNotFound(t *testing.T) {
	if _, _, err := HashFile("/nonexistent/file.json"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestNewRequiresBaseDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty base dir")
	}
}

func startWatcher(t *testing.T, classes ...resource.Class) (*Watcher, string) {
	t.Helper()
	base := t.TempDir()
	w, err := New(Config{BaseDir: base, Classes: classes, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w, base
}

func waitChange(t *testing.T, w *Watcher) Change {
	t.Helper()
	select {
	case c := <-w.Events():
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change")
	}
	return Change{}
}

func TestStartCreatesClassDirs(t *testing.T) {
	_, base := startWatcher(t, resource.Layout, resource.Dictionary)
	for _, dir := range []string{"layouts", "dictionaries"} {
		if info, err := os.Stat(filepath.Join(base, dir)); err != nil || !info.IsDir() {
			t.Errorf("expected %s to be created", dir)
		}
	}
}

func TestWatcherReportsWriteAndRemove(t *testing.T) {
	w, base := startWatcher(t, resource.Layout)
	path := filepath.Join(base, "layouts", "qwerty_it.json")
	content := []byte(`{"keys": [{"code": "a", "output": "a"}]}`)

	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write override: %v", err)
	}
	c := waitChange(t, w)
	if c.Class != resource.Layout || c.Name != "qwerty_it" || c.Removed {
		t.Errorf("unexpected change %+v", c)
	}
	if c.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), c.Size)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove override: %v", err)
	}
	c = waitChange(t, w)
	if !c.Removed || c.Name != "qwerty_it" {
		t.Errorf("expected removal, got %+v", c)
	}
}

func TestWatcherReportsAtomicCommit(t *testing.T) {
	w, base := startWatcher(t, resource.Dictionary)
	store, err := storage.NewOverrides(base)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if _, err := store.WriteFile(ctx, "dictionaries", "it_base.dict", strings.NewReader(`{"normalizedIndex": {}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	c := waitChange(t, w)
	if c.Class != resource.Dictionary || c.Name != "it" {
		t.Errorf("unexpected change %+v", c)
	}
	if c.Digest != storage.Digest([]byte(`{"normalizedIndex": {}}`)) {
		t.Error("digest should match committed content")
	}
}

func TestWatcherIgnoresHiddenAndForeignFiles(t *testing.T) {
	w, base := startWatcher(t, resource.Layout)
	dir := filepath.Join(base, "layouts")

	for _, name := range []string{".qwerty.json.tmp-1", ".qwerty.json.lock", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	select {
	case c := <-w.Events():
		t.Errorf("unexpected change %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
	w.stateMu.Lock()
	pending := len(w.state)
	w.stateMu.Unlock()
	if pending != 0 {
		t.Errorf("expected nothing pending, got %d", pending)
	}
}

func TestWatcherDebounce(t *testing.T) {
	w, base := startWatcher(t, resource.Variations)
	path := filepath.Join(base, "variations", "it.json")

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(`{"variations": {"a": ["`+string(rune('0'+i))+`"]}}`), 0600); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	eventCount := 0
	timeout := time.After(1 * time.Second)
	for {
		select {
		case <-w.Events():
			eventCount++
			if eventCount > 1 {
				t.Error("expected only one event due to debouncing")
				return
			}
		case <-timeout:
			if eventCount != 1 {
				t.Errorf("expected 1 event, got %d", eventCount)
			}
			return
		}
	}
}
