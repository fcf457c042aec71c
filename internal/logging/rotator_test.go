package logging

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileRotatorRotateAndCleanup(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "kbres.log")

	for _, stamp := range []string{"20240101-000000.000", "20240102-000000.000", "20240103-000000.000"} {
		if err := os.WriteFile(filepath.Join(dir, "kbres-"+stamp+".log"), []byte("old\n"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	if _, err := rotator.Write([]byte("before\n")); err != nil {
		t.Fatal(err)
	}

	rotator.mu.Lock()
	err = rotator.rotate()
	rotator.mu.Unlock()
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := rotator.Write([]byte("after\n")); err != nil {
		t.Fatal(err)
	}
	if err := rotator.Close(); err != nil {
		t.Fatal(err)
	}

	files := append([]string{logPath}, rotator.rotated()...)
	if len(files) != 3 {
		t.Fatalf("expected current file plus 2 backups, got %v", files)
	}
	if filepath.Base(files[1]) != "kbres-20240103-000000.000.log" {
		t.Errorf("oldest surviving backup = %s", files[1])
	}

	current, _ := os.ReadFile(logPath)
	if string(current) != "after\n" {
		t.Errorf("current log = %q", current)
	}
	newest, _ := os.ReadFile(files[2])
	if string(newest) != "before\n" {
		t.Errorf("rotated log = %q", newest)
	}
}

func TestFileRotatorCompressesRotated(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kbres.log")
	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1, Compress: true})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	if _, err := rotator.Write([]byte("before\n")); err != nil {
		t.Fatal(err)
	}
	rotator.mu.Lock()
	err = rotator.rotate()
	rotator.mu.Unlock()
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	// Close waits for the background compression.
	if err := rotator.Close(); err != nil {
		t.Fatal(err)
	}

	files := append([]string{logPath}, rotator.rotated()...)
	if len(files) != 2 || !strings.HasSuffix(files[1], ".log.gz") {
		t.Fatalf("expected one compressed backup, got %v", files)
	}
	f, err := os.Open(files[1])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("backup is not gzip: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "before\n" {
		t.Errorf("decompressed backup = %q", data)
	}
}

func TestFileRotatorRotatesBySize(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kbres.log")
	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for k := 0; k < 2; k++ {
		if n, err := rotator.Write(chunk); err != nil || n != len(chunk) {
			t.Fatalf("write = %d, %v", n, err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatal(err)
	}

	files := append([]string{logPath}, rotator.rotated()...)
	if len(files) != 2 {
		t.Fatalf("expected a rotation once 1MB was exceeded, got %v", files)
	}
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("current file holds %d bytes, want %d", info.Size(), len(chunk))
	}
}
