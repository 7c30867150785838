package iocopy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCarveFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.bin")
	payload := []byte("hello, this is the carved payload")
	full := append([]byte("garbage-before"), payload...)
	full = append(full, []byte("garbage-after")...)
	if err := os.WriteFile(srcPath, full, 0644); err != nil {
		t.Fatal(err)
	}
	src, err := os.Open(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	dstPath := filepath.Join(dir, "out.bin")
	if err := CarveFile(src, int64(len("garbage-before")), int64(len(payload)), dstPath); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}

	fi, err := os.Stat(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Fatalf("mode = %v, want 0600", fi.Mode().Perm())
	}
}

func TestCarveFileCleansUpOnShortSource(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(srcPath, []byte("short"), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := os.Open(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	dstPath := filepath.Join(dir, "out.bin")
	if err := CarveFile(src, 0, 1000, dstPath); err == nil {
		t.Fatal("expected error copying more bytes than the source has")
	}
	if _, err := os.Stat(dstPath); !os.IsNotExist(err) {
		t.Fatalf("expected carved file to be removed, stat err = %v", err)
	}
}
