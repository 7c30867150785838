package ar

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/binform/carve"
)

func requireAr(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ar"); err != nil {
		t.Skip("ar not found on PATH")
	}
}

func buildArArchive(t *testing.T, dir string, memberNames []string) string {
	t.Helper()
	srcDir := filepath.Join(dir, "members")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range memberNames {
		if err := os.WriteFile(filepath.Join(srcDir, name), []byte("content of "+name), 0644); err != nil {
			t.Fatal(err)
		}
	}
	archivePath := filepath.Join(dir, "sample.a")
	args := append([]string{"rc", archivePath}, memberNames...)
	cmd := exec.Command("ar", args...)
	cmd.Dir = srcDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("building fixture archive: %v: %s", err, stderr.String())
	}
	return archivePath
}

func TestArExtractsMembers(t *testing.T) {
	requireAr(t)
	dir := t.TempDir()
	path := buildArArchive(t, dir, []string{"one.txt", "two.txt"})
	outDir := t.TempDir()
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: outDir, TmpDir: t.TempDir()})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if !res.StreamTags.Has(carve.TagArchive) || !res.StreamTags.Has(carve.TagAr) {
		t.Fatalf("missing expected tags: %v", res.StreamTags.Slice())
	}
	if len(res.Carved) != 2 {
		t.Fatalf("expected 2 carved members, got %d", len(res.Carved))
	}
	got, err := os.ReadFile(filepath.Join(outDir, "one.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content of one.txt" {
		t.Fatalf("one.txt content = %q", got)
	}
}

func TestArRejectsNonZeroOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whatever.a")
	if err := os.WriteFile(path, []byte("irrelevant"), 0644); err != nil {
		t.Fatal(err)
	}
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 4, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure for a non-zero base offset")
	}
}

func TestArRejectsInvalidData(t *testing.T) {
	requireAr(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notan.a")
	if err := os.WriteFile(path, []byte("this is not an ar archive at all"), 0644); err != nil {
		t.Fatal(err)
	}
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure for invalid ar data")
	}
}
