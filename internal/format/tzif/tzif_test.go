package tzif

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/binform/carve"
)

// v0Hex is a minimal version-0 TZif file: no transitions, one local
// time type, a 4-byte abbreviation table ("UTC\x00").
const v0Hex = "545a69660000000000000000000000000000000000000000000000000000000000000000000000010000000400000000000055544300"

// v2Hex is a minimal version-2 file: the 4-byte-width v0-shaped header,
// followed by the 8-byte-width v2 header, followed by the POSIX TZ
// string "\nUTC0\n".
const v2Hex = "545a69663200000000000000000000000000000000000000000000000000000000000000000000010000000400000000000055544300" +
	"545a696632000000000000000000000000000000000000000000000000000000000000000000000100000004000000000000555443000a555443300a"

func writeFixture(t *testing.T, hexStr, name string) string {
	t.Helper()
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestV0WholeFile(t *testing.T) {
	path := writeFixture(t, v0Hex, "v0.tzif")
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if !res.StreamTags.Has(carve.TagTimezone) || !res.StreamTags.Has(carve.TagResource) {
		t.Fatalf("missing expected tags: %v", res.StreamTags.Slice())
	}
	if len(res.Carved) != 0 {
		t.Fatalf("whole-file match must not carve, got %v", res.Carved)
	}
}

func TestV0EmbeddedCarvesFile(t *testing.T) {
	raw, err := hex.DecodeString(v0Hex)
	if err != nil {
		t.Fatal(err)
	}
	raw = append(raw, []byte("trailing-data")...)
	dir := t.TempDir()
	path := filepath.Join(dir, "embedded.bin")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: outDir, TmpDir: t.TempDir()})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if len(res.Carved) != 1 {
		t.Fatalf("expected one carved file, got %d", len(res.Carved))
	}
	if !res.Carved[0].Tags.Has(carve.TagUnpacked) {
		t.Fatalf("carved entry missing unpacked tag: %v", res.Carved[0].Tags.Slice())
	}
}

func TestV2WholeFile(t *testing.T) {
	path := writeFixture(t, v2Hex, "v2.tzif")
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if !res.StreamTags.Has(carve.TagTimezone) {
		t.Fatalf("missing expected tags: %v", res.StreamTags.Slice())
	}
}

func TestRejectsTooSmall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.tzif")
	if err := os.WriteFile(path, []byte("TZif"), 0644); err != nil {
		t.Fatal(err)
	}
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure for a file shorter than 44 bytes")
	}
}

func TestRejectsBadMagic(t *testing.T) {
	raw, err := hex.DecodeString(v0Hex)
	if err != nil {
		t.Fatal(err)
	}
	raw[0] = 'X'
	dir := t.TempDir()
	path := filepath.Join(dir, "badmagic.tzif")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure for bad magic")
	}
}

func TestRejectsZeroLocalTimes(t *testing.T) {
	raw, err := hex.DecodeString(v0Hex)
	if err != nil {
		t.Fatal(err)
	}
	// local_times count occupies bytes 36..40 (the fifth of the six
	// big-endian u32 counts, after 4-byte magic + version + 15 reserved).
	for i := 36; i < 40; i++ {
		raw[i] = 0
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "zerolocal.tzif")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure when local_times is 0")
	}
}

func TestRejectsInvalidVersionByte(t *testing.T) {
	raw, err := hex.DecodeString(v0Hex)
	if err != nil {
		t.Fatal(err)
	}
	raw[4] = 0x01 // neither 0x00, 0x32, nor 0x33
	dir := t.TempDir()
	path := filepath.Join(dir, "badversion.tzif")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure for an invalid version byte")
	}
}
