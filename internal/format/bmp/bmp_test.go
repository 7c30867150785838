package bmp

import (
	"encoding/binary"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/binform/carve"
)

func requireBmptopnm(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bmptopnm"); err != nil {
		t.Skip("bmptopnm not found on PATH")
	}
}

// buildBMP constructs a minimal valid 1x1 24-bit BMP (BITMAPINFOHEADER).
func buildBMP(t *testing.T) []byte {
	t.Helper()
	const dibSize = 40
	const pixelOffset = 14 + dibSize
	pixelData := []byte{0, 0, 0, 0} // 1x1 24-bit row, padded to 4 bytes
	fileSize := pixelOffset + len(pixelData)

	buf := make([]byte, fileSize)
	buf[0], buf[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(buf[2:6], uint32(fileSize))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(pixelOffset))
	binary.LittleEndian.PutUint32(buf[14:18], dibSize)
	binary.LittleEndian.PutUint32(buf[18:22], 1) // width
	binary.LittleEndian.PutUint32(buf[22:26], 1) // height
	binary.LittleEndian.PutUint16(buf[26:28], 1) // planes
	binary.LittleEndian.PutUint16(buf[28:30], 24) // bpp
	copy(buf[pixelOffset:], pixelData)
	return buf
}

func writeFixture(t *testing.T, raw []byte, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBMPWholeFile(t *testing.T) {
	requireBmptopnm(t)
	raw := buildBMP(t)
	path := writeFixture(t, raw, "sample.bmp")
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if !res.StreamTags.Has(carve.TagBMP) || !res.StreamTags.Has(carve.TagGraphics) {
		t.Fatalf("missing expected tags: %v", res.StreamTags.Slice())
	}
	if len(res.Carved) != 0 {
		t.Fatalf("whole-file match must not carve, got %v", res.Carved)
	}
}

func TestBMPEmbeddedCarvesFile(t *testing.T) {
	requireBmptopnm(t)
	raw := buildBMP(t)
	raw = append(raw, []byte("trailing-junk")...)
	path := writeFixture(t, raw, "embedded.bin")
	outDir := t.TempDir()
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: outDir, TmpDir: t.TempDir()})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if len(res.Carved) != 1 {
		t.Fatalf("expected one carved file, got %d", len(res.Carved))
	}
}

func TestBMPRejectsTooSmall(t *testing.T) {
	path := writeFixture(t, []byte("BM12345"), "short.bmp")
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure for a file shorter than 26 bytes")
	}
}

func TestBMPRejectsBadMagic(t *testing.T) {
	raw := buildBMP(t)
	raw[0] = 'X'
	path := writeFixture(t, raw, "badmagic.bmp")
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure for bad magic")
	}
}

func TestBMPRejectsInvalidDIBHeaderSize(t *testing.T) {
	raw := buildBMP(t)
	binary.LittleEndian.PutUint32(raw[14:18], 999)
	path := writeFixture(t, raw, "baddib.bmp")
	res := Parser().Parse(carve.Input{Path: path, BaseOffset: 0, OutDir: t.TempDir(), TmpDir: t.TempDir()})
	if res.OK() {
		t.Fatal("expected failure for an unrecognized DIB header size")
	}
}
