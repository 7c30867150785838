package cursor

import (
	"bytes"
	"errors"
	"testing"
)

func TestReads(t *testing.T) {
	data := []byte{
		0x01,
		0x02, 0x00,
		0x03, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x04,
	}
	r := bytes.NewReader(data)
	c := New(r, 0, int64(len(data)))

	u8, err := c.U8()
	if err != nil || u8 != 0x01 {
		t.Fatalf("U8() = %d, %v", u8, err)
	}
	u16, err := c.U16LE()
	if err != nil || u16 != 2 {
		t.Fatalf("U16LE() = %d, %v", u16, err)
	}
	u32le, err := c.U32LE()
	if err != nil || u32le != 3 {
		t.Fatalf("U32LE() = %d, %v", u32le, err)
	}
	u32be, err := c.U32BE()
	if err != nil || u32be != 4 {
		t.Fatalf("U32BE() = %d, %v", u32be, err)
	}
	if c.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", c.Remaining())
	}
}

func TestShortRead(t *testing.T) {
	data := []byte{0x01, 0x02}
	c := New(bytes.NewReader(data), 0, int64(len(data)))
	if _, err := c.U32LE(); err == nil {
		t.Fatal("expected short read error")
	} else {
		var sr *ErrShortRead
		if !errors.As(err, &sr) {
			t.Fatalf("expected *ErrShortRead, got %T: %v", err, err)
		}
	}
}

func TestWindow(t *testing.T) {
	data := []byte{0xaa, 0x01, 0x00, 0x00, 0x00, 0xbb}
	// Window starting at offset 1, covering the 4-byte u32 only.
	c := New(bytes.NewReader(data), 1, 4)
	v, err := c.U32LE()
	if err != nil || v != 1 {
		t.Fatalf("U32LE() = %d, %v", v, err)
	}
	if _, err := c.U8(); err == nil {
		t.Fatal("expected window to bound reads past its end")
	}
}

func TestSeekSkip(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0x03}
	c := New(bytes.NewReader(data), 0, int64(len(data)))
	c.Seek(2)
	b, err := c.U8()
	if err != nil || b != 0x02 {
		t.Fatalf("U8() after Seek = %d, %v", b, err)
	}
	c.Seek(0)
	c.Skip(3)
	b, err = c.U8()
	if err != nil || b != 0x03 {
		t.Fatalf("U8() after Skip = %d, %v", b, err)
	}
}
