// Package cursor implements a read-only, bounds-checked random-access
// view over a region of a file, as used by every format parser in
// this repository.
package cursor

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ErrShortRead is the error returned by any read that would cross the
// window's end.
type ErrShortRead struct {
	// At is the absolute file offset where the read was attempted.
	At int64
	// Want is the number of bytes requested.
	Want int
	// Have is the number of bytes actually available.
	Have int64
}

func (e *ErrShortRead) Error() string {
	return fmt.Sprintf("cursor: short read at offset %d: wanted %d bytes, %d available", e.At, e.Want, e.Have)
}

// Cursor is a bounds-checked reader over [base, base+size) of an
// underlying [io.ReaderAt], tracking a current absolute position.
//
// Cursor never reads past End, and every multibyte read is explicit
// about width and endianness per call.
type Cursor struct {
	r    io.ReaderAt
	base int64 // absolute offset of the window start
	end  int64 // absolute offset of the window end (exclusive)
	pos  int64 // absolute current position
}

// New returns a Cursor windowed to [base, base+size) of r, positioned
// at base.
func New(r io.ReaderAt, base, size int64) *Cursor {
	return &Cursor{r: r, base: base, end: base + size, pos: base}
}

// Pos returns the current absolute file position.
func (c *Cursor) Pos() int64 { return c.pos }

// Base returns the absolute offset the window starts at.
func (c *Cursor) Base() int64 { return c.base }

// End returns the absolute offset the window ends at (exclusive).
func (c *Cursor) End() int64 { return c.end }

// Remaining returns the number of unread bytes left in the window.
func (c *Cursor) Remaining() int64 { return c.end - c.pos }

// Seek moves the cursor to an absolute file offset. It does not
// itself bounds-check against End; the next read will.
func (c *Cursor) Seek(abs int64) { c.pos = abs }

// Skip advances the cursor by n bytes relative to its current position.
func (c *Cursor) Skip(n int64) { c.pos += n }

func (c *Cursor) readAt(n int) ([]byte, error) {
	if c.pos+int64(n) > c.end {
		return nil, &ErrShortRead{At: c.pos, Want: n, Have: c.end - c.pos}
	}
	buf := make([]byte, n)
	if _, err := c.r.ReadAt(buf, c.pos); err != nil {
		return nil, fmt.Errorf("cursor: read at offset %d: %w", c.pos, err)
	}
	c.pos += int64(n)
	return buf, nil
}

// Bytes reads n raw bytes at the current position and advances it.
func (c *Cursor) Bytes(n int) ([]byte, error) { return c.readAt(n) }

// U8 reads a single byte.
func (c *Cursor) U8() (byte, error) {
	b, err := c.readAt(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16LE reads a little-endian uint16.
func (c *Cursor) U16LE() (uint16, error) {
	b, err := c.readAt(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32LE reads a little-endian uint32.
func (c *Cursor) U32LE() (uint32, error) {
	b, err := c.readAt(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U32BE reads a big-endian uint32.
func (c *Cursor) U32BE() (uint32, error) {
	b, err := c.readAt(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// U64LE reads a little-endian uint64.
func (c *Cursor) U64LE() (uint64, error) {
	b, err := c.readAt(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// U64BE reads a big-endian uint64.
func (c *Cursor) U64BE() (uint64, error) {
	b, err := c.readAt(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// I32BE reads a big-endian int32.
func (c *Cursor) I32BE() (int32, error) {
	v, err := c.U32BE()
	return int32(v), err
}

// SectionReader returns an [io.SectionReader] for the next n bytes
// without consuming them from the cursor's own position, for handing
// a sub-range off to a streaming decoder.
func (c *Cursor) SectionReader(n int64) (*io.SectionReader, error) {
	if c.pos+n > c.end {
		return nil, &ErrShortRead{At: c.pos, Want: int(n), Have: c.end - c.pos}
	}
	return io.NewSectionReader(c.r, c.pos, n), nil
}
