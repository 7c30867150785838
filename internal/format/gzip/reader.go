package gzip

import "io"

// countingByteReader wraps an io.Reader and implements io.ByteReader
// directly. Passing it to flate.NewReader means flate's huffman bit
// reader calls ReadByte() one byte at a time instead of wrapping the
// source in its own read-ahead buffer, so consumed, after Read
// returns io.EOF, is the exact number of bytes the DEFLATE stream
// used, with nothing read past the final block. flate does not report
// residual input itself; the counting reader recovers it exactly.
type countingByteReader struct {
	r        io.Reader
	consumed int64
}

func newCountingByteReader(r io.Reader) *countingByteReader {
	return &countingByteReader{r: r}
}

func (c *countingByteReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.consumed += int64(n)
	return n, err
}

func (c *countingByteReader) ReadByte() (byte, error) {
	var b [1]byte
	n, err := c.r.Read(b[:])
	c.consumed += int64(n)
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return 0, err
}
