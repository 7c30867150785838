package lzmaxz

import "io"

// countingByteReader implements io.ByteReader directly so the decoder
// never wraps the source in its own read-ahead buffer. consumed is
// then the exact number of input bytes the LZMA/XZ decoder used once
// it reports EOF, which is what locates the end of an embedded stream.
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
