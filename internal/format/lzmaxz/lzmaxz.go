// Package lzmaxz implements the shared LZMA/XZ streaming parser: a
// format-specific preflight selects the variant, then both share one
// streaming-decode routine built on github.com/ulikunitz/xz.
package lzmaxz

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/binform/carve"
	"github.com/binform/carve/internal/cursor"
)

const maxLZMASize = 274877906944 // 256 GiB, XZ Utils' own ceiling.

// Options parameterizes the shared routine for one variant.
type Options struct {
	// FormatName is "lzma" or "xz"; also the tag name.
	FormatName string
	// DisplayName is the error-message spelling: "LZMA" or "XZ".
	DisplayName string
	// Extension is the filename suffix stripped from the source file's
	// name to name the output ("lzma" or "xz", without the dot).
	Extension string
	// KnownUnpackedSize is the LZMA header's declared uncompressed
	// size, or -1 if unknown/streaming. Always -1 for XZ.
	KnownUnpackedSize int64
}

// LZMA returns the LZMA format parser, preflighting the classic
// 13-byte header to determine the declared uncompressed size before
// delegating to the shared streaming routine.
func LZMA() carve.Parser {
	return carve.ParserFunc{FormatName: "lzma", Fn: func(in carve.Input) carve.Result {
		fi, err := os.Stat(in.Path)
		if err != nil {
			return carve.Failure(carve.FatalErrf(in.BaseOffset, "lzma: stat %q: %v", in.Path, err))
		}
		if fi.Size()-in.BaseOffset < 13 {
			return carve.Failure(carve.Errf(in.BaseOffset, "not enough bytes"))
		}

		f, err := os.Open(in.Path)
		if err != nil {
			return carve.Failure(carve.FatalErrf(in.BaseOffset, "lzma: open %q: %v", in.Path, err))
		}
		c := cursor.New(f, in.BaseOffset, fi.Size()-in.BaseOffset)
		c.Skip(5)
		sizeField, rerr := c.Bytes(8)
		f.Close()
		if rerr != nil {
			return carve.Failure(carve.Errf(in.BaseOffset, "not enough bytes"))
		}

		declared := int64(-1)
		if !allFF(sizeField) {
			v := binary.LittleEndian.Uint64(sizeField)
			if v == 0 {
				return carve.Failure(carve.Errf(in.BaseOffset, "declared size 0"))
			}
			if v > maxLZMASize {
				return carve.Failure(carve.Errf(in.BaseOffset, "declared size too big"))
			}
			declared = int64(v)
		}

		return parse(in, Options{FormatName: "lzma", DisplayName: "LZMA", Extension: "lzma", KnownUnpackedSize: declared}, newLZMADecoder)
	}}
}

// XZ returns the XZ container format parser.
func XZ() carve.Parser {
	return carve.ParserFunc{FormatName: "xz", Fn: func(in carve.Input) carve.Result {
		return parse(in, Options{FormatName: "xz", DisplayName: "XZ", Extension: "xz", KnownUnpackedSize: -1}, newXZDecoder)
	}}
}

func newLZMADecoder(r io.Reader) (io.Reader, error) { return lzma.NewReader(r) }
func newXZDecoder(r io.Reader) (io.Reader, error)   { return xz.NewReader(r) }

func parse(in carve.Input, opts Options, newDecoder func(io.Reader) (io.Reader, error)) carve.Result {
	fi, err := os.Stat(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "%s: stat %q: %v", opts.FormatName, in.Path, err))
	}
	fileSize := fi.Size()

	f, err := os.Open(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "%s: open %q: %v", opts.FormatName, in.Path, err))
	}
	defer f.Close()

	sr := io.NewSectionReader(f, in.BaseOffset, fileSize-in.BaseOffset)
	counting := newCountingByteReader(sr)

	dec, err := newDecoder(counting)
	if err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "not valid %s data", opts.DisplayName))
	}

	outPath := defaultOutputPath(in, opts)
	outFile, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "%s: creating %q: %v", opts.FormatName, outPath, err))
	}

	buf := make([]byte, 1<<20)
	var decodedSize int64
	for {
		n, derr := dec.Read(buf)
		if n > 0 {
			if _, werr := outFile.Write(buf[:n]); werr != nil {
				outFile.Close()
				os.Remove(outPath)
				return carve.Failure(carve.FatalErrf(in.BaseOffset, "%s: writing output: %v", opts.FormatName, werr))
			}
			decodedSize += int64(n)
		}
		if derr != nil {
			if errors.Is(derr, io.EOF) {
				break
			}
			if decodedSize == 0 {
				outFile.Close()
				os.Remove(outPath)
				return carve.Failure(carve.Errf(in.BaseOffset, "not valid %s data", opts.DisplayName))
			}
			// The decoder errored after producing output. When the
			// stream is embedded, this is usually the decoder tripping
			// over the bytes that follow it (the xz reader probes for a
			// concatenated stream's header once the first one ends).
			// Re-decode shrinking windows to find the exact boundary;
			// only a genuine mid-stream corruption fails recovery.
			if end := recoverBoundary(f, in.BaseOffset, counting.consumed, decodedSize, newDecoder); end > 0 {
				counting.consumed = end
				break
			}
			outFile.Close()
			os.Remove(outPath)
			return carve.Failure(carve.Errf(in.BaseOffset, "file not a valid %s file", opts.DisplayName))
		}
	}
	outFile.Close()

	if decodedSize == 0 {
		os.Remove(outPath)
		return carve.Failure(carve.Errf(in.BaseOffset, "file not a valid %s file", opts.DisplayName))
	}

	if opts.KnownUnpackedSize != -1 && opts.KnownUnpackedSize != decodedSize {
		os.Remove(outPath)
		return carve.Failure(carve.Errf(in.BaseOffset, "length of unpacked %s data does not correspond with header", opts.DisplayName))
	}

	consumed := counting.consumed

	tags := carve.NewTagSet()
	if in.BaseOffset == 0 && consumed == fileSize {
		switch opts.FormatName {
		case "lzma":
			tags = carve.NewTagSet(carve.TagLZMA, carve.TagCompressed)
		case "xz":
			tags = carve.NewTagSet(carve.TagXZ, carve.TagCompressed)
		}
	}

	return carve.Success(consumed, []carve.Carved{{Path: outPath, Tags: carve.NewTagSet()}}, tags)
}

// recoverBoundary re-decodes progressively shorter windows of the
// input to locate the exact end of a stream the decoder over-read. The
// over-read is bounded by the xz stream-header probe (12 bytes) plus a
// little stream padding, so only the last few candidate lengths need
// trying. A candidate is the boundary when decoding it ends in a clean
// EOF and reproduces the same number of output bytes.
func recoverBoundary(f *os.File, base, consumed, wantSize int64, newDecoder func(io.Reader) (io.Reader, error)) int64 {
	buf := make([]byte, 1<<20)
	for cand := consumed - 1; cand > 0 && cand >= consumed-24; cand-- {
		sr := io.NewSectionReader(f, base, cand)
		counting := newCountingByteReader(sr)
		dec, err := newDecoder(counting)
		if err != nil {
			continue
		}
		var total int64
		for {
			n, derr := dec.Read(buf)
			total += int64(n)
			if derr != nil {
				if errors.Is(derr, io.EOF) && total == wantSize {
					return cand
				}
				break
			}
		}
	}
	return -1
}

func defaultOutputPath(in carve.Input, opts Options) string {
	base := filepath.Base(in.Path)
	if strings.EqualFold(filepath.Ext(base), "."+opts.Extension) {
		return filepath.Join(in.OutDir, strings.TrimSuffix(base, filepath.Ext(base)))
	}
	return filepath.Join(in.OutDir, "unpacked-from-"+opts.FormatName)
}

func allFF(b []byte) bool {
	for _, v := range b {
		if v != 0xff {
			return false
		}
	}
	return true
}
