// Package gzip implements the gzip member parser: RFC 1952 header
// decode, streaming RFC 1951 DEFLATE body via klauspost/compress/flate,
// CRC-32 + ISIZE trailer validation, and an optional rename from the
// embedded original filename.
package gzip

import (
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/binform/carve"
	"github.com/binform/carve/internal/cursor"
)

const (
	flagFTEXT    = 1 << 0
	flagFHCRC    = 1 << 1
	flagFEXTRA   = 1 << 2
	flagFNAME    = 1 << 3
	flagFCOMMENT = 1 << 4
	flagEncrypt  = 1 << 5
	flagReserved = 1<<6 | 1<<7
)

// Parser returns the gzip format parser.
func Parser() carve.Parser {
	return carve.ParserFunc{FormatName: "gzip", Fn: parse}
}

func parse(in carve.Input) carve.Result {
	fi, err := os.Stat(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "gzip: stat %q: %v", in.Path, err))
	}
	fileSize := fi.Size()

	f, err := os.Open(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "gzip: open %q: %v", in.Path, err))
	}
	defer f.Close()

	c := cursor.New(f, in.BaseOffset, fileSize-in.BaseOffset)

	magicAndMethod, rerr := c.Bytes(3)
	if rerr != nil || magicAndMethod[0] != 0x1f || magicAndMethod[1] != 0x8b || magicAndMethod[2] != 0x08 {
		return carve.Failure(carve.Errf(in.BaseOffset, "not a valid gzip file"))
	}

	flagsOff := c.Pos()
	flags, rerr := c.U8()
	if rerr != nil {
		return carve.Failure(carve.Errf(flagsOff, "not enough data"))
	}
	// Bit 2 is FEXTRA, per RFC 1952. Some historical readers treated
	// it as a multi-part continuation marker; that reading is wrong.
	if flags&flagEncrypt != 0 {
		return carve.Failure(carve.Errf(flagsOff, "unsupported encrypted"))
	}
	if flags&flagReserved != 0 {
		return carve.Failure(carve.Errf(flagsOff, "not a valid gzip file"))
	}

	if _, rerr := c.Bytes(4); rerr != nil { // mtime
		return carve.Failure(carve.Errf(c.Pos(), "not enough data"))
	}
	if _, rerr := c.Bytes(2); rerr != nil { // xfl, os
		return carve.Failure(carve.Errf(c.Pos(), "not enough data"))
	}

	if flags&flagFEXTRA != 0 {
		xlenOff := c.Pos()
		xlen, rerr := c.U16LE()
		if rerr != nil {
			return carve.Failure(carve.Errf(xlenOff, "not enough data"))
		}
		if c.Pos()+int64(xlen) > fileSize {
			return carve.Failure(carve.Errf(xlenOff, "extra data outside of file"))
		}
		if _, rerr := c.Bytes(int(xlen)); rerr != nil {
			return carve.Failure(carve.Errf(xlenOff, "extra data outside of file"))
		}
	}

	var origName []byte
	if flags&flagFNAME != 0 {
		name, rerr := readCString(c)
		if rerr != nil {
			return carve.Failure(carve.Errf(c.Pos(), "file name data outside of file"))
		}
		origName = name
	}

	if flags&flagFCOMMENT != 0 {
		if _, rerr := readCString(c); rerr != nil {
			return carve.Failure(carve.Errf(c.Pos(), "comment data outside of file"))
		}
	}

	if flags&flagFHCRC != 0 {
		if _, rerr := c.Bytes(2); rerr != nil {
			return carve.Failure(carve.Errf(c.Pos(), "not enough data"))
		}
	}

	bodyOff := c.Pos()
	// Sanity check the first DEFLATE block header: BTYPE == 0b11 is a
	// reserved, invalid block type (RFC 1951 §3.2.3).
	peek, rerr := c.Bytes(1)
	if rerr != nil {
		return carve.Failure(carve.Errf(bodyOff, "not enough data"))
	}
	if peek[0]&0x2 != 0 && peek[0]&0x4 != 0 {
		return carve.Failure(carve.Errf(bodyOff, "wrong DEFLATE header"))
	}
	c.Seek(bodyOff)

	bodyReader, rerr := c.SectionReader(fileSize - bodyOff)
	if rerr != nil {
		return carve.Failure(carve.Errf(bodyOff, "not enough data"))
	}
	counting := newCountingByteReader(bodyReader)

	outPath := defaultOutputPath(in)
	outFile, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return carve.Failure(carve.FatalErrf(bodyOff, "gzip: creating %q: %v", outPath, err))
	}

	fr := flate.NewReader(counting)
	crc := crc32.NewIEEE()
	buf := make([]byte, 1<<20)
	var decodedSize int64
	for {
		n, rerr := fr.Read(buf)
		if n > 0 {
			if _, werr := outFile.Write(buf[:n]); werr != nil {
				fr.Close()
				outFile.Close()
				os.Remove(outPath)
				return carve.Failure(carve.FatalErrf(bodyOff, "gzip: writing output: %v", werr))
			}
			crc.Write(buf[:n])
			decodedSize += int64(n)
		}
		if rerr != nil {
			fr.Close()
			if !errors.Is(rerr, io.EOF) {
				outFile.Close()
				os.Remove(outPath)
				return carve.Failure(carve.Errf(bodyOff, "file not a valid gzip file"))
			}
			break
		}
	}
	outFile.Close()

	consumedBody := counting.consumed
	consumed := (bodyOff - in.BaseOffset) + consumedBody

	if fileSize-(in.BaseOffset+consumed) < 8 {
		os.Remove(outPath)
		return carve.Failure(carve.Errf(in.BaseOffset+consumed, "no CRC and ISIZE"))
	}

	trailerC := cursor.New(f, in.BaseOffset+consumed, 8)
	storedCRC, rerr := trailerC.U32LE()
	if rerr != nil {
		os.Remove(outPath)
		return carve.Failure(carve.Errf(in.BaseOffset+consumed, "no CRC and ISIZE"))
	}
	storedISize, rerr := trailerC.U32LE()
	if rerr != nil {
		os.Remove(outPath)
		return carve.Failure(carve.Errf(in.BaseOffset+consumed+4, "no CRC and ISIZE"))
	}
	consumed += 8

	if crc.Sum32() != storedCRC {
		os.Remove(outPath)
		return carve.Failure(carve.Errf(in.BaseOffset+consumed-8, "wrong value for CRC32"))
	}
	if uint32(uint64(decodedSize)%(1<<32)) != storedISize {
		os.Remove(outPath)
		return carve.Failure(carve.Errf(in.BaseOffset+consumed-4, "wrong value for ISIZE"))
	}

	finalPath := outPath
	// The embedded name is untrusted: only its basename is used, so a
	// hostile FNAME can never place the output outside OutDir.
	if name := filepath.Base(string(origName)); len(origName) != 0 && name != "." && name != ".." && name != "/" {
		renamed := filepath.Join(in.OutDir, name)
		if os.Rename(outPath, renamed) == nil {
			finalPath = renamed
		}
	}

	tags := carve.NewTagSet()
	if in.BaseOffset == 0 && consumed == fileSize {
		tags = carve.NewTagSet(carve.TagGzip, carve.TagCompressed)
	}
	return carve.Success(consumed, []carve.Carved{{Path: finalPath, Tags: carve.NewTagSet()}}, tags)
}

func readCString(c *cursor.Cursor) ([]byte, error) {
	var out []byte
	for {
		b, err := c.U8()
		if err != nil {
			return nil, err
		}
		if b == 0x00 {
			return out, nil
		}
		out = append(out, b)
	}
}

func defaultOutputPath(in carve.Input) string {
	base := filepath.Base(in.Path)
	if strings.HasSuffix(base, ".gz") {
		return filepath.Join(in.OutDir, strings.TrimSuffix(base, ".gz"))
	}
	return filepath.Join(in.OutDir, "unpacked-from-gz")
}
