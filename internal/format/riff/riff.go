// Package riff implements the generic RIFF chunked-container walker
// that the WebP, WAV and ANI parsers are built from.
package riff

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/binform/carve"
	"github.com/binform/carve/internal/cursor"
	"github.com/binform/carve/internal/iocopy"
)

// FourCC is a 4-byte RIFF chunk or application identifier.
type FourCC [4]byte

func (f FourCC) String() string { return string(f[:]) }

// Spec parameterizes the engine for one RIFF-based format.
type Spec struct {
	// AppName names the format for error text and the default
	// carved-output filename ("unpacked-<lower(AppName)>").
	AppName string
	// AppTag is the 4-byte tag following the RIFF length field,
	// e.g. "WEBP", "WAVE", "ACON".
	AppTag FourCC
	// ValidChunks is the allow-list of chunk FourCCs this format
	// permits.
	ValidChunks map[FourCC]struct{}
}

// Outcome is the engine's result before format-specific tagging is
// applied. The engine itself never assigns tags; that is the caller's
// job.
type Outcome struct {
	Consumed int64
	// WholeFile is true when base_offset == 0 and Consumed == file
	// size: the stream is the entire host file and must not be carved.
	WholeFile bool
	// CarvedPath is non-empty when the stream was an embedded
	// substream and has been carved to this path.
	CarvedPath string
}

// Parse validates a RIFF stream: the "RIFF" magic, the declared
// length, the application tag, then every chunk against the
// allow-list, with odd-sized chunks followed by exactly one zero
// padding byte. If the stream is embedded rather than whole-file it
// is carved into OutDir.
func Parse(in carve.Input, spec Spec) (Outcome, *carve.ParseError) {
	fi, err := os.Stat(in.Path)
	if err != nil {
		return Outcome{}, carve.FatalErrf(in.BaseOffset, "riff: stat %q: %v", in.Path, err)
	}
	fileSize := fi.Size()

	// Rule 1: at least 12 bytes.
	if fileSize-in.BaseOffset < 12 {
		return Outcome{}, carve.Errf(in.BaseOffset, "less than 12 bytes")
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return Outcome{}, carve.FatalErrf(in.BaseOffset, "riff: open %q: %v", in.Path, err)
	}
	defer f.Close()

	c := cursor.New(f, in.BaseOffset, fileSize-in.BaseOffset)

	// Rule 2: magic.
	magic, rerr := c.Bytes(4)
	if rerr != nil {
		return Outcome{}, carve.Errf(in.BaseOffset, "no valid RIFF header")
	}
	if string(magic) != "RIFF" {
		return Outcome{}, carve.Errf(in.BaseOffset, "no valid RIFF header")
	}

	lengthOff := c.Pos()
	riffLength, rerr := c.U32LE()
	if rerr != nil {
		return Outcome{}, carve.Errf(lengthOff, "wrong length")
	}

	// Rule 3: declared length cannot go outside the file.
	if int64(riffLength)+8 > fileSize-in.BaseOffset {
		return Outcome{}, carve.Errf(lengthOff, "wrong length")
	}

	// Rule 4: application tag.
	tagOff := c.Pos()
	appTag, rerr := c.Bytes(4)
	if rerr != nil || FourCC(appTag) != spec.AppTag {
		return Outcome{}, carve.Errf(tagOff, "no valid %s header", spec.AppName)
	}

	target := in.BaseOffset + int64(riffLength) + 8
	// Rule 5: chunks.
	for c.Pos() < target {
		chunkOff := c.Pos()
		fourccBytes, rerr := c.Bytes(4)
		if rerr != nil {
			return Outcome{}, carve.Errf(chunkOff, "no valid chunk header")
		}
		var fourcc FourCC
		copy(fourcc[:], fourccBytes)
		if _, ok := spec.ValidChunks[fourcc]; !ok {
			return Outcome{}, carve.Errf(chunkOff, "no valid chunk FourCC %s", fourcc)
		}

		sizeOff := c.Pos()
		size, rerr := c.U32LE()
		if rerr != nil {
			return Outcome{}, carve.Errf(sizeOff, "no valid chunk header")
		}
		hasPadding := size%2 != 0
		chunkLen := int64(size)
		if hasPadding {
			chunkLen++
		}
		if chunkLen > fileSize-c.Pos() {
			return Outcome{}, carve.Errf(sizeOff, "wrong chunk length")
		}

		if hasPadding {
			padOff := c.Pos() + chunkLen - 1
			c.Seek(padOff)
			pad, rerr := c.U8()
			if rerr != nil || pad != 0x00 {
				return Outcome{}, carve.Errf(padOff, "wrong value for padding byte length")
			}
			c.Seek(padOff + 1)
		} else {
			c.Seek(c.Pos() + chunkLen)
		}
	}

	consumed := c.Pos() - in.BaseOffset
	if consumed != int64(riffLength)+8 {
		return Outcome{}, carve.Errf(in.BaseOffset, "unpacked size does not match declared size")
	}

	if in.BaseOffset == 0 && consumed == fileSize {
		return Outcome{Consumed: consumed, WholeFile: true}, nil
	}

	outPath := filepath.Join(in.OutDir, "unpacked-"+strings.ToLower(spec.AppName))
	if err := iocopy.CarveFile(f, in.BaseOffset, consumed, outPath); err != nil {
		return Outcome{}, carve.FatalErrf(in.BaseOffset, "riff: %v", err)
	}
	return Outcome{Consumed: consumed, CarvedPath: outPath}, nil
}

// chunkSet builds a ValidChunks allow-list from 4-character strings,
// as used by the WebP/WAV/ANI wrappers.
func chunkSet(fourccs ...string) map[FourCC]struct{} {
	m := make(map[FourCC]struct{}, len(fourccs))
	for _, s := range fourccs {
		var f FourCC
		copy(f[:], s)
		m[f] = struct{}{}
	}
	return m
}
