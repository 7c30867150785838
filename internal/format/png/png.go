// Package png implements the PNG chunk-stream parser: an IHDR-first,
// IEND-terminated walker with per-chunk CRC-32 and APNG detection.
package png

import (
	"encoding/binary"
	stdpng "image/png"
	"os"
	"path/filepath"

	"github.com/binform/carve"
	"github.com/binform/carve/internal/cursor"
	"github.com/binform/carve/internal/iocopy"
)

var pngSignature = [8]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// Parser returns the PNG format parser.
func Parser() carve.Parser {
	return carve.ParserFunc{FormatName: "png", Fn: parse}
}

func parse(in carve.Input) carve.Result {
	fi, err := os.Stat(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "png: stat %q: %v", in.Path, err))
	}
	fileSize := fi.Size()

	if fileSize-in.BaseOffset < 57 {
		return carve.Failure(carve.Errf(in.BaseOffset, "file too small (less than 57 bytes)"))
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "png: open %q: %v", in.Path, err))
	}
	defer f.Close()

	c := cursor.New(f, in.BaseOffset, fileSize-in.BaseOffset)

	sig, rerr := c.Bytes(8)
	if rerr != nil || [8]byte(sig) != pngSignature {
		return carve.Failure(carve.Errf(in.BaseOffset, "no valid PNG signature"))
	}

	// First chunk must be IHDR with a fixed 13-byte length.
	first, rerr := c.Bytes(25)
	if rerr != nil {
		return carve.Failure(carve.Errf(c.Pos(), "no valid chunk length"))
	}
	if first[0] != 0x00 || first[1] != 0x00 || first[2] != 0x00 || first[3] != 0x0d {
		return carve.Failure(carve.Errf(in.BaseOffset+8, "no valid chunk length"))
	}
	if string(first[4:8]) != "IHDR" {
		return carve.Failure(carve.Errf(in.BaseOffset+8, "no IHDR header"))
	}
	if crc32Of(first[4:21]) != binary.BigEndian.Uint32(first[21:25]) {
		return carve.Failure(carve.Errf(in.BaseOffset+8, "Wrong CRC"))
	}

	idatSeen := false
	endReached := false
	seenChunks := make(map[string]struct{})
	for {
		sizeOff := c.Pos()
		sizeBytes, rerr := c.Bytes(4)
		if rerr != nil {
			if c.Remaining() == 0 {
				break
			}
			return carve.Failure(carve.Errf(sizeOff, "could not read chunk size"))
		}
		chunkSize := binary.BigEndian.Uint32(sizeBytes)
		if int64(chunkSize) > fileSize-c.Pos() {
			return carve.Failure(carve.Errf(sizeOff, "PNG data bigger than file"))
		}

		body, rerr := c.Bytes(4 + int(chunkSize))
		if rerr != nil {
			return carve.Failure(carve.Errf(sizeOff, "could not read chunk type"))
		}
		chunkType := string(body[0:4])

		crcBytes, rerr := c.Bytes(4)
		if rerr != nil {
			return carve.Failure(carve.Errf(c.Pos(), "could not read chunk CRC"))
		}
		if crc32Of(body) != binary.BigEndian.Uint32(crcBytes) {
			return carve.Failure(carve.Errf(c.Pos()-4, "Wrong CRC"))
		}

		seenChunks[chunkType] = struct{}{}
		if chunkType == "IEND" {
			endReached = true
			break
		}
		if chunkType == "IDAT" {
			idatSeen = true
		}
	}

	if !idatSeen {
		return carve.Failure(carve.Errf(in.BaseOffset, "No IDAT found"))
	}
	if !endReached {
		return carve.Failure(carve.Errf(c.Pos(), "No IEND found"))
	}

	consumed := c.Pos() - in.BaseOffset
	_, hasACTL := seenChunks["acTL"]
	_, hasFCTL := seenChunks["fcTL"]
	_, hasFDAT := seenChunks["fdAT"]
	animated := hasACTL && hasFCTL && hasFDAT

	tags := carve.NewTagSet(carve.TagPNG, carve.TagGraphics)
	if animated {
		tags.Add(carve.TagAnimated).Add(carve.TagAPNG)
	}

	if in.BaseOffset == 0 && consumed == fileSize {
		if !validateImage(f, in.BaseOffset, consumed) {
			return carve.Failure(carve.Errf(in.BaseOffset, "invalid PNG data"))
		}
		return carve.Success(consumed, nil, tags)
	}

	outPath := filepath.Join(in.OutDir, "unpacked.png")
	if err := iocopy.CarveFile(f, in.BaseOffset, consumed, outPath); err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "png: %v", err))
	}
	if !validateImageFile(outPath) {
		os.Remove(outPath)
		return carve.Failure(carve.Errf(in.BaseOffset, "invalid PNG data"))
	}

	carvedTags := carve.NewTagSet(carve.TagPNG, carve.TagGraphics, carve.TagUnpacked)
	if animated {
		carvedTags.Add(carve.TagAnimated).Add(carve.TagAPNG)
	}
	return carve.Success(consumed, []carve.Carved{{Path: outPath, Tags: carvedTags}}, carve.NewTagSet())
}

// validateImage runs a full decode over the recognized byte range.
// The chunk walk only proves the container structure is sound; a
// stream that passes it can still carry IDAT data no decoder accepts.
func validateImage(f *os.File, base, length int64) bool {
	sr := sectionReaderAt(f, base, length)
	_, err := stdpng.Decode(sr)
	return err == nil
}

func validateImageFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = stdpng.Decode(f)
	return err == nil
}
