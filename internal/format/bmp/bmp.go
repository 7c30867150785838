// Package bmp implements the BMP adapter: structural header checks
// followed by delegating validation to the external bmptopnm tool.
package bmp

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/binform/carve"
)

var dibHeaderSizes = map[uint32]struct{}{
	12: {}, 16: {}, 40: {}, 52: {}, 56: {}, 64: {}, 108: {}, 124: {},
}

// Parser returns the BMP format adapter.
func Parser() carve.Parser {
	return carve.ParserFunc{FormatName: "bmp", Fn: parse}
}

func parse(in carve.Input) carve.Result {
	fi, err := os.Stat(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "bmp: stat %q: %v", in.Path, err))
	}
	fileSize := fi.Size()
	if fileSize-in.BaseOffset < 26 {
		return carve.Failure(carve.Errf(in.BaseOffset, "file too small (less than 26 bytes)"))
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "bmp: open %q: %v", in.Path, err))
	}
	defer f.Close()

	header := make([]byte, 18)
	if _, err := f.ReadAt(header, in.BaseOffset); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "not enough data for BMP header"))
	}
	if header[0] != 'B' || header[1] != 'M' {
		return carve.Failure(carve.Errf(in.BaseOffset, "invalid BMP magic"))
	}

	bmpSize := int64(binary.LittleEndian.Uint32(header[2:6]))
	if in.BaseOffset+bmpSize > fileSize {
		return carve.Failure(carve.Errf(in.BaseOffset, "not enough data for BMP file"))
	}

	bmpDataOffset := int64(binary.LittleEndian.Uint32(header[10:14]))
	if in.BaseOffset+bmpDataOffset > fileSize {
		return carve.Failure(carve.Errf(in.BaseOffset, "not enough data for BMP"))
	}

	dibHeaderSize := binary.LittleEndian.Uint32(header[14:18])
	if _, ok := dibHeaderSizes[dibHeaderSize]; !ok {
		return carve.Failure(carve.Errf(in.BaseOffset+14, "invalid DIB header"))
	}
	if in.BaseOffset+14+int64(dibHeaderSize) > fileSize {
		return carve.Failure(carve.Errf(in.BaseOffset+14, "not enough data for DIB header"))
	}
	if bmpDataOffset < int64(dibHeaderSize)+14 {
		return carve.Failure(carve.Errf(in.BaseOffset, "invalid BMP data offset"))
	}

	if _, err := exec.LookPath("bmptopnm"); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset+18, "bmptopnm program not found"))
	}

	body := make([]byte, bmpSize)
	if _, err := f.ReadAt(body, in.BaseOffset); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "not enough data for BMP file"))
	}

	cmd := exec.CommandContext(context.Background(), "bmptopnm")
	cmd.Stdin = bytes.NewReader(body)
	if err := cmd.Run(); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "invalid BMP"))
	}

	if in.BaseOffset == 0 && fileSize == bmpSize {
		return carve.Success(fileSize, nil, carve.NewTagSet(carve.TagBMP, carve.TagGraphics))
	}

	outPath := filepath.Join(in.OutDir, "unpacked.bmp")
	if err := os.WriteFile(outPath, body, 0600); err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "bmp: %v", err))
	}
	tags := carve.NewTagSet(carve.TagBMP, carve.TagGraphics, carve.TagUnpacked)
	return carve.Success(bmpSize, []carve.Carved{{Path: outPath, Tags: tags}}, carve.NewTagSet())
}
