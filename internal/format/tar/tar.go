// Package tar implements the POSIX/GNU tar parser: an iterative
// archive/tar walker with consumed-byte accounting and trailing
// zero-block padding accounting.
package tar

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/binform/carve"
)

const blockSize = 512

// Parser returns the tar format parser.
func Parser() carve.Parser {
	return carve.ParserFunc{FormatName: "tar", Fn: parse}
}

func parse(in carve.Input) carve.Result {
	fi, err := os.Stat(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "tar: stat %q: %v", in.Path, err))
	}
	fileSize := fi.Size()

	f, err := os.Open(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "tar: open %q: %v", in.Path, err))
	}
	defer f.Close()

	sr := io.NewSectionReader(f, in.BaseOffset, fileSize-in.BaseOffset)
	counting := &countingReader{r: sr}
	tr := tar.NewReader(counting)

	var carved []carve.Carved
	seen := make(map[string]int)
	unpacked := false
	var loopErr error
	// good tracks the block-aligned position just past the last fully
	// handled entry, so a later failed header read (trailing garbage)
	// is not counted as consumed.
	var good int64
	cleanEOF := false

	for {
		hdr, nerr := tr.Next()
		if nerr != nil {
			if errors.Is(nerr, io.EOF) {
				cleanEOF = true
				break
			}
			loopErr = nerr
			break
		}

		switch hdr.Typeflag {
		case tar.TypeBlock, tar.TypeChar, tar.TypeFifo:
			good = blockAlign(counting.n)
			continue
		}

		outPath, perr := safeJoin(in.OutDir, hdr.Name)
		if perr != nil {
			loopErr = perr
			break
		}

		// Duplicate in-archive names get a deterministic numeric
		// suffix so later entries never clobber earlier ones.
		if n := seen[hdr.Name]; n > 0 {
			outPath = disambiguate(outPath, n)
		}
		seen[hdr.Name]++

		switch {
		case hdr.Typeflag == tar.TypeDir:
			if err := os.MkdirAll(outPath, 0700); err != nil {
				loopErr = err
				break
			}
			unpacked = true
		case hdr.Typeflag == tar.TypeSymlink:
			os.Remove(outPath)
			if err := os.Symlink(hdr.Linkname, outPath); err != nil {
				loopErr = err
				break
			}
			carved = append(carved, carve.Carved{Path: outPath, Tags: carve.NewTagSet(carve.TagSymbolicLink)})
			unpacked = true
		default:
			if err := os.MkdirAll(filepath.Dir(outPath), 0700); err != nil {
				loopErr = err
				break
			}
			out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0700)
			if err != nil {
				loopErr = err
				break
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				os.Remove(outPath)
				loopErr = err
				break
			}
			out.Close()
			os.Chmod(outPath, 0700)
			carved = append(carved, carve.Carved{Path: outPath, Tags: carve.NewTagSet()})
			unpacked = true
		}
		if loopErr != nil {
			break
		}
		good = blockAlign(counting.n)
	}

	if !unpacked {
		for _, c := range carved {
			os.RemoveAll(c.Path)
		}
		return carve.Failure(carve.Errf(in.BaseOffset, "not a valid tar file"))
	}

	// On a clean end-of-archive the reader's position (including the
	// two terminating zero blocks it read) is the consumed count; when
	// iteration failed partway, count only through the last complete
	// entry so the bad trailing bytes are left for the caller.
	consumed := counting.n
	if !cleanEOF {
		consumed = good
	}
	if consumed > fileSize-in.BaseOffset {
		consumed = fileSize - in.BaseOffset
	}

	// GNU tar pads archives with up to 20 blocks of zeros beyond what
	// archive/tar itself consumes; account for them.
	if consumed%blockSize == 0 {
		block := make([]byte, blockSize)
		for in.BaseOffset+consumed < fileSize {
			n, _ := f.ReadAt(block, in.BaseOffset+consumed)
			if n != blockSize || !allZero(block) {
				break
			}
			consumed += blockSize
		}
	}

	tags := carve.NewTagSet()
	if in.BaseOffset == 0 && consumed == fileSize {
		tags = carve.NewTagSet(carve.TagTar, carve.TagArchive)
	}
	return carve.Success(consumed, carved, tags)
}

// safeJoin confines an archive entry name to root: joining against
// "/" first and taking the path relative to it collapses any leading
// ".." segments, so the result can never climb above root regardless
// of what the entry name claims.
func safeJoin(root, name string) (string, error) {
	rel, err := filepath.Rel("/", filepath.Join("/", name))
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

func disambiguate(path string, n int) string {
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	return base + "." + strconv.Itoa(n) + ext
}

// blockAlign rounds n up to the next 512-byte block boundary, the
// footprint an entry occupies on disk including its data padding.
func blockAlign(n int64) int64 {
	return (n + blockSize - 1) / blockSize * blockSize
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
