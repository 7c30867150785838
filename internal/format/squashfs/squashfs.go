// Package squashfs implements the squashfs adapter: header sanity
// checks followed by delegating extraction to the external unsquashfs
// tool. Squashfs v1 images are rejected; their superblock layout
// predates the size field this parser relies on.
package squashfs

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/binform/carve"
)

// Parser returns the squashfs format adapter.
func Parser() carve.Parser {
	return carve.ParserFunc{FormatName: "squashfs", Fn: parse}
}

func parse(in carve.Input) carve.Result {
	if _, err := exec.LookPath("unsquashfs"); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "unsquashfs program not found"))
	}

	fi, err := os.Stat(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "squashfs: stat %q: %v", in.Path, err))
	}
	fileSize := fi.Size()
	if fileSize-in.BaseOffset < 30 {
		return carve.Failure(carve.Errf(in.BaseOffset, "not enough data"))
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "squashfs: open %q: %v", in.Path, err))
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := f.ReadAt(magic, in.BaseOffset); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "not enough data"))
	}
	bigEndian := string(magic) != "hsqs"

	versionRaw := make([]byte, 2)
	if _, err := f.ReadAt(versionRaw, in.BaseOffset+28); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset+28, "not enough data"))
	}
	majorVersion := u16(versionRaw, bigEndian)
	if majorVersion == 0 || majorVersion > 4 {
		return carve.Failure(carve.Errf(in.BaseOffset+28, "invalid squashfs version"))
	}

	var sizeOff int64
	var sizeWidth int
	switch majorVersion {
	case 4:
		sizeOff, sizeWidth = 40, 8
	case 3:
		sizeOff, sizeWidth = 63, 8
	case 2:
		sizeOff, sizeWidth = 8, 4
	default:
		return carve.Failure(carve.Errf(in.BaseOffset+28, "squashfs v1 is not supported"))
	}

	sizeRaw := make([]byte, sizeWidth)
	if n, err := f.ReadAt(sizeRaw, in.BaseOffset+sizeOff); err != nil || n != sizeWidth {
		return carve.Failure(carve.Errf(in.BaseOffset+sizeOff, "not enough data to read size"))
	}
	squashfsSize := u64(sizeRaw, bigEndian)
	if in.BaseOffset+squashfsSize > fileSize {
		return carve.Failure(carve.Errf(in.BaseOffset, "file system cannot extend past file"))
	}

	ctx := context.Background()
	target := in.Path
	if in.BaseOffset != 0 {
		tmp, err := os.CreateTemp(in.TmpDir, "squashfs-*")
		if err != nil {
			return carve.Failure(carve.FatalErrf(in.BaseOffset, "squashfs: %v", err))
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, io.NewSectionReader(f, in.BaseOffset, fileSize-in.BaseOffset)); err != nil {
			tmp.Close()
			return carve.Failure(carve.FatalErrf(in.BaseOffset, "squashfs: %v", err))
		}
		tmp.Close()
		target = tmp.Name()
	}

	workDir, err := os.MkdirTemp(in.TmpDir, "squashfs-unpack-*")
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "squashfs: %v", err))
	}
	defer os.RemoveAll(workDir)

	cmd := exec.CommandContext(ctx, "unsquashfs", target)
	cmd.Dir = workDir
	if err := cmd.Run(); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "not a valid squashfs file"))
	}

	rootDir := workDir
	entries, err := os.ReadDir(workDir)
	if err == nil && len(entries) == 1 && entries[0].Name() == "squashfs-root" {
		rootDir = filepath.Join(workDir, "squashfs-root")
	}

	var carved []carve.Carved
	err = filepath.Walk(rootDir, func(path string, info os.FileInfo, werr error) error {
		if werr != nil {
			return werr
		}
		if info.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(rootDir, path)
		if rerr != nil {
			return rerr
		}
		dest := filepath.Join(in.OutDir, rel)
		if mkErr := os.MkdirAll(filepath.Dir(dest), 0700); mkErr != nil {
			return mkErr
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, lerr := os.Readlink(path)
			if lerr != nil {
				return lerr
			}
			os.Remove(dest)
			if serr := os.Symlink(target, dest); serr != nil {
				return serr
			}
			carved = append(carved, carve.Carved{Path: dest, Tags: carve.NewTagSet(carve.TagSymbolicLink)})
			return nil
		}
		if cerr := copyFile(path, dest); cerr != nil {
			return cerr
		}
		carved = append(carved, carve.Carved{Path: dest, Tags: carve.NewTagSet()})
		return nil
	})
	if err != nil {
		for _, c := range carved {
			os.RemoveAll(c.Path)
		}
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "squashfs: %v", err))
	}

	// Unlike ar, a recognized squashfs image carries no stream-level
	// tags; only its extracted entries are reported.
	return carve.Success(squashfsSize, carved, carve.NewTagSet())
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0700)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func u16(b []byte, bigEndian bool) uint16 {
	if bigEndian {
		return uint16(b[0])<<8 | uint16(b[1])
	}
	return uint16(b[0]) | uint16(b[1])<<8
}

func u64(b []byte, bigEndian bool) int64 {
	var v uint64
	if bigEndian {
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
	} else {
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
	}
	return int64(v)
}
