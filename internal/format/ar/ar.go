// Package ar implements the Unix ar / .deb archive adapter:
// whole-file-only extraction delegated entirely to the system ar
// binary.
package ar

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/binform/carve"
)

// Parser returns the ar format adapter.
func Parser() carve.Parser {
	return carve.ParserFunc{FormatName: "ar", Fn: parse}
}

func parse(in carve.Input) carve.Result {
	if in.BaseOffset != 0 {
		return carve.Failure(carve.Errf(in.BaseOffset, "currently only works on whole files"))
	}

	fi, err := os.Stat(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "ar: stat %q: %v", in.Path, err))
	}
	fileSize := fi.Size()

	if _, err := exec.LookPath("ar"); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "ar program not found"))
	}

	ctx := context.Background()
	if err := exec.CommandContext(ctx, "ar", "t", in.Path).Run(); err != nil {
		return carve.Failure(carve.Errf(in.BaseOffset, "not a valid ar file"))
	}

	extract := exec.CommandContext(ctx, "ar", "x", in.Path)
	extract.Dir = in.OutDir
	if err := extract.Run(); err != nil {
		cleanDir(in.OutDir)
		return carve.Failure(carve.Errf(in.BaseOffset, "not a valid ar file"))
	}

	entries, err := os.ReadDir(in.OutDir)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "ar: read %q: %v", in.OutDir, err))
	}

	lowerName := strings.ToLower(in.Path)
	isDeb := strings.HasSuffix(lowerName, ".deb") || strings.HasSuffix(lowerName, ".udeb")

	streamTags := carve.NewTagSet(carve.TagArchive, carve.TagAr)
	var carved []carve.Carved
	for _, e := range entries {
		carved = append(carved, carve.Carved{Path: filepath.Join(in.OutDir, e.Name()), Tags: carve.NewTagSet()})
		// A Debian package is an ar archive with a debian-binary
		// member; the tags go on the archive itself, not the member.
		if e.Name() == "debian-binary" && isDeb {
			streamTags.Add(carve.TagDebian).Add(carve.TagDeb)
		}
	}

	return carve.Success(fileSize, carved, streamTags)
}

func cleanDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		os.RemoveAll(filepath.Join(dir, e.Name()))
	}
}
