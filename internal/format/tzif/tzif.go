// Package tzif implements the TZif v0/v2/v3 timezone binary parser,
// following the record layout described in tzfile(5).
package tzif

import (
	"os"
	"path/filepath"

	"github.com/binform/carve"
	"github.com/binform/carve/internal/cursor"
	"github.com/binform/carve/internal/iocopy"
)

// Parser returns the TZif format parser.
func Parser() carve.Parser {
	return carve.ParserFunc{FormatName: "tzif", Fn: parse}
}

func parse(in carve.Input) carve.Result {
	fi, err := os.Stat(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "tzif: stat %q: %v", in.Path, err))
	}
	fileSize := fi.Size()
	if fileSize-in.BaseOffset < 44 {
		return carve.Failure(carve.Errf(in.BaseOffset, "not enough bytes"))
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "tzif: open %q: %v", in.Path, err))
	}
	defer f.Close()

	c := cursor.New(f, in.BaseOffset, fileSize-in.BaseOffset)

	version, perr := readHeader(c, false, 0)
	if perr != nil {
		return carve.Failure(perr)
	}

	if version == 0 {
		consumed := c.Pos() - in.BaseOffset
		return finish(f, in, fileSize, consumed)
	}

	if c.Pos()+44 > fileSize {
		return carve.Failure(carve.Errf(c.Pos(), "not enough data for version 2 timezone header"))
	}

	if _, perr := readHeader(c, true, version); perr != nil {
		return carve.Failure(perr)
	}

	nl, rerr := c.U8()
	if rerr != nil {
		return carve.Failure(carve.Errf(c.Pos(), "not enough data for POSIX TZ environment style string"))
	}
	if nl != '\n' {
		return carve.Failure(carve.Errf(c.Pos()-1, "wrong value for POSIX TZ environment style string"))
	}

	for {
		b, rerr := c.U8()
		if rerr != nil {
			return carve.Failure(carve.Errf(c.Pos(), "enclosing newline for POSIX TZ environment style string not found"))
		}
		if b == '\n' {
			break
		}
		if b < 0x21 || b > 0x7e {
			return carve.Failure(carve.Errf(c.Pos()-1, "invalid character in POSIX TZ environment style string"))
		}
	}

	consumed := c.Pos() - in.BaseOffset
	return finish(f, in, fileSize, consumed)
}

func finish(f *os.File, in carve.Input, fileSize, consumed int64) carve.Result {
	if in.BaseOffset == 0 && consumed == fileSize {
		return carve.Success(consumed, nil, carve.NewTagSet(carve.TagTimezone, carve.TagResource))
	}
	outPath := filepath.Join(in.OutDir, "unpacked-from-timezone")
	if err := iocopy.CarveFile(f, in.BaseOffset, consumed, outPath); err != nil {
		return carve.Failure(carve.FatalErrf(in.BaseOffset, "tzif: %v", err))
	}
	tags := carve.NewTagSet(carve.TagTimezone, carve.TagResource, carve.TagUnpacked)
	return carve.Success(consumed, []carve.Carved{{Path: outPath, Tags: tags}}, carve.NewTagSet())
}

// readHeader parses one 44-byte-plus-variable-body TZif header
// (tzfile(5)): a 4-byte "TZif" magic, a version byte, 15 reserved
// bytes, six big-endian 32-bit counts, and the variable-length
// transition time / ttinfo / abbreviation / leap-second / indicator
// tables that those counts describe.
//
// wide selects 8-byte transition times (the v2/v3 second header);
// the v0-shaped first header always uses 4-byte transition times,
// even when version is 2 or 3, since the 32-bit form always comes
// first for compatibility with older readers.
//
// requiredVersion, if non-zero, forces the version byte read here to
// match a previously read version (used for the second header, which
// must restate the same version as the first). It returns the raw
// version byte (0, 0x32, or 0x33).
func readHeader(c *cursor.Cursor, wide bool, requiredVersion byte) (byte, *carve.ParseError) {
	magic, rerr := c.Bytes(4)
	if rerr != nil || string(magic) != "TZif" {
		return 0, carve.Errf(c.Pos(), "invalid magic for timezone header")
	}

	versionOff := c.Pos()
	versionByte, rerr := c.U8()
	if rerr != nil {
		return 0, carve.Errf(versionOff, "invalid version")
	}
	if versionByte != 0x00 && versionByte != 0x32 && versionByte != 0x33 {
		return 0, carve.Errf(versionOff, "invalid version")
	}
	if requiredVersion != 0 && versionByte != requiredVersion {
		return 0, carve.Errf(versionOff, "versions in headers don't match")
	}

	reserved, rerr := c.Bytes(15)
	if rerr != nil {
		return 0, carve.Errf(c.Pos(), "reserved bytes not 0")
	}
	for _, b := range reserved {
		if b != 0 {
			return 0, carve.Errf(c.Pos()-15, "reserved bytes not 0")
		}
	}

	utIndicators, rerr := c.U32BE()
	if rerr != nil {
		return 0, carve.Errf(c.Pos(), "not enough bytes")
	}
	standardIndicators, rerr := c.U32BE()
	if rerr != nil {
		return 0, carve.Errf(c.Pos(), "not enough bytes")
	}
	leapCount, rerr := c.U32BE()
	if rerr != nil {
		return 0, carve.Errf(c.Pos(), "not enough bytes")
	}
	transitionTimes, rerr := c.U32BE()
	if rerr != nil {
		return 0, carve.Errf(c.Pos(), "not enough bytes")
	}
	localTimes, rerr := c.U32BE()
	if rerr != nil {
		return 0, carve.Errf(c.Pos(), "not enough bytes")
	}
	if localTimes == 0 {
		return 0, carve.Errf(c.Pos(), "local of times set to not-permitted 0")
	}
	abbrevBytes, rerr := c.U32BE()
	if rerr != nil {
		return 0, carve.Errf(c.Pos(), "not enough bytes")
	}

	timeWidth := 4
	if wide {
		timeWidth = 8
	}
	for i := uint32(0); i < transitionTimes; i++ {
		if _, rerr := c.Bytes(timeWidth); rerr != nil {
			return 0, carve.Errf(c.Pos(), "not enough data for transition time")
		}
	}
	for i := uint32(0); i < transitionTimes; i++ {
		idx, rerr := c.U8()
		if rerr != nil {
			return 0, carve.Errf(c.Pos(), "not enough data for transition time")
		}
		if uint32(idx) >= localTimes {
			return 0, carve.Errf(c.Pos()-1, "invalid index for transition time")
		}
	}

	for i := uint32(0); i < localTimes; i++ {
		if _, rerr := c.Bytes(4); rerr != nil { // ttinfo.gmtoff
			return 0, carve.Errf(c.Pos(), "not enough data for ttinfo GMT offsets")
		}
		dst, rerr := c.U8()
		if rerr != nil {
			return 0, carve.Errf(c.Pos(), "not enough data for ttinfo DST info")
		}
		if dst != 0 && dst != 1 {
			return 0, carve.Errf(c.Pos()-1, "invalid value for ttinfo DST info")
		}
		abbrevIdx, rerr := c.U8()
		if rerr != nil {
			return 0, carve.Errf(c.Pos(), "not enough data for ttinfo abbreviation index")
		}
		if uint32(abbrevIdx) > abbrevBytes {
			return 0, carve.Errf(c.Pos()-1, "invalid value for ttinfo abbreviation index")
		}
	}

	if _, rerr := c.Bytes(int(abbrevBytes)); rerr != nil {
		return 0, carve.Errf(c.Pos(), "not enough data for abbreviation bytes")
	}

	for i := uint32(0); i < leapCount; i++ {
		if _, rerr := c.Bytes(timeWidth); rerr != nil {
			return 0, carve.Errf(c.Pos(), "not enough data for leap seconds")
		}
		if _, rerr := c.Bytes(4); rerr != nil {
			return 0, carve.Errf(c.Pos(), "not enough data for leap seconds")
		}
	}

	for i := uint32(0); i < standardIndicators; i++ {
		if _, rerr := c.Bytes(1); rerr != nil {
			return 0, carve.Errf(c.Pos(), "not enough data for standard indicator")
		}
	}
	for i := uint32(0); i < utIndicators; i++ {
		if _, rerr := c.Bytes(1); rerr != nil {
			return 0, carve.Errf(c.Pos(), "not enough data for UT indicator")
		}
	}

	return versionByte, nil
}
