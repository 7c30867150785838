package carve

import (
	"fmt"
)

// Result is the outcome of a single [Parser] invocation.
//
// Result is modeled as a sum type: a successful parse populates
// Consumed, Carved and StreamTags and leaves Err nil; a failed parse
// leaves Consumed at zero and populates Err. Callers must branch on
// [Result.OK] rather than probing whether Err happens to be nil.
type Result struct {
	// Consumed is the number of bytes recognized starting at the
	// base offset the parser was given. Always > 0 when OK() is true.
	Consumed int64

	// Carved is the ordered sequence of files extracted from the
	// input, one entry per output file actually written to disk.
	Carved []Carved

	// StreamTags are the tags that apply to the input stream as a
	// whole. Only ever non-empty when the parsed stream spans the
	// entire host file (base_offset == 0 && Consumed == file size).
	StreamTags TagSet

	// Err is non-nil exactly when the parse failed.
	Err *ParseError
}

// Carved describes a single file extracted from a parsed stream.
type Carved struct {
	Path string
	Tags TagSet
}

// OK reports whether the parse recognized a valid stream.
func (r Result) OK() bool { return r.Err == nil }

// Success builds a Result for a recognized stream.
func Success(consumed int64, carved []Carved, tags TagSet) Result {
	return Result{Consumed: consumed, Carved: carved, StreamTags: tags}
}

// Failure builds a Result carrying a [ParseError].
func Failure(err *ParseError) Result {
	return Result{Err: err}
}

// ParseError describes why a parser declined to recognize a stream, or
// (when Fatal is true) that an I/O failure stopped it outright.
//
// ParseError is a value, not a signal: parsers return it inside a
// [Result] rather than via Go's error-return idiom, per the uniform
// parser contract. It still implements error so callers that want to
// fold it into an error chain (the dispatch shell does, at its
// boundary) can use [fmt.Errorf]'s "%w" verb and [errors.As].
type ParseError struct {
	// Offset is the absolute file position at which the
	// inconsistency was detected, not necessarily the base offset
	// the parser was invoked with.
	Offset int64
	Reason string
	// Fatal indicates the caller should stop all further work
	// (I/O errors, disk full). Format violations are never fatal.
	Fatal bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("carve: offset %d: %s", e.Offset, e.Reason)
}

// Errf builds a non-fatal [ParseError] at offset with a formatted reason.
func Errf(offset int64, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// FatalErrf builds a fatal [ParseError] at offset with a formatted reason.
func FatalErrf(offset int64, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Reason: fmt.Sprintf(format, args...), Fatal: true}
}

// Input is the (path, base_offset, output_dir, tmp_dir) quadruple every
// [Parser] is invoked with.
type Input struct {
	// Path is the full path to the host file.
	Path string
	// BaseOffset is the byte offset inside Path where the candidate
	// stream may start. 0 <= BaseOffset <= file size.
	BaseOffset int64
	// OutDir is where carved files are written.
	OutDir string
	// TmpDir is where a parser may stage scratch files it cleans up
	// before returning.
	TmpDir string
}

// Parser is the uniform contract every format implementation satisfies.
//
// A Parser is a pure structural validator plus optional carver: it
// never interprets semantic content beyond what the format itself
// requires, never logs, and never panics on malformed input; it
// reports a non-fatal [ParseError] instead.
type Parser interface {
	// Name identifies the format for logging and tag bookkeeping,
	// e.g. "png", "gzip", "tar".
	Name() string
	// Parse attempts to recognize and optionally carve a stream
	// starting at in.BaseOffset.
	Parse(in Input) Result
}

// ParserFunc adapts a plain function to the [Parser] interface.
type ParserFunc struct {
	FormatName string
	Fn         func(in Input) Result
}

func (p ParserFunc) Name() string          { return p.FormatName }
func (p ParserFunc) Parse(in Input) Result { return p.Fn(in) }
