package carve

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResultDiscriminant(t *testing.T) {
	ok := Success(42, nil, NewTagSet(TagPNG, TagGraphics))
	if !ok.OK() {
		t.Fatal("Success must report OK")
	}
	if ok.Consumed != 42 {
		t.Fatalf("Consumed = %d, want 42", ok.Consumed)
	}

	bad := Failure(Errf(7, "no valid %s header", "RIFF"))
	if bad.OK() {
		t.Fatal("Failure must not report OK")
	}
	if bad.Consumed != 0 {
		t.Fatalf("failed parse must not report consumed bytes, got %d", bad.Consumed)
	}
	if bad.Err.Offset != 7 || bad.Err.Fatal {
		t.Fatalf("unexpected error detail: %+v", bad.Err)
	}
	if got, want := bad.Err.Reason, "no valid RIFF header"; got != want {
		t.Fatalf("Reason = %q, want %q", got, want)
	}
}

func TestParseErrorWraps(t *testing.T) {
	inner := FatalErrf(100, "disk full")
	wrapped := fmt.Errorf("probing: %w", inner)
	var pe *ParseError
	if !errors.As(wrapped, &pe) {
		t.Fatal("expected errors.As to recover the ParseError")
	}
	if !pe.Fatal || pe.Offset != 100 {
		t.Fatalf("unexpected recovered error: %+v", pe)
	}
}

func TestTagSetClosed(t *testing.T) {
	good := NewTagSet(TagTar, TagArchive, TagSymbolicLink)
	if !good.Closed() {
		t.Fatalf("vocabulary tags reported as out of vocabulary: %v", good.Slice())
	}
	bad := NewTagSet(TagTar).Add("made-up-tag")
	if bad.Closed() {
		t.Fatal("out-of-vocabulary tag must fail the closure check")
	}
}

func TestTagSetSliceSorted(t *testing.T) {
	s := NewTagSet(TagWAV, TagAudio, TagRIFF)
	want := []string{"audio", "riff", "wav"}
	if diff := cmp.Diff(want, s.Slice()); diff != "" {
		t.Fatalf("unexpected slice order (-want +got):\n%s", diff)
	}
}
