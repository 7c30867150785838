// Package carve implements a binary format carver and verifier.
//
// Given a file and a byte offset, a [Parser] decides whether a known
// container or compressed stream begins at that offset, validates its
// internal structure, reports the exact number of bytes consumed, and,
// when the stream does not span the entire host file, extracts it to a
// separate output file under a caller-supplied directory.
//
// Parsers are pure: they never log, never retain state between calls,
// and never raise an error across their contract. A [Result] carries
// either a success or a [ParseError], never both. See [Parser] for the
// full contract and the dispatch package for a concurrency-bounded,
// logged, traced shell around a registry of parsers.
package carve
