package dispatch

import (
	"github.com/binform/carve"
	"github.com/binform/carve/internal/format/ar"
	"github.com/binform/carve/internal/format/bmp"
	"github.com/binform/carve/internal/format/gzip"
	"github.com/binform/carve/internal/format/lzmaxz"
	"github.com/binform/carve/internal/format/png"
	"github.com/binform/carve/internal/format/riff"
	"github.com/binform/carve/internal/format/squashfs"
	"github.com/binform/carve/internal/format/tar"
	"github.com/binform/carve/internal/format/tzif"
)

// DefaultParsers returns every format parser this repository
// implements, in a fixed, deterministic probe order: cheap magic-byte
// formats first, external-tool adapters last, so a declined probe
// costs as little as possible.
func DefaultParsers() []carve.Parser {
	return []carve.Parser{
		png.Parser(),
		riff.WebP(),
		riff.WAV(),
		riff.ANI(),
		gzip.Parser(),
		lzmaxz.LZMA(),
		lzmaxz.XZ(),
		tzif.Parser(),
		tar.Parser(),
		bmp.Parser(),
		ar.Parser(),
		squashfs.Parser(),
	}
}

// Default returns a Dispatcher wired with every parser this
// repository implements, in [DefaultParsers]'s order.
func Default() *Dispatcher {
	return New(DefaultParsers()...)
}
