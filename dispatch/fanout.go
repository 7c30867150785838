package dispatch

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/binform/carve"
)

// Opts configures [ProbeOffsets]. The zero value is usable;
// Concurrency defaults to GOMAXPROCS.
type Opts struct {
	// Concurrency bounds how many offsets are probed at once. <= 0
	// means GOMAXPROCS.
	Concurrency int
}

func (o Opts) concurrency() int64 {
	if o.Concurrency <= 0 {
		return int64(runtime.GOMAXPROCS(0))
	}
	return int64(o.Concurrency)
}

// Offset is one candidate probe site: a byte position within Path,
// plus the OutDir/TmpDir a match at that offset should carve into.
// Callers (directory scanners, signature-index consumers) are
// responsible for choosing disjoint OutDir/TmpDir pairs; concurrent
// probes into a shared directory would race on output names.
type Offset struct {
	Path       string
	BaseOffset int64
	OutDir     string
	TmpDir     string
}

// Match pairs an [Offset] with the [carve.Result] its matching parser
// returned.
type Match struct {
	Offset Offset
	Format string
	Result carve.Result
}

// ProbeOffsets probes every given [Offset] against d concurrently,
// bounded by opts.Concurrency. The first fatal error from any probe
// cancels the remaining work and is returned; offsets that simply
// found no match are omitted from the result slice, not reported as
// errors.
//
// The returned slice preserves the order of offsets, not completion
// order.
func ProbeOffsets(ctx context.Context, d *Dispatcher, offsets []Offset, opts Opts) ([]Match, error) {
	sem := semaphore.NewWeighted(opts.concurrency())
	g, gctx := errgroup.WithContext(ctx)

	results := make([]*Match, len(offsets))
	for i, off := range offsets {
		i, off := i, off
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			in := carve.Input{
				Path:       off.Path,
				BaseOffset: off.BaseOffset,
				OutDir:     off.OutDir,
				TmpDir:     off.TmpDir,
			}
			res, format, matched, err := d.Probe(gctx, in)
			if err != nil {
				return fmt.Errorf("dispatch: probing %q at offset %d: %w", off.Path, off.BaseOffset, err)
			}
			if !matched {
				return nil
			}
			results[i] = &Match{Offset: off, Format: format, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(offsets))
	for _, m := range results {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}
