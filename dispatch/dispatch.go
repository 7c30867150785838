// Package dispatch implements the uniform parser contract's driver: a
// registry of [carve.Parser] implementations plus the logging,
// tracing and concurrency-bounding shell around them.
//
// The parsers in internal/format never log or trace; this package is
// where a caller's attempt to recognize a stream at a given offset
// picks up structured, leveled logs and a trace region.
package dispatch

import (
	"context"
	"fmt"
	"runtime/trace"

	"github.com/quay/zlog"

	"github.com/binform/carve"
	"github.com/binform/carve/internal/baggageutil"
)

// Dispatcher holds a registry of parsers and probes them against an
// [carve.Input], in registration order, stopping at the first match
// or the first fatal error.
type Dispatcher struct {
	parsers []carve.Parser
}

// New returns a Dispatcher over the given parsers, tried in order.
// An empty list is valid; [Dispatcher.Probe] simply never matches.
func New(parsers ...carve.Parser) *Dispatcher {
	d := &Dispatcher{parsers: make([]carve.Parser, len(parsers))}
	copy(d.parsers, parsers)
	return d
}

// Parsers returns the registered parsers, in probe order.
func (d *Dispatcher) Parsers() []carve.Parser {
	out := make([]carve.Parser, len(d.parsers))
	copy(out, d.parsers)
	return out
}

// Probe tries every registered parser against in, in order, and
// returns the first one that recognizes a stream along with its
// format name. If every parser declines, Probe returns (zero Result,
// "", false, nil). A fatal [carve.ParseError] from any parser stops
// the probe immediately and is surfaced as an error: fatal means the
// caller should stop all further work, not just this probe.
func (d *Dispatcher) Probe(ctx context.Context, in carve.Input) (carve.Result, string, bool, error) {
	ctx = zlog.ContextWithValues(ctx,
		"component", "dispatch/Dispatcher.Probe",
		"path", in.Path,
	)
	ctx = baggageutil.ContextWithValues(ctx, "path", in.Path)

	for _, p := range d.parsers {
		name := p.Name()
		pctx := zlog.ContextWithValues(ctx, "format", name)
		pctx = baggageutil.ContextWithValues(pctx, "format", name)

		region := trace.StartRegion(pctx, "dispatch.Probe."+name)
		trace.Log(pctx, "offset", fmt.Sprintf("%d", in.BaseOffset))
		zlog.Debug(pctx).Int64("offset", in.BaseOffset).Msg("probe start")
		res := p.Parse(in)
		region.End()

		if res.OK() {
			probeCounter.WithLabelValues(name, outcomeMatched).Inc()
			zlog.Debug(pctx).
				Int64("consumed", res.Consumed).
				Int("carved", len(res.Carved)).
				Msg("probe matched")
			return res, name, true, nil
		}

		if res.Err != nil && res.Err.Fatal {
			probeCounter.WithLabelValues(name, outcomeFatal).Inc()
			zlog.Error(pctx).
				Int64("offset", res.Err.Offset).
				Str("reason", res.Err.Reason).
				Msg("probe fatal error")
			return carve.Result{}, "", false, fmt.Errorf("dispatch: %s: %w", name, res.Err)
		}
		if res.Err != nil {
			probeCounter.WithLabelValues(name, outcomeDecline).Inc()
			zlog.Debug(pctx).
				Int64("offset", res.Err.Offset).
				Str("reason", res.Err.Reason).
				Msg("probe declined")
		}
	}
	zlog.Debug(ctx).Msg("no parser matched")
	return carve.Result{}, "", false, nil
}
