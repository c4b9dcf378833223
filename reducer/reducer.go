// Package reducer implements the recursive byte-range localizer: the
// binary-search halving procedure that narrows detection down to minimal
// signature ranges, and the two-point hash-signature probe that short-
// circuits it when the whole file is hashed.
package reducer

import (
	"context"

	"github.com/an0x03e8/avred/buffer"
	"github.com/an0x03e8/avred/fileformat"
	"github.com/an0x03e8/avred/model"
	"github.com/an0x03e8/avred/oracle"
)

// SigSize is the resolution floor below which the reducer stops halving
// and emits the current range as a match.
const SigSize = 128

// Reducer localizes signature byte ranges within an adapter's payload by
// recursive binary search against an oracle.
type Reducer struct {
	adapter fileformat.Adapter
	oracle  oracle.Oracle

	chunksTested int
}

// New builds a Reducer over adapter, querying o for each candidate chunk.
func New(adapter fileformat.Adapter, o oracle.Oracle) *Reducer {
	return &Reducer{adapter: adapter, oracle: o}
}

// ChunksTested returns how many oracle calls this Reducer instance has
// issued across all Scan invocations.
func (r *Reducer) ChunksTested() int {
	return r.chunksTested
}

// Scan localizes signature ranges within [offsetStart, offsetEnd) of the
// adapter's payload, returning a sorted, merged MatchSet.
func (r *Reducer) Scan(ctx context.Context, offsetStart, offsetEnd int) (model.MatchSet, error) {
	var out model.MatchSet
	if err := r.reduce(ctx, r.adapter.Payload().Clone(), offsetStart, offsetEnd, &out); err != nil {
		return nil, err
	}
	return model.MergeOverlapping(out), nil
}

func (r *Reducer) reduce(ctx context.Context, d *buffer.Buffer, lo, hi int, out *model.MatchSet) error {
	size := hi - lo
	half := (size + 1) / 2 // top half takes the extra byte on odd sizes
	if half < 2 {
		return nil // below the achievable resolution; not an error
	}

	botOffset := lo + half
	botSize := size - half

	dTop := d.Clone()
	if err := dTop.Fill(lo, half, buffer.FillNull); err != nil {
		return err
	}
	dBot := d.Clone()
	if err := dBot.Fill(botOffset, botSize, buffer.FillNull); err != nil {
		return err
	}

	detT, err := r.scanWith(ctx, dTop)
	if err != nil {
		return err
	}
	detB, err := r.scanWith(ctx, dBot)
	if err != nil {
		return err
	}

	switch {
	case detT && detB:
		// Both halves independently suffice. Examine each half isolated
		// against the other half's nulled copy.
		if err := r.reduce(ctx, dBot, lo, botOffset, out); err != nil {
			return err
		}
		return r.reduce(ctx, dTop, botOffset, hi, out)

	case !detT && !detB:
		if half < SigSize {
			*out = append(*out, model.Match{Offset: lo, Size: size})
			return nil
		}
		if err := r.reduce(ctx, d, lo, botOffset, out); err != nil {
			return err
		}
		return r.reduce(ctx, d, botOffset, hi, out)

	case !detT && detB:
		return r.reduce(ctx, d, lo, botOffset, out)

	default: // detT && !detB
		return r.reduce(ctx, d, botOffset, hi, out)
	}
}

func (r *Reducer) scanWith(ctx context.Context, d *buffer.Buffer) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.chunksTested++
	materialized, err := r.adapter.MaterializeWith(d)
	if err != nil {
		return false, err
	}
	return r.oracle.Detects(ctx, materialized, r.adapter.Filename())
}

// ProbeHash implements the two-point hash-signature probe: single-byte
// null fills at floor(N/3) and floor(2N/3). If neither mutated payload is
// still detected, the signature is whole-file-hash based.
func ProbeHash(ctx context.Context, adapter fileformat.Adapter, o oracle.Oracle) (bool, error) {
	payload := adapter.Payload()
	n := payload.Len()

	firstOff := n / 3
	first := payload.Clone()
	if err := first.Fill(firstOff, 1, buffer.FillNull); err != nil {
		return false, err
	}
	firstBytes, err := adapter.MaterializeWith(first)
	if err != nil {
		return false, err
	}
	firstDetected, err := o.Detects(ctx, firstBytes, adapter.Filename())
	if err != nil {
		return false, err
	}

	lastOff := (2 * n) / 3
	last := payload.Clone()
	if err := last.Fill(lastOff, 1, buffer.FillNull); err != nil {
		return false, err
	}
	lastBytes, err := adapter.MaterializeWith(last)
	if err != nil {
		return false, err
	}
	lastDetected, err := o.Detects(ctx, lastBytes, adapter.Filename())
	if err != nil {
		return false, err
	}

	return !firstDetected && !lastDetected, nil
}
