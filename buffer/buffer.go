// Package buffer implements the mutable octet sequence every file format
// adapter and reduction step operates on.
package buffer

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// FillStrategy selects the byte pattern used by Buffer.Fill.
type FillStrategy int

const (
	FillNull FillStrategy = iota
	FillSpace
	FillHighEntropy
	FillLowEntropy
)

func (s FillStrategy) String() string {
	switch s {
	case FillNull:
		return "null"
	case FillSpace:
		return "space"
	case FillHighEntropy:
		return "highentropy"
	case FillLowEntropy:
		return "lowentropy"
	default:
		return "unknown"
	}
}

// Buffer is a mutable byte sequence with range-level overwrite, fill and
// swap operations. It never reallocates or changes length: every operation
// is an in-place overwrite of an existing range.
type Buffer struct {
	data []byte
}

// New copies src into a new Buffer.
func New(src []byte) *Buffer {
	b := &Buffer{data: make([]byte, len(src))}
	copy(b.data, src)
	return b
}

// Bytes returns the full underlying byte slice. Callers must not retain it
// across further mutation of the Buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the buffer length.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Range returns a copy of data[start:end]. It panics if the range is out of
// bounds, matching slice semantics.
func (b *Buffer) Range(start, end int) []byte {
	out := make([]byte, end-start)
	copy(out, b.data[start:end])
	return out
}

// Overwrite replaces data[offset:offset+len(payload)] with payload.
func (b *Buffer) Overwrite(offset int, payload []byte) error {
	if offset < 0 || offset+len(payload) > len(b.data) {
		return fmt.Errorf("buffer: overwrite out of range: offset=%d len=%d bufsize=%d", offset, len(payload), len(b.data))
	}
	copy(b.data[offset:offset+len(payload)], payload)
	return nil
}

// Fill overwrites data[offset:offset+size] with bytes generated by strategy.
func (b *Buffer) Fill(offset, size int, strategy FillStrategy) error {
	if offset < 0 || offset+size > len(b.data) {
		return fmt.Errorf("buffer: fill out of range: offset=%d size=%d bufsize=%d", offset, size, len(b.data))
	}
	payload, err := fillPattern(size, strategy)
	if err != nil {
		return err
	}
	copy(b.data[offset:offset+size], payload)
	return nil
}

func fillPattern(size int, strategy FillStrategy) ([]byte, error) {
	switch strategy {
	case FillNull:
		return make([]byte, size), nil
	case FillSpace:
		out := make([]byte, size)
		for i := range out {
			out[i] = ' '
		}
		return out, nil
	case FillHighEntropy:
		out := make([]byte, size)
		if _, err := rand.Read(out); err != nil {
			return nil, fmt.Errorf("buffer: high-entropy fill: %w", err)
		}
		return out, nil
	case FillLowEntropy:
		// base64 alphabet is low-entropy relative to raw random bytes but
		// still varies enough to break a contiguous hash match.
		raw := make([]byte, size)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("buffer: low-entropy fill: %w", err)
		}
		enc := base64.StdEncoding.EncodeToString(raw)
		out := make([]byte, size)
		copy(out, enc)
		for i := len(enc); i < size; i++ {
			out[i] = '='
		}
		return out, nil
	default:
		return nil, fmt.Errorf("buffer: unknown fill strategy %v", strategy)
	}
}

// Swap reorders two non-overlapping, possibly unequal-size ranges,
// shifting whatever lies between them to close the gap left by the size
// difference. Total buffer length is always preserved; bytes outside the
// combined [min(aOffset,bOffset), max(aEnd,bEnd)) span are untouched.
func (b *Buffer) Swap(aOffset, aSize, bOffset, bSize int) error {
	if aOffset < 0 || aOffset+aSize > len(b.data) {
		return fmt.Errorf("buffer: swap range a out of bounds: offset=%d size=%d", aOffset, aSize)
	}
	if bOffset < 0 || bOffset+bSize > len(b.data) {
		return fmt.Errorf("buffer: swap range b out of bounds: offset=%d size=%d", bOffset, bSize)
	}
	aEnd, bEnd := aOffset+aSize, bOffset+bSize
	if aOffset < bEnd && bOffset < aEnd {
		return fmt.Errorf("buffer: swap ranges overlap: a=[%d,%d) b=[%d,%d)", aOffset, aEnd, bOffset, bEnd)
	}

	firstOff, firstSize, secondOff, secondSize := aOffset, aSize, bOffset, bSize
	if bOffset < aOffset {
		firstOff, firstSize, secondOff, secondSize = bOffset, bSize, aOffset, aSize
	}
	firstEnd := firstOff + firstSize
	secondEnd := secondOff + secondSize

	rearranged := make([]byte, 0, secondEnd-firstOff)
	rearranged = append(rearranged, b.data[secondOff:secondEnd]...)
	rearranged = append(rearranged, b.data[firstEnd:secondOff]...)
	rearranged = append(rearranged, b.data[firstOff:firstEnd]...)
	copy(b.data[firstOff:secondEnd], rearranged)
	return nil
}

// Clone returns an independent copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	return New(b.data)
}
