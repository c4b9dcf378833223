package oracle

import (
	"bytes"
	"context"
	"crypto/sha256"
)

// Pattern is a synthetic oracle that detects iff data contains pattern at
// any offset. Used to exercise the reducer against a single content
// signature.
type Pattern struct {
	Pattern []byte
}

func NewPattern(pattern []byte) *Pattern {
	return &Pattern{Pattern: pattern}
}

func (p *Pattern) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	return bytes.Contains(data, p.Pattern), nil
}

func (p *Pattern) Health(ctx context.Context) error {
	return nil
}

// Or is a synthetic oracle that detects iff data contains either of two
// patterns — a disjunctive signature set.
type Or struct {
	A, B []byte
}

func NewOr(a, b []byte) *Or {
	return &Or{A: a, B: b}
}

func (o *Or) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	return bytes.Contains(data, o.A) || bytes.Contains(data, o.B), nil
}

func (o *Or) Health(ctx context.Context) error {
	return nil
}

// And is a synthetic oracle that detects iff data contains both patterns —
// a conjunctive signature set.
type And struct {
	A, B []byte
}

func NewAnd(a, b []byte) *And {
	return &And{A: a, B: b}
}

func (a *And) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	return bytes.Contains(data, a.A) && bytes.Contains(data, a.B), nil
}

func (a *And) Health(ctx context.Context) error {
	return nil
}

// FlakyAfterN wraps another oracle and answers not-detected once the call
// count exceeds N, regardless of input — used to exercise the
// OracleInconsistent path where the original bytes stop being detected
// mid-reduction.
type FlakyAfterN struct {
	inner Oracle
	n     int
	calls int
}

// NewFlakyAfterN builds a FlakyAfterN that delegates to inner for the
// first n calls, then always answers not-detected.
func NewFlakyAfterN(inner Oracle, n int) *FlakyAfterN {
	return &FlakyAfterN{inner: inner, n: n}
}

func (f *FlakyAfterN) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	f.calls++
	if f.calls > f.n {
		return false, nil
	}
	return f.inner.Detects(ctx, data, filename)
}

func (f *FlakyAfterN) Health(ctx context.Context) error {
	return f.inner.Health(ctx)
}

// Hash is a synthetic oracle that detects iff SHA256(data) equals a fixed
// digest — exercises the hash-signature probe.
type Hash struct {
	Digest [32]byte
}

// NewHashFor builds a Hash oracle that detects exactly the given content.
func NewHashFor(content []byte) *Hash {
	return &Hash{Digest: sha256.Sum256(content)}
}

func (h *Hash) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	return sha256.Sum256(data) == h.Digest, nil
}

func (h *Hash) Health(ctx context.Context) error {
	return nil
}
