// Package oracle defines the scanner oracle contract the core consumes,
// plus resilience and call-accounting decorators around it. Concrete
// transport (HTTP client to a remote scanner, local pattern engine) is out
// of core scope and lives in cmd/avred.
package oracle

import (
	"context"
	"sync/atomic"
)

// Oracle answers whether a byte sequence, presented under filename, is
// detected by the external scanner. Implementations are treated as pure
// with respect to (bytes, filename) but may be slow or rate-limited.
type Oracle interface {
	Detects(ctx context.Context, data []byte, filename string) (bool, error)
	Health(ctx context.Context) error
}

// Counting wraps an Oracle and maintains a running count of calls issued,
// satisfying the observability requirement that an implementation report
// oracle call volume.
type Counting struct {
	inner Oracle
	calls int64
}

// NewCounting wraps inner with a call counter.
func NewCounting(inner Oracle) *Counting {
	return &Counting{inner: inner}
}

func (c *Counting) Detects(ctx context.Context, data []byte, filename string) (bool, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.Detects(ctx, data, filename)
}

func (c *Counting) Health(ctx context.Context) error {
	return c.inner.Health(ctx)
}

// Calls returns the number of Detects calls issued so far.
func (c *Counting) Calls() int64 {
	return atomic.LoadInt64(&c.calls)
}
