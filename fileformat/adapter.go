// Package fileformat provides polymorphic views over loaded files: raw
// content, PE/COFF executables, and ZIP-packaged Office documents. Each
// adapter lets the reducer mutate an inner payload while re-wrapping it
// into a byte-for-byte valid file for the oracle.
package fileformat

import "github.com/an0x03e8/avred/buffer"

// Adapter is the capability interface the reducer, section analyzer and
// verifier depend on. Every concrete adapter MUST guarantee
// MaterializeWith(Payload()) == AsOracleBytes() at construction time.
type Adapter interface {
	// Payload returns the buffer the reducer is allowed to mutate.
	Payload() *buffer.Buffer

	// AsOracleBytes returns the full file as originally loaded.
	AsOracleBytes() []byte

	// MaterializeWith returns the full file with payload substituted for
	// the adapter's inner payload.
	MaterializeWith(payload *buffer.Buffer) ([]byte, error)

	// Filename returns the display name passed to the oracle.
	Filename() string
}
