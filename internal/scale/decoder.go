// internal/scale/decoder.go
package scale

// DefaultMaxBuffer bounds decode buffer growth for devices that never
// terminate a protocol unit.
const DefaultMaxBuffer = 4096

// Reading is one weight sample decoded from the byte stream: the integer
// value and the raw protocol unit that produced it.
type Reading struct {
	Value int64
	Raw   []byte
}

// Decoder accumulates raw serial chunks and attempts to extract a reading
// from them. Implementations own their buffer for the lifetime of one
// reading session; Feed must not be called concurrently.
//
// The two implementations share only this contract. Their buffer
// consumption rules differ on purpose: frame decoding discards everything
// up to the consumed end marker, line decoding keeps every accumulated
// line alive until the session ends.
type Decoder interface {
	// Feed appends chunk to the internal buffer and reports whether a
	// complete protocol unit yielded a reading.
	Feed(chunk []byte) (Reading, bool)
}
