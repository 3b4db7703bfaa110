// internal/scale/line_decoder.go
package scale

import "bytes"

// LineDecoder decodes line-terminated protocols: each reading is bounded
// by a single terminator byte and multiple line types share the stream.
type LineDecoder struct {
	extractor *Extractor
	term      byte
	max       int
	buf       []byte
}

// NewLineDecoder creates a decoder for terminator-delimited lines.
func NewLineDecoder(extractor *Extractor, terminator byte, maxBuffer int) *LineDecoder {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &LineDecoder{
		extractor: extractor,
		term:      terminator,
		max:       maxBuffer,
	}
}

// Feed appends chunk and, when the chunk carries a terminator, re-scans
// the whole accumulated buffer line by line. Line-based scales interleave
// status lines (standby markers, weight lines), so the correct reading is
// not necessarily the most recent line; nothing ahead of a match is ever
// discarded.
func (d *LineDecoder) Feed(chunk []byte) (Reading, bool) {
	d.buf = append(d.buf, chunk...)

	if bytes.IndexByte(chunk, d.term) >= 0 {
		for _, segment := range bytes.Split(d.buf, []byte{d.term}) {
			if len(segment) == 0 {
				continue
			}
			candidate := make([]byte, 0, len(segment)+1)
			candidate = append(candidate, segment...)
			candidate = append(candidate, d.term)
			if value, ok := d.extractor.Extract(candidate); ok {
				return Reading{Value: value, Raw: candidate}, true
			}
		}
	}

	if len(d.buf) > d.max {
		d.buf = d.buf[:0]
	}
	return Reading{}, false
}
