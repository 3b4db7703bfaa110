// internal/scale/frame_decoder.go
package scale

import "bytes"

// FrameDecoder decodes delimiter-framed protocols: each reading is
// bounded by a start marker byte and an end marker byte.
type FrameDecoder struct {
	extractor *Extractor
	start     byte
	end       byte
	max       int
	buf       []byte
}

// NewFrameDecoder creates a decoder for start/end delimited frames.
func NewFrameDecoder(extractor *Extractor, start, end byte, maxBuffer int) *FrameDecoder {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &FrameDecoder{
		extractor: extractor,
		start:     start,
		end:       end,
		max:       maxBuffer,
	}
}

// Feed appends chunk and scans for a complete frame. Only the span from
// the last start marker is considered: a device may begin a new frame
// before a malformed one was ever terminated, and the newer frame
// invalidates the stale partial one in front of it.
func (d *FrameDecoder) Feed(chunk []byte) (Reading, bool) {
	d.buf = append(d.buf, chunk...)

	s := bytes.LastIndexByte(d.buf, d.start)
	if s >= 0 {
		if rel := bytes.IndexByte(d.buf[s+1:], d.end); rel >= 0 {
			end := s + 1 + rel
			candidate := d.buf[s : end+1]
			if value, ok := d.extractor.Extract(candidate); ok {
				raw := append([]byte(nil), candidate...)
				d.buf = append(d.buf[:0], d.buf[end+1:]...)
				return Reading{Value: value, Raw: raw}, true
			}
		}
	}

	// Bound growth when no end marker ever arrives: keep only the most
	// recent unterminated frame, or nothing at all.
	if len(d.buf) > d.max {
		if s > 0 {
			d.buf = append(d.buf[:0], d.buf[s:]...)
		} else if s < 0 {
			d.buf = d.buf[:0]
		}
	}
	return Reading{}, false
}
