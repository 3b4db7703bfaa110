// internal/scale/extractor.go
package scale

import (
	"fmt"
	"regexp"
	"strconv"
)

// Extractor applies the configured weight pattern to a candidate protocol
// unit. If the pattern defines a capturing group, group 1 carries the
// numeric text, otherwise the whole match is used.
type Extractor struct {
	re *regexp.Regexp
}

// NewExtractor compiles the weight pattern. A malformed pattern is a
// fatal configuration error reported here, once, before any port
// activity begins.
func NewExtractor(pattern string) (*Extractor, error) {
	if pattern == "" {
		return nil, fmt.Errorf("weight pattern must not be empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid weight pattern %q: %w", pattern, err)
	}
	return &Extractor{re: re}, nil
}

// Extract returns the integer reading carried by candidate. A miss is a
// normal outcome during partial-data scanning, not a fault: the pattern
// may not match yet, the matched text may not be a base-10 integer, or
// the value may be zero. Scales report zero on standby lines until the
// bridge is actually loaded, so zero never resolves a session.
func (e *Extractor) Extract(candidate []byte) (int64, bool) {
	m := e.re.FindSubmatch(candidate)
	if m == nil {
		return 0, false
	}
	text := m[0]
	if len(m) > 1 && m[1] != nil {
		text = m[1]
	}
	value, err := strconv.ParseInt(string(text), 10, 64)
	if err != nil || value == 0 {
		return 0, false
	}
	return value, true
}
