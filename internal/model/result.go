// internal/model/result.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Protocol identifies the framing discipline that produced a reading.
type Protocol string

const (
	ProtocolFrame Protocol = "frame"
	ProtocolLine  Protocol = "line"
)

// FailureReason classifies why a reading session failed. Only these four
// reasons surface to the caller; everything else is internal and at most
// logged.
type FailureReason string

const (
	ReasonPortUnavailable FailureReason = "port_unavailable"
	ReasonInvalidPattern  FailureReason = "invalid_pattern"
	ReasonTimeout         FailureReason = "timeout"
	ReasonTransportError  FailureReason = "transport_error"
)

// Result is the single durable output of one reading session. It is
// created exactly once per session and immutable afterwards.
type Result struct {
	SessionID string   `json:"session_id"`
	Success   bool     `json:"success"`
	Protocol  Protocol `json:"protocol,omitempty"`

	// Populated on success.
	Value   int64           `json:"value,omitempty"`
	Weight  decimal.Decimal `json:"weight,omitempty"`
	Unit    string          `json:"unit,omitempty"`
	RawData string          `json:"raw_data,omitempty"`

	// Populated on failure.
	Reason FailureReason `json:"reason,omitempty"`
	Error  string        `json:"error,omitempty"`

	ElapsedMs int64 `json:"elapsed_ms"`
}

// NewSuccess builds a successful result. The raw integer reading is
// scaled by divisor into the presentation weight (e.g. divisor 1000 for
// scales that report grams but display kilograms).
func NewSuccess(sessionID string, protocol Protocol, value int64, raw []byte, divisor int64, unit string, elapsed time.Duration) *Result {
	if divisor <= 0 {
		divisor = 1
	}
	return &Result{
		SessionID: sessionID,
		Success:   true,
		Protocol:  protocol,
		Value:     value,
		Weight:    decimal.NewFromInt(value).Div(decimal.NewFromInt(divisor)),
		Unit:      unit,
		RawData:   string(raw),
		ElapsedMs: elapsed.Milliseconds(),
	}
}

// NewFailure builds a failed result. err may be nil for failures that
// carry no underlying error, such as a timeout.
func NewFailure(sessionID string, protocol Protocol, reason FailureReason, err error, elapsed time.Duration) *Result {
	r := &Result{
		SessionID: sessionID,
		Protocol:  protocol,
		Reason:    reason,
		ElapsedMs: elapsed.Milliseconds(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
