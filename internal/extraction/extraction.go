// Package extraction defines the boundary to the upstream text-extraction
// backend (e.g. OCR). The orchestration core only consumes its output
// shape; concrete backends plug in behind the Extractor interface.
package extraction

import (
	"context"
	"errors"
	"unicode/utf8"
)

// ErrExtractionFailed marks an upstream extraction failure. Sessions hit
// by it route to manual review instead of tiered verification.
var ErrExtractionFailed = errors.New("text extraction failed")

// Result is the extraction backend's output.
type Result struct {
	Text string `json:"text"`

	// Confidence is the backend's confidence in Text, in [0,1].
	Confidence float64 `json:"confidence"`

	// FailureReason is set when extraction failed; Text is then empty.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Extractor turns a raw document/image into text plus a confidence.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (*Result, error)
}

// BelowFloor reports whether the result's confidence falls under the
// configured manual-review floor.
func BelowFloor(r *Result, floor float64) bool {
	return r == nil || r.Confidence < floor
}

// PlainText is the fallback extractor used when no OCR backend is wired.
// It accepts UTF-8 buffers as-is at full confidence and refuses binary
// input.
type PlainText struct{}

// Extract implements Extractor.
func (PlainText) Extract(_ context.Context, data []byte, filename string) (*Result, error) {
	if len(data) == 0 {
		return &Result{FailureReason: "empty document"}, ErrExtractionFailed
	}
	if !utf8.Valid(data) {
		return &Result{FailureReason: "binary input requires an OCR backend: " + filename}, ErrExtractionFailed
	}
	return &Result{Text: string(data), Confidence: 1.0}, nil
}
