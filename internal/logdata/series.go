package logdata

import "math"

// RawKey identifies a decoder-emitted series before normalization. For CSV
// input Message is empty and Field carries the verbatim header; for framed
// formats both parts are set.
type RawKey struct {
	Message string
	Field   string
}

func (k RawKey) String() string {
	if k.Message == "" {
		return k.Field
	}
	return k.Message + "." + k.Field
}

// RawSample is one (time, value) pair as decoded from the source. Numeric
// reports whether Num holds a usable value; otherwise Str carries the raw
// text form (composite or non-numeric cells).
type RawSample struct {
	Time    float64
	Num     float64
	Str     string
	Numeric bool
}

// RawSeries is the decoder output contract: an ordered sample sequence for
// one raw key, plus the source-format unit tag when the format declares one.
// A RawSeries is never mutated after emission.
type RawSeries struct {
	Key     RawKey
	Unit    string
	Samples []RawSample
}

// NumericCount returns how many samples decoded as finite numbers.
func (s *RawSeries) NumericCount() int {
	n := 0
	for _, smp := range s.Samples {
		if smp.Numeric && !math.IsNaN(smp.Num) && !math.IsInf(smp.Num, 0) {
			n++
		}
	}
	return n
}

// RawBatch is everything one decode pass produces: the raw series plus the
// advisory counters that survive into dataset metadata.
type RawBatch struct {
	Series []*RawSeries

	// SkippedRecords counts malformed frames, rows or records that were
	// dropped without aborting the parse.
	SkippedRecords int

	// TypesSeen maps message types (or special column markers) found in
	// the input to their occurrence count, whether imported or not.
	TypesSeen map[string]int

	// TypesImported lists the message/column types that produced series.
	TypesImported []string

	// SyntheticTime is set when no usable time axis existed in the source
	// and a uniform one-sample-per-second axis was synthesized.
	SyntheticTime bool
}

// NewRawBatch returns an empty batch with initialized counters.
func NewRawBatch() *RawBatch {
	return &RawBatch{TypesSeen: make(map[string]int)}
}

// Empty reports whether the decode produced no series at all.
func (b *RawBatch) Empty() bool {
	return b == nil || len(b.Series) == 0
}
