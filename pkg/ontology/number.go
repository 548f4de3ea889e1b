package ontology

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NumberState tells how an optional numeric field arrived on the wire.
type NumberState int

const (
	// NumberAbsent covers a missing key, null and empty text.
	NumberAbsent NumberState = iota
	NumberSupplied
	// NumberInvalid is a value that was supplied but is not a finite number.
	NumberInvalid
)

// ParseNumber reads an optional numeric JSON value. With allowText, numeric
// strings count as supplied; otherwise any string is invalid.
func ParseNumber(raw json.RawMessage, allowText bool) (float64, NumberState) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, NumberAbsent
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, NumberInvalid
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, NumberAbsent
		}
		if !allowText {
			return 0, NumberInvalid
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, NumberInvalid
		}
		return f, NumberSupplied
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, NumberInvalid
	}
	return f, NumberSupplied
}

// decodeNumber keeps only supplied values; absent and invalid input both
// decode to nil and the invalid state is returned for bookkeeping.
func decodeNumber(raw json.RawMessage, allowText bool) (*float64, NumberState) {
	f, state := ParseNumber(raw, allowText)
	if state != NumberSupplied {
		return nil, state
	}
	return &f, state
}
