package analysis

import (
	"fmt"
	"math"
	"strconv"
)

// Metric is a float64 that may legitimately be infinite (a threshold that
// can never be reached, an ACOS estimate with no revenue behind it).
// encoding/json rejects infinities, so Metric encodes them as strings.
type Metric float64

// Infinity is the sentinel for "unreachable".
var Infinity = Metric(math.Inf(1))

// IsInf reports whether m is +Inf.
func (m Metric) IsInf() bool { return math.IsInf(float64(m), 1) }

// Float64 returns m as a plain float64.
func (m Metric) Float64() float64 { return float64(m) }

// MarshalJSON encodes finite values as numbers and infinities as "Infinity"/"-Infinity".
func (m Metric) MarshalJSON() ([]byte, error) {
	f := float64(m)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON accepts the encodings produced by MarshalJSON.
func (m *Metric) UnmarshalJSON(data []byte) error {
	switch s := string(data); s {
	case `"Infinity"`:
		*m = Metric(math.Inf(1))
		return nil
	case `"-Infinity"`:
		*m = Metric(math.Inf(-1))
		return nil
	case `"NaN"`:
		*m = Metric(math.NaN())
		return nil
	case "null":
		return nil
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("analysis: invalid metric %s: %w", s, err)
		}
		*m = Metric(f)
		return nil
	}
}

// String renders the value for rationale text.
func (m Metric) String() string {
	if m.IsInf() {
		return "∞"
	}
	return strconv.FormatFloat(float64(m), 'f', -1, 64)
}

func metricPtr(v float64) *Metric {
	m := Metric(v)
	return &m
}
