package analysis

import (
	"errors"
	"fmt"
	"math"
)

// Documented defaults for Params.
const (
	DefaultTargetAcosIndex  = 1.0
	DefaultExactNegativeLv  = 1.0
	DefaultPhraseNegativeLv = 5.0
	DefaultReliability      = 1.0
	DefaultIncreaseBidLv    = 0.7
	DefaultDecreaseBidLv    = 1.4
)

// Floors applied to the derived baseline thresholds.
const (
	MinTargetAcos           = 20.0
	MinExactNegativeClicks  = 5.0
	MinPhraseNegativeClicks = 50.0
	MinReliabilityClicks    = 5.0
)

// ErrInvalidParams is returned by Validate and Analyze for unusable tuning values.
var ErrInvalidParams = errors.New("invalid analysis params")

// Params are the tuning knobs of the engine. They are passed explicitly to
// every Analyze call; there is no process-wide default state.
type Params struct {
	// TargetAcosIndex divides the overall ACOS to get the target ACOS.
	// Values above 1 make the target stricter.
	TargetAcosIndex float64 `json:"target_acos_index" yaml:"target_acos_index"`

	// ExactNegativeLv and PhraseNegativeLv are the zero-conversion click
	// volumes that justify exact and phrase negation, in units of "clicks
	// needed to see one conversion at the overall rate".
	ExactNegativeLv  float64 `json:"exact_negative_lv" yaml:"exact_negative_lv"`
	PhraseNegativeLv float64 `json:"phrase_negative_lv" yaml:"phrase_negative_lv"`

	// Reliability is the click volume, in the same units, below which a
	// feature-word conversion estimate is not trusted.
	Reliability float64 `json:"reliability" yaml:"reliability"`

	// IncreaseBidLv and DecreaseBidLv multiply the target ACOS to bound the
	// "reasonable" band.
	IncreaseBidLv float64 `json:"increase_bid_lv" yaml:"increase_bid_lv"`
	DecreaseBidLv float64 `json:"decrease_bid_lv" yaml:"decrease_bid_lv"`
}

// DefaultParams returns the documented default configuration.
func DefaultParams() Params {
	return Params{
		TargetAcosIndex:  DefaultTargetAcosIndex,
		ExactNegativeLv:  DefaultExactNegativeLv,
		PhraseNegativeLv: DefaultPhraseNegativeLv,
		Reliability:      DefaultReliability,
		IncreaseBidLv:    DefaultIncreaseBidLv,
		DecreaseBidLv:    DefaultDecreaseBidLv,
	}
}

// WithDefaults returns a copy of p where every zero field is replaced by its
// documented default. Callers that accept partial overrides (HTTP forms,
// CLI flags) use this before Validate.
func (p Params) WithDefaults() Params {
	return p.Or(DefaultParams())
}

// Or returns a copy of p where every zero field is taken from d.
func (p Params) Or(d Params) Params {
	if p.TargetAcosIndex == 0 {
		p.TargetAcosIndex = d.TargetAcosIndex
	}
	if p.ExactNegativeLv == 0 {
		p.ExactNegativeLv = d.ExactNegativeLv
	}
	if p.PhraseNegativeLv == 0 {
		p.PhraseNegativeLv = d.PhraseNegativeLv
	}
	if p.Reliability == 0 {
		p.Reliability = d.Reliability
	}
	if p.IncreaseBidLv == 0 {
		p.IncreaseBidLv = d.IncreaseBidLv
	}
	if p.DecreaseBidLv == 0 {
		p.DecreaseBidLv = d.DecreaseBidLv
	}
	return p
}

// Validate reports the first unusable field. Every parameter must be a
// positive finite number and the increase band must not sit above the
// decrease band.
func (p Params) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"target_acos_index", p.TargetAcosIndex},
		{"exact_negative_lv", p.ExactNegativeLv},
		{"phrase_negative_lv", p.PhraseNegativeLv},
		{"reliability", p.Reliability},
		{"increase_bid_lv", p.IncreaseBidLv},
		{"decrease_bid_lv", p.DecreaseBidLv},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value <= 0 {
			return fmt.Errorf("%w: %s must be a positive number, got %v", ErrInvalidParams, f.name, f.value)
		}
	}
	if p.IncreaseBidLv > p.DecreaseBidLv {
		return fmt.Errorf("%w: increase_bid_lv (%v) must not exceed decrease_bid_lv (%v)",
			ErrInvalidParams, p.IncreaseBidLv, p.DecreaseBidLv)
	}
	return nil
}
