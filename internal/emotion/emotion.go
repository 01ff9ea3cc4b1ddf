// Package emotion tracks a session's affect baseline and drift with
// exponential moving averages.
package emotion

import (
	"math"

	"github.com/leandeep/marker-engine/internal/marker"
)

// Params are the smoothing and threshold constants of the calculator.
type Params struct {
	// Alpha smooths the home base update.
	Alpha float64 `yaml:"alpha" json:"alpha"`
	// Beta smooths the variability update.
	Beta float64 `yaml:"beta" json:"beta"`
	// KHigh and KMedium scale variability into drift thresholds.
	KHigh   float64 `yaml:"k_high" json:"k_high"`
	KMedium float64 `yaml:"k_medium" json:"k_medium"`
	// Floor keeps the thresholds meaningful while variability is near
	// zero early in a session.
	Floor float64 `yaml:"floor" json:"floor"`
}

// DefaultParams returns the default constants.
func DefaultParams() Params {
	return Params{
		Alpha:   0.15,
		Beta:    0.10,
		KHigh:   2.0,
		KMedium: 1.0,
		Floor:   0.05,
	}
}

// Calculator folds affect samples into an EmotionState. It never
// errors: samples outside [-1,1] or NaN are counted and skipped. Not
// safe for concurrent use; each session owns one.
type Calculator struct {
	params   Params
	state    marker.EmotionState
	rejected int
}

// New creates a calculator. Non-positive parameter fields fall back to
// their defaults.
func New(params Params) *Calculator {
	def := DefaultParams()
	if params.Alpha <= 0 {
		params.Alpha = def.Alpha
	}
	if params.Beta <= 0 {
		params.Beta = def.Beta
	}
	if params.KHigh <= 0 {
		params.KHigh = def.KHigh
	}
	if params.KMedium <= 0 {
		params.KMedium = def.KMedium
	}
	if params.Floor <= 0 {
		params.Floor = def.Floor
	}
	return &Calculator{
		params: params,
		state: marker.EmotionState{
			DriftLevel: marker.DriftLow,
		},
	}
}

// Observe folds one affect sample into the state and returns the
// updated snapshot. The second return reports whether the sample was
// accepted; rejected samples leave the state untouched.
func (c *Calculator) Observe(a float64) (marker.EmotionState, bool) {
	if math.IsNaN(a) || a < -1 || a > 1 {
		c.rejected++
		return c.state, false
	}

	if c.state.Samples == 0 {
		c.state = marker.EmotionState{
			HomeBase:   a,
			DriftLevel: marker.DriftLow,
			Samples:    1,
		}
		return c.state, true
	}

	p := c.params
	home := c.state.HomeBase + p.Alpha*(a-c.state.HomeBase)
	dev := math.Abs(a - home)
	vari := c.state.Variability + p.Beta*(dev-c.state.Variability)

	scale := vari
	if scale < p.Floor {
		scale = p.Floor
	}
	drift := marker.DriftLow
	switch {
	case dev > p.KHigh*scale:
		drift = marker.DriftHigh
	case dev > p.KMedium*scale:
		drift = marker.DriftMedium
	}

	c.state = marker.EmotionState{
		HomeBase:    home,
		Variability: vari,
		DriftLevel:  drift,
		Samples:     c.state.Samples + 1,
	}
	return c.state, true
}

// State returns the current snapshot without folding a sample.
func (c *Calculator) State() marker.EmotionState {
	return c.state
}

// Rejected reports how many samples were skipped as invalid.
func (c *Calculator) Rejected() int {
	return c.rejected
}
