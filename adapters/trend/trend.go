// Package trend implements the multiplicative trend injectors applied to
// resampled price-change series. Array-based injectors hold a single
// per-period factor vector that is sliced into per-panel contiguous ranges.
// Only positive price changes are trended: the model perturbs price
// increases and leaves decreases untouched, an intentional asymmetry of the
// underlying inflation model.
package trend

import (
	"fmt"
	"math"

	"infleval/domain/series"
	"infleval/internal/errors"
)

// Injector applies a multiplicative trend to a whole series.
type Injector interface {
	Apply(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error)
	Name() string

	// Tag is the short label used in result filenames and metric keys.
	Tag() string
}

// Identity leaves the series unchanged and carries no factor vector.
type Identity struct{}

func (Identity) Apply(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) { return s, nil }
func (Identity) Name() string                                                      { return "No trend" }
func (Identity) Tag() string                                                       { return "NT" }

// applyFactors slices one concatenated factor vector into per-panel ranges
// and multiplies every positive matrix entry by its aligned factor.
func applyFactors(s *series.MultiPanelSeries, factors []float64, name string) (*series.MultiPanelSeries, error) {
	if len(factors) < s.TotalPeriods() {
		return nil, errors.ShapeMismatch(fmt.Sprintf(
			"%s factor vector covers %d periods, series has %d", name, len(factors), s.TotalPeriods()))
	}
	offset := 0
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		out := p.CloneMatrix()
		for t := range out {
			f := factors[offset+t]
			for j := range out[t] {
				if out[t][j] > 0 {
					out[t][j] *= f
				}
			}
		}
		trended, err := p.WithMatrix(out)
		if err != nil {
			return nil, err
		}
		panels[i] = trended
		offset += p.Periods()
	}
	return series.Rechain(panels...)
}

// RandomWalk injects a fixed factor vector obtained from a precalibrated
// exponentiated cumulative log-random-walk table.
type RandomWalk struct {
	factors []float64
}

// NewRandomWalk wraps an already-exponentiated factor table.
func NewRandomWalk(factors []float64) (*RandomWalk, error) {
	if len(factors) == 0 {
		return nil, errors.ConfigInvalid("random-walk factor table must not be empty")
	}
	return &RandomWalk{factors: append([]float64(nil), factors...)}, nil
}

// NewRandomWalkFromLog builds the factor vector exp(cumsum(logSteps)) from a
// calibrated log-step table.
func NewRandomWalkFromLog(logSteps []float64) (*RandomWalk, error) {
	if len(logSteps) == 0 {
		return nil, errors.ConfigInvalid("random-walk log-step table must not be empty")
	}
	factors := make([]float64, len(logSteps))
	acc := 0.0
	for i, step := range logSteps {
		acc += step
		factors[i] = math.Exp(acc)
	}
	return &RandomWalk{factors: factors}, nil
}

func (w *RandomWalk) Apply(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	return applyFactors(s, w.factors, w.Name())
}

// Factors returns the realized factor vector. Read-only.
func (w *RandomWalk) Factors() []float64 { return w.factors }

func (w *RandomWalk) Name() string { return "Random-walk trend" }
func (w *RandomWalk) Tag() string  { return "RW" }

// Analytical evaluates a user function pointwise over t = 1..length to
// build its factor vector.
type Analytical struct {
	factors     []float64
	displayName string
}

// NewAnalytical evaluates fn over 1..length.
func NewAnalytical(fn func(t int) float64, length int, displayName string) (*Analytical, error) {
	if fn == nil {
		return nil, errors.ConfigInvalid("analytical trend requires a factor function")
	}
	if length <= 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("analytical trend length %d must be positive", length))
	}
	factors := make([]float64, length)
	for t := 1; t <= length; t++ {
		factors[t-1] = fn(t)
	}
	return &Analytical{factors: factors, displayName: displayName}, nil
}

func (a *Analytical) Apply(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	return applyFactors(s, a.factors, a.Name())
}

// Factors returns the realized factor vector. Read-only.
func (a *Analytical) Factors() []float64 { return a.factors }

func (a *Analytical) Name() string {
	if a.displayName != "" {
		return a.displayName
	}
	return "Analytical trend"
}

func (a *Analytical) Tag() string { return "AN" }

// Exponential compounds an annual growth rate into monthly factors
// ((1+rate)^(1/12))^t for t = 1..length.
type Exponential struct {
	rate    float64
	factors []float64
}

// NewExponential fails for rate >= 1: the model expresses moderate annual
// drifts, not price doubling and beyond.
func NewExponential(rate float64, length int) (*Exponential, error) {
	if rate >= 1 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("exponential trend rate %g must be below 1", rate))
	}
	if length <= 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("exponential trend length %d must be positive", length))
	}
	monthly := math.Pow(1+rate, 1.0/12.0)
	factors := make([]float64, length)
	for t := 1; t <= length; t++ {
		factors[t-1] = math.Pow(monthly, float64(t))
	}
	return &Exponential{rate: rate, factors: factors}, nil
}

func (e *Exponential) Apply(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	return applyFactors(s, e.factors, e.Name())
}

// Factors returns the realized factor vector. Read-only.
func (e *Exponential) Factors() []float64 { return e.factors }

func (e *Exponential) Name() string {
	return fmt.Sprintf("Exponential trend %.4g", e.rate)
}

func (e *Exponential) Tag() string { return "EXP" }
