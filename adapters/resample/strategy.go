// Package resample implements the bootstrap strategies used to generate
// synthetic realizations of multi-vintage price-change panels. Every
// strategy preserves month-of-occurrence structure: a January observation
// is only ever replaced by another January observation.
package resample

import (
	"math/rand"

	"infleval/domain/series"
	"infleval/internal/errors"
)

// Strategy resamples a single panel. All randomness is injected through the
// explicit generator parameter; strategies hold only immutable configuration.
type Strategy interface {
	// Apply draws one bootstrap realization of the panel.
	Apply(p *series.Panel, rng *rand.Rand) (*series.Panel, error)

	Name() string

	// Tag is the short label used in result filenames and metric keys.
	Tag() string

	// Population returns the deterministic expectation transform: the panel
	// the stochastic output of Apply averages to. Strategies without a
	// defined expectation return an error rather than a silent identity.
	Population() (PopulationFunc, error)
}

// PopulationFunc is a deterministic, generator-free panel transform.
type PopulationFunc func(p *series.Panel) (*series.Panel, error)

// SeriesStrategy is implemented by strategies that define their own
// whole-series behavior instead of the default per-panel application.
type SeriesStrategy interface {
	ApplySeries(s *series.MultiPanelSeries, rng *rand.Rand) (*series.MultiPanelSeries, error)
}

// SeriesPopulation is implemented by strategies whose expectation transform
// likewise operates on whole series.
type SeriesPopulation interface {
	PopulationSeries(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error)
}

// ApplySeries applies a strategy across every panel of a series. Strategies
// implementing SeriesStrategy dispatch to their own definition; otherwise
// each panel is resampled independently and the series is rebuilt with
// recomputed contiguous dates.
func ApplySeries(st Strategy, s *series.MultiPanelSeries, rng *rand.Rand) (*series.MultiPanelSeries, error) {
	if ss, ok := st.(SeriesStrategy); ok {
		return ss.ApplySeries(s, rng)
	}
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		out, err := st.Apply(p, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "strategy %s on panel %d", st.Name(), i)
		}
		panels[i] = out
	}
	return series.Rechain(panels...)
}

// PopulationSeries applies a strategy's expectation transform across a
// series, mirroring the dispatch of ApplySeries.
func PopulationSeries(st Strategy, s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	if sp, ok := st.(SeriesPopulation); ok {
		return sp.PopulationSeries(s)
	}
	fn, err := st.Population()
	if err != nil {
		return nil, err
	}
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		out, err := fn(p)
		if err != nil {
			return nil, errors.Wrapf(err, "population transform of %s on panel %d", st.Name(), i)
		}
		panels[i] = out
	}
	return series.Rechain(panels...)
}

// Identity returns its input unchanged. Because it performs no
// transformation it is the one strategy permitted to return the same
// reference rather than a fresh value.
type Identity struct{}

func (Identity) Apply(p *series.Panel, _ *rand.Rand) (*series.Panel, error) { return p, nil }

func (Identity) ApplySeries(s *series.MultiPanelSeries, _ *rand.Rand) (*series.MultiPanelSeries, error) {
	return s, nil
}

func (Identity) Name() string { return "Identity resampling" }
func (Identity) Tag() string  { return "ID" }

func (Identity) Population() (PopulationFunc, error) {
	return func(p *series.Panel) (*series.Panel, error) { return p, nil }, nil
}

func (Identity) PopulationSeries(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	return s, nil
}
