package resample

import (
	"fmt"
	"math/rand"
	"strings"

	"infleval/domain/series"
	"infleval/internal/errors"
)

// Mixture pairs an ordered list of sub-strategies with the panels of a
// series: sub-strategy i resamples panel i. Applied to a bare panel it
// degrades, as documented, to the first sub-strategy only.
type Mixture struct {
	subs []Strategy
}

// NewMixture validates that at least one sub-strategy is supplied. The
// panel-count match is checked at application time against the series.
func NewMixture(subs ...Strategy) (*Mixture, error) {
	if len(subs) == 0 {
		return nil, errors.ConfigInvalid("mixture requires at least one sub-strategy")
	}
	return &Mixture{subs: subs}, nil
}

// Apply on a single panel uses only the first sub-strategy. This asymmetry
// with ApplySeries is intentional and lets a mixture stand in wherever a
// plain panel strategy is expected.
func (m *Mixture) Apply(p *series.Panel, rng *rand.Rand) (*series.Panel, error) {
	return m.subs[0].Apply(p, rng)
}

// ApplySeries resamples panel i with sub-strategy i. The cardinality check
// is load-bearing: a mismatch is a configuration error, never coerced.
func (m *Mixture) ApplySeries(s *series.MultiPanelSeries, rng *rand.Rand) (*series.MultiPanelSeries, error) {
	if len(m.subs) != s.Len() {
		return nil, errors.ConfigInvalid(fmt.Sprintf(
			"number of resampling functions (%d) must match number of bases (%d)", len(m.subs), s.Len()))
	}
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		out, err := m.subs[i].Apply(p, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "mixture sub-strategy %s on panel %d", m.subs[i].Name(), i)
		}
		panels[i] = out
	}
	return series.Rechain(panels...)
}

func (m *Mixture) Name() string {
	names := make([]string, len(m.subs))
	for i, s := range m.subs {
		names[i] = s.Name()
	}
	return "Mixture [" + strings.Join(names, ", ") + "]"
}

func (m *Mixture) Tag() string {
	tags := make([]string, len(m.subs))
	for i, s := range m.subs {
		tags[i] = s.Tag()
	}
	return "MX-" + strings.Join(tags, "-")
}

// Population of a single panel delegates to the first sub-strategy,
// mirroring Apply.
func (m *Mixture) Population() (PopulationFunc, error) {
	return m.subs[0].Population()
}

// PopulationSeries applies each sub-strategy's own expectation transform to
// its corresponding panel.
func (m *Mixture) PopulationSeries(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	if len(m.subs) != s.Len() {
		return nil, errors.ConfigInvalid(fmt.Sprintf(
			"number of resampling functions (%d) must match number of bases (%d)", len(m.subs), s.Len()))
	}
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		fn, err := m.subs[i].Population()
		if err != nil {
			return nil, err
		}
		out, err := fn(p)
		if err != nil {
			return nil, errors.Wrapf(err, "population transform of %s on panel %d", m.subs[i].Name(), i)
		}
		panels[i] = out
	}
	return series.Rechain(panels...)
}
