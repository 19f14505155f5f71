package simulate

import (
	"strings"

	"infleval/adapters/resample"
	"infleval/adapters/trend"
	"infleval/domain/series"
	"infleval/internal/errors"
	"infleval/ports"
)

// PopulationPipeline composes a resampling strategy's expectation transform,
// a trend injector and an estimator into the single callable that produces
// the ground-truth trajectory of a simulation.
type PopulationPipeline struct {
	Strategy  resample.Strategy
	Trend     trend.Injector
	Estimator ports.Estimator
}

var _ ports.PopulationEstimator = (*PopulationPipeline)(nil)

// Trajectory evaluates the estimator over the trended expectation series.
func (pp *PopulationPipeline) Trajectory(s *series.MultiPanelSeries) ([][]float64, error) {
	pop, err := resample.PopulationSeries(pp.Strategy, s)
	if err != nil {
		return nil, errors.Wrap(err, "population transform")
	}
	trended, err := pp.Trend.Apply(pop)
	if err != nil {
		return nil, errors.Wrap(err, "population trend injection")
	}
	out, err := pp.Estimator.Run(trended)
	if err != nil {
		return nil, errors.Wrap(err, "population estimator")
	}
	return out, nil
}

func (pp *PopulationPipeline) Name() string {
	return "Population trajectory of " + pp.Estimator.Name()
}

func (pp *PopulationPipeline) Tag() string {
	return "P" + strings.Join([]string{pp.Strategy.Tag(), pp.Trend.Tag(), pp.Estimator.Tag()}, "-")
}
