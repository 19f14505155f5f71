package testkit

import (
	"infleval/domain/series"
	"infleval/ports"
)

// WeightedMeanEstimator is the reference single-output inflation measure:
// the weight-averaged price change per period. It stands in for the
// external estimator capability in tests and demonstrations.
type WeightedMeanEstimator struct{}

var _ ports.Estimator = WeightedMeanEstimator{}

// Run computes the weighted mean across items for every period of every
// panel, concatenated in series order.
func (WeightedMeanEstimator) Run(s *series.MultiPanelSeries) ([][]float64, error) {
	out := make([][]float64, 0, s.TotalPeriods())
	for _, p := range s.Panels() {
		w := p.Weights()
		for t := 0; t < p.Periods(); t++ {
			v := 0.0
			for j := 0; j < p.Items(); j++ {
				v += w[j] * p.Value(t, j)
			}
			out = append(out, []float64{v})
		}
	}
	return out, nil
}

func (WeightedMeanEstimator) NumOutputs() int { return 1 }
func (WeightedMeanEstimator) Name() string    { return "Weighted mean" }
func (WeightedMeanEstimator) Tag() string     { return "WM" }
