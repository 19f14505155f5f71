// Package ports defines the interfaces through which the simulation engine
// consumes external capabilities: inflation estimators, random number
// generation and result persistence.
package ports

import (
	"infleval/domain/series"
)

// Estimator computes one or more inflation measures over a whole series.
// The result is indexed [period][measure]; estimators that consume leading
// observations may return fewer periods than the input carries.
type Estimator interface {
	Run(s *series.MultiPanelSeries) ([][]float64, error)

	// NumOutputs is the number of measure columns Run produces per period.
	NumOutputs() int

	Name() string

	// Tag is the short label used in result filenames and metric keys.
	Tag() string
}

// ParameterizedEstimator is implemented by estimators whose measure carries
// tuning parameters (percentile levels, trim fractions) worth persisting
// alongside the assessment record.
type ParameterizedEstimator interface {
	// Params renders the tuning parameters in a stable textual form.
	Params() string
}

// PopulationEstimator produces the deterministic ground-truth trajectory a
// simulation is scored against.
type PopulationEstimator interface {
	Trajectory(s *series.MultiPanelSeries) ([][]float64, error)
	Name() string
	Tag() string
}
