package ports

import (
	"context"
	"time"
)

// AssessmentRecord is the persisted outcome of one simulation configuration:
// the flattened configuration tags merged with the computed metrics. The
// filename is deterministic over the configuration so batch runs can skip
// already-completed work by existence check.
type AssessmentRecord struct {
	ID            string             `json:"id" db:"id"`
	Filename      string             `json:"filename" db:"filename"`
	EstimatorTag  string             `json:"estimator_tag" db:"estimator_tag"`
	ResamplerTag  string             `json:"resampler_tag" db:"resampler_tag"`
	TrendTag      string             `json:"trend_tag" db:"trend_tag"`
	PopulationTag string             `json:"population_tag" db:"population_tag"`
	Replications  int                `json:"replications" db:"replications"`
	TrainCutoff   time.Time          `json:"train_cutoff" db:"train_cutoff"`
	MeasureName   string             `json:"measure_name" db:"measure_name"`
	MeasureParams string             `json:"measure_params" db:"measure_params"`
	Metrics       map[string]float64 `json:"metrics"`

	// Trajectories is optionally attached raw simulation output
	// (periods x measures x replications); nil when only metrics are kept.
	Trajectories [][][]float64 `json:"trajectories,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ResultStore persists assessment records keyed by deterministic filename.
type ResultStore interface {
	Save(ctx context.Context, rec *AssessmentRecord) error
	Exists(ctx context.Context, filename string) (bool, error)
	Load(ctx context.Context, filename string) (*AssessmentRecord, error)
}
