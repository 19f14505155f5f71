// Package assess runs batches of simulation configurations, scores them
// against their population trajectories and persists one assessment record
// per configuration. Completed configurations are recognized by their
// deterministic result filename and skipped.
package assess

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"infleval/domain/series"
	"infleval/internal"
	"infleval/internal/errors"
	"infleval/internal/metrics"
	"infleval/internal/simulate"
	"infleval/ports"
)

// Runner drives batch assessment.
type Runner struct {
	Store    ports.ResultStore
	BaseSeed int64
	Workers  int
	Logger   *internal.Logger

	// KeepTrajectories attaches the raw simulation array to each record.
	KeepTrajectories bool
}

// Run assesses every configuration in order, skipping those whose result
// filename already exists in the store, and returns the records produced in
// this invocation.
func (r *Runner) Run(ctx context.Context, cfgs []simulate.Config, s *series.MultiPanelSeries) ([]*ports.AssessmentRecord, error) {
	log := r.logger()
	var records []*ports.AssessmentRecord
	for i := range cfgs {
		cfg := &cfgs[i]
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrapf(err, "configuration %d", i)
		}
		name := cfg.ResultName()
		if r.Store != nil {
			exists, err := r.Store.Exists(ctx, name)
			if err != nil {
				return nil, errors.Wrapf(err, "existence check for %s", name)
			}
			if exists {
				log.Info("skipping completed configuration %s", name)
				continue
			}
		}

		log.Info("assessing %s (%d replications)", name, cfg.Replications)
		rec, err := r.Assess(ctx, cfg, s)
		if err != nil {
			return nil, errors.Wrapf(err, "assessment of %s", name)
		}
		if r.Store != nil {
			if err := r.Store.Save(ctx, rec); err != nil {
				return nil, errors.Wrapf(err, "persisting %s", name)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Assess evaluates one configuration: generates the trajectories, computes
// metrics per evaluation period against the population trajectory and
// assembles the record.
func (r *Runner) Assess(ctx context.Context, cfg *simulate.Config, s *series.MultiPanelSeries) (*ports.AssessmentRecord, error) {
	if !cfg.TrainCutoff.IsZero() {
		cut, err := s.SliceByDateRange(s.StartDate(), cfg.TrainCutoff)
		if err != nil {
			return nil, errors.Wrap(err, "restricting series to the train cutoff")
		}
		s = cut
	}

	gen := &simulate.Generator{
		Estimator:    cfg.Estimator,
		Resampler:    cfg.Resampler,
		Trend:        cfg.Trend,
		Replications: cfg.Replications,
		BaseSeed:     r.BaseSeed,
		Workers:      r.Workers,
	}
	traj, err := gen.Run(ctx, s)
	if err != nil {
		return nil, err
	}

	pop, err := cfg.Population.Trajectory(s)
	if err != nil {
		return nil, errors.Wrap(err, "population trajectory")
	}
	if len(pop) != traj.Periods {
		return nil, errors.ShapeMismatch(fmt.Sprintf(
			"population trajectory has %d periods, simulation has %d", len(pop), traj.Periods))
	}

	summary, err := r.score(cfg, traj, pop, s)
	if err != nil {
		return nil, err
	}

	rec := &ports.AssessmentRecord{
		ID:            uuid.NewString(),
		Filename:      cfg.ResultName(),
		EstimatorTag:  cfg.Estimator.Tag(),
		ResamplerTag:  cfg.Resampler.Tag(),
		TrendTag:      cfg.Trend.Tag(),
		PopulationTag: cfg.Population.Tag(),
		Replications:  cfg.Replications,
		TrainCutoff:   cfg.TrainCutoff,
		MeasureName:   cfg.Estimator.Name(),
		Metrics:       summary,
		CreatedAt:     time.Now().UTC(),
	}
	if p, ok := cfg.Estimator.(ports.ParameterizedEstimator); ok {
		rec.MeasureParams = p.Params()
	}
	if r.KeepTrajectories {
		rec.Trajectories = traj.Data
	}
	return rec, nil
}

// score merges metric summaries over all evaluation periods and measures,
// using key prefixes to keep periods and measures from colliding.
func (r *Runner) score(cfg *simulate.Config, traj *simulate.Trajectories, pop [][]float64, s *series.MultiPanelSeries) (map[string]float64, error) {
	periods := cfg.Periods
	if len(periods) == 0 {
		periods = []simulate.EvalPeriod{simulate.FullPeriod()}
	}
	dates := s.Dates()

	out := map[string]float64{}
	for _, ep := range periods {
		var mask []bool
		if !ep.Full {
			if len(dates) != traj.Periods {
				return nil, errors.InvalidInput(fmt.Sprintf(
					"cannot restrict to period %q: trajectory has %d rows, series %d months",
					ep.Name, traj.Periods, len(dates)))
			}
			mask = ep.Mask(dates)
		}
		for m := 0; m < traj.Measures; m++ {
			sim := traj.Measure(m)
			popCol := make([]float64, traj.Periods)
			for t := range popCol {
				popCol[t] = pop[t][m]
			}
			var err error
			subSim, subPop := sim, popCol
			if mask != nil {
				subSim, subPop, err = metrics.MaskRows(sim, popCol, mask)
				if err != nil {
					return nil, err
				}
			}
			prefix := ep.KeyPrefix()
			if traj.Measures > 1 {
				prefix += fmt.Sprintf("m%d_", m)
			}
			summary, err := metrics.Evaluate(subSim, subPop, metrics.Options{Full: true, Prefix: prefix})
			if err != nil {
				return nil, err
			}
			for key, v := range summary {
				out[key] = v
			}
		}
	}
	return out, nil
}

func (r *Runner) logger() *internal.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return internal.DefaultLogger
}
