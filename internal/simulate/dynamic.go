package simulate

import (
	"context"
	"fmt"

	"infleval/domain/series"
	"infleval/internal/errors"
	"infleval/internal/metrics"
	"infleval/ports"
)

// DynamicResult carries the merged output of a multi-fold run: the fold
// trajectories concatenated along the replication axis, each fold's
// population trajectory and the per-fold metric vectors.
type DynamicResult struct {
	Trajectories *Trajectories            // periods x measures x (folds*replications)
	Populations  [][][]float64            // [fold][period][measure]
	Metrics      map[string][]float64     // metric key -> one value per fold
}

// DynamicGenerator runs one trajectory generation per fold, each under its
// own trend injector, and merges the folds. Replication seeds are laid out
// in disjoint per-fold blocks above baseSeed + foldCount, so no fold shares
// a stream with another and the whole experiment reproduces from one seed.
type DynamicGenerator struct {
	Config   DynamicConfig
	BaseSeed int64
	Workers  int
	RNG      ports.RNGFactory
	Progress ProgressFunc
}

// Run executes every fold and merges results. Any failure aborts the whole
// run.
func (g *DynamicGenerator) Run(ctx context.Context, s *series.MultiPanelSeries) (*DynamicResult, error) {
	cfg := &g.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	folds := len(cfg.Trends)
	k := cfg.Replications

	merged := map[string][]float64{}
	var all *Trajectories
	pops := make([][][]float64, folds)

	for i := 0; i < folds; i++ {
		foldSeed := g.BaseSeed + int64(folds) + int64(i)*int64(k)
		gen := &Generator{
			Estimator:    cfg.Estimator,
			Resampler:    cfg.Resampler,
			Trend:        cfg.Trends[i],
			Replications: k,
			BaseSeed:     foldSeed,
			Workers:      g.Workers,
			RNG:          g.RNG,
			Progress:     g.Progress,
		}
		traj, err := gen.Run(ctx, s)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}

		popPipe := &PopulationPipeline{Strategy: cfg.Resampler, Trend: cfg.Trends[i], Estimator: cfg.Estimator}
		pop, err := popPipe.Trajectory(s)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d population", i)
		}
		if len(pop) != traj.Periods {
			return nil, errors.ShapeMismatch(fmt.Sprintf(
				"fold %d population trajectory has %d periods, simulation has %d", i, len(pop), traj.Periods))
		}
		pops[i] = pop

		if all == nil {
			all = NewTrajectories(traj.Periods, traj.Measures, folds*k)
		} else if traj.Periods != all.Periods || traj.Measures != all.Measures {
			return nil, errors.ShapeMismatch(fmt.Sprintf(
				"fold %d produced %dx%d trajectories, expected %dx%d",
				i, traj.Periods, traj.Measures, all.Periods, all.Measures))
		}
		for t := 0; t < traj.Periods; t++ {
			for m := 0; m < traj.Measures; m++ {
				copy(all.Data[t][m][i*k:(i+1)*k], traj.Data[t][m])
			}
		}

		foldMetrics, err := g.foldMetrics(traj, pop, s)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d metrics", i)
		}
		for key, v := range foldMetrics {
			if merged[key] == nil {
				merged[key] = make([]float64, folds)
			}
			merged[key][i] = v
		}
	}

	return &DynamicResult{Trajectories: all, Populations: pops, Metrics: merged}, nil
}

// foldMetrics scores one fold over the configured evaluation sub-period.
// Multi-output estimators get measure-prefixed keys.
func (g *DynamicGenerator) foldMetrics(traj *Trajectories, pop [][]float64, s *series.MultiPanelSeries) (metrics.Summary, error) {
	mask, err := g.periodMask(traj.Periods, s)
	if err != nil {
		return nil, err
	}
	out := metrics.Summary{}
	for m := 0; m < traj.Measures; m++ {
		sim := traj.Measure(m)
		popCol := make([]float64, traj.Periods)
		for t := range popCol {
			popCol[t] = pop[t][m]
		}
		subSim, subPop := sim, popCol
		if mask != nil {
			subSim, subPop, err = metrics.MaskRows(sim, popCol, mask)
			if err != nil {
				return nil, err
			}
		}
		prefix := ""
		if traj.Measures > 1 {
			prefix = fmt.Sprintf("m%d_", m)
		}
		sum, err := metrics.Evaluate(subSim, subPop, metrics.Options{Prefix: prefix})
		if err != nil {
			return nil, err
		}
		for key, v := range sum {
			out[key] = v
		}
	}
	return out, nil
}

// periodMask aligns the evaluation period with trajectory rows. The
// alignment requires trajectory periods to coincide with the series dates;
// estimators that shorten the series cannot be masked by date.
func (g *DynamicGenerator) periodMask(periods int, s *series.MultiPanelSeries) ([]bool, error) {
	ep := g.Config.Period
	if ep.Full || (ep.Start.IsZero() && ep.End.IsZero()) {
		return nil, nil
	}
	dates := s.Dates()
	if len(dates) != periods {
		return nil, errors.InvalidInput(fmt.Sprintf(
			"cannot restrict to a dated period: trajectory has %d rows, series %d months", periods, len(dates)))
	}
	return ep.Mask(dates), nil
}
