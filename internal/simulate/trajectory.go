package simulate

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"infleval/adapters/resample"
	"infleval/adapters/trend"
	"infleval/domain/series"
	"infleval/internal/errors"
	"infleval/ports"
)

// ProgressFunc receives fire-and-forget progress updates. It must never be
// required for correctness; slow or panicking reporters do not alter or
// drop replication results.
type ProgressFunc func(done, total int)

// Trajectories is the preallocated simulation output: one trajectory matrix
// slice per replication, indexed [period][measure][replication].
type Trajectories struct {
	Periods      int
	Measures     int
	Replications int
	Data         [][][]float64
}

// NewTrajectories preallocates a periods x measures x replications array.
func NewTrajectories(periods, measures, replications int) *Trajectories {
	data := make([][][]float64, periods)
	for t := range data {
		data[t] = make([][]float64, measures)
		for m := range data[t] {
			data[t][m] = make([]float64, replications)
		}
	}
	return &Trajectories{
		Periods:      periods,
		Measures:     measures,
		Replications: replications,
		Data:         data,
	}
}

// setReplication writes one estimator output matrix into slice k. Slices
// are disjoint by construction so concurrent writers need no locking.
func (tr *Trajectories) setReplication(k int, out [][]float64) error {
	if len(out) != tr.Periods {
		return errors.ShapeMismatch(fmt.Sprintf(
			"replication %d produced %d periods, expected %d", k, len(out), tr.Periods))
	}
	for t := range out {
		if len(out[t]) != tr.Measures {
			return errors.ShapeMismatch(fmt.Sprintf(
				"replication %d produced %d measures at period %d, expected %d", k, len(out[t]), t, tr.Measures))
		}
		for m := range out[t] {
			tr.Data[t][m][k] = out[t][m]
		}
	}
	return nil
}

// Measure returns the periods x replications view of one measure. The rows
// share storage with the trajectory array.
func (tr *Trajectories) Measure(m int) [][]float64 {
	view := make([][]float64, tr.Periods)
	for t := range view {
		view[t] = tr.Data[t][m]
	}
	return view
}

// Generator runs the replication loop: resample, inject the trend, evaluate
// the estimator, store the trajectory. Replication k depends only on
// baseSeed + k, the input data and the configuration, never on the
// replication count, execution order or worker count; sequential and
// parallel runs emit bit-identical arrays.
type Generator struct {
	Estimator    ports.Estimator
	Resampler    resample.Strategy
	Trend        trend.Injector
	Replications int
	BaseSeed     int64

	// Workers bounds the fork-join parallelism; values below two run
	// sequentially.
	Workers int

	// RNG derives per-replication generator instances; nil selects the
	// default offset scheme.
	RNG ports.RNGFactory

	Progress ProgressFunc
}

// Run generates all replications over the input series. Any estimator or
// resampler failure aborts the whole generation: partial Monte Carlo output
// is not meaningful.
func (g *Generator) Run(ctx context.Context, s *series.MultiPanelSeries) (*Trajectories, error) {
	if g.Replications <= 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("replication count %d must be positive", g.Replications))
	}
	rngs := g.RNG
	if rngs == nil {
		rngs = ports.OffsetRNGFactory{}
	}

	// The first replication sizes the output array; its value depends only
	// on its own seed, so running it ahead of the pool preserves the
	// determinism contract.
	first, err := g.replicate(s, rngs, 1)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errors.InvalidInput("estimator produced an empty trajectory")
	}
	traj := NewTrajectories(len(first), len(first[0]), g.Replications)
	if err := traj.setReplication(0, first); err != nil {
		return nil, err
	}

	var done atomic.Int64
	done.Store(1)
	g.report(1)

	if g.Workers > 1 {
		eg, _ := errgroup.WithContext(ctx)
		eg.SetLimit(g.Workers)
		for k := 2; k <= g.Replications; k++ {
			k := k
			eg.Go(func() error {
				out, err := g.replicate(s, rngs, k)
				if err != nil {
					return err
				}
				if err := traj.setReplication(k-1, out); err != nil {
					return err
				}
				g.report(int(done.Add(1)))
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		return traj, nil
	}

	for k := 2; k <= g.Replications; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := g.replicate(s, rngs, k)
		if err != nil {
			return nil, err
		}
		if err := traj.setReplication(k-1, out); err != nil {
			return nil, err
		}
		g.report(int(done.Add(1)))
	}
	return traj, nil
}

// replicate executes one replication with its own deterministically seeded
// generator.
func (g *Generator) replicate(s *series.MultiPanelSeries, rngs ports.RNGFactory, k int) ([][]float64, error) {
	rng := rngs.Replication(g.BaseSeed, k)
	resampled, err := resample.ApplySeries(g.Resampler, s, rng)
	if err != nil {
		return nil, errors.Wrapf(err, "replication %d resampling", k)
	}
	trended, err := g.Trend.Apply(resampled)
	if err != nil {
		return nil, errors.Wrapf(err, "replication %d trend injection", k)
	}
	out, err := g.Estimator.Run(trended)
	if err != nil {
		return nil, errors.Wrapf(err, "replication %d estimator", k)
	}
	return out, nil
}

func (g *Generator) report(done int) {
	if g.Progress == nil {
		return
	}
	total := g.Replications
	fn := g.Progress
	go func() {
		defer func() { _ = recover() }()
		fn(done, total)
	}()
}
