package simulate

import (
	"context"
	"testing"
	"time"

	"infleval/adapters/resample"
	"infleval/adapters/trend"
	"infleval/internal/testkit"
)

func TestGenerator_SequentialAndParallelBitIdentical(t *testing.T) {
	s := testkit.TwoPanelSeries(36, 3, 1)

	base := Generator{
		Estimator:    testkit.WeightedMeanEstimator{},
		Resampler:    resample.SeasonalIID{},
		Trend:        trend.Identity{},
		Replications: 40,
		BaseSeed:     123,
	}

	seq := base
	seq.Workers = 1
	par := base
	par.Workers = 8

	seqTraj, err := seq.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("sequential run failed: %v", err)
	}
	parTraj, err := par.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("parallel run failed: %v", err)
	}

	for tt := 0; tt < seqTraj.Periods; tt++ {
		for m := 0; m < seqTraj.Measures; m++ {
			for k := 0; k < seqTraj.Replications; k++ {
				if seqTraj.Data[tt][m][k] != parTraj.Data[tt][m][k] {
					t.Fatalf("trajectory (%d,%d,%d) differs between sequential and parallel run", tt, m, k)
				}
			}
		}
	}
}

func TestGenerator_ReplicationIndependentOfCount(t *testing.T) {
	// Replication k depends only on baseSeed + k: growing the experiment
	// must not change already-generated replications.
	s := testkit.TwoPanelSeries(24, 2, 2)
	small := Generator{
		Estimator:    testkit.WeightedMeanEstimator{},
		Resampler:    resample.SeasonalIID{},
		Trend:        trend.Identity{},
		Replications: 5,
		BaseSeed:     9,
		Workers:      1,
	}
	large := small
	large.Replications = 20

	smallTraj, err := small.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("small run failed: %v", err)
	}
	largeTraj, err := large.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("large run failed: %v", err)
	}

	for tt := 0; tt < smallTraj.Periods; tt++ {
		for k := 0; k < smallTraj.Replications; k++ {
			if smallTraj.Data[tt][0][k] != largeTraj.Data[tt][0][k] {
				t.Fatalf("replication %d changed when the experiment grew", k)
			}
		}
	}
}

func TestGenerator_ZeroSeriesPassesThrough(t *testing.T) {
	// All-zero price changes survive every stage untouched: bootstrap draws
	// of zeros are zeros, trend injection skips non-positive entries and the
	// weighted mean of zeros is zero.
	s := testkit.ZeroSeries(2, 24, 3)
	g := Generator{
		Estimator:    testkit.WeightedMeanEstimator{},
		Resampler:    resample.SeasonalIID{},
		Trend:        mustExponential(t, 0.05, 48),
		Replications: 10,
		BaseSeed:     1,
		Workers:      1,
	}
	traj, err := g.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for tt := 0; tt < traj.Periods; tt++ {
		for k := 0; k < traj.Replications; k++ {
			if traj.Data[tt][0][k] != 0 {
				t.Fatalf("zero series produced nonzero trajectory value at (%d,%d)", tt, k)
			}
		}
	}
}

func mustExponential(t *testing.T, rate float64, length int) trend.Injector {
	t.Helper()
	e, err := trend.NewExponential(rate, length)
	if err != nil {
		t.Fatalf("NewExponential failed: %v", err)
	}
	return e
}

func TestGenerator_RejectsNonPositiveReplications(t *testing.T) {
	s := testkit.TwoPanelSeries(24, 2, 2)
	g := Generator{
		Estimator: testkit.WeightedMeanEstimator{},
		Resampler: resample.SeasonalIID{},
		Trend:     trend.Identity{},
	}
	if _, err := g.Run(context.Background(), s); err == nil {
		t.Fatal("expected error for zero replications")
	}
}

func TestGenerator_CancelledContextStopsSequentialRun(t *testing.T) {
	s := testkit.TwoPanelSeries(24, 2, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := Generator{
		Estimator:    testkit.WeightedMeanEstimator{},
		Resampler:    resample.SeasonalIID{},
		Trend:        trend.Identity{},
		Replications: 1000,
		Workers:      1,
	}
	if _, err := g.Run(ctx, s); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestPopulationPipeline_SeasonalIdentityIsSlotMeans(t *testing.T) {
	s := testkit.TwoPanelSeries(24, 2, 5)
	pipe := &PopulationPipeline{
		Strategy:  resample.SeasonalIID{},
		Trend:     trend.Identity{},
		Estimator: testkit.WeightedMeanEstimator{},
	}
	pop, err := pipe.Trajectory(s)
	if err != nil {
		t.Fatalf("Trajectory failed: %v", err)
	}
	if len(pop) != s.TotalPeriods() {
		t.Fatalf("expected %d periods, got %d", s.TotalPeriods(), len(pop))
	}

	// The population trajectory is deterministic.
	again, err := pipe.Trajectory(s)
	if err != nil {
		t.Fatalf("second Trajectory failed: %v", err)
	}
	for i := range pop {
		if pop[i][0] != again[i][0] {
			t.Fatalf("population trajectory differs across invocations at %d", i)
		}
	}

	if pipe.Tag() != "PSB-NT-WM" {
		t.Errorf("unexpected population tag %s", pipe.Tag())
	}
}

func TestConfig_ResultNameAbbreviatesReplications(t *testing.T) {
	cfg := Config{
		Estimator: testkit.WeightedMeanEstimator{},
		Resampler: resample.SeasonalIID{},
		Trend:     trend.Identity{},
		Population: &PopulationPipeline{
			Strategy:  resample.SeasonalIID{},
			Trend:     trend.Identity{},
			Estimator: testkit.WeightedMeanEstimator{},
		},
		Replications: 10000,
		TrainCutoff:  time.Date(2019, time.December, 1, 0, 0, 0, 0, time.UTC),
	}
	want := "WM_SB_NT_PSB-NT-WM_10k_201912"
	if got := cfg.ResultName(); got != want {
		t.Errorf("expected result name %q, got %q", want, got)
	}

	cfg.Replications = 500
	if got := cfg.ResultName(); got != "WM_SB_NT_PSB-NT-WM_500_201912" {
		t.Errorf("unexpected result name %q", got)
	}

	cfg.Replications = 12500
	if got := cfg.ResultName(); got != "WM_SB_NT_PSB-NT-WM_12.5k_201912" {
		t.Errorf("unexpected result name %q", got)
	}
}

func TestConfig_ValidateRejectsOverlappingPeriods(t *testing.T) {
	cfg := Config{
		Estimator: testkit.WeightedMeanEstimator{},
		Resampler: resample.SeasonalIID{},
		Trend:     trend.Identity{},
		Population: &PopulationPipeline{
			Strategy:  resample.SeasonalIID{},
			Trend:     trend.Identity{},
			Estimator: testkit.WeightedMeanEstimator{},
		},
		Replications: 10,
		Periods: []EvalPeriod{
			NamedPeriod("a", time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC)),
			NamedPeriod("b", time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2015, 12, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlapping evaluation periods")
	}

	cfg.Periods[1] = NamedPeriod("b", time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2015, 12, 1, 0, 0, 0, 0, time.UTC))
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disjoint periods should validate: %v", err)
	}
}

func TestEvalPeriod_MaskAndPrefix(t *testing.T) {
	ep := NamedPeriod("gt_b10", time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC))
	dates := []time.Time{
		time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	mask := ep.Mask(dates)
	want := []bool{false, true, true, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask[%d]: expected %v, got %v", i, want[i], mask[i])
		}
	}
	if ep.KeyPrefix() != "gt_b10_" {
		t.Errorf("unexpected key prefix %q", ep.KeyPrefix())
	}
	if FullPeriod().KeyPrefix() != "" {
		t.Error("full period should carry no key prefix")
	}
}
