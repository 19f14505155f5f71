package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"infleval/adapters/excel"
	"infleval/adapters/postgres"
	"infleval/adapters/resample"
	"infleval/adapters/results"
	"infleval/adapters/trend"
	"infleval/domain/series"
	"infleval/internal"
	"infleval/internal/assess"
	"infleval/internal/config"
	"infleval/internal/metrics"
	"infleval/internal/simulate"
	"infleval/internal/testkit"
	"infleval/ports"
)

func main() {
	// Missing .env is fine, configuration falls back to the environment.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "infleval",
		Short: "Simulation-based assessment of inflation estimators",
	}

	rootCmd.AddCommand(
		newSimulateCmd(),
		newAssessCmd(),
		newOptimizeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSimulateCmd() *cobra.Command {
	var (
		resampler string
		alpha     float64
		trendName string
		trendRate float64
		reps      int
		seed      int64
		workers   int
		out       string
	)

	cmd := &cobra.Command{
		Use:   "simulate [data-file]",
		Short: "Generate a simulation trajectory array from a price-change panel file",
		Long: `Resample the historical price-change panels, apply the trend injection and
compute the estimator over every replication.

Example: infleval simulate data/cpi.xlsx --resampler seasonal --trend exp --rate 0.02 --replications 10000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSeries(args[0])
			if err != nil {
				return err
			}
			rs, err := parseResampler(resampler, alpha)
			if err != nil {
				return err
			}
			tr, err := parseTrend(trendName, trendRate, s.TotalPeriods(), seed)
			if err != nil {
				return err
			}

			gen := &simulate.Generator{
				Estimator:    testkit.WeightedMeanEstimator{},
				Resampler:    rs,
				Trend:        tr,
				Replications: reps,
				BaseSeed:     seed,
				Workers:      workers,
				Progress: func(done, total int) {
					if done%1000 == 0 || done == total {
						internal.DefaultLogger.Info("replication %d/%d", done, total)
					}
				},
			}
			traj, err := gen.Run(cmd.Context(), s)
			if err != nil {
				return err
			}
			internal.DefaultLogger.Info("generated %d periods x %d measures x %d replications",
				traj.Periods, traj.Measures, traj.Replications)

			if out == "" {
				return nil
			}
			data, err := json.Marshal(traj)
			if err != nil {
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&resampler, "resampler", "seasonal", "Resampling strategy: identity|seasonal|seasonal-trended")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Recency bias of the trended resampler")
	cmd.Flags().StringVar(&trendName, "trend", "none", "Trend injection: none|exp|walk")
	cmd.Flags().Float64Var(&trendRate, "rate", 0.02, "Annual rate for the exponential trend")
	cmd.Flags().IntVar(&reps, "replications", 10000, "Number of replications")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Base seed for deterministic replications")
	cmd.Flags().IntVar(&workers, "workers", 4, "Parallel workers (1 = sequential)")
	cmd.Flags().StringVar(&out, "out", "", "Optional JSON output path for the trajectory array")

	return cmd
}

func newAssessCmd() *cobra.Command {
	var (
		resampler string
		alpha     float64
		trendName string
		trendRate float64
		keepTraj  bool
	)

	cmd := &cobra.Command{
		Use:   "assess [data-file]",
		Short: "Assess an estimator against its population trajectory and persist the record",
		Long: `Run the full assessment pipeline: simulate, derive the population trajectory
from the resampling strategy and trend, score the trajectories and save the
record. Completed configurations (same result name) are skipped.

Results go to RESULTS_DIR as JSON, or to PostgreSQL when DATABASE_ENABLED is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			s, err := loadSeries(args[0])
			if err != nil {
				return err
			}
			rs, err := parseResampler(resampler, alpha)
			if err != nil {
				return err
			}
			tr, err := parseTrend(trendName, trendRate, s.TotalPeriods(), cfg.Simulation.BaseSeed)
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			cutoff := cfg.Simulation.TrainCutoff
			if cutoff.IsZero() {
				cutoff = s.EndDate()
			}
			est := testkit.WeightedMeanEstimator{}
			sim := simulate.Config{
				Estimator: est,
				Resampler: rs,
				Trend:     tr,
				Population: &simulate.PopulationPipeline{
					Strategy:  rs,
					Trend:     tr,
					Estimator: est,
				},
				Replications: cfg.Simulation.Replications,
				TrainCutoff:  cutoff,
			}

			runner := &assess.Runner{
				Store:            store,
				BaseSeed:         cfg.Simulation.BaseSeed,
				Workers:          cfg.Simulation.Workers,
				KeepTrajectories: keepTraj,
			}
			recs, err := runner.Run(cmd.Context(), []simulate.Config{sim}, s)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				internal.DefaultLogger.Info("saved %s (mse=%.6f)", rec.Filename, rec.Metrics["mse"])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resampler, "resampler", "seasonal", "Resampling strategy: identity|seasonal|seasonal-trended")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Recency bias of the trended resampler")
	cmd.Flags().StringVar(&trendName, "trend", "none", "Trend injection: none|exp|walk")
	cmd.Flags().Float64Var(&trendRate, "rate", 0.02, "Annual rate for the exponential trend")
	cmd.Flags().BoolVar(&keepTraj, "keep-trajectories", false, "Attach the raw trajectory array to the record")

	return cmd
}

// optimizeInput is the JSON layout consumed by the optimize command:
// component trajectories indexed [period][component][replication] plus the
// population trajectory they are scored against.
type optimizeInput struct {
	Components [][][]float64 `json:"components"`
	Population []float64     `json:"population"`
}

func newOptimizeCmd() *cobra.Command {
	var (
		method      string
		lambda      float64
		lambda2     float64
		exemptFirst bool
	)

	cmd := &cobra.Command{
		Use:   "optimize [trajectories-file]",
		Short: "Compute optimal linear combination weights for estimator components",
		Long: `Fit combination weights that minimize the mean squared error of the weighted
component mix against the population trajectory.

Example: infleval optimize components.json --method simplex`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var in optimizeInput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}

			var w []float64
			switch strings.ToLower(method) {
			case "ols":
				w, err = metrics.Weights(in.Components, in.Population)
			case "ridge":
				w, err = metrics.RidgeWeights(in.Components, in.Population, lambda, exemptFirst)
			case "lasso":
				w, err = metrics.LassoWeights(in.Components, in.Population, lambda)
			case "elasticnet":
				w, err = metrics.ElasticNetWeights(in.Components, in.Population, lambda, lambda2)
			case "simplex":
				w, err = metrics.SimplexWeights(in.Components, in.Population, exemptFirst)
			default:
				return fmt.Errorf("unknown method %q (use ols|ridge|lasso|elasticnet|simplex)", method)
			}
			if err != nil {
				return err
			}

			out, err := json.Marshal(map[string]any{"method": method, "weights": w})
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "ols", "Weighting method: ols|ridge|lasso|elasticnet|simplex")
	cmd.Flags().Float64Var(&lambda, "lambda", 0, "L1 penalty (lasso/elasticnet) or L2 penalty (ridge)")
	cmd.Flags().Float64Var(&lambda2, "lambda2", 0, "L2 penalty for elasticnet")
	cmd.Flags().BoolVar(&exemptFirst, "exempt-first", false, "Exempt the first component from the penalty or nonnegativity clip")

	return cmd
}

func loadSeries(path string) (*series.MultiPanelSeries, error) {
	reader := excel.NewDataReader(path)
	var sheets []string
	if env := os.Getenv("EXCEL_SHEETS"); env != "" {
		sheets = strings.Split(env, ",")
	}
	return reader.ReadSeries(sheets...)
}

func parseResampler(name string, alpha float64) (resample.Strategy, error) {
	switch strings.ToLower(name) {
	case "identity", "id":
		return resample.Identity{}, nil
	case "seasonal", "sb":
		return resample.SeasonalIID{}, nil
	case "seasonal-trended", "sbw":
		return resample.NewSeasonalTrended(alpha)
	default:
		return nil, fmt.Errorf("unknown resampler %q", name)
	}
}

func parseTrend(name string, rate float64, periods int, seed int64) (trend.Injector, error) {
	switch strings.ToLower(name) {
	case "none", "nt":
		return trend.Identity{}, nil
	case "exp", "exponential":
		return trend.NewExponential(rate, periods)
	case "walk", "rw":
		factors := randomWalkFactors(periods, seed)
		return trend.NewRandomWalk(factors)
	default:
		return nil, fmt.Errorf("unknown trend %q", name)
	}
}

func randomWalkFactors(periods int, seed int64) []float64 {
	rngs := &ports.OffsetRNGFactory{}
	rng := rngs.Fold(seed, 0)
	factors := make([]float64, periods)
	level := 1.0
	for i := range factors {
		level += 0.01 * rng.NormFloat64()
		factors[i] = level
	}
	return factors
}

func openStore(ctx context.Context, cfg *config.Config) (ports.ResultStore, error) {
	if cfg.Database.Enabled {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		return postgres.NewAssessmentRepository(db), nil
	}
	return results.NewFileStore(cfg.Results.Dir)
}
