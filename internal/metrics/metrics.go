// Package metrics computes point and distributional error metrics between
// simulated trajectory arrays and population ground-truth trajectories,
// including the additive decomposition of mean squared error into bias,
// variance and covariance components.
package metrics

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"infleval/internal/errors"
)

// HuberThreshold is the robust-loss knee: quadratic inside, linear outside.
const HuberThreshold = 1.0

// Summary maps metric keys to scalar values.
type Summary map[string]float64

// Options selects the metric set. Cheap mode keeps only the headline
// metrics; Full adds standard errors and the MSE decomposition. Prefix is
// prepended to every key so per-period summaries merge without collision.
type Options struct {
	Full   bool
	Prefix string
}

// Evaluate computes error metrics between a periods x replications
// simulation block and a population trajectory of matching length. The
// error field is sim - pop broadcast over replications.
func Evaluate(sim [][]float64, pop []float64, opts Options) (Summary, error) {
	t, k, err := checkShape(sim, pop)
	if err != nil {
		return nil, err
	}

	popSD := popStdDev(pop)

	mseK := make([]float64, k)
	rmseK := make([]float64, k)
	maeK := make([]float64, k)
	meK := make([]float64, k)
	absmeK := make([]float64, k)
	huberK := make([]float64, k)
	corrK := make([]float64, k)
	biasK := make([]float64, k)
	varK := make([]float64, k)
	covK := make([]float64, k)

	col := make([]float64, t)
	for j := 0; j < k; j++ {
		var sumSq, sumAbs, sum, sumHuber float64
		for i := 0; i < t; i++ {
			col[i] = sim[i][j]
			e := sim[i][j] - pop[i]
			sumSq += e * e
			sumAbs += math.Abs(e)
			sum += e
			sumHuber += huber(e)
		}
		n := float64(t)
		mseK[j] = sumSq / n
		rmseK[j] = math.Sqrt(mseK[j])
		maeK[j] = sumAbs / n
		meK[j] = sum / n
		absmeK[j] = math.Abs(meK[j])
		huberK[j] = sumHuber / n

		simSD := popStdDev(col)
		rho := stat.Correlation(col, pop, nil)
		if math.IsNaN(rho) {
			rho = 0
		}
		corrK[j] = rho
		biasK[j] = meK[j] * meK[j]
		varK[j] = (simSD - popSD) * (simSD - popSD)
		covK[j] = 2 * (1 - rho) * simSD * popSD
	}

	out := Summary{}
	put := func(key string, vals []float64) {
		m, _ := stats.Mean(vals)
		out[opts.Prefix+key] = m
		if opts.Full {
			sd, _ := stats.StandardDeviationSample(vals)
			out[opts.Prefix+key+"_std_error"] = sd / math.Sqrt(float64(k))
		}
	}
	put("mse", mseK)
	put("rmse", rmseK)
	put("mae", maeK)
	put("me", meK)
	put("absme", absmeK)
	put("huber", huberK)
	put("corr", corrK)

	if opts.Full {
		put("mse_bias", biasK)
		put("mse_var", varK)
		put("mse_cov", covK)

		// Per-observation standard error over the flattened error field.
		allSq := make([]float64, 0, t*k)
		for i := 0; i < t; i++ {
			for j := 0; j < k; j++ {
				e := sim[i][j] - pop[i]
				allSq = append(allSq, e*e)
			}
		}
		sd, _ := stats.StandardDeviationSample(allSq)
		out[opts.Prefix+"mse_std_error_obs"] = sd / math.Sqrt(float64(t*k))
	}
	return out, nil
}

// EvaluateFolds partitions the replication axis into equal blocks, one per
// fold, scores each block against its own population trajectory and
// averages the per-block summaries. The replication count must be an
// integer multiple of the fold count.
func EvaluateFolds(sim [][]float64, pops [][]float64, opts Options) (Summary, error) {
	if len(pops) == 0 {
		return nil, errors.ConfigInvalid("fold evaluation requires at least one population trajectory")
	}
	folds := len(pops)
	if len(sim) == 0 || len(sim[0]) == 0 {
		return nil, errors.ShapeMismatch("empty simulation block")
	}
	k := len(sim[0])
	if k%folds != 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf(
			"replication count %d is not a multiple of fold count %d", k, folds))
	}
	block := k / folds

	merged := Summary{}
	for f := 0; f < folds; f++ {
		sub := make([][]float64, len(sim))
		for i := range sim {
			sub[i] = sim[i][f*block : (f+1)*block]
		}
		s, err := Evaluate(sub, pops[f], opts)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", f)
		}
		for key, v := range s {
			merged[key] += v / float64(folds)
		}
	}
	return merged, nil
}

// MaskRows keeps only the trajectory rows whose mask flag is set, used to
// restrict metrics to an evaluation sub-period.
func MaskRows(sim [][]float64, pop []float64, mask []bool) ([][]float64, []float64, error) {
	if len(mask) != len(sim) || len(mask) != len(pop) {
		return nil, nil, errors.ShapeMismatch(fmt.Sprintf(
			"mask length %d does not match %d trajectory periods", len(mask), len(sim)))
	}
	var outSim [][]float64
	var outPop []float64
	for i, keep := range mask {
		if keep {
			outSim = append(outSim, sim[i])
			outPop = append(outPop, pop[i])
		}
	}
	if len(outSim) == 0 {
		return nil, nil, errors.InvalidInput("evaluation period selects no trajectory rows")
	}
	return outSim, outPop, nil
}

func checkShape(sim [][]float64, pop []float64) (t, k int, err error) {
	t = len(sim)
	if t == 0 {
		return 0, 0, errors.ShapeMismatch("empty simulation block")
	}
	if len(pop) != t {
		return 0, 0, errors.ShapeMismatch(fmt.Sprintf(
			"population trajectory has %d periods, simulation has %d", len(pop), t))
	}
	k = len(sim[0])
	if k == 0 {
		return 0, 0, errors.ShapeMismatch("simulation block has no replications")
	}
	for i := range sim {
		if len(sim[i]) != k {
			return 0, 0, errors.ShapeMismatch(fmt.Sprintf(
				"ragged simulation block: period %d has %d replications, expected %d", i, len(sim[i]), k))
		}
	}
	return t, k, nil
}

// huber is the robust loss with knee HuberThreshold.
func huber(e float64) float64 {
	a := math.Abs(e)
	if a <= HuberThreshold {
		return 0.5 * e * e
	}
	return HuberThreshold * (a - 0.5*HuberThreshold)
}

// popStdDev is the biased (population) standard deviation; the MSE
// decomposition identity only holds under 1/T moments.
func popStdDev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	ss := 0.0
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(x)))
}
