package resample

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"infleval/internal/errors"
)

// Default parameters of the synthetic weighing regime: the kernel width is
// a fraction of the pooled standard deviation, floored by eps so degenerate
// inputs keep a positive bandwidth.
const (
	SyntheticWidthFraction = 0.35
	SyntheticWidthFloor    = 1e-4
)

// WeighFunc assigns an unnormalized sampling weight to one support point.
// fromActual reports whether the sorted value originated in the actual
// vintage.
type WeighFunc func(value float64, fromActual bool) float64

// VarietyMatch is a weighted empirical distribution matching one item
// between two adjacent CPI vintages for a single calendar month. The
// support is the sorted concatenation of the prior and actual observation
// vectors; a parallel mask records provenance. Immutable after construction.
type VarietyMatch struct {
	values     []float64
	fromActual []bool
	weights    []float64
	cum        []float64
	month      int
	expected   float64
	stdDev     float64
	priorName  string
	actualName string
}

// VarietyMatchOption configures construction.
type VarietyMatchOption func(*varietyMatchConfig)

type varietyMatchConfig struct {
	weigh      WeighFunc
	priorName  string
	actualName string
}

// WithWeighFunc supplies a custom weighing function directly.
func WithWeighFunc(fn WeighFunc) VarietyMatchOption {
	return func(c *varietyMatchConfig) { c.weigh = fn }
}

// WithPriorOnly restricts sampling to values from the prior vintage.
func WithPriorOnly() VarietyMatchOption {
	return func(c *varietyMatchConfig) {
		c.weigh = func(_ float64, fromActual bool) float64 {
			if fromActual {
				return 0
			}
			return 1
		}
	}
}

// WithActualOnly restricts sampling to values from the actual vintage.
func WithActualOnly() VarietyMatchOption {
	return func(c *varietyMatchConfig) {
		c.weigh = func(_ float64, fromActual bool) float64 {
			if !fromActual {
				return 0
			}
			return 1
		}
	}
}

// WithVarietyNames attaches identifying labels for the two vintages.
func WithVarietyNames(prior, actual string) VarietyMatchOption {
	return func(c *varietyMatchConfig) {
		c.priorName = prior
		c.actualName = actual
	}
}

// NewVarietyMatch builds the matched distribution for one (item, month)
// pair. Without options the synthetic regime applies: weights proportional
// to a zero-mean Normal density of width SyntheticWidthFraction*std(pooled)
// + SyntheticWidthFloor evaluated at the distance from mean(actual), so
// values near the actual vintage's mean are favored.
func NewVarietyMatch(prior, actual []float64, month int, opts ...VarietyMatchOption) (*VarietyMatch, error) {
	if len(prior) == 0 {
		return nil, errors.ConfigInvalid("prior observation vector must not be empty")
	}
	if len(actual) == 0 {
		return nil, errors.ConfigInvalid("actual observation vector must not be empty")
	}
	if month < 1 || month > 12 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("month %d outside 1-12", month))
	}

	cfg := varietyMatchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.weigh == nil {
		cfg.weigh = syntheticWeigh(prior, actual)
	}

	n := len(prior) + len(actual)
	type obs struct {
		value      float64
		fromActual bool
	}
	all := make([]obs, 0, n)
	for _, v := range prior {
		all = append(all, obs{v, false})
	}
	for _, v := range actual {
		all = append(all, obs{v, true})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].value < all[j].value })

	vm := &VarietyMatch{
		values:     make([]float64, n),
		fromActual: make([]bool, n),
		weights:    make([]float64, n),
		cum:        make([]float64, n),
		month:      month,
		priorName:  cfg.priorName,
		actualName: cfg.actualName,
	}
	total := 0.0
	for i, o := range all {
		vm.values[i] = o.value
		vm.fromActual[i] = o.fromActual
		w := cfg.weigh(o.value, o.fromActual)
		if w < 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("negative weight %g for value %g", w, o.value))
		}
		vm.weights[i] = w
		total += w
	}
	if total == 0 {
		return nil, errors.InvalidInput("weighing regime assigned zero total weight")
	}
	acc := 0.0
	for i := range vm.weights {
		vm.weights[i] /= total
		acc += vm.weights[i]
		vm.cum[i] = acc
	}
	vm.cum[n-1] = 1

	vm.expected = stat.Mean(vm.values, vm.weights)
	vm.stdDev = stat.StdDev(vm.values, vm.weights)
	return vm, nil
}

func syntheticWeigh(prior, actual []float64) WeighFunc {
	pooled := make([]float64, 0, len(prior)+len(actual))
	pooled = append(pooled, prior...)
	pooled = append(pooled, actual...)
	actualMean := stat.Mean(actual, nil)
	width := SyntheticWidthFraction*stat.StdDev(pooled, nil) + SyntheticWidthFloor
	kernel := distuv.Normal{Mu: 0, Sigma: width}
	return func(value float64, _ bool) float64 {
		d := value - actualMean
		if d < 0 {
			d = -d
		}
		return kernel.Prob(d)
	}
}

// Len returns the support size.
func (vm *VarietyMatch) Len() int { return len(vm.values) }

// Month returns the calendar month (1-12) this match represents.
func (vm *VarietyMatch) Month() int { return vm.month }

// Values returns the sorted support. Read-only.
func (vm *VarietyMatch) Values() []float64 { return vm.values }

// Weights returns the normalized probability weights. Read-only.
func (vm *VarietyMatch) Weights() []float64 { return vm.weights }

// FromActual reports provenance per sorted support point. Read-only.
func (vm *VarietyMatch) FromActual() []bool { return vm.fromActual }

// Expected returns the weighted mean of the support.
func (vm *VarietyMatch) Expected() float64 { return vm.expected }

// StdDev returns the weighted, bias-corrected standard deviation.
func (vm *VarietyMatch) StdDev() float64 { return vm.stdDev }

// VarietyNames returns the identifying labels of the prior and actual
// vintages, if any were attached.
func (vm *VarietyMatch) VarietyNames() (prior, actual string) {
	return vm.priorName, vm.actualName
}

// Draw samples one value with replacement according to the match weights.
// The strict inequality keeps zero-weight support points unreachable.
func (vm *VarietyMatch) Draw(rng *rand.Rand) float64 {
	u := rng.Float64()
	i := sort.Search(len(vm.cum), func(i int) bool { return vm.cum[i] > u })
	if i >= len(vm.values) {
		i = len(vm.values) - 1
	}
	return vm.values[i]
}

// DrawN samples n values with replacement.
func (vm *VarietyMatch) DrawN(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	vm.Fill(rng, out)
	return out
}

// Fill overwrites dst with independent draws.
func (vm *VarietyMatch) Fill(rng *rand.Rand, dst []float64) {
	for i := range dst {
		dst[i] = vm.Draw(rng)
	}
}
