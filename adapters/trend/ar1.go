package trend

import (
	"fmt"
	"math"
	"math/rand"

	"infleval/domain/series"
	"infleval/internal/errors"
)

// AcceptFunc judges a raw (pre-exponentiation) AR(1) series. Generation
// retries until it returns true, so callers must supply predicates with
// non-negligible acceptance probability or risk non-termination.
type AcceptFunc func(raw []float64) bool

// AR1 is the dynamic random-walk injector. Its factor vector is the
// exponential of an AR(1) process realized once at construction by
// rejection sampling; the injector is the only one whose construction
// consumes randomness and therefore takes an explicit generator.
type AR1 struct {
	phi     float64
	sigma   float64
	raw     []float64
	factors []float64
}

// AR1Option configures AR(1) construction.
type AR1Option func(*ar1Config)

type ar1Config struct {
	maxRetries int
}

// WithMaxRetries caps the rejection-sampling loop. The default of zero
// retries unboundedly, matching the historical behavior; a positive cap
// turns a never-accepting predicate into an error instead of a hang.
func WithMaxRetries(n int) AR1Option {
	return func(c *ar1Config) { c.maxRetries = n }
}

// NewAR1 realizes y_1 = N(0, sigma), y_t = phi*y_{t-1} + N(0, sigma) of the
// given length, regenerating until accept(y) holds, and stores exp(y) as
// the factor vector. Pass a nil accept to take the first realization.
func NewAR1(length int, phi, sigma float64, accept AcceptFunc, rng *rand.Rand, opts ...AR1Option) (*AR1, error) {
	if length <= 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("AR(1) length %d must be positive", length))
	}
	if sigma <= 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("AR(1) shock scale %g must be positive", sigma))
	}
	if rng == nil {
		return nil, errors.ConfigInvalid("AR(1) construction requires an explicit random source")
	}
	cfg := ar1Config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	raw := make([]float64, length)
	for attempt := 0; ; attempt++ {
		if cfg.maxRetries > 0 && attempt >= cfg.maxRetries {
			return nil, errors.Numerical(fmt.Sprintf(
				"AR(1) acceptance predicate not satisfied within %d attempts", cfg.maxRetries))
		}
		raw[0] = rng.NormFloat64() * sigma
		for t := 1; t < length; t++ {
			raw[t] = phi*raw[t-1] + rng.NormFloat64()*sigma
		}
		if accept == nil || accept(raw) {
			break
		}
	}

	factors := make([]float64, length)
	for t, y := range raw {
		factors[t] = math.Exp(y)
	}
	return &AR1{phi: phi, sigma: sigma, raw: append([]float64(nil), raw...), factors: factors}, nil
}

// NewAR1Folds builds n independently realized AR(1) injectors from a single
// master seed, fold i seeded deterministically as masterSeed + i, so a full
// multi-fold experiment reproduces exactly from one integer.
func NewAR1Folds(n, length int, phi, sigma float64, accept AcceptFunc, masterSeed int64, opts ...AR1Option) ([]*AR1, error) {
	if n <= 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("fold count %d must be positive", n))
	}
	folds := make([]*AR1, n)
	for i := 0; i < n; i++ {
		rng := rand.New(rand.NewSource(masterSeed + int64(i)))
		fold, err := NewAR1(length, phi, sigma, accept, rng, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		folds[i] = fold
	}
	return folds, nil
}

func (a *AR1) Apply(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	return applyFactors(s, a.factors, a.Name())
}

// Factors returns the realized, immutable factor vector exp(y).
func (a *AR1) Factors() []float64 { return a.factors }

// Raw returns the accepted pre-exponentiation series.
func (a *AR1) Raw() []float64 { return a.raw }

func (a *AR1) Name() string {
	return fmt.Sprintf("AR(1) random-walk trend (phi=%.3g, sigma=%.3g)", a.phi, a.sigma)
}

func (a *AR1) Tag() string { return "DRW" }
