// Package simulate drives Monte Carlo replications of an inflation
// estimator over resampled, trend-injected price-change series and collects
// the resulting trajectory arrays.
package simulate

import (
	"fmt"
	"strings"
	"time"

	"infleval/adapters/resample"
	"infleval/adapters/trend"
	"infleval/domain/series"
	"infleval/internal/errors"
	"infleval/ports"
)

// resultDelimiter joins the configuration tags of a deterministic result
// filename. Batch runs rely on this determinism to skip completed work.
const resultDelimiter = "_"

// EvalPeriod selects the sub-range of a trajectory that metrics are
// computed over. A full period spans everything; a named period masks to a
// date window and prefixes its metric keys to avoid collisions.
type EvalPeriod struct {
	Name  string
	Start time.Time
	End   time.Time
	Full  bool
}

// FullPeriod evaluates over the complete trajectory.
func FullPeriod() EvalPeriod { return EvalPeriod{Full: true} }

// NamedPeriod evaluates over [start, end] under the given label.
func NamedPeriod(name string, start, end time.Time) EvalPeriod {
	return EvalPeriod{Name: name, Start: series.MonthStart(start), End: series.MonthStart(end)}
}

// Contains reports whether the month stamp falls inside the period.
func (ep EvalPeriod) Contains(d time.Time) bool {
	if ep.Full {
		return true
	}
	d = series.MonthStart(d)
	return !d.Before(ep.Start) && !d.After(ep.End)
}

// Mask returns one flag per date marking membership in the period.
func (ep EvalPeriod) Mask(dates []time.Time) []bool {
	mask := make([]bool, len(dates))
	for i, d := range dates {
		mask[i] = ep.Contains(d)
	}
	return mask
}

// KeyPrefix is prepended to metric keys when results for several evaluation
// periods are merged into one record.
func (ep EvalPeriod) KeyPrefix() string {
	if ep.Full || ep.Name == "" {
		return ""
	}
	return ep.Name + "_"
}

// Config groups one full simulation: the estimator under evaluation, the
// resampling strategy, the trend injector, the population estimator used as
// ground truth, the replication count, the training cutoff and the
// evaluation periods (none means the full range; several must be disjoint).
// A non-zero TrainCutoff restricts the input series to months up to and
// including the cutoff before any trajectories are generated; it also dates
// the result name, so the same configuration at two cutoffs persists twice.
type Config struct {
	Estimator    ports.Estimator
	Resampler    resample.Strategy
	Trend        trend.Injector
	Population   ports.PopulationEstimator
	Replications int
	TrainCutoff  time.Time
	Periods      []EvalPeriod
}

// Validate fails fast on incomplete configurations.
func (c *Config) Validate() error {
	if c.Estimator == nil {
		return errors.ConfigInvalid("simulation requires an estimator")
	}
	if c.Resampler == nil {
		return errors.ConfigInvalid("simulation requires a resampling strategy")
	}
	if c.Trend == nil {
		return errors.ConfigInvalid("simulation requires a trend injector")
	}
	if c.Population == nil {
		return errors.ConfigInvalid("simulation requires a population estimator")
	}
	if c.Replications <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("replication count %d must be positive", c.Replications))
	}
	for i := range c.Periods {
		for j := i + 1; j < len(c.Periods); j++ {
			if periodsOverlap(c.Periods[i], c.Periods[j]) {
				return errors.ConfigInvalid(fmt.Sprintf(
					"evaluation periods %q and %q overlap", c.Periods[i].Name, c.Periods[j].Name))
			}
		}
	}
	return nil
}

func periodsOverlap(a, b EvalPeriod) bool {
	if a.Full || b.Full {
		return true
	}
	return !a.End.Before(b.Start) && !b.End.Before(a.Start)
}

// ResultName builds the deterministic result filename for the
// configuration: estimator, resampler, trend and population tags, the
// abbreviated replication count and the training cutoff, joined by a fixed
// delimiter.
func (c *Config) ResultName() string {
	return strings.Join([]string{
		c.Estimator.Tag(),
		c.Resampler.Tag(),
		c.Trend.Tag(),
		c.Population.Tag(),
		abbreviateReplications(c.Replications),
		c.TrainCutoff.Format("200601"),
	}, resultDelimiter)
}

// abbreviateReplications shortens counts of a thousand and above to the
// "Nk" form used in result filenames.
func abbreviateReplications(k int) string {
	if k >= 1000 {
		if k%1000 == 0 {
			return fmt.Sprintf("%dk", k/1000)
		}
		return fmt.Sprintf("%.1fk", float64(k)/1000)
	}
	return fmt.Sprintf("%d", k)
}

// DynamicConfig is the multi-fold variant: one trend injector per fold,
// sharing every other field.
type DynamicConfig struct {
	Estimator    ports.Estimator
	Resampler    resample.Strategy
	Trends       []trend.Injector
	Replications int // per fold
	TrainCutoff  time.Time
	Period       EvalPeriod
}

// Validate fails fast on incomplete configurations.
func (c *DynamicConfig) Validate() error {
	if c.Estimator == nil {
		return errors.ConfigInvalid("simulation requires an estimator")
	}
	if c.Resampler == nil {
		return errors.ConfigInvalid("simulation requires a resampling strategy")
	}
	if len(c.Trends) == 0 {
		return errors.ConfigInvalid("dynamic simulation requires at least one fold injector")
	}
	for i, tr := range c.Trends {
		if tr == nil {
			return errors.ConfigInvalid(fmt.Sprintf("fold injector %d is missing", i))
		}
	}
	if c.Replications <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("replication count %d must be positive", c.Replications))
	}
	return nil
}
