package resample

import (
	"fmt"
	"math"
	"math/rand"

	"infleval/domain/series"
	"infleval/internal/errors"
)

// SeasonalIID scrambles each panel by month of occurrence: for every item
// and every calendar-month slot it draws with replacement from the
// historical observations of that same slot, preserving the row count.
// Seasonality survives; within-slot time ordering does not.
type SeasonalIID struct{}

func (SeasonalIID) Apply(p *series.Panel, rng *rand.Rand) (*series.Panel, error) {
	out := p.CloneMatrix()
	for month := 1; month <= 12; month++ {
		rows := p.MonthRows(month)
		if len(rows) == 0 {
			continue
		}
		for j := 0; j < p.Items(); j++ {
			for _, r := range rows {
				out[r][j] = p.Value(rows[rng.Intn(len(rows))], j)
			}
		}
	}
	return p.WithMatrix(out)
}

func (SeasonalIID) Name() string { return "Seasonal IID bootstrap" }
func (SeasonalIID) Tag() string  { return "SB" }

// Population replaces every observation with the arithmetic mean of its
// calendar-month slot, the expectation of the with-replacement draw.
func (SeasonalIID) Population() (PopulationFunc, error) {
	return func(p *series.Panel) (*series.Panel, error) {
		out := p.CloneMatrix()
		fillSlotMeans(p, out)
		return p.WithMatrix(out)
	}, nil
}

// SeasonalIIDExtended applies the same slot-wise draw but emits panels of a
// configured length, independent of the input length. A single length
// applies to every panel; a vector must carry exactly one entry per panel.
type SeasonalIIDExtended struct {
	lengths []int
}

// NewSeasonalIIDExtended validates the target lengths at construction.
func NewSeasonalIIDExtended(lengths ...int) (*SeasonalIIDExtended, error) {
	if len(lengths) == 0 {
		return nil, errors.ConfigInvalid("extended resampling requires at least one target length")
	}
	for i, l := range lengths {
		if l <= 0 {
			return nil, errors.ConfigInvalid(fmt.Sprintf("target length %d at position %d must be positive", l, i))
		}
	}
	return &SeasonalIIDExtended{lengths: lengths}, nil
}

// Apply on a single panel uses only the first target length. This asymmetry
// with ApplySeries, which checks the cardinality of a multi-entry length
// vector against the panel count, is intentional.
func (e *SeasonalIIDExtended) Apply(p *series.Panel, rng *rand.Rand) (*series.Panel, error) {
	return e.applyLength(p, e.lengths[0], rng)
}

// ApplySeries distributes per-panel target lengths. The cardinality check is
// load-bearing: a length vector that does not match the panel count fails.
func (e *SeasonalIIDExtended) ApplySeries(s *series.MultiPanelSeries, rng *rand.Rand) (*series.MultiPanelSeries, error) {
	lengths, err := e.panelLengths(s.Len())
	if err != nil {
		return nil, err
	}
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		out, err := e.applyLength(p, lengths[i], rng)
		if err != nil {
			return nil, errors.Wrapf(err, "extended resampling of panel %d", i)
		}
		panels[i] = out
	}
	return series.Rechain(panels...)
}

func (e *SeasonalIIDExtended) applyLength(p *series.Panel, length int, rng *rand.Rand) (*series.Panel, error) {
	dates := series.ContiguousDates(p.StartDate(), length)
	out := make([][]float64, length)
	for t := range out {
		out[t] = make([]float64, p.Items())
	}
	for t, d := range dates {
		rows := p.MonthRows(int(d.Month()))
		if len(rows) == 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("no historical observations for calendar month %d", int(d.Month())))
		}
		for j := 0; j < p.Items(); j++ {
			out[t][j] = p.Value(rows[rng.Intn(len(rows))], j)
		}
	}
	return p.WithMatrix(out)
}

func (e *SeasonalIIDExtended) Name() string {
	return fmt.Sprintf("Seasonal IID bootstrap, extended to %v periods", e.lengths)
}

func (e *SeasonalIIDExtended) Tag() string { return "SBE" }

// Population mirrors the extended length semantics: slot means tiled to the
// requested length of each panel.
func (e *SeasonalIIDExtended) Population() (PopulationFunc, error) {
	return func(p *series.Panel) (*series.Panel, error) {
		return e.populationLength(p, e.lengths[0])
	}, nil
}

func (e *SeasonalIIDExtended) PopulationSeries(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	lengths, err := e.panelLengths(s.Len())
	if err != nil {
		return nil, err
	}
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		out, err := e.populationLength(p, lengths[i])
		if err != nil {
			return nil, err
		}
		panels[i] = out
	}
	return series.Rechain(panels...)
}

func (e *SeasonalIIDExtended) populationLength(p *series.Panel, length int) (*series.Panel, error) {
	means := slotMeans(p)
	dates := series.ContiguousDates(p.StartDate(), length)
	out := make([][]float64, length)
	for t, d := range dates {
		slot, ok := means[int(d.Month())]
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("no historical observations for calendar month %d", int(d.Month())))
		}
		out[t] = cloneRow(slot)
	}
	return p.WithMatrix(out)
}

func (e *SeasonalIIDExtended) panelLengths(n int) ([]int, error) {
	if len(e.lengths) == 1 {
		lengths := make([]int, n)
		for i := range lengths {
			lengths[i] = e.lengths[0]
		}
		return lengths, nil
	}
	if len(e.lengths) != n {
		return nil, errors.ConfigInvalid(fmt.Sprintf(
			"number of target lengths (%d) must match number of panels (%d)", len(e.lengths), n))
	}
	return e.lengths, nil
}

// SeasonalTrended draws within calendar-month slots with occurrence weights
// biased by a per-panel scalar: weight (1+alpha)^i over the slot's i-th
// occurrence in time order. Positive alpha favors recency, recreating the
// trend statistically instead of through the injection layer; alpha zero
// degenerates to the uniform seasonal bootstrap.
type SeasonalTrended struct {
	alphas []float64
}

// NewSeasonalTrended validates the per-panel bias parameters.
func NewSeasonalTrended(alphas ...float64) (*SeasonalTrended, error) {
	if len(alphas) == 0 {
		return nil, errors.ConfigInvalid("trended resampling requires at least one bias parameter")
	}
	for i, a := range alphas {
		if a <= -1 {
			return nil, errors.ConfigInvalid(fmt.Sprintf("bias parameter %g at position %d must exceed -1", a, i))
		}
	}
	return &SeasonalTrended{alphas: alphas}, nil
}

// Apply on a single panel uses only the first bias parameter, mirroring the
// single-panel behavior of the other per-panel-parameterized strategies.
func (t *SeasonalTrended) Apply(p *series.Panel, rng *rand.Rand) (*series.Panel, error) {
	return t.applyAlpha(p, t.alphas[0], rng)
}

func (t *SeasonalTrended) ApplySeries(s *series.MultiPanelSeries, rng *rand.Rand) (*series.MultiPanelSeries, error) {
	alphas, err := t.panelAlphas(s.Len())
	if err != nil {
		return nil, err
	}
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		out, err := t.applyAlpha(p, alphas[i], rng)
		if err != nil {
			return nil, errors.Wrapf(err, "trended resampling of panel %d", i)
		}
		panels[i] = out
	}
	return series.Rechain(panels...)
}

func (t *SeasonalTrended) applyAlpha(p *series.Panel, alpha float64, rng *rand.Rand) (*series.Panel, error) {
	out := p.CloneMatrix()
	for month := 1; month <= 12; month++ {
		rows := p.MonthRows(month)
		if len(rows) == 0 {
			continue
		}
		cum := occurrenceCDF(len(rows), alpha)
		for j := 0; j < p.Items(); j++ {
			for _, r := range rows {
				out[r][j] = p.Value(rows[drawIndex(cum, rng.Float64())], j)
			}
		}
	}
	return p.WithMatrix(out)
}

func (t *SeasonalTrended) Name() string {
	return fmt.Sprintf("Seasonal trend-weighted bootstrap %v", t.alphas)
}

func (t *SeasonalTrended) Tag() string { return "SBW" }

// Population replaces every observation with the recency-weighted mean of
// its calendar-month slot under the same occurrence weights.
func (t *SeasonalTrended) Population() (PopulationFunc, error) {
	return func(p *series.Panel) (*series.Panel, error) {
		return t.populationAlpha(p, t.alphas[0])
	}, nil
}

func (t *SeasonalTrended) PopulationSeries(s *series.MultiPanelSeries) (*series.MultiPanelSeries, error) {
	alphas, err := t.panelAlphas(s.Len())
	if err != nil {
		return nil, err
	}
	panels := make([]*series.Panel, s.Len())
	for i, p := range s.Panels() {
		out, err := t.populationAlpha(p, alphas[i])
		if err != nil {
			return nil, err
		}
		panels[i] = out
	}
	return series.Rechain(panels...)
}

func (t *SeasonalTrended) populationAlpha(p *series.Panel, alpha float64) (*series.Panel, error) {
	out := p.CloneMatrix()
	for month := 1; month <= 12; month++ {
		rows := p.MonthRows(month)
		if len(rows) == 0 {
			continue
		}
		weights := occurrenceWeights(len(rows), alpha)
		for j := 0; j < p.Items(); j++ {
			mean := 0.0
			for i, r := range rows {
				mean += weights[i] * p.Value(r, j)
			}
			for _, r := range rows {
				out[r][j] = mean
			}
		}
	}
	return p.WithMatrix(out)
}

func (t *SeasonalTrended) panelAlphas(n int) ([]float64, error) {
	if len(t.alphas) == 1 {
		alphas := make([]float64, n)
		for i := range alphas {
			alphas[i] = t.alphas[0]
		}
		return alphas, nil
	}
	if len(t.alphas) != n {
		return nil, errors.ConfigInvalid(fmt.Sprintf(
			"number of bias parameters (%d) must match number of panels (%d)", len(t.alphas), n))
	}
	return t.alphas, nil
}

// slotMeans computes per-calendar-month arithmetic mean rows.
func slotMeans(p *series.Panel) map[int][]float64 {
	means := make(map[int][]float64)
	for month := 1; month <= 12; month++ {
		rows := p.MonthRows(month)
		if len(rows) == 0 {
			continue
		}
		mean := make([]float64, p.Items())
		for _, r := range rows {
			for j := 0; j < p.Items(); j++ {
				mean[j] += p.Value(r, j)
			}
		}
		for j := range mean {
			mean[j] /= float64(len(rows))
		}
		means[month] = mean
	}
	return means
}

func fillSlotMeans(p *series.Panel, out [][]float64) {
	for month, mean := range slotMeans(p) {
		for _, r := range p.MonthRows(month) {
			copy(out[r], mean)
		}
	}
}

// occurrenceWeights returns normalized geometric weights (1+alpha)^i over n
// slot occurrences in time order.
func occurrenceWeights(n int, alpha float64) []float64 {
	weights := make([]float64, n)
	sum := 0.0
	for i := range weights {
		weights[i] = math.Pow(1+alpha, float64(i))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func occurrenceCDF(n int, alpha float64) []float64 {
	weights := occurrenceWeights(n, alpha)
	cum := make([]float64, n)
	acc := 0.0
	for i, w := range weights {
		acc += w
		cum[i] = acc
	}
	cum[n-1] = 1
	return cum
}

// drawIndex maps a uniform draw to the first cumulative weight covering it.
func drawIndex(cum []float64, u float64) int {
	for i, c := range cum {
		if u < c {
			return i
		}
	}
	return len(cum) - 1
}

func cloneRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}
