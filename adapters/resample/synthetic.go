package resample

import (
	"fmt"
	"math/rand"

	"infleval/domain/series"
	"infleval/internal/errors"
)

// Synthetic resamples a single panel from a grid of matched variety
// distributions indexed [calendar-month slot, item]. Every occurrence of a
// slot in the output is an independent categorical draw from that slot's
// distribution, not a block copy. The matching structure is specific to one
// panel vintage, so applying the strategy to a whole series is a
// configuration error.
type Synthetic struct {
	grid    [][]*VarietyMatch // month slots x items
	length  int               // output periods; 0 keeps the input length
	months  []int             // calendar month per grid row
}

// NewSynthetic validates the matching grid: non-empty and rectangular, at
// least 12 month rows, no missing cells, consistent month labels within
// each row and cyclic month ordering across rows.
func NewSynthetic(grid [][]*VarietyMatch, length int) (*Synthetic, error) {
	if len(grid) == 0 {
		return nil, errors.ConfigInvalid("matching grid must not be empty")
	}
	if length < 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("output length %d must not be negative", length))
	}
	items := len(grid[0])
	if items == 0 {
		return nil, errors.ConfigInvalid("matching grid must carry at least one item column")
	}
	months := make([]int, len(grid))
	for r, row := range grid {
		if len(row) != items {
			return nil, errors.ConfigInvalid(fmt.Sprintf(
				"ragged matching grid: row %d has %d items, expected %d", r, len(row), items))
		}
		for j, vm := range row {
			if vm == nil {
				return nil, errors.ConfigInvalid(fmt.Sprintf("missing match at slot %d, item %d", r, j))
			}
			if j == 0 {
				months[r] = vm.Month()
				continue
			}
			if vm.Month() != months[r] {
				return nil, errors.ConfigInvalid(fmt.Sprintf(
					"inconsistent month at slot %d, item %d: got %d, expected %d", r, j, vm.Month(), months[r]))
			}
		}
		if r > 0 {
			want := months[r-1]%12 + 1
			if months[r] != want {
				return nil, errors.ConfigInvalid(fmt.Sprintf(
					"matching grid months not cyclic at row %d: got %d, expected %d", r, months[r], want))
			}
		}
	}
	return &Synthetic{grid: grid, length: length, months: months}, nil
}

// StartMonth returns the calendar month of the grid's first slot.
func (sy *Synthetic) StartMonth() int { return sy.months[0] }

// Apply draws a fresh panel of the configured length from the grid. The
// panel must align with the matching structure: same item count and a first
// date whose calendar month equals the grid's declared starting month. A
// misaligned matching table fails here instead of sampling silently shifted
// seasonality.
func (sy *Synthetic) Apply(p *series.Panel, rng *rand.Rand) (*series.Panel, error) {
	if err := sy.checkAlignment(p); err != nil {
		return nil, err
	}
	length := sy.length
	if length == 0 {
		length = p.Periods()
	}
	if len(sy.grid) < 12 && length > len(sy.grid) {
		return nil, errors.InvalidInput(fmt.Sprintf(
			"matching grid covers %d slots, cannot emit %d periods", len(sy.grid), length))
	}
	out := make([][]float64, length)
	for t := 0; t < length; t++ {
		row := make([]float64, p.Items())
		slot := sy.grid[sy.slotIndex(t)]
		for j := range row {
			row[j] = slot[j].Draw(rng)
		}
		out[t] = row
	}
	return p.WithMatrix(out)
}

// slotIndex maps an output row to its grid row. Grids of a full year or
// more repeat on the 12-month cycle; shorter grids cover each output row
// directly (alignment checks guarantee t stays in range).
func (sy *Synthetic) slotIndex(t int) int {
	if t < len(sy.grid) {
		return t
	}
	return t % 12
}

// ApplySeries is unsupported: the match grid describes exactly one panel
// vintage pair.
func (sy *Synthetic) ApplySeries(_ *series.MultiPanelSeries, _ *rand.Rand) (*series.MultiPanelSeries, error) {
	return nil, errors.ConfigInvalid("synthetic variety-match resampling applies to single panels, not whole series")
}

func (sy *Synthetic) Name() string {
	if sy.length > 0 {
		return fmt.Sprintf("Synthetic variety-match bootstrap, %d periods", sy.length)
	}
	return "Synthetic variety-match bootstrap"
}

func (sy *Synthetic) Tag() string { return "SVM" }

// Population tiles the grid's expected values to the requested length.
func (sy *Synthetic) Population() (PopulationFunc, error) {
	return func(p *series.Panel) (*series.Panel, error) {
		if err := sy.checkAlignment(p); err != nil {
			return nil, err
		}
		length := sy.length
		if length == 0 {
			length = p.Periods()
		}
		if len(sy.grid) < 12 && length > len(sy.grid) {
			return nil, errors.InvalidInput(fmt.Sprintf(
				"matching grid covers %d slots, cannot emit %d periods", len(sy.grid), length))
		}
		out := make([][]float64, length)
		for t := 0; t < length; t++ {
			row := make([]float64, p.Items())
			slot := sy.grid[sy.slotIndex(t)]
			for j := range row {
				row[j] = slot[j].Expected()
			}
			out[t] = row
		}
		return p.WithMatrix(out)
	}, nil
}

func (sy *Synthetic) checkAlignment(p *series.Panel) error {
	if len(sy.grid[0]) != p.Items() {
		return errors.InvalidInput(fmt.Sprintf(
			"matching grid item count %d does not match panel item count %d", len(sy.grid[0]), p.Items()))
	}
	if len(sy.grid) < 12 && len(sy.grid) < p.Periods() {
		return errors.InvalidInput(fmt.Sprintf(
			"matching grid covers %d slots, panel has %d periods", len(sy.grid), p.Periods()))
	}
	if sy.StartMonth() != p.Month(0) {
		return errors.InvalidInput(fmt.Sprintf(
			"matching grid starts at month %d, panel starts at month %d", sy.StartMonth(), p.Month(0)))
	}
	return nil
}

// SyntheticExtended builds an extended synthetic strategy: grid plus an
// explicit output length in whole periods.
func SyntheticExtended(grid [][]*VarietyMatch, periods int) (*Synthetic, error) {
	if periods <= 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("extended period count %d must be positive", periods))
	}
	return NewSynthetic(grid, periods)
}
