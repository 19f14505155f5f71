package series

import (
	"fmt"
	"time"
)

// Panel is an immutable matrix of monthly fractional price changes for one
// CPI base revision. Rows are consecutive calendar months, columns are items.
// Weights sum to 1 across items; the base index anchors the panel to an
// index level but is not consumed by the resampling core.
type Panel struct {
	values    [][]float64 // periods x items
	weights   []float64
	dates     []time.Time // first of month, UTC, strictly increasing by one month
	baseIndex float64
}

// NewPanel constructs a panel and validates its shape invariants:
// rows(values) == len(dates), all rows the same width, weights match the
// item count and dates advance by exactly one month.
func NewPanel(values [][]float64, weights []float64, dates []time.Time, baseIndex float64) (*Panel, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("panel requires at least one period")
	}
	items := len(values[0])
	if items == 0 {
		return nil, fmt.Errorf("panel requires at least one item")
	}
	for i, row := range values {
		if len(row) != items {
			return nil, fmt.Errorf("ragged panel matrix: row %d has %d items, expected %d", i, len(row), items)
		}
	}
	if len(weights) != items {
		return nil, fmt.Errorf("weight count %d does not match item count %d", len(weights), items)
	}
	if len(dates) != len(values) {
		return nil, fmt.Errorf("date count %d does not match period count %d", len(dates), len(values))
	}
	norm := make([]time.Time, len(dates))
	for i, d := range dates {
		norm[i] = MonthStart(d)
		if i > 0 {
			want := norm[i-1].AddDate(0, 1, 0)
			if !norm[i].Equal(want) {
				return nil, fmt.Errorf("panel dates not contiguous monthly at row %d: got %s, expected %s",
					i, norm[i].Format("2006-01"), want.Format("2006-01"))
			}
		}
	}
	return &Panel{
		values:    cloneMatrix(values),
		weights:   cloneVector(weights),
		dates:     norm,
		baseIndex: baseIndex,
	}, nil
}

// NewPanelFrom builds a panel whose dates are a contiguous monthly range
// starting at start.
func NewPanelFrom(values [][]float64, weights []float64, start time.Time, baseIndex float64) (*Panel, error) {
	return NewPanel(values, weights, ContiguousDates(start, len(values)), baseIndex)
}

// Periods returns the number of monthly observations (rows).
func (p *Panel) Periods() int { return len(p.values) }

// Items returns the number of item columns.
func (p *Panel) Items() int { return len(p.weights) }

// Value returns the price change at period t, item j.
func (p *Panel) Value(t, j int) float64 { return p.values[t][j] }

// Matrix returns the underlying period x item matrix. Callers must treat the
// returned slices as read-only; transforms copy before modifying.
func (p *Panel) Matrix() [][]float64 { return p.values }

// CloneMatrix returns a deep copy of the panel matrix safe to mutate.
func (p *Panel) CloneMatrix() [][]float64 { return cloneMatrix(p.values) }

// Weights returns the item weight vector. Read-only.
func (p *Panel) Weights() []float64 { return p.weights }

// Dates returns the per-row month stamps. Read-only.
func (p *Panel) Dates() []time.Time { return p.dates }

// StartDate returns the first month stamp.
func (p *Panel) StartDate() time.Time { return p.dates[0] }

// EndDate returns the last month stamp.
func (p *Panel) EndDate() time.Time { return p.dates[len(p.dates)-1] }

// BaseIndex returns the index-level anchor carried with the panel.
func (p *Panel) BaseIndex() float64 { return p.baseIndex }

// Month returns the calendar month (1-12) of row t.
func (p *Panel) Month(t int) int { return int(p.dates[t].Month()) }

// WithMatrix rebuilds the panel around a transformed matrix, keeping weights
// and base index. Dates are unchanged when the row count is preserved and
// otherwise recomputed as a contiguous monthly range from the original start.
func (p *Panel) WithMatrix(values [][]float64) (*Panel, error) {
	dates := p.dates
	if len(values) != len(p.dates) {
		dates = ContiguousDates(p.StartDate(), len(values))
	}
	return NewPanel(values, p.weights, dates, p.baseIndex)
}

// WithDates rebuilds the panel with a new date range of identical length.
func (p *Panel) WithDates(dates []time.Time) (*Panel, error) {
	return NewPanel(p.values, p.weights, dates, p.baseIndex)
}

// SliceByDateRange returns the sub-panel covering [from, to] inclusive,
// clipped to the panel's own range. Fails when the intersection is empty.
func (p *Panel) SliceByDateRange(from, to time.Time) (*Panel, error) {
	from, to = MonthStart(from), MonthStart(to)
	lo, hi := -1, -1
	for i, d := range p.dates {
		if lo < 0 && !d.Before(from) {
			lo = i
		}
		if !d.After(to) {
			hi = i
		}
	}
	if lo < 0 || hi < lo {
		return nil, fmt.Errorf("date range %s..%s does not intersect panel %s..%s",
			from.Format("2006-01"), to.Format("2006-01"),
			p.StartDate().Format("2006-01"), p.EndDate().Format("2006-01"))
	}
	return NewPanel(p.values[lo:hi+1], p.weights, p.dates[lo:hi+1], p.baseIndex)
}

// MonthRows returns the row indices whose calendar month equals month (1-12),
// in time order.
func (p *Panel) MonthRows(month int) []int {
	var rows []int
	for i, d := range p.dates {
		if int(d.Month()) == month {
			rows = append(rows, i)
		}
	}
	return rows
}

// MonthStart normalizes a timestamp to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ContiguousDates builds n consecutive month stamps starting at start.
func ContiguousDates(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	cur := MonthStart(start)
	for i := 0; i < n; i++ {
		dates[i] = cur
		cur = cur.AddDate(0, 1, 0)
	}
	return dates
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = cloneVector(row)
	}
	return out
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
