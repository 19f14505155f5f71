package series

import (
	"fmt"
	"time"
)

// MultiPanelSeries is an ordered sequence of panels representing successive
// CPI base revisions. The concatenated date ranges are contiguous: each
// panel starts the month after its predecessor ends.
type MultiPanelSeries struct {
	panels []*Panel
}

// NewSeries constructs a series and validates non-emptiness and cross-panel
// date contiguity.
func NewSeries(panels ...*Panel) (*MultiPanelSeries, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("series requires at least one panel")
	}
	for i := 1; i < len(panels); i++ {
		want := panels[i-1].EndDate().AddDate(0, 1, 0)
		if !panels[i].StartDate().Equal(want) {
			return nil, fmt.Errorf("panel %d starts at %s, expected %s to stay contiguous",
				i, panels[i].StartDate().Format("2006-01"), want.Format("2006-01"))
		}
	}
	return &MultiPanelSeries{panels: panels}, nil
}

// Rechain rebuilds a series from transformed panels whose lengths may have
// changed, re-dating every panel after the first so the concatenated range
// stays contiguous. The first panel keeps its own start date.
func Rechain(panels ...*Panel) (*MultiPanelSeries, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("series requires at least one panel")
	}
	out := make([]*Panel, len(panels))
	out[0] = panels[0]
	for i := 1; i < len(panels); i++ {
		start := out[i-1].EndDate().AddDate(0, 1, 0)
		redated, err := panels[i].WithDates(ContiguousDates(start, panels[i].Periods()))
		if err != nil {
			return nil, fmt.Errorf("rechain panel %d: %w", i, err)
		}
		out[i] = redated
	}
	return NewSeries(out...)
}

// Panels returns the constituent panels in order. Read-only.
func (s *MultiPanelSeries) Panels() []*Panel { return s.panels }

// Len returns the number of base revisions.
func (s *MultiPanelSeries) Len() int { return len(s.panels) }

// Panel returns the i-th panel.
func (s *MultiPanelSeries) Panel(i int) *Panel { return s.panels[i] }

// TotalPeriods returns the summed period count across all panels.
func (s *MultiPanelSeries) TotalPeriods() int {
	total := 0
	for _, p := range s.panels {
		total += p.Periods()
	}
	return total
}

// StartDate returns the first month stamp of the series.
func (s *MultiPanelSeries) StartDate() time.Time { return s.panels[0].StartDate() }

// EndDate returns the last month stamp of the series.
func (s *MultiPanelSeries) EndDate() time.Time { return s.panels[len(s.panels)-1].EndDate() }

// Dates returns the concatenated month stamps across all panels.
func (s *MultiPanelSeries) Dates() []time.Time {
	dates := make([]time.Time, 0, s.TotalPeriods())
	for _, p := range s.panels {
		dates = append(dates, p.Dates()...)
	}
	return dates
}

// SliceByDateRange clips every panel to [from, to], dropping panels that
// fall entirely outside the range.
func (s *MultiPanelSeries) SliceByDateRange(from, to time.Time) (*MultiPanelSeries, error) {
	var kept []*Panel
	for _, p := range s.panels {
		if p.EndDate().Before(MonthStart(from)) || p.StartDate().After(MonthStart(to)) {
			continue
		}
		sub, err := p.SliceByDateRange(from, to)
		if err != nil {
			return nil, err
		}
		kept = append(kept, sub)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("date range %s..%s does not intersect series",
			from.Format("2006-01"), to.Format("2006-01"))
	}
	return NewSeries(kept...)
}
