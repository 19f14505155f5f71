package series

import (
	"testing"
	"time"
)

func monthsFrom(year int, month time.Month, n int) []time.Time {
	return ContiguousDates(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), n)
}

func TestNewPanel_ValidatesShape(t *testing.T) {
	dates := monthsFrom(2001, time.January, 2)

	// Ragged matrix
	_, err := NewPanel([][]float64{{1, 2}, {3}}, []float64{0.5, 0.5}, dates, 100)
	if err == nil {
		t.Error("expected error for ragged matrix")
	}

	// Weight count mismatch
	_, err = NewPanel([][]float64{{1, 2}, {3, 4}}, []float64{1}, dates, 100)
	if err == nil {
		t.Error("expected error for weight count mismatch")
	}

	// Date count mismatch
	_, err = NewPanel([][]float64{{1, 2}, {3, 4}}, []float64{0.5, 0.5}, dates[:1], 100)
	if err == nil {
		t.Error("expected error for date count mismatch")
	}
}

func TestNewPanel_RejectsNonContiguousDates(t *testing.T) {
	dates := []time.Time{
		time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, time.March, 1, 0, 0, 0, 0, time.UTC), // skips February
	}
	_, err := NewPanel([][]float64{{1}, {2}}, []float64{1}, dates, 100)
	if err == nil {
		t.Fatal("expected error for gap in monthly dates")
	}
}

func TestPanel_ImmutableAgainstCallerMutation(t *testing.T) {
	values := [][]float64{{1, 2}, {3, 4}}
	p, err := NewPanelFrom(values, []float64{0.5, 0.5}, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	if err != nil {
		t.Fatalf("NewPanelFrom failed: %v", err)
	}

	values[0][0] = 99
	if p.Value(0, 0) != 1 {
		t.Errorf("panel shares storage with caller input: got %v", p.Value(0, 0))
	}

	clone := p.CloneMatrix()
	clone[1][1] = -1
	if p.Value(1, 1) != 4 {
		t.Errorf("CloneMatrix shares storage with panel: got %v", p.Value(1, 1))
	}
}

func TestPanel_MonthRows(t *testing.T) {
	// 26 months starting January 2001: three Januaries at rows 0, 12, 24.
	p, err := NewPanelFrom(make26by1(), []float64{1}, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	if err != nil {
		t.Fatalf("NewPanelFrom failed: %v", err)
	}
	rows := p.MonthRows(1)
	want := []int{0, 12, 24}
	if len(rows) != len(want) {
		t.Fatalf("expected %v January rows, got %v", want, rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("January row %d: expected %d, got %d", i, want[i], rows[i])
		}
	}
	if got := p.MonthRows(2); len(got) != 3 {
		t.Errorf("expected 3 February rows, got %d", len(got))
	}
	if got := p.MonthRows(12); len(got) != 2 {
		t.Errorf("expected 2 December rows, got %d", len(got))
	}
}

func make26by1() [][]float64 {
	values := make([][]float64, 26)
	for i := range values {
		values[i] = []float64{float64(i)}
	}
	return values
}

func TestPanel_WithMatrixRedatesOnLengthChange(t *testing.T) {
	p, err := NewPanelFrom([][]float64{{1}, {2}, {3}}, []float64{1}, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	if err != nil {
		t.Fatalf("NewPanelFrom failed: %v", err)
	}

	longer, err := p.WithMatrix([][]float64{{1}, {2}, {3}, {4}, {5}})
	if err != nil {
		t.Fatalf("WithMatrix failed: %v", err)
	}
	if longer.Periods() != 5 {
		t.Fatalf("expected 5 periods, got %d", longer.Periods())
	}
	if !longer.StartDate().Equal(p.StartDate()) {
		t.Errorf("start date changed: %v", longer.StartDate())
	}
	wantEnd := time.Date(2001, 5, 1, 0, 0, 0, 0, time.UTC)
	if !longer.EndDate().Equal(wantEnd) {
		t.Errorf("expected end %v, got %v", wantEnd, longer.EndDate())
	}
}

func TestPanel_SliceByDateRange(t *testing.T) {
	p, err := NewPanelFrom(make26by1(), []float64{1}, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	if err != nil {
		t.Fatalf("NewPanelFrom failed: %v", err)
	}

	sub, err := p.SliceByDateRange(
		time.Date(2001, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 8, 1, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("SliceByDateRange failed: %v", err)
	}
	if sub.Periods() != 3 {
		t.Fatalf("expected 3 periods, got %d", sub.Periods())
	}
	if sub.Value(0, 0) != 5 { // June 2001 is row 5
		t.Errorf("expected first sliced value 5, got %v", sub.Value(0, 0))
	}

	_, err = p.SliceByDateRange(
		time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2010, 12, 1, 0, 0, 0, 0, time.UTC),
	)
	if err == nil {
		t.Error("expected error for disjoint range")
	}
}

func TestNewSeries_RequiresContiguousPanels(t *testing.T) {
	first, _ := NewPanelFrom([][]float64{{1}, {2}}, []float64{1}, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	gap, _ := NewPanelFrom([][]float64{{3}}, []float64{1}, time.Date(2001, 5, 1, 0, 0, 0, 0, time.UTC), 110)

	if _, err := NewSeries(first, gap); err == nil {
		t.Fatal("expected error for non-contiguous panels")
	}

	second, _ := NewPanelFrom([][]float64{{3}}, []float64{1}, time.Date(2001, 3, 1, 0, 0, 0, 0, time.UTC), 110)
	s, err := NewSeries(first, second)
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	if s.TotalPeriods() != 3 {
		t.Errorf("expected 3 total periods, got %d", s.TotalPeriods())
	}
}

func TestRechain_RedatesResizedPanels(t *testing.T) {
	first, _ := NewPanelFrom([][]float64{{1}, {2}}, []float64{1}, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	second, _ := NewPanelFrom([][]float64{{3}, {4}}, []float64{1}, time.Date(2001, 3, 1, 0, 0, 0, 0, time.UTC), 110)

	// Simulate a transform that grew the first panel to 4 months.
	grown, err := first.WithMatrix([][]float64{{1}, {2}, {5}, {6}})
	if err != nil {
		t.Fatalf("WithMatrix failed: %v", err)
	}

	s, err := Rechain(grown, second)
	if err != nil {
		t.Fatalf("Rechain failed: %v", err)
	}
	wantStart := time.Date(2001, 5, 1, 0, 0, 0, 0, time.UTC)
	if !s.Panel(1).StartDate().Equal(wantStart) {
		t.Errorf("second panel should be re-dated to %v, got %v", wantStart, s.Panel(1).StartDate())
	}
	dates := s.Dates()
	for i := 1; i < len(dates); i++ {
		if !dates[i].Equal(dates[i-1].AddDate(0, 1, 0)) {
			t.Fatalf("series dates not contiguous at %d: %v after %v", i, dates[i], dates[i-1])
		}
	}
}

func TestSeries_SliceByDateRangeDropsOutsidePanels(t *testing.T) {
	first, _ := NewPanelFrom([][]float64{{1}, {2}}, []float64{1}, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), 100)
	second, _ := NewPanelFrom([][]float64{{3}, {4}}, []float64{1}, time.Date(2001, 3, 1, 0, 0, 0, 0, time.UTC), 110)
	s, err := NewSeries(first, second)
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}

	sub, err := s.SliceByDateRange(
		time.Date(2001, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 4, 1, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("SliceByDateRange failed: %v", err)
	}
	if sub.Len() != 1 {
		t.Fatalf("expected 1 surviving panel, got %d", sub.Len())
	}
	if sub.Panel(0).Value(0, 0) != 3 {
		t.Errorf("expected first value 3, got %v", sub.Panel(0).Value(0, 0))
	}
}
