// Package testkit provides synthetic panel fixtures and a reference
// estimator for exercising the simulation pipeline without real CPI data.
package testkit

import (
	"math/rand"
	"time"

	"infleval/domain/series"
)

// DefaultStart is the first month of generated fixtures.
var DefaultStart = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// MonthIndexPanel builds a single-item panel whose value in every row is
// its calendar month number. With one observation per month slot, any
// seasonal bootstrap of it is deterministic.
func MonthIndexPanel(periods int, start time.Time) *series.Panel {
	values := make([][]float64, periods)
	dates := series.ContiguousDates(start, periods)
	for t := range values {
		values[t] = []float64{float64(dates[t].Month())}
	}
	p, err := series.NewPanel(values, []float64{1}, dates, 100)
	if err != nil {
		panic(err)
	}
	return p
}

// SeasonalPanel builds a panel with a deterministic seasonal level per
// (month, item) plus seeded noise, so month-slot pools are known exactly.
func SeasonalPanel(periods, items int, seed int64, start time.Time) *series.Panel {
	rng := rand.New(rand.NewSource(seed))
	values := make([][]float64, periods)
	dates := series.ContiguousDates(start, periods)
	for t := range values {
		row := make([]float64, items)
		for j := range row {
			base := float64(dates[t].Month()) + 10*float64(j)
			row[j] = base + 0.1*rng.NormFloat64()
		}
		values[t] = row
	}
	weights := UniformWeights(items)
	p, err := series.NewPanel(values, weights, dates, 100)
	if err != nil {
		panic(err)
	}
	return p
}

// ZeroPanel builds a panel of all-zero price changes.
func ZeroPanel(periods, items int, start time.Time) *series.Panel {
	values := make([][]float64, periods)
	for t := range values {
		values[t] = make([]float64, items)
	}
	p, err := series.NewPanelFrom(values, UniformWeights(items), start, 100)
	if err != nil {
		panic(err)
	}
	return p
}

// TwoPanelSeries chains two seasonal panels into a contiguous series, the
// second starting the month after the first ends.
func TwoPanelSeries(periodsEach, items int, seed int64) *series.MultiPanelSeries {
	first := SeasonalPanel(periodsEach, items, seed, DefaultStart)
	second := SeasonalPanel(periodsEach, items, seed+1, first.EndDate().AddDate(0, 1, 0))
	s, err := series.NewSeries(first, second)
	if err != nil {
		panic(err)
	}
	return s
}

// ZeroSeries chains n all-zero panels.
func ZeroSeries(n, periodsEach, items int) *series.MultiPanelSeries {
	panels := make([]*series.Panel, n)
	start := DefaultStart
	for i := range panels {
		panels[i] = ZeroPanel(periodsEach, items, start)
		start = panels[i].EndDate().AddDate(0, 1, 0)
	}
	s, err := series.NewSeries(panels...)
	if err != nil {
		panic(err)
	}
	return s
}

// UniformWeights returns n equal weights summing to one.
func UniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}
