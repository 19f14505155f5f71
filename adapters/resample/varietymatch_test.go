package resample

import (
	"math"
	"math/rand"
	"testing"
)

func TestNewVarietyMatch_ValidatesInputs(t *testing.T) {
	if _, err := NewVarietyMatch(nil, []float64{1}, 1); err == nil {
		t.Error("expected error for empty prior vector")
	}
	if _, err := NewVarietyMatch([]float64{1}, nil, 1); err == nil {
		t.Error("expected error for empty actual vector")
	}
	if _, err := NewVarietyMatch([]float64{1}, []float64{2}, 0); err == nil {
		t.Error("expected error for month 0")
	}
	if _, err := NewVarietyMatch([]float64{1}, []float64{2}, 13); err == nil {
		t.Error("expected error for month 13")
	}
	if _, err := NewVarietyMatch([]float64{1}, []float64{2}, 3,
		WithWeighFunc(func(float64, bool) float64 { return -1 })); err == nil {
		t.Error("expected error for negative weight")
	}
	if _, err := NewVarietyMatch([]float64{1}, []float64{2}, 3,
		WithWeighFunc(func(float64, bool) float64 { return 0 })); err == nil {
		t.Error("expected error for zero total weight")
	}
}

func TestVarietyMatch_WeightsNormalizeAndSupportIsSorted(t *testing.T) {
	prior := []float64{0.5, -0.2, 1.3, 0.1}
	actual := []float64{0.4, 0.0, 0.9}
	vm, err := NewVarietyMatch(prior, actual, 6)
	if err != nil {
		t.Fatalf("NewVarietyMatch failed: %v", err)
	}

	if vm.Len() != len(prior)+len(actual) {
		t.Fatalf("expected support size %d, got %d", len(prior)+len(actual), vm.Len())
	}
	values := vm.Values()
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			t.Fatalf("support not sorted at %d: %v after %v", i, values[i], values[i-1])
		}
	}

	sum := 0.0
	for _, w := range vm.Weights() {
		if w < 0 {
			t.Fatalf("negative normalized weight %v", w)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("weights sum to %v, expected 1", sum)
	}
}

func TestVarietyMatch_SyntheticRegimeFavorsActualMean(t *testing.T) {
	// Actual observations cluster near 1; a faraway prior point must carry
	// less weight than support close to mean(actual).
	prior := []float64{10, 1.05}
	actual := []float64{0.95, 1.0, 1.05}
	vm, err := NewVarietyMatch(prior, actual, 2)
	if err != nil {
		t.Fatalf("NewVarietyMatch failed: %v", err)
	}

	values, weights := vm.Values(), vm.Weights()
	var far, near float64
	for i, v := range values {
		if v == 10 {
			far = weights[i]
		}
		if v == 1.0 {
			near = weights[i]
		}
	}
	if far >= near {
		t.Errorf("distant value weight %v should be below near-mean weight %v", far, near)
	}
}

func TestVarietyMatch_PriorOnlyNeverDrawsActual(t *testing.T) {
	prior := []float64{-1, 0, 1}
	actual := []float64{5, 6}
	vm, err := NewVarietyMatch(prior, actual, 4, WithPriorOnly())
	if err != nil {
		t.Fatalf("NewVarietyMatch failed: %v", err)
	}

	rng := rand.New(rand.NewSource(31))
	for i := 0; i < 2000; i++ {
		v := vm.Draw(rng)
		if v >= 5 {
			t.Fatalf("draw %d returned actual-vintage value %v under prior-only regime", i, v)
		}
	}
}

func TestVarietyMatch_ActualOnlyNeverDrawsPrior(t *testing.T) {
	prior := []float64{-1, 0, 1}
	actual := []float64{5, 6}
	vm, err := NewVarietyMatch(prior, actual, 4, WithActualOnly())
	if err != nil {
		t.Fatalf("NewVarietyMatch failed: %v", err)
	}

	rng := rand.New(rand.NewSource(37))
	for i := 0; i < 2000; i++ {
		if v := vm.Draw(rng); v < 5 {
			t.Fatalf("draw %d returned prior-vintage value %v under actual-only regime", i, v)
		}
	}
}

func TestVarietyMatch_DrawStaysOnSupport(t *testing.T) {
	prior := []float64{0.2, 0.7}
	actual := []float64{0.4}
	vm, err := NewVarietyMatch(prior, actual, 9)
	if err != nil {
		t.Fatalf("NewVarietyMatch failed: %v", err)
	}

	onSupport := map[float64]bool{0.2: true, 0.4: true, 0.7: true}
	rng := rand.New(rand.NewSource(41))
	for _, v := range vm.DrawN(rng, 500) {
		if !onSupport[v] {
			t.Fatalf("draw %v not on support", v)
		}
	}
}

func TestVarietyMatch_ExpectedMatchesWeightedMean(t *testing.T) {
	prior := []float64{0, 2}
	actual := []float64{1}
	vm, err := NewVarietyMatch(prior, actual, 1,
		WithWeighFunc(func(float64, bool) float64 { return 1 }))
	if err != nil {
		t.Fatalf("NewVarietyMatch failed: %v", err)
	}
	if math.Abs(vm.Expected()-1) > 1e-12 {
		t.Errorf("uniform weights over {0,1,2}: expected mean 1, got %v", vm.Expected())
	}
}

func TestVarietyMatch_VarietyNames(t *testing.T) {
	vm, err := NewVarietyMatch([]float64{1}, []float64{2}, 7, WithVarietyNames("2000", "2010"))
	if err != nil {
		t.Fatalf("NewVarietyMatch failed: %v", err)
	}
	prior, actual := vm.VarietyNames()
	if prior != "2000" || actual != "2010" {
		t.Errorf("expected names 2000/2010, got %s/%s", prior, actual)
	}
	if vm.Month() != 7 {
		t.Errorf("expected month 7, got %d", vm.Month())
	}
}
