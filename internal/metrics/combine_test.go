package metrics

import (
	"math"
	"math/rand"
	"testing"
)

// combinationStack builds a trajectory stack whose best linear mix of the
// component estimators is known: pop = 0.3*x0 + 0.7*x1 plus small noise.
func combinationStack(t, k int, seed int64) ([][][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][][]float64, t)
	pop := make([]float64, t)
	for i := 0; i < t; i++ {
		x[i] = make([][]float64, 2)
		base0 := 4 + math.Sin(float64(i)/4)
		base1 := 3 + math.Cos(float64(i)/5)
		pop[i] = 0.3*base0 + 0.7*base1
		for p := 0; p < 2; p++ {
			x[i][p] = make([]float64, k)
		}
		for j := 0; j < k; j++ {
			x[i][0][j] = base0 + 0.01*rng.NormFloat64()
			x[i][1][j] = base1 + 0.01*rng.NormFloat64()
		}
	}
	return x, pop
}

func TestWeights_RecoversKnownMix(t *testing.T) {
	x, pop := combinationStack(120, 20, 1)
	w, err := Weights(x, pop)
	if err != nil {
		t.Fatalf("Weights failed: %v", err)
	}
	if len(w) != 2 {
		t.Fatalf("expected 2 weights, got %d", len(w))
	}
	if math.Abs(w[0]-0.3) > 0.05 || math.Abs(w[1]-0.7) > 0.05 {
		t.Errorf("expected weights near (0.3, 0.7), got (%v, %v)", w[0], w[1])
	}
}

func TestWeights_ChecksShapes(t *testing.T) {
	if _, err := Weights(nil, nil); err == nil {
		t.Error("expected error for empty stack")
	}
	x, pop := combinationStack(10, 4, 2)
	if _, err := Weights(x, pop[:5]); err == nil {
		t.Error("expected error for period mismatch")
	}
}

func TestRidgeWeights_LambdaZeroMatchesOLS(t *testing.T) {
	x, pop := combinationStack(60, 10, 3)
	ols, err := Weights(x, pop)
	if err != nil {
		t.Fatalf("Weights failed: %v", err)
	}
	ridge, err := RidgeWeights(x, pop, 0, false)
	if err != nil {
		t.Fatalf("RidgeWeights failed: %v", err)
	}
	for i := range ols {
		if ols[i] != ridge[i] {
			t.Fatalf("weight %d: lambda zero should match closed form exactly", i)
		}
	}
}

func TestRidgeWeights_PenaltyShrinks(t *testing.T) {
	x, pop := combinationStack(60, 10, 4)
	ols, err := Weights(x, pop)
	if err != nil {
		t.Fatalf("Weights failed: %v", err)
	}
	ridge, err := RidgeWeights(x, pop, 5, false)
	if err != nil {
		t.Fatalf("RidgeWeights failed: %v", err)
	}
	normOLS, normRidge := 0.0, 0.0
	for i := range ols {
		normOLS += ols[i] * ols[i]
		normRidge += ridge[i] * ridge[i]
	}
	if normRidge >= normOLS {
		t.Errorf("ridge norm %v should be below OLS norm %v", normRidge, normOLS)
	}

	if _, err := RidgeWeights(x, pop, -1, false); err == nil {
		t.Error("expected error for negative penalty")
	}
}

func TestLassoWeights_LambdaZeroMatchesOLS(t *testing.T) {
	x, pop := combinationStack(60, 10, 5)
	ols, err := Weights(x, pop)
	if err != nil {
		t.Fatalf("Weights failed: %v", err)
	}
	lasso, err := LassoWeights(x, pop, 0)
	if err != nil {
		t.Fatalf("LassoWeights failed: %v", err)
	}
	for i := range ols {
		if ols[i] != lasso[i] {
			t.Fatalf("weight %d: lambda zero should bypass the iterative solver", i)
		}
	}
}

func TestLassoWeights_SmallPenaltyStaysNearOLS(t *testing.T) {
	x, pop := combinationStack(120, 20, 6)
	ols, err := Weights(x, pop)
	if err != nil {
		t.Fatalf("Weights failed: %v", err)
	}
	lasso, err := LassoWeights(x, pop, 1e-6)
	if err != nil {
		t.Fatalf("LassoWeights failed: %v", err)
	}
	for i := range ols {
		if math.Abs(ols[i]-lasso[i]) > 1e-2 {
			t.Errorf("weight %d: expected near %v, got %v", i, ols[i], lasso[i])
		}
	}
}

func TestElasticNetWeights_RejectsNegativePenalties(t *testing.T) {
	x, pop := combinationStack(20, 5, 7)
	if _, err := ElasticNetWeights(x, pop, -1, 0); err == nil {
		t.Error("expected error for negative L1 penalty")
	}
	if _, err := ElasticNetWeights(x, pop, 0, -1); err == nil {
		t.Error("expected error for negative L2 penalty")
	}
}

func TestSimplexWeights_SatisfiesConstraints(t *testing.T) {
	x, pop := combinationStack(120, 20, 8)
	w, err := SimplexWeights(x, pop, false)
	if err != nil {
		t.Fatalf("SimplexWeights failed: %v", err)
	}
	sum := 0.0
	for i, v := range w {
		if v < -1e-12 {
			t.Errorf("weight %d is negative: %v", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-8 {
		t.Errorf("weights sum to %v, expected 1", sum)
	}
	// The known mix lies inside the simplex, so projection should find it.
	if math.Abs(w[0]-0.3) > 0.05 || math.Abs(w[1]-0.7) > 0.05 {
		t.Errorf("expected weights near (0.3, 0.7), got (%v, %v)", w[0], w[1])
	}
}

func TestSimplexWeights_ExemptFirstLeavesLeaderOutsideSum(t *testing.T) {
	x, pop := combinationStack(60, 10, 9)
	w, err := SimplexWeights(x, pop, true)
	if err != nil {
		t.Fatalf("SimplexWeights failed: %v", err)
	}
	if w[0] < 0 {
		t.Errorf("exempt leading weight must stay non-negative, got %v", w[0])
	}
	sum := 0.0
	for _, v := range w[1:] {
		if v < -1e-12 {
			t.Errorf("constrained weight is negative: %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-8 {
		t.Errorf("constrained weights sum to %v, expected 1", sum)
	}
}

func TestSimplexObjectiveWeights_MSEDelegatesToQuadraticPath(t *testing.T) {
	x, pop := combinationStack(60, 10, 10)
	direct, err := SimplexWeights(x, pop, false)
	if err != nil {
		t.Fatalf("SimplexWeights failed: %v", err)
	}
	viaObjective, err := SimplexObjectiveWeights(x, pop, ObjectiveMSE, false)
	if err != nil {
		t.Fatalf("SimplexObjectiveWeights failed: %v", err)
	}
	for i := range direct {
		if direct[i] != viaObjective[i] {
			t.Fatalf("weight %d: mse objective should delegate to the quadratic solver", i)
		}
	}
}

func TestSimplexObjectiveWeights_NonlinearObjectivesStayOnSimplex(t *testing.T) {
	x, pop := combinationStack(60, 10, 11)
	for _, obj := range []Objective{ObjectiveRMSE, ObjectiveABSME, ObjectiveCorr} {
		w, err := SimplexObjectiveWeights(x, pop, obj, false)
		if err != nil {
			t.Fatalf("objective %s failed: %v", obj, err)
		}
		sum := 0.0
		for i, v := range w {
			if v < -1e-12 {
				t.Errorf("objective %s weight %d negative: %v", obj, i, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-8 {
			t.Errorf("objective %s weights sum to %v, expected 1", obj, sum)
		}
	}

	if _, err := SimplexObjectiveWeights(x, pop, Objective("bogus"), false); err == nil {
		t.Error("expected error for unknown objective")
	}
}

func TestProjectSimplex_KnownProjections(t *testing.T) {
	// Already on the simplex: unchanged.
	beta := []float64{0.25, 0.75}
	projectSimplex(beta, false)
	if math.Abs(beta[0]-0.25) > 1e-12 || math.Abs(beta[1]-0.75) > 1e-12 {
		t.Errorf("on-simplex point moved: %v", beta)
	}

	// Dominant coordinate collapses to a vertex.
	beta = []float64{5, 0}
	projectSimplex(beta, false)
	if math.Abs(beta[0]-1) > 1e-12 || beta[1] != 0 {
		t.Errorf("expected vertex (1,0), got %v", beta)
	}

	// Symmetric point projects to the uniform weight.
	beta = []float64{2, 2, 2}
	projectSimplex(beta, false)
	for _, v := range beta {
		if math.Abs(v-1.0/3) > 1e-12 {
			t.Errorf("expected uniform 1/3, got %v", beta)
		}
	}
}
