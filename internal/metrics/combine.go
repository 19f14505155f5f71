package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"infleval/internal/errors"
)

// Proximal / projected gradient controls. The step is fixed per problem at
// the inverse Lipschitz constant of the quadratic part; iteration stops on
// an absolute cost improvement below the tolerance.
const (
	combineTolerance     = 1e-10
	combineMaxIterations = 20000
	gradientStepEpsilon  = 1e-6
)

// Objective selects the nonlinear loss of the constrained combination
// variant.
type Objective string

const (
	ObjectiveMSE   Objective = "mse"
	ObjectiveRMSE  Objective = "rmse"
	ObjectiveABSME Objective = "absme"
	ObjectiveCorr  Objective = "corr"
)

// normalEquations accumulates XᵀX and Xᵀπ averaged over periods and
// replications. x is indexed [period][estimator][replication], pop has one
// entry per period.
func normalEquations(x [][][]float64, pop []float64) (*mat.SymDense, *mat.VecDense, int, error) {
	t := len(x)
	if t == 0 {
		return nil, nil, 0, errors.ShapeMismatch("empty trajectory stack")
	}
	if len(pop) != t {
		return nil, nil, 0, errors.ShapeMismatch(fmt.Sprintf(
			"population trajectory has %d periods, stack has %d", len(pop), t))
	}
	n := len(x[0])
	if n == 0 {
		return nil, nil, 0, errors.ShapeMismatch("trajectory stack has no estimators")
	}
	k := len(x[0][0])
	if k == 0 {
		return nil, nil, 0, errors.ShapeMismatch("trajectory stack has no replications")
	}

	a := mat.NewSymDense(n, nil)
	b := mat.NewVecDense(n, nil)
	scale := 1.0 / float64(t*k)
	for i := 0; i < t; i++ {
		if len(x[i]) != n {
			return nil, nil, 0, errors.ShapeMismatch(fmt.Sprintf(
				"ragged stack: period %d has %d estimators, expected %d", i, len(x[i]), n))
		}
		for j := 0; j < k; j++ {
			for p := 0; p < n; p++ {
				xp := x[i][p][j]
				b.SetVec(p, b.AtVec(p)+scale*xp*pop[i])
				for q := p; q < n; q++ {
					a.SetSym(p, q, a.At(p, q)+scale*xp*x[i][q][j])
				}
			}
		}
	}
	return a, b, n, nil
}

// Weights solves the unconstrained least-squares combination in closed form
// through the accumulated normal equations.
func Weights(x [][][]float64, pop []float64) ([]float64, error) {
	a, b, n, err := normalEquations(x, pop)
	if err != nil {
		return nil, err
	}
	return solveSystem(a, b, n)
}

// RidgeWeights solves the L2-regularized combination in closed form. With
// exemptFirst the leading weight escapes the penalty, the convention when
// the first estimator plays the role of an intercept. Lambda zero falls
// back to the unregularized closed form.
func RidgeWeights(x [][][]float64, pop []float64, lambda float64, exemptFirst bool) ([]float64, error) {
	if lambda < 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("ridge penalty %g must not be negative", lambda))
	}
	if lambda == 0 {
		return Weights(x, pop)
	}
	a, b, n, err := normalEquations(x, pop)
	if err != nil {
		return nil, err
	}
	start := 0
	if exemptFirst {
		start = 1
	}
	for i := start; i < n; i++ {
		a.SetSym(i, i, a.At(i, i)+lambda)
	}
	return solveSystem(a, b, n)
}

// LassoWeights solves the L1-regularized combination by proximal gradient
// descent with a fixed step and an absolute-cost stopping tolerance. Lambda
// zero falls back to the closed-form solution rather than iterating.
func LassoWeights(x [][][]float64, pop []float64, lambda float64) ([]float64, error) {
	return ElasticNetWeights(x, pop, lambda, 0)
}

// ElasticNetWeights mixes L1 and L2 penalties under the same proximal
// gradient scheme. Both penalties zero reduces to the closed form.
func ElasticNetWeights(x [][][]float64, pop []float64, l1, l2 float64) ([]float64, error) {
	if l1 < 0 || l2 < 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("penalties %g, %g must not be negative", l1, l2))
	}
	if l1 == 0 && l2 == 0 {
		return Weights(x, pop)
	}
	a, b, n, err := normalEquations(x, pop)
	if err != nil {
		return nil, err
	}
	step := 1 / (lipschitz(a, n) + l2)
	beta := make([]float64, n)
	grad := make([]float64, n)
	prevCost := math.Inf(1)
	for iter := 0; iter < combineMaxIterations; iter++ {
		quadGradient(a, b, beta, grad)
		for i := range beta {
			z := beta[i] - step*(grad[i]+l2*beta[i])
			beta[i] = softThreshold(z, step*l1)
		}
		cost := quadCost(a, b, beta)
		for _, w := range beta {
			cost += l1*math.Abs(w) + 0.5*l2*w*w
		}
		if math.Abs(prevCost-cost) < combineTolerance {
			break
		}
		prevCost = cost
	}
	return beta, nil
}

// SimplexWeights solves the combination under non-negativity and sum-to-one
// constraints by projected gradient descent. With exemptFirst the leading
// weight stays non-negative but outside the sum constraint.
func SimplexWeights(x [][][]float64, pop []float64, exemptFirst bool) ([]float64, error) {
	a, b, n, err := normalEquations(x, pop)
	if err != nil {
		return nil, err
	}
	if n == 1 && !exemptFirst {
		return []float64{1}, nil
	}
	step := 1 / lipschitz(a, n)
	beta := make([]float64, n)
	uniformSimplex(beta, exemptFirst)
	grad := make([]float64, n)
	prevCost := math.Inf(1)
	for iter := 0; iter < combineMaxIterations; iter++ {
		quadGradient(a, b, beta, grad)
		for i := range beta {
			beta[i] -= step * grad[i]
		}
		projectSimplex(beta, exemptFirst)
		cost := quadCost(a, b, beta)
		if math.Abs(prevCost-cost) < combineTolerance {
			break
		}
		prevCost = cost
	}
	return beta, nil
}

// SimplexObjectiveWeights substitutes a nonlinear loss for plain MSE under
// the same simplex constraints, using projected gradient descent with a
// central-difference gradient of the trajectory-level objective.
func SimplexObjectiveWeights(x [][][]float64, pop []float64, obj Objective, exemptFirst bool) ([]float64, error) {
	if obj == ObjectiveMSE {
		return SimplexWeights(x, pop, exemptFirst)
	}
	t := len(x)
	if t == 0 || len(pop) != t {
		return nil, errors.ShapeMismatch("trajectory stack and population trajectory disagree")
	}
	n := len(x[0])
	loss, err := objectiveLoss(obj, x, pop)
	if err != nil {
		return nil, err
	}

	beta := make([]float64, n)
	uniformSimplex(beta, exemptFirst)
	grad := make([]float64, n)
	trial := make([]float64, n)
	step := 0.05
	prevCost := loss(beta)
	for iter := 0; iter < combineMaxIterations/10; iter++ {
		for i := range beta {
			copy(trial, beta)
			trial[i] = beta[i] + gradientStepEpsilon
			up := loss(trial)
			trial[i] = beta[i] - gradientStepEpsilon
			down := loss(trial)
			grad[i] = (up - down) / (2 * gradientStepEpsilon)
		}
		for i := range beta {
			beta[i] -= step * grad[i]
		}
		projectSimplex(beta, exemptFirst)
		cost := loss(beta)
		if math.Abs(prevCost-cost) < combineTolerance {
			break
		}
		prevCost = cost
	}
	return beta, nil
}

func objectiveLoss(obj Objective, x [][][]float64, pop []float64) (func([]float64) float64, error) {
	t := len(x)
	n := len(x[0])
	k := len(x[0][0])
	combine := func(beta []float64) [][]float64 {
		combo := make([][]float64, t)
		for i := 0; i < t; i++ {
			row := make([]float64, k)
			for j := 0; j < k; j++ {
				v := 0.0
				for p := 0; p < n; p++ {
					v += beta[p] * x[i][p][j]
				}
				row[j] = v
			}
			combo[i] = row
		}
		return combo
	}
	switch obj {
	case ObjectiveRMSE:
		return func(beta []float64) float64 {
			s, _ := Evaluate(combine(beta), pop, Options{})
			return s["rmse"]
		}, nil
	case ObjectiveABSME:
		return func(beta []float64) float64 {
			s, _ := Evaluate(combine(beta), pop, Options{})
			return s["absme"]
		}, nil
	case ObjectiveCorr:
		// Correlation is maximized; the loss is its shortfall from one.
		return func(beta []float64) float64 {
			s, _ := Evaluate(combine(beta), pop, Options{})
			return 1 - s["corr"]
		}, nil
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown combination objective %q", obj))
	}
}

func solveSystem(a *mat.SymDense, b *mat.VecDense, n int) ([]float64, error) {
	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return nil, errors.Numerical("normal equations are singular: " + err.Error())
	}
	beta := make([]float64, n)
	for i := range beta {
		beta[i] = sol.AtVec(i)
	}
	return beta, nil
}

// lipschitz bounds the largest eigenvalue of the quadratic part by a few
// power iterations, giving a safe fixed step for the gradient schemes.
func lipschitz(a *mat.SymDense, n int) float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1 / math.Sqrt(float64(n))
	}
	est := 1.0
	next := make([]float64, n)
	for iter := 0; iter < 50; iter++ {
		norm := 0.0
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < n; j++ {
				s += a.At(i, j) * v[j]
			}
			next[i] = s
			norm += s * s
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			return 1
		}
		est = norm
		for i := range v {
			v[i] = next[i] / norm
		}
	}
	if est <= 0 || math.IsNaN(est) {
		return 1
	}
	return est
}

func quadGradient(a *mat.SymDense, b *mat.VecDense, beta, grad []float64) {
	n := len(beta)
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += a.At(i, j) * beta[j]
		}
		grad[i] = s - b.AtVec(i)
	}
}

// quadCost is 0.5 βᵀAβ − bᵀβ, the least-squares cost up to a constant.
func quadCost(a *mat.SymDense, b *mat.VecDense, beta []float64) float64 {
	n := len(beta)
	cost := 0.0
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += a.At(i, j) * beta[j]
		}
		cost += 0.5*beta[i]*s - b.AtVec(i)*beta[i]
	}
	return cost
}

func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

func uniformSimplex(beta []float64, exemptFirst bool) {
	start := 0
	if exemptFirst {
		start = 1
		beta[0] = 0
	}
	if len(beta) == start {
		return
	}
	w := 1 / float64(len(beta)-start)
	for i := start; i < len(beta); i++ {
		beta[i] = w
	}
}

// projectSimplex performs Euclidean projection onto the probability simplex
// over beta[start:], clipping the exempt leading weight at zero.
func projectSimplex(beta []float64, exemptFirst bool) {
	start := 0
	if exemptFirst {
		start = 1
		if beta[0] < 0 {
			beta[0] = 0
		}
	}
	part := beta[start:]
	n := len(part)
	if n == 0 {
		return
	}
	sorted := make([]float64, n)
	copy(sorted, part)
	// descending insertion sort; combination problems are small
	for i := 1; i < n; i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] < v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}
	cum := 0.0
	theta := 0.0
	for i := 0; i < n; i++ {
		cum += sorted[i]
		t := (cum - 1) / float64(i+1)
		if sorted[i]-t > 0 {
			theta = t
		}
	}
	for i := range part {
		part[i] -= theta
		if part[i] < 0 {
			part[i] = 0
		}
	}
}
