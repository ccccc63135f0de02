// Package minimize wraps gonum's Nelder-Mead simplex search with the
// conventions the fitters rely on: per-parameter step scaling, a hard
// evaluation budget, context cancellation and best-point tracking.
package minimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/optimize"
)

// ErrBudgetExhausted is returned when a shared Budget runs out before the
// search converges. The best point found so far is still returned.
var ErrBudgetExhausted = errors.New("minimize: evaluation budget exhausted")

// Objective is a function to minimize. NaN and infinite values are treated
// as +Inf.
type Objective func(x []float64) float64

// Result is the outcome of one minimization.
type Result struct {
	X           []float64
	F           float64
	Evaluations int
	Status      optimize.Status
}

// Budget is a global evaluation counter shared by concurrent searches.
// A nil Budget is unlimited.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget returns a budget allowing limit evaluations. A limit <= 0 means
// unlimited.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Take reserves one evaluation and reports whether it was available.
func (b *Budget) Take() bool {
	if b == nil {
		return true
	}
	n := b.used.Add(1)
	return b.limit <= 0 || n <= b.limit
}

// Used returns the number of evaluations taken so far.
func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}
	n := b.used.Load()
	if b.limit > 0 && n > b.limit {
		return b.limit
	}
	return n
}

// Exhausted reports whether no evaluations remain.
func (b *Budget) Exhausted() bool {
	if b == nil || b.limit <= 0 {
		return false
	}
	return b.used.Load() >= b.limit
}

// Minimizer runs bounded Nelder-Mead searches. The zero value has no global
// budget.
type Minimizer struct {
	Budget *Budget
}

// Minimize runs a search with no global budget.
func Minimize(ctx context.Context, f Objective, x0, steps []float64, maxEvaluations int) (Result, error) {
	return Minimizer{}.Minimize(ctx, f, x0, steps, maxEvaluations)
}

// Minimize searches from x0. Each coordinate i moves in units of steps[i]
// (a zero or missing step counts as 1), so coordinates of different
// magnitudes share one simplex. At most maxEvaluations objective calls are
// made. The returned point is the best ever evaluated. When ctx is done or
// the global budget runs out the best point so far is returned together
// with the reason.
func (m Minimizer) Minimize(ctx context.Context, f Objective, x0, steps []float64, maxEvaluations int) (Result, error) {
	dim := len(x0)
	scale := make([]float64, dim)
	for i := range scale {
		scale[i] = 1
		if i < len(steps) && steps[i] != 0 && !math.IsNaN(steps[i]) {
			scale[i] = math.Abs(steps[i])
		}
	}

	best := Result{X: append([]float64(nil), x0...), F: math.Inf(1)}
	var stop error

	x := make([]float64, dim)
	eval := func(u []float64) float64 {
		if stop != nil {
			return math.Inf(1)
		}
		if err := ctx.Err(); err != nil {
			stop = err
			return math.Inf(1)
		}
		if !m.Budget.Take() {
			stop = ErrBudgetExhausted
			return math.Inf(1)
		}
		for i := range x {
			x[i] = x0[i] + u[i]*scale[i]
		}
		v := f(x)
		best.Evaluations++
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = math.Inf(1)
		}
		if v < best.F {
			best.F = v
			copy(best.X, x)
		}
		return v
	}

	if dim == 0 {
		eval(nil)
		return best, stop
	}

	problem := optimize.Problem{
		Func: eval,
		Status: func() (optimize.Status, error) {
			if stop != nil {
				return optimize.Failure, stop
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{FuncEvaluations: max(maxEvaluations, 1)}
	res, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.NelderMead{SimplexSize: 1})
	if res != nil {
		best.Status = res.Status
	}
	if stop != nil {
		return best, stop
	}
	if err != nil && math.IsInf(best.F, 1) {
		return best, fmt.Errorf("minimize: %w", err)
	}
	return best, nil
}

// Subset adapts an objective over a full parameter vector to a search over
// the coordinates listed in idx; the others stay fixed at base.
func Subset(base []float64, idx []int, f Objective) (x0 []float64, g Objective) {
	x0 = make([]float64, len(idx))
	for k, i := range idx {
		x0[k] = base[i]
	}
	full := append([]float64(nil), base...)
	g = func(sub []float64) float64 {
		for k, i := range idx {
			full[i] = sub[k]
		}
		return f(full)
	}
	return x0, g
}

// Expand writes sub back into a copy of base at idx.
func Expand(base []float64, idx []int, sub []float64) []float64 {
	out := append([]float64(nil), base...)
	for k, i := range idx {
		out[i] = sub[k]
	}
	return out
}
