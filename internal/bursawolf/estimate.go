package bursawolf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/litescript/crsfit/internal/geodesy"
)

// MaxCondition is the largest normal-matrix condition number accepted
// before the geometry is declared degenerate.
const MaxCondition = 1e12

// Estimate returns the parameters that best map target onto source in the
// least-squares sense, i.e. source[i] ≈ Apply(target[i]).
//
// The linearized model is solved on centroid-reduced, normalized
// coordinates, so translations and rotation/scale decouple and the normal
// matrix stays well conditioned for continental coordinates. One
// Gauss-Newton pass against the exact model follows.
func Estimate(source, target []geodesy.ECEF) (Params, error) {
	n := len(source)
	if n < 3 || len(target) != n {
		return Params{}, fmt.Errorf("%w: %d source, %d target", ErrInsufficientCorrespondences, n, len(target))
	}

	centroid := mean(target)
	var spread float64
	for _, t := range target {
		d := t.Sub(centroid)
		spread += d.Dot(d)
	}
	spread = math.Sqrt(spread / float64(n))
	if spread == 0 || math.IsNaN(spread) || math.IsInf(spread, 0) {
		return Params{}, fmt.Errorf("%w: coincident points", ErrDegenerateGeometry)
	}

	reduced := make([]geodesy.ECEF, n)
	for i, t := range target {
		reduced[i] = t.Sub(centroid).Scale(1 / spread)
	}
	design := designMatrix(reduced)

	var normal mat.SymDense
	normal.SymOuterK(1, design.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&normal); !ok {
		return Params{}, fmt.Errorf("%w: normal matrix not positive definite", ErrDegenerateGeometry)
	}
	if c := chol.Cond(); c > MaxCondition || math.IsNaN(c) {
		return Params{}, fmt.Errorf("%w: condition number %.3g", ErrDegenerateGeometry, c)
	}

	solve := func(p Params) (Params, error) {
		obs := mat.NewVecDense(3*n, nil)
		for i := range target {
			r := source[i].Sub(p.Apply(target[i]))
			obs.SetVec(3*i, r.X)
			obs.SetVec(3*i+1, r.Y)
			obs.SetVec(3*i+2, r.Z)
		}
		var rhs, x mat.VecDense
		rhs.MulVec(design.T(), obs)
		if err := chol.SolveVecTo(&x, &rhs); err != nil {
			return Params{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
		}
		return p.add(unreduce(x.RawVector().Data, centroid, spread)), nil
	}

	p, err := solve(Params{})
	if err != nil {
		return Params{}, err
	}
	return solve(p)
}

// designMatrix builds the 3n×7 Jacobian of the linearized model with
// unknowns [tx', ty', tz', rx', ry', rz', s'] over reduced coordinates.
func designMatrix(reduced []geodesy.ECEF) *mat.Dense {
	a := mat.NewDense(3*len(reduced), 7, nil)
	for i, p := range reduced {
		a.SetRow(3*i, []float64{1, 0, 0, 0, p.Z, -p.Y, p.X})
		a.SetRow(3*i+1, []float64{0, 1, 0, -p.Z, 0, p.X, p.Y})
		a.SetRow(3*i+2, []float64{0, 0, 1, p.Y, -p.X, 0, p.Z})
	}
	return a
}

// unreduce maps a solution on reduced coordinates back to parameters on the
// original frame. The reduced translation absorbs the rotation and scale of
// the centroid, which is removed here.
func unreduce(x []float64, centroid geodesy.ECEF, spread float64) Params {
	rx, ry, rz, s := x[3]/spread, x[4]/spread, x[5]/spread, x[6]/spread
	c := centroid
	return Params{
		DX:    x[0] - (s*c.X + ry*c.Z - rz*c.Y),
		DY:    x[1] - (s*c.Y + rz*c.X - rx*c.Z),
		DZ:    x[2] - (s*c.Z + rx*c.Y - ry*c.X),
		RX:    rx,
		RY:    ry,
		RZ:    rz,
		Scale: s,
	}
}

func (p Params) add(q Params) Params {
	return Params{
		DX:    p.DX + q.DX,
		DY:    p.DY + q.DY,
		DZ:    p.DZ + q.DZ,
		RX:    p.RX + q.RX,
		RY:    p.RY + q.RY,
		RZ:    p.RZ + q.RZ,
		Scale: p.Scale + q.Scale,
	}
}

func mean(vs []geodesy.ECEF) geodesy.ECEF {
	var sum geodesy.ECEF
	for _, v := range vs {
		sum = sum.Add(v)
	}
	return sum.Scale(1 / float64(len(vs)))
}
