package treecode

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// InvalidArgumentError reports an invalid GMRES argument. Code matches
// the netlib template convention: -1 dimension negative, -2 right-hand
// side or solution vector too short, -3 iteration limit not positive,
// -4 restart not positive.
type InvalidArgumentError struct {
	Code   int
	Detail string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("gmres: invalid argument (%d): %s", e.Code, e.Detail)
}

// ConvergenceWarning reports that GMRES exhausted its iteration limit.
// The best iterate is still stored in the solution vector; the warning
// is recoverable.
type ConvergenceWarning struct {
	Iterations int
	Residual   float64
}

func (e *ConvergenceWarning) Error() string {
	return fmt.Sprintf("gmres: not converged after %d iterations (residual %e)", e.Iterations, e.Residual)
}

// gmres solves A x = b by the restarted Generalized Minimal Residual
// method with left preconditioning, following the netlib template: a
// Gram-Schmidt Krylov basis, Givens rotations reducing the Hessenberg
// matrix on the fly, and the convergence test
// norm(M^-1 (b - A x)) / norm(b) <= tol.
//
// matvec computes y := alpha*A*x + beta*y; psolve solves M z = r. The
// context is polled at every restart. On success the iteration count is
// returned; exhaustion of maxIter returns the count alongside a
// ConvergenceWarning.
func gmres(ctx context.Context, n int, b, x []float64, restart int, tol float64,
	maxIter int, matvec func(alpha float64, x []float64, beta float64, y []float64),
	psolve func(z, r []float64) error) (int, error) {

	switch {
	case n < 0:
		return 0, &InvalidArgumentError{Code: -1, Detail: "dimension is negative"}
	case len(b) < n || len(x) < n:
		return 0, &InvalidArgumentError{Code: -2, Detail: "vector shorter than dimension"}
	case maxIter <= 0:
		return 0, &InvalidArgumentError{Code: -3, Detail: "iteration limit is not positive"}
	case restart <= 0:
		return 0, &InvalidArgumentError{Code: -4, Detail: "restart is not positive"}
	}

	bnorm := floats.Norm(b[:n], 2)
	if bnorm == 0 {
		bnorm = 1
	}

	// Workspace: r is the preconditioned residual, w the next Krylov
	// direction, V the orthonormal basis, h the Hessenberg columns with
	// the Givens parameters cs, sn, and s the rotated residual vector.
	r := make([]float64, n)
	w := make([]float64, n)

	v := make([][]float64, restart+1)
	for i := range v {
		v[i] = make([]float64, n)
	}

	h := make([][]float64, restart)
	for i := range h {
		h[i] = make([]float64, restart+1)
	}
	cs := make([]float64, restart)
	sn := make([]float64, restart)
	s := make([]float64, restart+1)
	y := make([]float64, restart)

	residual := func() error {
		copy(r, b[:n])
		if floats.Norm(x[:n], 2) != 0 {
			matvec(-1., x, 1., r)
		}
		return psolve(r, r)
	}

	if err := residual(); err != nil {
		return 0, err
	}

	resid := floats.Norm(r, 2) / bnorm
	if resid < tol {
		return 0, nil
	}

	iter := 0

	for {
		if err := ctx.Err(); err != nil {
			return iter, err
		}

		rnorm := floats.Norm(r, 2)
		copy(v[0], r)
		floats.Scale(1./rnorm, v[0])

		for k := range s {
			s[k] = 0
		}
		s[0] = rnorm

		built := 0
		for i := 0; i < restart; i++ {
			iter++

			matvec(1., v[i], 0., w)
			if err := psolve(w, w); err != nil {
				return iter, err
			}

			// Gram-Schmidt against the previous basis vectors.
			for k := 0; k <= i; k++ {
				h[i][k] = floats.Dot(w, v[k])
				floats.AddScaled(w, -h[i][k], v[k])
			}
			h[i][i+1] = floats.Norm(w, 2)
			copy(v[i+1], w)
			if h[i][i+1] != 0 {
				floats.Scale(1./h[i][i+1], v[i+1])
			}

			// Apply the accumulated Givens rotations to the new column,
			// then zero its subdiagonal with a fresh rotation.
			for k := 0; k < i; k++ {
				h[i][k], h[i][k+1] = applyRotation(cs[k], sn[k], h[i][k], h[i][k+1])
			}
			cs[i], sn[i] = makeRotation(h[i][i], h[i][i+1])
			h[i][i], h[i][i+1] = applyRotation(cs[i], sn[i], h[i][i], h[i][i+1])
			s[i], s[i+1] = applyRotation(cs[i], sn[i], s[i], s[i+1])

			resid = math.Abs(s[i+1]) / bnorm
			logrus.Debugf("iteration no. = %d, error = %e", iter, resid)

			if resid <= tol {
				update(i+1, n, x, h, s, v, y)
				return iter, nil
			}

			built = i + 1
			if iter == maxIter {
				break
			}
		}

		update(built, n, x, h, s, v, y)

		if err := residual(); err != nil {
			return iter, err
		}
		resid = floats.Norm(r, 2) / bnorm
		if resid <= tol {
			return iter, nil
		}

		if iter >= maxIter {
			return iter, &ConvergenceWarning{Iterations: iter, Residual: resid}
		}
	}
}

// update backsolves the i x i upper-triangular system H y = s and adds
// V y into x.
func update(i, n int, x []float64, h [][]float64, s []float64, v [][]float64, y []float64) {
	copy(y[:i], s[:i])

	for k := i - 1; k >= 0; k-- {
		y[k] /= h[k][k]
		for m := k - 1; m >= 0; m-- {
			y[m] -= h[k][m] * y[k]
		}
	}

	for k := 0; k < i; k++ {
		floats.AddScaled(x[:n], y[k], v[k])
	}
}

// makeRotation builds the Givens rotation zeroing b against a.
func makeRotation(a, b float64) (c, s float64) {
	switch {
	case b == 0:
		return 1, 0
	case math.Abs(b) > math.Abs(a):
		t := a / b
		s = 1. / math.Sqrt(1.+t*t)
		return s * t, s
	default:
		t := b / a
		c = 1. / math.Sqrt(1.+t*t)
		return c, c * t
	}
}

func applyRotation(c, s, a, b float64) (float64, float64) {
	return c*a + s*b, -s*a + c*b
}
